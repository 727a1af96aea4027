// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock for deterministic timing tests.
//
// Timers and tickers fire synchronously inside Advance, in due-time order.
// Callbacks run on the goroutine calling Advance, without the internal lock
// held, so a callback may arm further timers.
//
// Thread Safety: safe for concurrent use.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

// NewFake creates a Fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// After returns a channel that receives once Advance passes d.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	f.schedule(d, 0, nil, ch)
	return ch
}

// AfterFunc schedules fn to run once Advance passes d.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	return f.schedule(d, 0, fn, nil)
}

// NewTicker returns a ticker that fires on every Advance past a multiple of d.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	ch := make(chan time.Time, 64)
	t := f.schedule(d, d, nil, ch)
	return &fakeTicker{timer: t, ch: ch}
}

// Advance moves the fake time forward by d, firing every timer and ticker
// that becomes due, in order.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		t := f.popDue(target)
		if t == nil {
			break
		}
		t.fire()
	}

	f.mu.Lock()
	if target.After(f.now) {
		f.now = target
	}
	f.mu.Unlock()
}

// PendingTimers reports how many timers are currently armed.
func (f *Fake) PendingTimers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

func (f *Fake) schedule(d, period time.Duration, fn func(), ch chan time.Time) *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{
		clock:  f,
		when:   f.now.Add(d),
		period: period,
		seq:    f.seq,
		fn:     fn,
		ch:     ch,
	}
	f.timers = append(f.timers, t)
	return t
}

// popDue removes and returns the earliest timer due at or before target,
// advancing the fake time to that timer's deadline. Repeating timers are
// rescheduled before being returned.
func (f *Fake) popDue(target time.Time) *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()

	sort.SliceStable(f.timers, func(i, j int) bool {
		if f.timers[i].when.Equal(f.timers[j].when) {
			return f.timers[i].seq < f.timers[j].seq
		}
		return f.timers[i].when.Before(f.timers[j].when)
	})

	for i, t := range f.timers {
		if t.when.After(target) {
			continue
		}
		if t.when.After(f.now) {
			f.now = t.when
		}
		if t.period > 0 {
			t.when = t.when.Add(t.period)
		} else {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
		}
		return t
	}
	return nil
}

func (f *Fake) remove(target *fakeTimer) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.timers {
		if t == target {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			return true
		}
	}
	return false
}

type fakeTimer struct {
	clock  *Fake
	when   time.Time
	period time.Duration
	seq    int
	fn     func()
	ch     chan time.Time
}

func (t *fakeTimer) fire() {
	if t.fn != nil {
		t.fn()
	}
	if t.ch != nil {
		select {
		case t.ch <- t.when:
		default:
		}
	}
}

func (t *fakeTimer) Stop() bool {
	return t.clock.remove(t)
}

type fakeTicker struct {
	timer *fakeTimer
	ch    chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTicker) Stop() {
	t.timer.clock.remove(t.timer)
}
