// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeridianIDE/MeridianCore/services/model/clock"
)

func newTestManager(t *testing.T) (*Manager, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Unix(1_700_000_000, 0))
	m := NewManager(Config{Clock: fake}, nil)
	t.Cleanup(m.Close)
	return m, fake
}

func createJob(t *testing.T, m *Manager) string {
	t.Helper()
	j := m.Create("corr-1", "model.export", "meridian", "file:///a.mrd")
	require.NotEmpty(t, j.ID)
	return j.ID
}

func TestManager_Create(t *testing.T) {
	m, _ := newTestManager(t)

	j := m.Create("corr-1", "model.export", "meridian", "file:///a.mrd")

	assert.Equal(t, StatusPending, j.Status)
	assert.Zero(t, j.Progress)
	assert.Nil(t, j.CompletedAt)
	assert.Equal(t, "corr-1", j.CorrelationID)

	got, ok := m.Get(j.ID)
	require.True(t, ok)
	assert.Equal(t, j.ID, got.ID)
}

func TestManager_ProgressClamping(t *testing.T) {
	m, _ := newTestManager(t)
	id := createJob(t, m)

	tests := []struct {
		in   float64
		want float64
	}{
		{-5, 0},
		{0, 0},
		{42.5, 42.5},
		{100, 100},
		{250, 100},
	}

	for _, tt := range tests {
		require.True(t, m.UpdateProgress(id, tt.in, ""))
		j, _ := m.Get(id)
		assert.Equal(t, tt.want, j.Progress, "progress for input %v", tt.in)
	}
}

func TestManager_ProgressMessage(t *testing.T) {
	m, _ := newTestManager(t)
	id := createJob(t, m)

	m.UpdateProgress(id, 10, "parsing")
	m.UpdateProgress(id, 20, "")

	j, _ := m.Get(id)
	assert.Equal(t, "parsing", j.Message, "empty message must not erase the previous one")
	assert.Equal(t, 20.0, j.Progress)
}

func TestManager_StateMachine(t *testing.T) {
	m, _ := newTestManager(t)
	id := createJob(t, m)

	require.True(t, m.UpdateStatus(id, StatusRunning))
	require.True(t, m.Complete(id, map[string]any{"ok": true}))

	j, _ := m.Get(id)
	assert.Equal(t, StatusCompleted, j.Status)
	assert.Equal(t, 100.0, j.Progress)
	require.NotNil(t, j.CompletedAt)

	// Terminal state is final: no regression, no further mutation.
	assert.False(t, m.UpdateStatus(id, StatusRunning))
	assert.False(t, m.UpdateProgress(id, 10, "late"))
	assert.False(t, m.Fail(id, "late failure"))
	assert.False(t, m.Cancel(id))

	j, _ = m.Get(id)
	assert.Equal(t, StatusCompleted, j.Status)
	assert.Equal(t, 100.0, j.Progress)
}

func TestManager_Fail(t *testing.T) {
	m, _ := newTestManager(t)
	id := createJob(t, m)

	m.UpdateStatus(id, StatusRunning)
	require.True(t, m.Fail(id, "handler exploded"))

	j, _ := m.Get(id)
	assert.Equal(t, StatusFailed, j.Status)
	assert.Equal(t, "handler exploded", j.Error)
	assert.NotNil(t, j.CompletedAt)
}

func TestManager_Cancel(t *testing.T) {
	m, _ := newTestManager(t)

	t.Run("pending job", func(t *testing.T) {
		id := createJob(t, m)
		assert.True(t, m.Cancel(id))
		j, _ := m.Get(id)
		assert.Equal(t, StatusCancelled, j.Status)
	})

	t.Run("running job", func(t *testing.T) {
		id := createJob(t, m)
		m.UpdateStatus(id, StatusRunning)
		assert.True(t, m.Cancel(id))
	})

	t.Run("completed job", func(t *testing.T) {
		id := createJob(t, m)
		m.UpdateStatus(id, StatusRunning)
		m.Complete(id, nil)
		assert.False(t, m.Cancel(id))
	})

	t.Run("late completion after cancel is a no-op", func(t *testing.T) {
		id := createJob(t, m)
		m.UpdateStatus(id, StatusRunning)
		require.True(t, m.Cancel(id))
		assert.False(t, m.Complete(id, "stale result"))
		j, _ := m.Get(id)
		assert.Equal(t, StatusCancelled, j.Status)
		assert.Nil(t, j.Result)
	})
}

func TestManager_UnknownIDIsNoOp(t *testing.T) {
	m, _ := newTestManager(t)

	assert.False(t, m.UpdateStatus("nope", StatusRunning))
	assert.False(t, m.UpdateProgress("nope", 50, ""))
	assert.False(t, m.Complete("nope", nil))
	assert.False(t, m.Fail("nope", "x"))
	assert.False(t, m.Cancel("nope"))

	_, ok := m.Get("nope")
	assert.False(t, ok)
}

func TestManager_SweepRemovesOldTerminalJobs(t *testing.T) {
	fake := clock.NewFake(time.Unix(1_700_000_000, 0))
	m := NewManager(Config{Clock: fake, Retention: time.Hour}, nil)
	defer m.Close()

	oldDone := createJob(t, m)
	m.UpdateStatus(oldDone, StatusRunning)
	m.Complete(oldDone, nil)

	stuck := createJob(t, m)
	m.UpdateStatus(stuck, StatusRunning)

	// Past the retention window.
	fake.Advance(2 * time.Hour)

	freshDone := createJob(t, m)
	m.Cancel(freshDone)

	m.sweep()

	_, ok := m.Get(oldDone)
	assert.False(t, ok, "old terminal job must be swept")
	_, ok = m.Get(stuck)
	assert.True(t, ok, "running job must never be swept regardless of age")
	_, ok = m.Get(freshDone)
	assert.True(t, ok, "recently finished job must survive the sweep")
}

func TestManager_Stats(t *testing.T) {
	m, _ := newTestManager(t)

	a := createJob(t, m)
	b := createJob(t, m)
	createJob(t, m)

	m.UpdateStatus(a, StatusRunning)
	m.UpdateStatus(b, StatusRunning)
	m.Fail(b, "boom")

	s := m.Stats()
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 1, s.Running)
	assert.Equal(t, 1, s.Failed)
}

func TestManager_ListNewestFirst(t *testing.T) {
	fake := clock.NewFake(time.Unix(1_700_000_000, 0))
	m := NewManager(Config{Clock: fake}, nil)
	defer m.Close()

	first := m.Create("c", "op", "meridian", "file:///a.mrd")
	fake.Advance(time.Second)
	second := m.Create("c", "op", "meridian", "file:///a.mrd")

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}
