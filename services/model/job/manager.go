// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package job

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MeridianIDE/MeridianCore/services/model/clock"
)

// Config configures the Manager. Zero values use defaults.
type Config struct {
	// Retention is how long terminal jobs are kept after completion.
	// Default: 1 hour.
	Retention time.Duration

	// CleanupInterval is how often the retention sweep runs.
	// Default: 5 minutes.
	CleanupInterval time.Duration

	// Clock is the time source. Default: clock.System().
	Clock clock.Clock
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Retention <= 0 {
		c.Retention = time.Hour
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	if c.Clock == nil {
		c.Clock = clock.System()
	}
}

// Manager owns the job table and the job state machine.
//
// All mutators are no-ops with a logged warning on an unknown job id.
// A background sweep deletes terminal jobs whose completion is older than
// the retention window; pending and running jobs are never swept.
//
// Thread Safety: safe for concurrent use.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*Job

	done     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a Manager and starts its retention sweep.
// Call Close to stop the sweep.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "job_manager")),
		jobs:   make(map[string]*Job),
		done:   make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Close stops the retention sweep. Idempotent.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.done) })
}

// Create registers a new pending job and returns its snapshot.
func (m *Manager) Create(correlationID, operationID, languageID, documentURI string) Job {
	now := m.cfg.Clock.Now()
	j := &Job{
		ID:            uuid.New().String(),
		CorrelationID: correlationID,
		OperationID:   operationID,
		LanguageID:    languageID,
		DocumentURI:   documentURI,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	m.mu.Lock()
	m.jobs[j.ID] = j
	m.mu.Unlock()

	m.logger.Info("Job created",
		slog.String("job_id", j.ID),
		slog.String("operation", operationID),
		slog.String("correlation_id", correlationID),
	)
	return *j
}

// Get returns a snapshot of the job, if known.
func (m *Manager) Get(id string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// List returns snapshots of all jobs, newest first.
func (m *Manager) List() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out
}

// Stats counts jobs per status.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s Stats
	for _, j := range m.jobs {
		s.Total++
		switch j.Status {
		case StatusPending:
			s.Pending++
		case StatusRunning:
			s.Running++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		}
	}
	return s
}

// UpdateStatus moves a job forward through the state machine. Illegal
// transitions and unknown ids are no-ops returning false.
func (m *Manager) UpdateStatus(id string, status Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		m.warnUnknown("UpdateStatus", id)
		return false
	}
	if !canTransition(j.Status, status) {
		m.logger.Warn("Illegal job transition ignored",
			slog.String("job_id", id),
			slog.String("from", string(j.Status)),
			slog.String("to", string(status)),
		)
		return false
	}
	j.Status = status
	j.UpdatedAt = m.cfg.Clock.Now()
	if status.IsTerminal() {
		t := j.UpdatedAt
		j.CompletedAt = &t
	}
	return true
}

// UpdateProgress clamps progress into [0,100] and optionally attaches a
// message. Legal from any non-terminal state; no-op afterwards.
func (m *Manager) UpdateProgress(id string, progress float64, message string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		m.warnUnknown("UpdateProgress", id)
		return false
	}
	if j.Status.IsTerminal() {
		return false
	}
	j.Progress = clampProgress(progress)
	if message != "" {
		j.Message = message
	}
	j.UpdatedAt = m.cfg.Clock.Now()
	return true
}

// Complete marks a job completed, setting progress to 100 and storing the
// result. No-op on terminal jobs (a handler finishing after Cancel must
// not resurrect the job).
func (m *Manager) Complete(id string, result any) bool {
	return m.finish(id, StatusCompleted, func(j *Job) {
		j.Progress = 100
		j.Result = result
	})
}

// Fail marks a job failed with the given error message. No-op on terminal
// jobs.
func (m *Manager) Fail(id string, errMsg string) bool {
	return m.finish(id, StatusFailed, func(j *Job) {
		j.Error = errMsg
	})
}

// Cancel marks a pending or running job cancelled. Returns false when the
// job is unknown or already terminal. Cancellation is bookkeeping only;
// an in-flight handler is not interrupted.
func (m *Manager) Cancel(id string) bool {
	return m.finish(id, StatusCancelled, nil)
}

func (m *Manager) finish(id string, status Status, apply func(*Job)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		m.warnUnknown(string(status), id)
		return false
	}
	if j.Status.IsTerminal() {
		return false
	}
	j.Status = status
	if apply != nil {
		apply(j)
	}
	j.UpdatedAt = m.cfg.Clock.Now()
	t := j.UpdatedAt
	j.CompletedAt = &t

	m.logger.Info("Job finished",
		slog.String("job_id", id),
		slog.String("status", string(status)),
	)
	return true
}

// sweepLoop deletes old terminal jobs on a fixed interval.
func (m *Manager) sweepLoop() {
	ticker := m.cfg.Clock.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C():
			m.sweep()
		}
	}
}

// sweep removes terminal jobs whose completion is older than the retention
// window. Pending and running jobs survive regardless of age: losing
// in-flight bookkeeping is worse than a slow leak under a stuck handler.
func (m *Manager) sweep() {
	cutoff := m.cfg.Clock.Now().Add(-m.cfg.Retention)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, j := range m.jobs {
		if j.CompletedAt == nil {
			continue
		}
		if j.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("Swept old jobs", slog.Int("removed", removed))
	}
}

func (m *Manager) warnUnknown(op, id string) {
	m.logger.Warn("Mutation on unknown job ignored",
		slog.String("operation", op),
		slog.String("job_id", id),
	)
}
