// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package job tracks the lifecycle of asynchronously executed operations.
package job

import "time"

// Status is a job's lifecycle state.
type Status string

// Job statuses. The machine only moves forward:
// pending -> running -> {completed | failed}, and {pending, running} ->
// cancelled. Terminal states are final.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// canTransition validates a forward move through the state machine.
func canTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	switch to {
	case StatusRunning:
		return from == StatusPending
	case StatusCompleted, StatusFailed:
		return from == StatusRunning || from == StatusPending
	case StatusCancelled:
		return true
	default:
		return false
	}
}

// Job is the tracked lifecycle of one asynchronous operation invocation.
//
// Jobs are owned exclusively by the Manager; callers receive value copies.
type Job struct {
	// ID is the generated job identifier.
	ID string `json:"jobId"`

	// CorrelationID threads the originating request through logs.
	CorrelationID string `json:"correlationId"`

	// OperationID names the operation being executed.
	OperationID string `json:"operationId"`

	// LanguageID is the operation's owning language.
	LanguageID string `json:"languageId"`

	// DocumentURI is the target document.
	DocumentURI string `json:"documentUri"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Progress is clamped to [0,100].
	Progress float64 `json:"progress"`

	// Message is an optional human-readable progress message.
	Message string `json:"message,omitempty"`

	// Result holds the operation outcome once completed.
	Result any `json:"result,omitempty"`

	// Error holds the failure message once failed.
	Error string `json:"error,omitempty"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is when the job was last mutated.
	UpdatedAt time.Time `json:"updatedAt"`

	// CompletedAt is when the job reached a terminal state.
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Stats counts jobs per status.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// clampProgress bounds a progress value into [0,100].
func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
