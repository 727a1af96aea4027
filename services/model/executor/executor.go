// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package executor orchestrates one operation invocation end to end:
// lookup, licensing, document resolution, context construction, and sync or
// async dispatch.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MeridianIDE/MeridianCore/pkg/validation"
	"github.com/MeridianIDE/MeridianCore/services/model/clock"
	"github.com/MeridianIDE/MeridianCore/services/model/document"
	"github.com/MeridianIDE/MeridianCore/services/model/job"
	"github.com/MeridianIDE/MeridianCore/services/model/registry"
)

// DefaultSyncTimeout bounds synchronous handler execution.
const DefaultSyncTimeout = 30 * time.Second

// Request carries one operation invocation.
type Request struct {
	// LanguageID selects the operation's owning language.
	LanguageID string `json:"languageId"`

	// OperationID selects the operation.
	OperationID string `json:"operationId"`

	// Document references the target document.
	Document document.Ref `json:"document"`

	// SelectedIDs are the element ids selected in the editor, if any.
	SelectedIDs []string `json:"selectedIds,omitempty"`

	// Input is the free-form operation payload.
	Input map[string]any `json:"input,omitempty"`

	// User is the authenticated user, or nil.
	User *registry.User `json:"user,omitempty"`

	// CorrelationID is generated when absent.
	CorrelationID string `json:"correlationId,omitempty"`
}

// Result is the outcome of an Execute call.
//
// For async operations, Success is true the moment the job is created;
// the handler's eventual outcome lands on the job instead.
type Result struct {
	// Success reports whether dispatch (sync: the handler, async: job
	// creation) succeeded.
	Success bool `json:"success"`

	// Value is the sync handler's result.
	Value any `json:"result,omitempty"`

	// JobID is set for async dispatch.
	JobID string `json:"jobId,omitempty"`

	// Err classifies the failure when Success is false.
	Err *Error `json:"error,omitempty"`

	// CorrelationID threads the invocation through logs.
	CorrelationID string `json:"correlationId"`

	// Duration is how long the Execute call itself took.
	Duration time.Duration `json:"durationMs"`
}

// Config configures the Executor. Zero values use defaults.
type Config struct {
	// SyncTimeout bounds synchronous handler execution.
	// Default: DefaultSyncTimeout.
	SyncTimeout time.Duration

	// Clock is the time source, injectable for tests.
	Clock clock.Clock
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = DefaultSyncTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.System()
	}
}

// Executor resolves and dispatches operations.
//
// Thread Safety: safe for concurrent use. Concurrent invocations against
// the same document may interleave arbitrarily; serialization, if needed,
// is the resolver's concern.
type Executor struct {
	cfg      Config
	registry *registry.Registry
	jobs     *job.Manager
	resolver document.Resolver
	logger   *slog.Logger
}

// New creates an Executor.
func New(cfg Config, reg *registry.Registry, jobs *job.Manager, resolver document.Resolver, logger *slog.Logger) *Executor {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:      cfg,
		registry: reg,
		jobs:     jobs,
		resolver: resolver,
		logger:   logger.With(slog.String("component", "operation_executor")),
	}
}

// Execute runs one operation invocation.
//
// Failure points, in order: unknown operation, licensing, document
// resolution. All are reported before any handler runs and never create a
// job. Licensing is checked before resolution to avoid pointless resolver
// work.
func (e *Executor) Execute(ctx context.Context, req Request) Result {
	started := e.cfg.Clock.Now()
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	logger := e.logger.With(
		slog.String("correlation_id", correlationID),
		slog.String("language", req.LanguageID),
		slog.String("operation", req.OperationID),
	)

	fail := func(err *Error) Result {
		logger.Warn("Operation failed",
			slog.String("code", string(err.Code)),
			slog.String("error", err.Message),
		)
		return Result{
			Success:       false,
			Err:           err,
			CorrelationID: correlationID,
			Duration:      e.cfg.Clock.Now().Sub(started),
		}
	}

	op, ok := e.registry.Operation(req.LanguageID, req.OperationID)
	if !ok {
		return fail(newError(CodeOperationNotFound, ErrOperationNotFound,
			"no operation %q for language %q", req.OperationID, req.LanguageID))
	}

	if err := checkLicensing(op.Declaration.Licensing, req.User); err != nil {
		return fail(err)
	}

	if err := validation.ValidateDocumentURI(req.Document.URI, nil); err != nil {
		return fail(newError(CodeDocumentResolutionFailed, err,
			"invalid document uri %q: %v", req.Document.URI, err))
	}
	doc, err := e.resolver.Resolve(ctx, req.Document)
	if err != nil {
		return fail(newError(CodeDocumentResolutionFailed, err,
			"cannot resolve document %q: %v", req.Document.URI, err))
	}

	opCtx := &registry.OperationContext{
		Document:      doc,
		SelectedIDs:   req.SelectedIDs,
		Input:         req.Input,
		User:          req.User,
		CorrelationID: correlationID,
		LanguageID:    req.LanguageID,
		URI:           doc.URI,
	}

	if op.Declaration.Execution.Async {
		return e.dispatchAsync(ctx, op, opCtx, correlationID, started, logger)
	}
	return e.dispatchSync(ctx, op, opCtx, correlationID, started, logger)
}

// handlerOutcome carries a handler's settled result across goroutines.
type handlerOutcome struct {
	value any
	err   error
}

// dispatchSync races the handler against the sync timeout. When the timer
// wins, the handler is left running and its outcome is discarded; there is
// no preemption, matching the documented contract.
func (e *Executor) dispatchSync(ctx context.Context, op *registry.RegisteredOperation, opCtx *registry.OperationContext, correlationID string, started time.Time, logger *slog.Logger) Result {
	outcome := make(chan handlerOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				outcome <- handlerOutcome{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		value, err := op.Handler(ctx, opCtx, func(float64, string) {})
		outcome <- handlerOutcome{value: value, err: err}
	}()

	select {
	case out := <-outcome:
		duration := e.cfg.Clock.Now().Sub(started)
		if out.err != nil {
			logger.Warn("Handler failed",
				slog.String("error", out.err.Error()),
				slog.Duration("duration", duration),
			)
			return Result{
				Success:       false,
				Err:           newError(CodeHandlerException, out.err, "%v", out.err),
				CorrelationID: correlationID,
				Duration:      duration,
			}
		}
		logger.Info("Operation completed", slog.Duration("duration", duration))
		return Result{
			Success:       true,
			Value:         out.value,
			CorrelationID: correlationID,
			Duration:      duration,
		}

	case <-e.cfg.Clock.After(e.cfg.SyncTimeout):
		duration := e.cfg.Clock.Now().Sub(started)
		logger.Warn("Operation timed out",
			slog.Duration("timeout", e.cfg.SyncTimeout),
		)
		return Result{
			Success: false,
			Err: newError(CodeTimeout, ErrTimeout,
				"operation timed out after %s", e.cfg.SyncTimeout),
			CorrelationID: correlationID,
			Duration:      duration,
		}
	}
}

// dispatchAsync creates a job, returns its id immediately, and runs the
// handler in the background, feeding progress and outcome into the job
// manager.
func (e *Executor) dispatchAsync(ctx context.Context, op *registry.RegisteredOperation, opCtx *registry.OperationContext, correlationID string, started time.Time, logger *slog.Logger) Result {
	j := e.jobs.Create(correlationID, op.Declaration.ID, op.LanguageID, opCtx.URI)

	// The job outlives the initiating request; only values, not the
	// caller's cancellation, carry over.
	bgCtx := context.WithoutCancel(ctx)
	go e.runJob(bgCtx, j.ID, op, opCtx, logger)

	return Result{
		Success:       true,
		JobID:         j.ID,
		CorrelationID: correlationID,
		Duration:      e.cfg.Clock.Now().Sub(started),
	}
}

func (e *Executor) runJob(ctx context.Context, jobID string, op *registry.RegisteredOperation, opCtx *registry.OperationContext, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Handler panicked", slog.String("job_id", jobID))
			e.jobs.Fail(jobID, fmt.Sprintf("handler panic: %v", r))
		}
	}()

	e.jobs.UpdateStatus(jobID, job.StatusRunning)

	progress := func(p float64, message string) {
		e.jobs.UpdateProgress(jobID, p, message)
	}

	value, err := op.Handler(ctx, opCtx, progress)
	if err != nil {
		e.jobs.Fail(jobID, err.Error())
		return
	}
	e.jobs.Complete(jobID, value)
}
