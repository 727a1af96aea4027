// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeridianIDE/MeridianCore/services/model/ast"
	"github.com/MeridianIDE/MeridianCore/services/model/convert"
	"github.com/MeridianIDE/MeridianCore/services/model/document"
	"github.com/MeridianIDE/MeridianCore/services/model/executor"
	"github.com/MeridianIDE/MeridianCore/services/model/job"
	"github.com/MeridianIDE/MeridianCore/services/model/registry"
	"github.com/MeridianIDE/MeridianCore/services/model/subscription"
)

// ===== MODEL SERVER =====

// ModelServer is the orchestrating façade over the model runtime: it owns
// the document store, operation registry, job manager, executor, converter,
// and subscription service, and exposes the editor-facing surface the HTTP
// and WebSocket bindings call into.
//
// Thread Safety: all methods are safe for concurrent use.
type ModelServer struct {
	cfg       ServerConfig
	logger    *slog.Logger
	store     *document.Store
	registry  *registry.Registry
	jobs      *job.Manager
	executor  *executor.Executor
	converter *convert.Converter
	subs      *subscription.Service

	watcherMu sync.Mutex
	watcher   *document.Watcher

	closeOnce sync.Once
	closed    atomic.Bool
}

// Query selects one node from a converted model tree. Exactly one selector
// must be set.
type Query struct {
	NodeID   string `json:"nodeId,omitempty"`
	NodeType string `json:"nodeType,omitempty"`
	Path     string `json:"path,omitempty"`
}

// NewServer wires the runtime components together.
func NewServer(cfg ServerConfig, logger *slog.Logger) (*ModelServer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &ModelServer{
		cfg:       cfg,
		logger:    logger,
		store:     document.NewStore(logger),
		registry:  registry.New(logger),
		converter: convert.New(),
	}
	s.jobs = job.NewManager(job.Config{
		Retention:       cfg.JobRetention,
		CleanupInterval: cfg.JobCleanupInterval,
		Clock:           cfg.Clock,
	}, logger)
	s.executor = executor.New(executor.Config{
		SyncTimeout: cfg.SyncTimeout,
		Clock:       cfg.Clock,
	}, s.registry, s.jobs, s.store, logger)
	s.subs = subscription.New(subscription.Config{
		DefaultDebounce: cfg.DefaultDebounce,
		MaxDebounce:     cfg.MaxDebounce,
		AllowedSchemes:  cfg.AllowedSchemes,
		Clock:           cfg.Clock,
	}, s.currentContent, logger)

	if cfg.WatchRoot != "" {
		watcher, err := document.NewWatcher(cfg.WatchRoot, s.onFilesSaved, nil, logger)
		if err != nil {
			s.jobs.Close()
			return nil, fmt.Errorf("document watcher: %w", err)
		}
		s.watcher = watcher
	}
	return s, nil
}

// Start launches background components (currently the filesystem watcher,
// when configured). Safe to call when no watcher is configured. Returns
// ErrServerClosed after Close.
func (s *ModelServer) Start(ctx context.Context) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	s.watcherMu.Lock()
	defer s.watcherMu.Unlock()
	if s.watcher == nil || s.watcher.IsRunning() {
		return nil
	}
	return s.watcher.Start(ctx)
}

// Close shuts the runtime down: the watcher stops, subscriptions are
// disposed, and the job sweeper exits. Idempotent.
func (s *ModelServer) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.watcherMu.Lock()
		if s.watcher != nil {
			s.watcher.Stop()
		}
		s.watcherMu.Unlock()
		s.subs.Dispose()
		s.jobs.Close()
		s.logger.Info("model server closed")
	})
}

// ===== COMPONENT ACCESS =====

// Store exposes the document store for language bootstrap and the bindings.
func (s *ModelServer) Store() *document.Store { return s.store }

// Registry exposes the operation registry for language bootstrap.
func (s *ModelServer) Registry() *registry.Registry { return s.registry }

// ===== OPERATIONS =====

// Execute runs a document operation through the executor and records
// latency and outcome metrics.
func (s *ModelServer) Execute(ctx context.Context, req executor.Request) executor.Result {
	started := time.Now()
	res := s.executor.Execute(ctx, req)
	recordOperation(ctx, req.LanguageID, req.OperationID, time.Since(started).Seconds(), res.Success)
	if res.JobID != "" {
		recordJobDelta(ctx, 1)
		go s.watchJobSettled(res.JobID)
	}
	return res
}

// watchJobSettled decrements the active-job gauge once a job turns
// terminal. Polling keeps the manager free of callback plumbing; the
// interval is coarse because the gauge is advisory.
func (s *ModelServer) watchJobSettled(jobID string) {
	ticker := s.cfg.Clock.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C() {
		j, ok := s.jobs.Get(jobID)
		if !ok || j.Status.IsTerminal() {
			recordJobDelta(context.Background(), -1)
			return
		}
	}
}

// OperationsForTypes lists registered operations applicable to any of the
// given node types.
func (s *ModelServer) OperationsForTypes(languageID string, types []string) []*registry.RegisteredOperation {
	return s.registry.OperationsForTypes(languageID, types)
}

// ===== JOBS =====

// Job returns one job by id.
func (s *ModelServer) Job(id string) (job.Job, error) {
	j, ok := s.jobs.Get(id)
	if !ok {
		return job.Job{}, ErrJobNotFound
	}
	return j, nil
}

// Jobs lists all retained jobs, newest first.
func (s *ModelServer) Jobs() []job.Job { return s.jobs.List() }

// JobStats returns per-status job counts.
func (s *ModelServer) JobStats() job.Stats { return s.jobs.Stats() }

// CancelJob cancels a non-terminal job.
func (s *ModelServer) CancelJob(id string) error {
	if _, ok := s.jobs.Get(id); !ok {
		return ErrJobNotFound
	}
	if !s.jobs.Cancel(id) {
		return fmt.Errorf("job %s already terminal", id)
	}
	return nil
}

// ===== MODEL ACCESS =====

// GetFullModel converts the document's root into its serializable tree.
func (s *ModelServer) GetFullModel(uri string, opts convert.Options) (convert.Result, error) {
	doc, ok := s.store.Get(uri)
	if !ok {
		return convert.Result{}, fmt.Errorf("%w: %s", document.ErrNotFound, uri)
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = s.cfg.MaxDepth
	}
	return s.converter.Convert(doc.Root, opts), nil
}

// QueryModel converts the document and resolves the query against the
// converted tree.
//
// Outputs:
//   - any: the matched node (map) or path value.
//   - error: ErrInvalidQuery, document.ErrNotFound, convert.ErrNodeNotFound,
//     or convert.ErrInvalidPath.
func (s *ModelServer) QueryModel(uri string, q Query) (any, error) {
	selectors := 0
	for _, sel := range []string{q.NodeID, q.NodeType, q.Path} {
		if sel != "" {
			selectors++
		}
	}
	if selectors != 1 {
		return nil, ErrInvalidQuery
	}

	res, err := s.GetFullModel(uri, convert.Options{IncludeIDs: true})
	if err != nil {
		return nil, err
	}

	switch {
	case q.NodeID != "":
		node, ok := convert.FindNodeByID(res.Data, q.NodeID)
		if !ok {
			return nil, fmt.Errorf("%w: id %q", convert.ErrNodeNotFound, q.NodeID)
		}
		return node, nil
	case q.NodeType != "":
		return convert.FindNodesByType(res.Data, q.NodeType), nil
	default:
		return convert.GetNodeByPath(res.Data, q.Path)
	}
}

// ===== SUBSCRIPTIONS =====

// Subscribe registers a change callback for a document URI. Returns
// ErrServerClosed after Close.
func (s *ModelServer) Subscribe(uri string, cb subscription.Callback, opts subscription.Options) (*subscription.Handle, error) {
	if s.closed.Load() {
		return nil, ErrServerClosed
	}
	wrapped := func(ev subscription.Event) {
		recordEventDelivered(context.Background(), string(ev.Type))
		cb(ev)
	}
	return s.subs.Subscribe(uri, wrapped, opts)
}

// Unsubscribe removes one subscription.
func (s *ModelServer) Unsubscribe(id string) error {
	if !s.subs.Unsubscribe(id) {
		return ErrSubscriptionNotFound
	}
	return nil
}

// ClientDisconnected removes every subscription held by a client and
// returns how many were removed.
func (s *ModelServer) ClientDisconnected(clientID string) int {
	return s.subs.OnClientDisconnect(clientID)
}

// SubscriptionCount returns the number of active subscriptions.
func (s *ModelServer) SubscriptionCount() int { return s.subs.SubscriptionCount() }

// ActiveSubscriptions returns snapshots of all active subscriptions.
func (s *ModelServer) ActiveSubscriptions() []subscription.Info {
	return s.subs.ActiveSubscriptions()
}

// ===== DOCUMENT HOOKS =====

// DocumentChanged records a new document root and notifies subscribers
// with the given change set.
func (s *ModelServer) DocumentChanged(uri string, root ast.Node, content string, changes []subscription.NodeChange) {
	if !s.store.Update(uri, root, content) {
		s.logger.Warn("change for unopened document", slog.String("uri", uri))
		return
	}
	doc, _ := s.store.Get(uri)
	s.subs.NotifyChange(uri, subscription.ChangeUpdate, doc.Version, changes, nil)
}

// DocumentSaved notifies subscribers that a document was written to disk.
func (s *ModelServer) DocumentSaved(uri string) {
	version := 0
	if doc, ok := s.store.Get(uri); ok {
		version = doc.Version
	}
	s.subs.NotifyChange(uri, subscription.ChangeSaved, version, nil, nil)
}

// DocumentClosed removes the document from the store and notifies
// subscribers. Subscriptions stay registered until explicitly removed.
func (s *ModelServer) DocumentClosed(uri string) {
	version := 0
	if doc, ok := s.store.Get(uri); ok {
		version = doc.Version
	}
	s.store.Close(uri)
	s.subs.NotifyChange(uri, subscription.ChangeClosed, version, nil, nil)
}

// onFilesSaved is the watcher callback: saves observed on disk raise saved
// events for documents the store knows about.
func (s *ModelServer) onFilesSaved(uris []string) {
	for _, uri := range uris {
		if _, ok := s.store.Get(uri); ok {
			s.DocumentSaved(uri)
		}
	}
}

// currentContent is the subscription content provider: it converts the
// document's current root on demand.
func (s *ModelServer) currentContent(uri string) (any, error) {
	doc, ok := s.store.Get(uri)
	if !ok {
		return nil, fmt.Errorf("%w: %s", document.ErrNotFound, uri)
	}
	res := s.converter.Convert(doc.Root, convert.Options{MaxDepth: s.cfg.MaxDepth, IncludeIDs: true})
	return res.Data, nil
}
