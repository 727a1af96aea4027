// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package subscription

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MeridianIDE/MeridianCore/pkg/validation"
	"github.com/MeridianIDE/MeridianCore/services/model/clock"
)

// ===== SERVICE =====

// Service fans document change notifications out to subscribers. Each
// subscription coalesces changes inside its own debounce window and
// receives them as a single batched event.
//
// Thread Safety: all methods are safe for concurrent use. Callbacks run
// outside the service lock, so a callback may freely call back into the
// Service.
type Service struct {
	cfg     Config
	content ContentProvider
	logger  *slog.Logger

	mu       sync.Mutex
	subs     map[string]*entry
	byURI    map[string]map[string]*entry
	disposed bool
}

// entry is the internal state of one subscription. Guarded by Service.mu
// except where noted.
type entry struct {
	id             string
	uri            string
	clientID       string
	debounce       time.Duration
	nodeTypes      map[string]struct{}
	includeContent bool
	cb             Callback

	// Pending batch, merged across a debounce window.
	buffer         []NodeChange
	pendingType    ChangeType
	pendingVersion int
	pendingContent any
	hasPending     bool
	timer          clock.Timer
}

// New creates a Service. The content provider may be nil, in which case
// IncludeContent subscriptions deliver events without content.
func New(cfg Config, content ContentProvider, logger *slog.Logger) *Service {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		content: content,
		logger:  logger,
		subs:    make(map[string]*entry),
		byURI:   make(map[string]map[string]*entry),
	}
}

// ===== SUBSCRIBE / UNSUBSCRIBE =====

// Subscribe registers a callback for changes to uri.
//
// Description:
//
//	Validates the URI scheme against the allowed set, clamps the
//	requested debounce window into [0, MaxDebounce], and, when
//	Options.Immediate is set, delivers a synthetic initial event before
//	returning.
//
// Outputs:
//   - *Handle: disposer for the new subscription.
//   - error: ErrInvalidURI or ErrDisposed.
func (s *Service) Subscribe(uri string, cb Callback, opts Options) (*Handle, error) {
	if err := s.validateURI(uri); err != nil {
		return nil, err
	}

	e := &entry{
		id:             uuid.New().String(),
		uri:            uri,
		clientID:       opts.ClientID,
		debounce:       opts.DebounceOrDefault(s.cfg.DefaultDebounce, s.cfg.MaxDebounce),
		includeContent: opts.IncludeContent,
		cb:             cb,
	}
	if len(opts.NodeTypes) > 0 {
		e.nodeTypes = make(map[string]struct{}, len(opts.NodeTypes))
		for _, nt := range opts.NodeTypes {
			e.nodeTypes[nt] = struct{}{}
		}
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil, ErrDisposed
	}
	s.subs[e.id] = e
	if s.byURI[uri] == nil {
		s.byURI[uri] = make(map[string]*entry)
	}
	s.byURI[uri][e.id] = e
	s.mu.Unlock()

	s.logger.Debug("subscription created",
		slog.String("subscription_id", e.id),
		slog.String("uri", uri),
		slog.String("client_id", e.clientID),
		slog.Duration("debounce", e.debounce))

	if opts.Immediate {
		ev := Event{
			Type:      ChangeInitial,
			URI:       uri,
			Timestamp: s.cfg.Clock.Now(),
		}
		if e.includeContent {
			ev.Content = s.fetchContent(uri)
		}
		s.deliver(e, ev)
	}

	return &Handle{id: e.id, uri: uri, svc: s}, nil
}

// Unsubscribe removes a subscription, discarding any pending batch. It
// reports whether the id was active.
func (s *Service) Unsubscribe(id string) bool {
	s.mu.Lock()
	e, ok := s.subs[id]
	if ok {
		s.removeLocked(e)
	}
	s.mu.Unlock()
	if ok {
		s.logger.Debug("subscription removed", slog.String("subscription_id", id))
	}
	return ok
}

// OnClientDisconnect removes every subscription registered under clientID
// and returns how many were removed.
func (s *Service) OnClientDisconnect(clientID string) int {
	if clientID == "" {
		return 0
	}
	s.mu.Lock()
	var removed []*entry
	for _, e := range s.subs {
		if e.clientID == clientID {
			removed = append(removed, e)
		}
	}
	for _, e := range removed {
		s.removeLocked(e)
	}
	s.mu.Unlock()

	if len(removed) > 0 {
		s.logger.Info("client subscriptions removed",
			slog.String("client_id", clientID),
			slog.Int("count", len(removed)))
	}
	return len(removed)
}

// removeLocked unlinks e from both indexes and stops its timer.
// Caller holds s.mu.
func (s *Service) removeLocked(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	delete(s.subs, e.id)
	if m := s.byURI[e.uri]; m != nil {
		delete(m, e.id)
		if len(m) == 0 {
			delete(s.byURI, e.uri)
		}
	}
}

// ===== NOTIFICATION =====

// NotifyChange publishes a batch of changes for uri to every matching
// subscriber.
//
// Update events are filtered per subscription by node type; a filtered
// update with no surviving changes is dropped for that subscriber. Saved
// and closed events always pass the filter. Content, when supplied, is
// attached to subscribers that requested it; otherwise it is fetched
// lazily at flush time.
func (s *Service) NotifyChange(uri string, changeType ChangeType, version int, changes []NodeChange, content any) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	var inline []*entry
	for _, e := range s.byURI[uri] {
		batch := changes
		if changeType == ChangeUpdate && e.nodeTypes != nil {
			batch = filterChanges(changes, e.nodeTypes)
			if len(batch) == 0 {
				continue
			}
		}

		e.buffer = append(e.buffer, batch...)
		e.pendingType = mergeType(e.pendingType, changeType)
		e.pendingVersion = version
		if content != nil && e.includeContent {
			e.pendingContent = content
		}
		e.hasPending = true

		if e.debounce <= 0 {
			inline = append(inline, e)
			continue
		}
		if e.timer != nil {
			e.timer.Stop()
		}
		id := e.id
		e.timer = s.cfg.Clock.AfterFunc(e.debounce, func() {
			s.flush(id)
		})
	}
	s.mu.Unlock()

	for _, e := range inline {
		s.flush(e.id)
	}
}

// flush drains e's pending batch and delivers it as one event. No-op if
// the subscription is gone or has nothing buffered.
func (s *Service) flush(id string) {
	s.mu.Lock()
	e, ok := s.subs[id]
	if !ok || !e.hasPending {
		s.mu.Unlock()
		return
	}
	ev := Event{
		Type:      e.pendingType,
		URI:       e.uri,
		Version:   e.pendingVersion,
		Timestamp: s.cfg.Clock.Now(),
		Changes:   e.buffer,
		Content:   e.pendingContent,
	}
	wantContent := e.includeContent && ev.Content == nil
	e.buffer = nil
	e.pendingType = ""
	e.pendingContent = nil
	e.hasPending = false
	e.timer = nil
	s.mu.Unlock()

	if wantContent {
		ev.Content = s.fetchContent(ev.URI)
	}
	s.deliver(e, ev)
}

// deliver invokes the callback with panic isolation. A panicking callback
// is logged and otherwise ignored; the subscription stays active.
func (s *Service) deliver(e *entry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscription callback panicked",
				slog.String("subscription_id", e.id),
				slog.String("uri", e.uri),
				slog.Any("panic", r))
		}
	}()
	e.cb(ev)
}

// fetchContent asks the content provider for the current converted model.
// Failures are logged and yield nil content rather than blocking delivery.
func (s *Service) fetchContent(uri string) any {
	if s.content == nil {
		return nil
	}
	content, err := s.content(uri)
	if err != nil {
		s.logger.Warn("content fetch failed",
			slog.String("uri", uri),
			slog.String("error", err.Error()))
		return nil
	}
	return content
}

// ===== INTROSPECTION / LIFECYCLE =====

// SubscriptionCount returns the number of active subscriptions.
func (s *Service) SubscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// ActiveSubscriptions returns snapshots of all subscriptions, sorted by id.
func (s *Service) ActiveSubscriptions() []Info {
	s.mu.Lock()
	infos := make([]Info, 0, len(s.subs))
	for _, e := range s.subs {
		info := Info{
			ID:         e.id,
			URI:        e.uri,
			ClientID:   e.clientID,
			Debounce:   e.debounce,
			DebounceMs: e.debounce.Milliseconds(),
		}
		for nt := range e.nodeTypes {
			info.NodeTypes = append(info.NodeTypes, nt)
		}
		sort.Strings(info.NodeTypes)
		infos = append(infos, info)
	}
	s.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Dispose removes every subscription and rejects further subscribes.
// Pending batches are discarded. Idempotent.
func (s *Service) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	for _, e := range s.subs {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
	}
	count := len(s.subs)
	s.subs = make(map[string]*entry)
	s.byURI = make(map[string]map[string]*entry)
	s.mu.Unlock()

	s.logger.Info("subscription service disposed", slog.Int("removed", count))
}

// isActive reports whether id is still registered. Used by Handle.
func (s *Service) isActive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[id]
	return ok
}

// ===== HELPERS =====

// validateURI enforces a non-empty URI with an allowed scheme.
func (s *Service) validateURI(uri string) error {
	if err := validation.ValidateDocumentURI(uri, s.cfg.AllowedSchemes); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	return nil
}

// filterChanges keeps changes whose node type is in the allow set.
func filterChanges(changes []NodeChange, allowed map[string]struct{}) []NodeChange {
	var kept []NodeChange
	for _, c := range changes {
		if _, ok := allowed[c.NodeType]; ok {
			kept = append(kept, c)
		}
	}
	return kept
}

// mergeType resolves the event type of a merged batch. Lifecycle events
// (saved, closed) outrank plain updates so a save arriving mid-window is
// not reported as an update.
func mergeType(current, incoming ChangeType) ChangeType {
	if current == "" || current == ChangeUpdate {
		return incoming
	}
	if incoming == ChangeClosed {
		return incoming
	}
	return current
}
