// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package subscription manages per-document change subscriptions with
// debounced, filtered delivery.
package subscription

import (
	"time"

	"github.com/MeridianIDE/MeridianCore/services/model/clock"
)

// Debounce window bounds. Requested values outside [0, MaxDebounce] are
// clamped, not rejected.
const (
	DefaultDebounce = 100 * time.Millisecond
	MaxDebounce     = 500 * time.Millisecond
)

// ChangeType classifies a change event.
type ChangeType string

// Change event types.
const (
	// ChangeInitial is the synthetic event delivered on subscribe when
	// Options.Immediate is set.
	ChangeInitial ChangeType = "initial"

	// ChangeUpdate signals document mutations.
	ChangeUpdate ChangeType = "update"

	// ChangeSaved signals a document save. Never filtered away.
	ChangeSaved ChangeType = "saved"

	// ChangeClosed signals a document close. Never filtered away.
	ChangeClosed ChangeType = "closed"
)

// NodeChange is one atomic record of a document mutation.
type NodeChange struct {
	// Kind describes the mutation: "added", "updated", or "removed".
	Kind string `json:"kind"`

	// NodeType is the changed node's type tag, used for filtering.
	NodeType string `json:"nodeType"`

	// NodeID identifies the changed node, when known.
	NodeID string `json:"nodeId,omitempty"`

	// Path locates the node in the converted tree, when known.
	Path string `json:"path,omitempty"`
}

// Event is one delivered change notification. Changes accumulate across a
// debounce window and are delivered as a single ordered batch.
type Event struct {
	Type      ChangeType   `json:"type"`
	URI       string       `json:"uri"`
	Version   int          `json:"version"`
	Timestamp time.Time    `json:"timestamp"`
	Changes   []NodeChange `json:"changes"`
	Content   any          `json:"content,omitempty"`
}

// Callback receives delivered events. A panicking callback is isolated and
// logged; it never affects other subscribers.
type Callback func(Event)

// ContentProvider fetches the current converted model for a URI. It is
// called lazily at flush time when a subscription wants content and the
// change publisher did not supply any.
type ContentProvider func(uri string) (any, error)

// Options configures one subscription.
type Options struct {
	// Debounce is the coalescing window. Nil means the service default;
	// negative values clamp to 0 (inline delivery), values above the
	// service maximum clamp to that maximum.
	Debounce *time.Duration

	// NodeTypes filters update events to changes of these node types.
	// Empty means no filtering.
	NodeTypes []string

	// IncludeContent attaches the current converted model to every
	// delivered event.
	IncludeContent bool

	// Immediate delivers a synthetic initial event on subscribe.
	Immediate bool

	// ClientID groups subscriptions for bulk removal on disconnect.
	ClientID string
}

// DebounceOrDefault resolves the configured window against the service
// defaults, clamping into [0, max].
func (o Options) DebounceOrDefault(def, max time.Duration) time.Duration {
	if o.Debounce == nil {
		return def
	}
	d := *o.Debounce
	if d < 0 {
		d = 0
	}
	if d > max {
		d = max
	}
	return d
}

// Info is a read-only snapshot of one subscription.
type Info struct {
	ID        string   `json:"subscriptionId"`
	URI       string   `json:"uri"`
	ClientID  string   `json:"clientId,omitempty"`
	NodeTypes []string `json:"nodeTypes,omitempty"`

	// Debounce is the clamped window; DebounceMs is its wire form.
	Debounce   time.Duration `json:"-"`
	DebounceMs int64         `json:"debounceMs"`
}

// Handle is the caller's view of an active subscription.
type Handle struct {
	id  string
	uri string
	svc *Service
}

// ID returns the subscription id.
func (h *Handle) ID() string { return h.id }

// URI returns the subscribed document URI.
func (h *Handle) URI() string { return h.uri }

// IsActive reports whether the subscription still receives events.
func (h *Handle) IsActive() bool { return h.svc.isActive(h.id) }

// Dispose unsubscribes. Idempotent.
func (h *Handle) Dispose() { h.svc.Unsubscribe(h.id) }

// Config configures the Service. Zero values use defaults.
type Config struct {
	// DefaultDebounce applies when a subscription does not set a window.
	// Default: DefaultDebounce.
	DefaultDebounce time.Duration

	// MaxDebounce caps requested windows. Default: MaxDebounce.
	MaxDebounce time.Duration

	// AllowedSchemes restricts subscribable URIs.
	// Default: ["file", "inmemory", "untitled"].
	AllowedSchemes []string

	// Clock is the time source. Default: clock.System().
	Clock clock.Clock
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.DefaultDebounce <= 0 {
		c.DefaultDebounce = DefaultDebounce
	}
	if c.MaxDebounce <= 0 {
		c.MaxDebounce = MaxDebounce
	}
	if len(c.AllowedSchemes) == 0 {
		c.AllowedSchemes = []string{"file", "inmemory", "untitled"}
	}
	if c.Clock == nil {
		c.Clock = clock.System()
	}
}
