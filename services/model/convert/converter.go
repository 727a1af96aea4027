// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package convert turns a possibly cyclic node graph into a JSON-safe tree.
//
// The converter underlies both the full-model query path and the
// notification content path. All traversal state (the on-path set and the
// synthetic id map) is scoped to a single Convert call, so one Converter may
// be shared by any number of concurrent callers.
package convert

import (
	"fmt"
	"sort"

	"github.com/MeridianIDE/MeridianCore/services/model/ast"
)

// Marker keys emitted into converted trees.
const (
	// KeyType carries the node's language-level type tag.
	KeyType = "$type"

	// KeyID carries the synthetic id assigned during conversion.
	KeyID = "$id"

	// KeyRef marks a cycle: the value is the synthetic id of a node
	// already on the current traversal path.
	KeyRef = "$ref"

	// KeyTruncated marks a subtree cut off by the depth limit.
	KeyTruncated = "$truncated"
)

// DefaultMaxDepth bounds traversal when Options.MaxDepth is zero.
const DefaultMaxDepth = 100

// internalFields are back-reference and bookkeeping properties that never
// appear in converted output, whatever the include/exclude lists say.
var internalFields = map[string]bool{
	"$container":         true,
	"$containerProperty": true,
	"$containerIndex":    true,
	"$document":          true,
	"$cstNode":           true,
}

// identityFields are always emitted regardless of include/exclude lists.
var identityFields = map[string]bool{
	"name": true,
	"id":   true,
}

// Options controls a single conversion.
type Options struct {
	// MaxDepth bounds recursion; 0 means DefaultMaxDepth. Nodes at the
	// limit are replaced by a {$truncated: true} marker.
	MaxDepth int

	// IncludeIDs assigns a synthetic $id to every converted node. Cycle
	// markers require ids, so they are tracked internally even when this
	// is false; the flag only controls emission.
	IncludeIDs bool

	// IncludeFields, when non-empty, is an exclusive allow-list of
	// property names. Identity fields are kept regardless.
	IncludeFields []string

	// ExcludeFields is a deny-list of property names, consulted only
	// when IncludeFields is empty. Identity fields are kept regardless.
	ExcludeFields []string
}

// CircularRef records one cycle encountered during conversion.
type CircularRef struct {
	// SourceID is the synthetic id of the node whose reference closed
	// the cycle.
	SourceID string `json:"sourceId"`

	// TargetID is the synthetic id the emitted $ref points back to.
	TargetID string `json:"targetId"`

	// Property is the reference property that closed the cycle.
	Property string `json:"property"`
}

// Result is the outcome of one Convert call.
type Result struct {
	// Data is the JSON-safe tree, or nil for a nil root.
	Data any `json:"data"`

	// HasCircular reports whether any cycle marker was emitted.
	HasCircular bool `json:"hasCircular"`

	// CircularRefs lists every cycle encountered, in traversal order.
	CircularRefs []CircularRef `json:"circularRefs,omitempty"`
}

// Converter converts node graphs into JSON-safe trees.
//
// Thread Safety: safe for concurrent use; Convert keeps no state on the
// receiver.
type Converter struct{}

// New creates a Converter.
func New() *Converter {
	return &Converter{}
}

// Convert walks the graph rooted at root depth-first and produces a tree of
// map[string]any / []any / primitives.
//
// A node already on the current traversal path is emitted as {$ref: id}
// instead of being re-descended, and the collision is recorded in
// Result.CircularRefs. Compound values at MaxDepth are replaced by a
// truncation marker. Re-converting the same graph is deterministic:
// properties are emitted in sorted key order and counter-based ids restart
// at every call.
func (c *Converter) Convert(root ast.Node, opts Options) Result {
	if root == nil {
		return Result{}
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}

	t := &traversal{
		opts:   opts,
		onPath: make(map[ast.Node]bool),
		ids:    make(map[ast.Node]string),
	}
	data := t.convertNode(root, 0, edge{})

	return Result{
		Data:         data,
		HasCircular:  len(t.circular) > 0,
		CircularRefs: t.circular,
	}
}

// traversal holds the per-call state: the visiting set, the identity map,
// and the cycle log.
type traversal struct {
	opts     Options
	onPath   map[ast.Node]bool
	ids      map[ast.Node]string
	counter  int
	circular []CircularRef
}

// edge names the property through which a node is being descended, so a
// cycle closing at that node can be attributed to its source.
type edge struct {
	sourceID string
	property string
}

func (t *traversal) convertNode(node ast.Node, depth int, via edge) any {
	if node == nil {
		return nil
	}
	if depth >= t.opts.MaxDepth {
		return map[string]any{KeyTruncated: true}
	}
	if t.onPath[node] {
		// Already on the current path: emit a marker, never re-descend.
		// Recording here keeps HasCircular in lockstep with every $ref
		// emitted, whichever edge kind closed the cycle.
		t.circular = append(t.circular, CircularRef{
			SourceID: via.sourceID,
			TargetID: t.ids[node],
			Property: via.property,
		})
		return map[string]any{KeyRef: t.ids[node]}
	}

	t.onPath[node] = true
	defer delete(t.onPath, node)

	id := t.assignID(node)

	out := map[string]any{KeyType: node.NodeType()}
	if t.opts.IncludeIDs {
		out[KeyID] = id
	}
	if name := node.NodeName(); name != "" {
		out["name"] = name
	}

	props := node.Properties()
	for _, key := range sortedKeys(props) {
		if !t.fieldIncluded(key) {
			continue
		}
		out[key] = t.convertValue(props[key], depth+1, edge{sourceID: id, property: key})
	}

	kids := node.Children()
	for _, key := range sortedKeys(kids) {
		if !t.fieldIncluded(key) {
			continue
		}
		converted := make([]any, 0, len(kids[key]))
		for _, kid := range kids[key] {
			converted = append(converted, t.convertNode(kid, depth+1, edge{sourceID: id, property: key}))
		}
		out[key] = converted
	}

	refs := node.References()
	for _, key := range sortedKeys(refs) {
		if !t.fieldIncluded(key) {
			continue
		}
		converted := make([]any, 0, len(refs[key]))
		for _, target := range refs[key] {
			converted = append(converted, t.convertNode(target, depth+1, edge{sourceID: id, property: key}))
		}
		out[key] = converted
	}

	return out
}

// convertValue handles property values: primitives pass through, nested
// maps and slices are depth-bounded and copied. via names the property the
// value was reached through, for cycle attribution on embedded nodes.
func (t *traversal) convertValue(value any, depth int, via edge) any {
	switch v := value.(type) {
	case map[string]any:
		if depth >= t.opts.MaxDepth {
			return map[string]any{KeyTruncated: true}
		}
		out := make(map[string]any, len(v))
		for _, key := range sortedKeys(v) {
			if internalFields[key] {
				continue
			}
			out[key] = t.convertValue(v[key], depth+1, via)
		}
		return out
	case []any:
		if depth >= t.opts.MaxDepth {
			return map[string]any{KeyTruncated: true}
		}
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, t.convertValue(item, depth+1, via))
		}
		return out
	case ast.Node:
		return t.convertNode(v, depth, via)
	default:
		return value
	}
}

// assignID gives the node a synthetic id, preferring a stable name+type
// composite over the per-call counter.
func (t *traversal) assignID(node ast.Node) string {
	if id, ok := t.ids[node]; ok {
		return id
	}
	var id string
	if name := node.NodeName(); name != "" {
		id = fmt.Sprintf("%s_%s", name, node.NodeType())
	} else {
		id = fmt.Sprintf("node_%d", t.counter)
		t.counter++
	}
	t.ids[node] = id
	return id
}

func (t *traversal) fieldIncluded(name string) bool {
	if internalFields[name] {
		return false
	}
	if identityFields[name] {
		return true
	}
	if len(t.opts.IncludeFields) > 0 {
		for _, f := range t.opts.IncludeFields {
			if f == name {
				return true
			}
		}
		return false
	}
	for _, f := range t.opts.ExcludeFields {
		if f == name {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
