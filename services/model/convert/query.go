// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package convert

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors for converted-tree queries.
var (
	// ErrNodeNotFound indicates no node matched the query.
	ErrNodeNotFound = errors.New("node not found in converted tree")

	// ErrInvalidPath indicates the path expression could not be parsed
	// or does not apply to the tree's shape.
	ErrInvalidPath = errors.New("invalid tree path")
)

// FindNodeByID searches a converted tree for the node carrying the given
// synthetic $id. The tree must have been produced with IncludeIDs set.
func FindNodeByID(tree any, id string) (map[string]any, bool) {
	var found map[string]any
	walkTree(tree, func(node map[string]any) bool {
		if node[KeyID] == id {
			found = node
			return false
		}
		return true
	})
	return found, found != nil
}

// FindNodesByType returns every node in a converted tree whose $type equals
// nodeType, in depth-first order.
func FindNodesByType(tree any, nodeType string) []map[string]any {
	var out []map[string]any
	walkTree(tree, func(node map[string]any) bool {
		if node[KeyType] == nodeType {
			out = append(out, node)
		}
		return true
	})
	return out
}

// GetNodeByPath resolves a dot-and-bracket path like "entities[0].fields[2]"
// against a converted tree.
//
// Each dot segment selects a map key; a bracket suffix indexes into a slice.
// Returns ErrInvalidPath for malformed expressions and ErrNodeNotFound when
// a segment does not resolve.
func GetNodeByPath(tree any, path string) (any, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	current := tree
	for _, segment := range strings.Split(path, ".") {
		key, indexes, err := parseSegment(segment)
		if err != nil {
			return nil, err
		}

		if key != "" {
			node, ok := current.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %q is not an object", ErrInvalidPath, segment)
			}
			current, ok = node[key]
			if !ok {
				return nil, fmt.Errorf("%w: no property %q", ErrNodeNotFound, key)
			}
		}

		for _, idx := range indexes {
			list, ok := current.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: %q is not an array", ErrInvalidPath, segment)
			}
			if idx < 0 || idx >= len(list) {
				return nil, fmt.Errorf("%w: index %d out of range", ErrNodeNotFound, idx)
			}
			current = list[idx]
		}
	}
	return current, nil
}

// parseSegment splits one path segment into its key and bracket indexes,
// e.g. "fields[2][0]" -> ("fields", [2, 0]).
func parseSegment(segment string) (string, []int, error) {
	if segment == "" {
		return "", nil, fmt.Errorf("%w: empty segment", ErrInvalidPath)
	}

	open := strings.IndexByte(segment, '[')
	if open < 0 {
		if strings.ContainsAny(segment, "]") {
			return "", nil, fmt.Errorf("%w: unbalanced brackets in %q", ErrInvalidPath, segment)
		}
		return segment, nil, nil
	}

	key := segment[:open]
	rest := segment[open:]
	var indexes []int
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, fmt.Errorf("%w: malformed segment %q", ErrInvalidPath, segment)
		}
		closing := strings.IndexByte(rest, ']')
		if closing < 0 {
			return "", nil, fmt.Errorf("%w: unbalanced brackets in %q", ErrInvalidPath, segment)
		}
		idx, err := strconv.Atoi(rest[1:closing])
		if err != nil {
			return "", nil, fmt.Errorf("%w: non-numeric index in %q", ErrInvalidPath, segment)
		}
		indexes = append(indexes, idx)
		rest = rest[closing+1:]
	}
	return key, indexes, nil
}

// walkTree visits every object node in a converted tree. The visitor
// returns false to stop the walk.
func walkTree(tree any, visit func(map[string]any) bool) bool {
	switch v := tree.(type) {
	case map[string]any:
		if _, isRef := v[KeyRef]; isRef {
			// Cycle markers are placeholders, not nodes.
			return true
		}
		if !visit(v) {
			return false
		}
		for _, key := range sortedKeys(v) {
			if !walkTree(v[key], visit) {
				return false
			}
		}
	case []any:
		for _, item := range v {
			if !walkTree(item, visit) {
				return false
			}
		}
	}
	return true
}
