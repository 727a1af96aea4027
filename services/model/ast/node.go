// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ast defines the in-memory node graph produced by document parsing.
//
// Nodes expose their structure through typed accessors rather than runtime
// field inspection: a node reports its primitive properties, its containment
// children, and its cross-references as separate maps. Cross-references may
// form cycles; containment never does.
package ast

// Node is one element of a parsed document.
//
// Implementations must return stable values for the lifetime of the node;
// the tree converter walks Children and References without locking.
type Node interface {
	// NodeType returns the language-level type tag, e.g. "Entity".
	NodeType() string

	// NodeName returns the declared name, or "" for unnamed nodes.
	NodeName() string

	// Properties returns the primitive-valued fields of the node.
	Properties() map[string]any

	// Children returns containment edges keyed by property name.
	Children() map[string][]Node

	// References returns cross-reference edges keyed by property name.
	// These are the only edges that may produce cycles.
	References() map[string][]Node
}

// Element is the standard mutable Node implementation used by document
// stores and tests.
type Element struct {
	Type  string
	Name  string
	Props map[string]any
	Kids  map[string][]Node
	Refs  map[string][]Node
}

// NewElement creates an element with the given type tag and name.
func NewElement(nodeType, name string) *Element {
	return &Element{
		Type:  nodeType,
		Name:  name,
		Props: make(map[string]any),
		Kids:  make(map[string][]Node),
		Refs:  make(map[string][]Node),
	}
}

// NodeType implements Node.
func (e *Element) NodeType() string { return e.Type }

// NodeName implements Node.
func (e *Element) NodeName() string { return e.Name }

// Properties implements Node.
func (e *Element) Properties() map[string]any { return e.Props }

// Children implements Node.
func (e *Element) Children() map[string][]Node { return e.Kids }

// References implements Node.
func (e *Element) References() map[string][]Node { return e.Refs }

// SetProperty sets a primitive property and returns the element for chaining.
func (e *Element) SetProperty(name string, value any) *Element {
	e.Props[name] = value
	return e
}

// AddChild appends a containment child under the given property.
func (e *Element) AddChild(property string, child Node) *Element {
	e.Kids[property] = append(e.Kids[property], child)
	return e
}

// AddReference appends a cross-reference under the given property.
func (e *Element) AddReference(property string, target Node) *Element {
	e.Refs[property] = append(e.Refs[property], target)
	return e
}

// Walk visits node and every containment descendant in depth-first order.
// References are not followed, so Walk terminates on any valid document.
func Walk(node Node, visit func(Node)) {
	if node == nil {
		return
	}
	visit(node)
	for _, kids := range node.Children() {
		for _, kid := range kids {
			Walk(kid, visit)
		}
	}
}
