// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package registry catalogs the operations each language contributes and
// binds their declarations to handler functions.
package registry

import (
	"context"

	"github.com/MeridianIDE/MeridianCore/services/model/document"
)

// WildcardType in a declaration's TargetTypes makes the operation apply to
// every node type.
const WildcardType = "*"

// Tier is a subscription level gating access to licensed operations.
type Tier string

// Tiers in ascending capability order.
const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Rank returns the tier's position in the capability ordering; unknown
// tiers rank below free.
func (t Tier) Rank() int {
	switch t {
	case TierFree:
		return 1
	case TierPro:
		return 2
	case TierEnterprise:
		return 3
	default:
		return 0
	}
}

// Satisfies reports whether the set of tiers at or above min contains t.
func (t Tier) Satisfies(min Tier) bool {
	allowed := TiersAtOrAbove(min)
	return allowed[t]
}

// TiersAtOrAbove computes the set of tiers whose capability is at least min.
func TiersAtOrAbove(min Tier) map[Tier]bool {
	out := make(map[Tier]bool, 3)
	for _, tier := range []Tier{TierFree, TierPro, TierEnterprise} {
		if tier.Rank() >= min.Rank() {
			out[tier] = true
		}
	}
	return out
}

// User is the authenticated principal attached to an operation request.
type User struct {
	// ID identifies the user.
	ID string `json:"id"`

	// Name is the display name, if known.
	Name string `json:"name,omitempty"`

	// Tier is the user's subscription tier.
	Tier Tier `json:"tier"`
}

// Licensing describes the access requirements of an operation.
type Licensing struct {
	// RequiresAuth demands an authenticated user.
	RequiresAuth bool `json:"requiresAuth" yaml:"requiresAuth"`

	// MinTier, when non-empty, is the lowest tier allowed to run the
	// operation. Implies RequiresAuth.
	MinTier Tier `json:"minTier,omitempty" yaml:"minTier,omitempty"`
}

// Execution describes how an operation is dispatched.
type Execution struct {
	// Async executions create a job and run in the background; the
	// initiating call returns the job id immediately.
	Async bool `json:"async" yaml:"async"`
}

// Declaration is the static metadata of an operation. Immutable once
// registered.
type Declaration struct {
	// ID is the operation identifier, unique within a language.
	ID string `json:"id" yaml:"id"`

	// Category groups operations for discovery, e.g. "refactoring".
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// Description is shown in operation listings.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// TargetTypes lists the node types the operation applies to.
	// A single WildcardType entry matches everything.
	TargetTypes []string `json:"targetTypes,omitempty" yaml:"targetTypes,omitempty"`

	// Licensing gates access to the operation.
	Licensing Licensing `json:"licensing" yaml:"licensing"`

	// Execution selects sync or async dispatch.
	Execution Execution `json:"execution" yaml:"execution"`
}

// AppliesToAny reports whether the declaration targets at least one of the
// given node types, honoring the wildcard.
func (d Declaration) AppliesToAny(types []string) bool {
	for _, target := range d.TargetTypes {
		if target == WildcardType {
			return true
		}
		for _, t := range types {
			if target == t {
				return true
			}
		}
	}
	return false
}

// ProgressFunc reports handler progress in [0,100] with an optional
// human-readable message.
type ProgressFunc func(progress float64, message string)

// Handler executes one operation invocation.
//
// Handlers must treat opCtx as borrowed for the duration of the call and
// must not retain it. The progress callback is safe to invoke from the
// handler's own goroutines.
type Handler func(ctx context.Context, opCtx *OperationContext, progress ProgressFunc) (any, error)

// OperationContext is the per-invocation value object handed to a handler.
// Constructed once per invocation; handlers must not mutate it.
type OperationContext struct {
	// Document is the resolved target document.
	Document *document.Document

	// SelectedIDs are the element ids selected in the editor, if any.
	SelectedIDs []string

	// Input is the free-form request payload.
	Input map[string]any

	// User is the authenticated user, or nil.
	User *User

	// CorrelationID threads the invocation through logs and results.
	CorrelationID string

	// LanguageID is the language the operation belongs to.
	LanguageID string

	// URI is the target document URI.
	URI string
}

// RegisteredOperation binds a declaration to its handler and owning
// language.
type RegisteredOperation struct {
	Declaration Declaration
	Handler     Handler
	LanguageID  string
}
