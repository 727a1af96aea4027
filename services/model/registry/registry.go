// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/MeridianIDE/MeridianCore/pkg/validation"
)

// RegistrationSummary reports the outcome of one RegisterLanguage call.
type RegistrationSummary struct {
	// Registered lists operation ids bound to a handler.
	Registered []string

	// Skipped lists declared operations without a handler. Skipping is
	// not an error; the operations are simply absent from lookups.
	Skipped []string
}

// Registry is the in-memory catalog of registered operations.
//
// The catalog is populated once per language at load time and treated as
// read-only by the executor afterwards. Re-registering a language
// overwrites its previous entries.
//
// Thread Safety: safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byLang map[string]map[string]*RegisteredOperation
	logger *slog.Logger
}

// New creates an empty Registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byLang: make(map[string]map[string]*RegisteredOperation),
		logger: logger.With(slog.String("component", "operation_registry")),
	}
}

// RegisterLanguage binds every declaration with a matching handler and
// records the rest as skipped.
//
// Inputs:
//
//	languageID - The owning language. Must be a valid identifier.
//	decls - Operation declarations contributed by the language.
//	handlers - Handler functions keyed by operation id.
//
// Outputs:
//
//	RegistrationSummary - Which operations were bound and which skipped.
//	error - Non-nil only for an invalid language id.
func (r *Registry) RegisterLanguage(languageID string, decls []Declaration, handlers map[string]Handler) (RegistrationSummary, error) {
	if err := validation.ValidateLanguageID(languageID); err != nil {
		return RegistrationSummary{}, err
	}

	ops := make(map[string]*RegisteredOperation, len(decls))
	var summary RegistrationSummary
	for _, decl := range decls {
		if err := validation.ValidateOperationID(decl.ID); err != nil {
			r.logger.Warn("Skipping operation with invalid id",
				slog.String("language", languageID),
				slog.String("operation", decl.ID),
				slog.String("error", err.Error()))
			summary.Skipped = append(summary.Skipped, decl.ID)
			continue
		}
		handler, ok := handlers[decl.ID]
		if !ok || handler == nil {
			summary.Skipped = append(summary.Skipped, decl.ID)
			continue
		}
		ops[decl.ID] = &RegisteredOperation{
			Declaration: decl,
			Handler:     handler,
			LanguageID:  languageID,
		}
		summary.Registered = append(summary.Registered, decl.ID)
	}

	r.mu.Lock()
	r.byLang[languageID] = ops
	r.mu.Unlock()

	r.logger.Info("Registered language operations",
		slog.String("language", languageID),
		slog.Int("registered", len(summary.Registered)),
		slog.Int("skipped", len(summary.Skipped)),
	)
	return summary, nil
}

// Operation looks up a registered operation.
func (r *Registry) Operation(languageID, operationID string) (*RegisteredOperation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ops, ok := r.byLang[languageID]
	if !ok {
		return nil, false
	}
	op, ok := ops[operationID]
	return op, ok
}

// OperationsForTypes returns every operation of the language whose declared
// target types intersect types, or whose target set is the wildcard. Empty
// types is an unfiltered listing. Results are ordered by operation id.
func (r *Registry) OperationsForTypes(languageID string, types []string) []*RegisteredOperation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*RegisteredOperation
	for _, op := range r.byLang[languageID] {
		if len(types) == 0 || op.Declaration.AppliesToAny(types) {
			out = append(out, op)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Declaration.ID < out[j].Declaration.ID
	})
	return out
}

// Languages returns the registered language ids, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byLang))
	for lang := range r.byLang {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// OperationCount returns how many operations are registered for a language.
func (r *Registry) OperationCount(languageID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byLang[languageID])
}
