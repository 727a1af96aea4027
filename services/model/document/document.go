// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package document defines the resolver contract the executor depends on
// and an in-memory workspace store implementing it.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/MeridianIDE/MeridianCore/services/model/ast"
)

// Sentinel errors for document resolution.
var (
	// ErrNotFound indicates the referenced document is not in the store.
	ErrNotFound = errors.New("document not found")

	// ErrLanguageMismatch indicates the reference named a language other
	// than the stored document's.
	ErrLanguageMismatch = errors.New("document language mismatch")
)

// Document is a parsed document held by the hosting editor.
//
// Documents handed out by a Store are immutable snapshots: an update
// installs a fresh Document rather than mutating one in place, so
// callers may read a resolved document without holding any lock.
type Document struct {
	// URI identifies the document, e.g. "file:///workspace/shop.mrd".
	URI string

	// LanguageID names the language the document is written in.
	LanguageID string

	// Version increments on every change notification.
	Version int

	// Content is the raw text, when available.
	Content string

	// Root is the parsed node graph, or nil for an unparsed document.
	Root ast.Node
}

// Ref identifies a document in an operation request.
type Ref struct {
	// URI of the target document.
	URI string `json:"uri"`

	// LanguageID, when non-empty, must match the resolved document.
	LanguageID string `json:"languageId,omitempty"`
}

// Resolver turns a document reference into a document handle.
//
// Resolution may fail; failures are reported to the caller unretried.
type Resolver interface {
	Resolve(ctx context.Context, ref Ref) (*Document, error)
}

// Store is an in-memory document table keyed by URI.
//
// Thread Safety: safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]*Document
	logger *slog.Logger
}

// NewStore creates an empty Store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		docs:   make(map[string]*Document),
		logger: logger.With(slog.String("component", "document_store")),
	}
}

// Open adds or replaces a document. The store keeps its own copy, so
// the caller may reuse doc afterwards.
func (s *Store) Open(doc *Document) {
	snapshot := *doc
	s.mu.Lock()
	s.docs[doc.URI] = &snapshot
	s.mu.Unlock()
	s.logger.Debug("Document opened",
		slog.String("uri", doc.URI),
		slog.String("language", doc.LanguageID),
	)
}

// Get returns the current snapshot for uri, if present.
func (s *Store) Get(uri string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	return doc, ok
}

// Update installs a new snapshot with the given parsed state and a
// bumped version. Snapshots already handed out are left untouched.
// Returns false when the document is unknown.
func (s *Store) Update(uri string, root ast.Node, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return false
	}
	s.docs[uri] = &Document{
		URI:        doc.URI,
		LanguageID: doc.LanguageID,
		Version:    doc.Version + 1,
		Content:    content,
		Root:       root,
	}
	return true
}

// Close removes a document. Returns false when it was not present.
func (s *Store) Close(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[uri]; !ok {
		return false
	}
	delete(s.docs, uri)
	return true
}

// URIs returns the stored document URIs, sorted.
func (s *Store) URIs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out
}

// Resolve implements Resolver against the store's table.
func (s *Store) Resolve(ctx context.Context, ref Ref) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	doc, ok := s.docs[ref.URI]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref.URI)
	}
	if ref.LanguageID != "" && ref.LanguageID != doc.LanguageID {
		return nil, fmt.Errorf("%w: requested %s, document is %s",
			ErrLanguageMismatch, ref.LanguageID, doc.LanguageID)
	}
	return doc, nil
}

var _ Resolver = (*Store)(nil)
