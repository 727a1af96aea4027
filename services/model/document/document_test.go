// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package document

import (
	"context"
	"errors"
	"testing"

	"github.com/MeridianIDE/MeridianCore/services/model/ast"
)

func testDoc(uri string) *Document {
	return &Document{
		URI:        uri,
		LanguageID: "meridian",
		Version:    1,
		Root:       ast.NewElement("Model", "m"),
	}
}

func TestStore_Resolve(t *testing.T) {
	store := NewStore(nil)
	store.Open(testDoc("file:///a.mrd"))

	tests := []struct {
		name    string
		ref     Ref
		wantErr error
	}{
		{"by uri", Ref{URI: "file:///a.mrd"}, nil},
		{"matching language", Ref{URI: "file:///a.mrd", LanguageID: "meridian"}, nil},
		{"unknown uri", Ref{URI: "file:///missing.mrd"}, ErrNotFound},
		{"wrong language", Ref{URI: "file:///a.mrd", LanguageID: "other"}, ErrLanguageMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := store.Resolve(context.Background(), tt.ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if doc.URI != tt.ref.URI {
				t.Errorf("doc.URI = %q, want %q", doc.URI, tt.ref.URI)
			}
		})
	}
}

func TestStore_ResolveCancelledContext(t *testing.T) {
	store := NewStore(nil)
	store.Open(testDoc("file:///a.mrd"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Resolve(ctx, Ref{URI: "file:///a.mrd"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Resolve() error = %v, want context.Canceled", err)
	}
}

func TestStore_UpdateBumpsVersion(t *testing.T) {
	store := NewStore(nil)
	store.Open(testDoc("file:///a.mrd"))

	if !store.Update("file:///a.mrd", ast.NewElement("Model", "m2"), "model m2") {
		t.Fatal("Update() = false for a stored document")
	}
	doc, _ := store.Get("file:///a.mrd")
	if doc.Version != 2 {
		t.Errorf("Version = %d, want 2", doc.Version)
	}
	if doc.Root.NodeName() != "m2" {
		t.Errorf("Root.NodeName() = %q, want m2", doc.Root.NodeName())
	}

	if store.Update("file:///missing.mrd", nil, "") {
		t.Error("Update() = true for an unknown document")
	}
}

// Snapshots returned by Get must stay readable while Update installs new
// state concurrently. Run with -race to verify.
func TestStore_GetIsSnapshotIsolated(t *testing.T) {
	store := NewStore(nil)
	store.Open(testDoc("file:///a.mrd"))

	before, _ := store.Get("file:///a.mrd")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			store.Update("file:///a.mrd", ast.NewElement("Model", "m"), "model m")
		}
	}()

	for i := 0; i < 200; i++ {
		doc, ok := store.Get("file:///a.mrd")
		if !ok {
			t.Fatal("Get() lost the document mid-update")
		}
		_ = doc.Version
		_ = doc.Content
		_ = doc.Root.NodeName()
	}
	<-done

	if before.Version != 1 {
		t.Errorf("earlier snapshot Version = %d, want 1", before.Version)
	}
	final, _ := store.Get("file:///a.mrd")
	if final.Version != 201 {
		t.Errorf("final Version = %d, want 201", final.Version)
	}
}

func TestStore_OpenCopiesDocument(t *testing.T) {
	store := NewStore(nil)
	doc := testDoc("file:///a.mrd")
	store.Open(doc)

	doc.Version = 99
	got, _ := store.Get("file:///a.mrd")
	if got.Version != 1 {
		t.Errorf("stored Version = %d, want 1 after caller mutation", got.Version)
	}
}

func TestStore_CloseAndURIs(t *testing.T) {
	store := NewStore(nil)
	store.Open(testDoc("file:///b.mrd"))
	store.Open(testDoc("file:///a.mrd"))

	uris := store.URIs()
	if len(uris) != 2 || uris[0] != "file:///a.mrd" {
		t.Fatalf("URIs() = %v, want sorted pair", uris)
	}

	if !store.Close("file:///a.mrd") {
		t.Fatal("Close() = false for a stored document")
	}
	if store.Close("file:///a.mrd") {
		t.Fatal("Close() = true for an already closed document")
	}
	if _, ok := store.Get("file:///a.mrd"); ok {
		t.Fatal("Get() found a closed document")
	}
}

func TestWatcher_TrackedURI(t *testing.T) {
	w := &Watcher{opts: DefaultWatcherOptions()}

	if _, ok := w.trackedURI("/ws/shop.mrd"); !ok {
		t.Error("trackedURI rejected a .mrd file")
	}
	if _, ok := w.trackedURI("/ws/notes.txt"); ok {
		t.Error("trackedURI accepted a .txt file")
	}
	if uri, _ := w.trackedURI("/ws/shop.mrd"); uri != "file:///ws/shop.mrd" {
		t.Errorf("trackedURI = %q, want file:///ws/shop.mrd", uri)
	}
}

func TestWatcher_ShouldIgnore(t *testing.T) {
	w := &Watcher{opts: DefaultWatcherOptions()}

	tests := []struct {
		path string
		want bool
	}{
		{"/ws/.git", true},
		{"/ws/node_modules", true},
		{"/ws/shop.mrd.swp", true},
		{"/ws/src", false},
		{"/ws/shop.mrd", false},
	}

	for _, tt := range tests {
		if got := w.shouldIgnore(tt.path); got != tt.want {
			t.Errorf("shouldIgnore(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
