// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"strings"
	"testing"
)

func TestValidateLanguageID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		// Valid
		{"simple", "meridian", false},
		{"with digits", "flow2", false},
		{"with hyphen", "meridian-flow", false},
		{"single char", "m", false},

		// Invalid
		{"empty", "", true},
		{"uppercase", "Meridian", true},
		{"leading digit", "2flow", true},
		{"leading hyphen", "-flow", true},
		{"whitespace", "meridian flow", true},
		{"path traversal", "../etc", true},
		{"too long", strings.Repeat("a", 65), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLanguageID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLanguageID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateOperationID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		// Valid
		{"simple", "validate", false},
		{"dotted", "model.export", false},
		{"deep", "refactor.entity.rename", false},
		{"hyphenated", "rename-entity", false},
		{"underscored", "export_json", false},

		// Invalid
		{"empty", "", true},
		{"leading dot", ".export", true},
		{"trailing dot", "export.", true},
		{"double dot", "model..export", true},
		{"whitespace", "model export", true},
		{"leading digit segment", "model.2export", true},
		{"too long", strings.Repeat("a", 129), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOperationID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOperationID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDocumentURI(t *testing.T) {
	schemes := []string{"file", "inmemory"}

	tests := []struct {
		name    string
		uri     string
		schemes []string
		wantErr bool
	}{
		{"file uri", "file:///workspace/shop.mrd", schemes, false},
		{"inmemory uri", "inmemory://session/1", schemes, false},
		{"any scheme allowed", "custom://x", nil, false},

		{"empty", "", schemes, true},
		{"no scheme", "/workspace/shop.mrd", schemes, true},
		{"disallowed scheme", "http://example.com/doc", schemes, true},
		{"unparseable", "file://%zz", schemes, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocumentURI(tt.uri, tt.schemes)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDocumentURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
		})
	}
}
