// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for caller-supplied
// identifiers and document URIs.
//
// These validators guard inputs that end up in log records, registry keys,
// and subscription indexes, keeping injection-shaped values out of the
// runtime's tables.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
)

// languageIDPattern matches language identifiers such as "meridian" or
// "meridian-flow2". Lowercase alphanumerics plus hyphens, 1-64 chars,
// starting with a letter.
var languageIDPattern = regexp.MustCompile(`^[a-z][a-z0-9\-]{0,63}$`)

// operationIDPattern matches dotted operation ids such as
// "model.export" or "refactor.rename-entity". 1-128 chars.
var operationIDPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-]*(\.[a-zA-Z][a-zA-Z0-9_\-]*)*$`)

// ValidateLanguageID validates a language identifier.
//
// Example:
//
//	if err := validation.ValidateLanguageID(lang); err != nil {
//	    return fmt.Errorf("invalid language: %w", err)
//	}
func ValidateLanguageID(id string) error {
	if id == "" {
		return fmt.Errorf("language id cannot be empty")
	}
	if !languageIDPattern.MatchString(id) {
		return fmt.Errorf("invalid language id: %q (must be lowercase alphanumeric with hyphens, max 64 chars)", id)
	}
	return nil
}

// ValidateOperationID validates a dotted operation identifier.
func ValidateOperationID(id string) error {
	if id == "" {
		return fmt.Errorf("operation id cannot be empty")
	}
	if len(id) > 128 {
		return fmt.Errorf("operation id too long: %d chars (max 128)", len(id))
	}
	if !operationIDPattern.MatchString(id) {
		return fmt.Errorf("invalid operation id: %q", id)
	}
	return nil
}

// ValidateDocumentURI validates a document URI against the allowed schemes.
//
// The URI must parse and carry one of the given schemes. An empty scheme
// list accepts any parseable URI with a non-empty scheme.
func ValidateDocumentURI(uri string, schemes []string) error {
	if uri == "" {
		return fmt.Errorf("document uri cannot be empty")
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("unparseable document uri %q: %w", uri, err)
	}
	if parsed.Scheme == "" {
		return fmt.Errorf("document uri %q has no scheme", uri)
	}
	if len(schemes) == 0 {
		return nil
	}
	for _, s := range schemes {
		if parsed.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("document uri scheme %q not allowed (allowed: %v)", parsed.Scheme, schemes)
}
