// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package executor

import (
	"errors"
	"fmt"
)

// Code classifies an execution failure for callers and wire bindings.
type Code string

// Failure codes, in the order the executor can produce them.
const (
	// CodeOperationNotFound: no operation registered under the
	// (language, operation) pair. Detected before any job is created.
	CodeOperationNotFound Code = "OPERATION_NOT_FOUND"

	// CodeAuthenticationRequired: the operation demands a user and the
	// request carried none.
	CodeAuthenticationRequired Code = "AUTHENTICATION_REQUIRED"

	// CodeInsufficientTier: the user's subscription tier is below the
	// operation's minimum.
	CodeInsufficientTier Code = "INSUFFICIENT_TIER"

	// CodeDocumentResolutionFailed: the document resolver rejected the
	// reference.
	CodeDocumentResolutionFailed Code = "DOCUMENT_RESOLUTION_FAILED"

	// CodeTimeout: a synchronous handler did not settle within the
	// timeout. The handler keeps running; its outcome is discarded.
	CodeTimeout Code = "TIMEOUT"

	// CodeHandlerException: the handler returned an error or panicked.
	CodeHandlerException Code = "HANDLER_EXCEPTION"
)

// Sentinel errors matching the codes above, for errors.Is checks.
var (
	ErrOperationNotFound      = errors.New("operation not found")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrInsufficientTier       = errors.New("insufficient subscription tier")
	ErrTimeout                = errors.New("operation timed out")
)

// Error is a classified execution failure.
type Error struct {
	// Code classifies the failure.
	Code Code `json:"code"`

	// Message is the human-readable failure description.
	Message string `json:"message"`

	// err is the wrapped cause, if any.
	err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error {
	return e.err
}

func newError(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		err:     cause,
	}
}
