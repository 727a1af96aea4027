// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import "errors"

var (
	// ErrInvalidQuery indicates a model query with zero or multiple
	// selectors set.
	ErrInvalidQuery = errors.New("query must set exactly one of nodeId, nodeType, path")

	// ErrJobNotFound indicates a job lookup for an unknown or swept id.
	ErrJobNotFound = errors.New("job not found")

	// ErrSubscriptionNotFound indicates an unsubscribe for an unknown id.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrServerClosed indicates a call after Close.
	ErrServerClosed = errors.New("model server closed")
)
