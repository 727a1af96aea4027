// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package subscription

import "errors"

var (
	// ErrInvalidURI indicates a subscribe request with an empty URI or a
	// scheme outside the allowed set.
	ErrInvalidURI = errors.New("invalid subscription uri")

	// ErrDisposed indicates the service has been shut down.
	ErrDisposed = errors.New("subscription service disposed")
)
