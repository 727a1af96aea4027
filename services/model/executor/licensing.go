// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package executor

import "github.com/MeridianIDE/MeridianCore/services/model/registry"

// checkLicensing gates an invocation on the declaration's requirements.
//
// A minimum-tier requirement implies authentication. The allowed set is
// computed as every tier at or above the minimum in the fixed ordering
// enterprise > pro > free; the user's tier must be in that set.
func checkLicensing(lic registry.Licensing, user *registry.User) *Error {
	requiresAuth := lic.RequiresAuth || lic.MinTier != ""
	if !requiresAuth {
		return nil
	}

	if user == nil {
		return newError(CodeAuthenticationRequired, ErrAuthenticationRequired,
			"operation requires an authenticated user")
	}

	if lic.MinTier == "" {
		return nil
	}
	if !user.Tier.Satisfies(lic.MinTier) {
		return newError(CodeInsufficientTier, ErrInsufficientTier,
			"operation requires tier %q or higher, user has %q", lic.MinTier, user.Tier)
	}
	return nil
}
