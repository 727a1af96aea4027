// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"

	"github.com/MeridianIDE/MeridianCore/services/model/ast"
	"github.com/MeridianIDE/MeridianCore/services/model/convert"
	"github.com/MeridianIDE/MeridianCore/services/model/registry"
)

// registerBuiltins installs the "meridian" language's core operations.
// Language packs register their own operations the same way through
// Registry; these built-ins cover workspace-level tooling every language
// gets for free.
func registerBuiltins(reg *registry.Registry) error {
	decls := []registry.Declaration{
		{
			ID:          "meridian.model.statistics",
			Category:    "inspect",
			Description: "Count model nodes by type",
			TargetTypes: []string{registry.WildcardType},
		},
		{
			ID:          "meridian.model.validate",
			Category:    "inspect",
			Description: "Report unnamed nodes in the model",
			TargetTypes: []string{registry.WildcardType},
		},
		{
			ID:          "meridian.model.export",
			Category:    "generate",
			Description: "Export the converted model tree",
			TargetTypes: []string{registry.WildcardType},
			Licensing:   registry.Licensing{MinTier: registry.TierPro},
			Execution:   registry.Execution{Async: true},
		},
	}
	handlers := map[string]registry.Handler{
		"meridian.model.statistics": statisticsHandler,
		"meridian.model.validate":   validateHandler,
		"meridian.model.export":     exportHandler,
	}

	summary, err := reg.RegisterLanguage("meridian", decls, handlers)
	if err != nil {
		return err
	}
	if len(summary.Skipped) > 0 {
		return fmt.Errorf("built-in operations skipped: %v", summary.Skipped)
	}
	return nil
}

func statisticsHandler(ctx context.Context, opCtx *registry.OperationContext, progress registry.ProgressFunc) (any, error) {
	counts := map[string]int{}
	total := 0
	ast.Walk(opCtx.Document.Root, func(n ast.Node) {
		counts[n.NodeType()]++
		total++
	})
	return map[string]any{"total": total, "byType": counts}, nil
}

func validateHandler(ctx context.Context, opCtx *registry.OperationContext, progress registry.ProgressFunc) (any, error) {
	var unnamed []string
	ast.Walk(opCtx.Document.Root, func(n ast.Node) {
		if n.NodeName() == "" {
			unnamed = append(unnamed, n.NodeType())
		}
	})
	return map[string]any{"valid": len(unnamed) == 0, "unnamedTypes": unnamed}, nil
}

func exportHandler(ctx context.Context, opCtx *registry.OperationContext, progress registry.ProgressFunc) (any, error) {
	progress(10, "converting model")
	res := convert.New().Convert(opCtx.Document.Root, convert.Options{IncludeIDs: true})
	if res.HasCircular {
		progress(60, fmt.Sprintf("resolved %d circular references", len(res.CircularRefs)))
	}
	progress(90, "serializing")
	return map[string]any{
		"uri":         opCtx.URI,
		"model":       res.Data,
		"hasCircular": res.HasCircular,
	}, nil
}
