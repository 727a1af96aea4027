// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package model is the document-operation runtime of the Meridian editor
// platform: language packs register operations against node types, editors
// execute them synchronously or as tracked jobs, and subscribers receive
// debounced change notifications over the model of each open document.
//
// The package itself is the façade: ModelServer wires the document store,
// operation registry, job manager, executor, tree converter, and
// subscription service together, and Handlers/RegisterRoutes expose that
// surface over REST and WebSocket.
//
// Subpackages:
//
//   - ast: the in-memory node graph documents parse into.
//   - document: document store, resolver contract, filesystem watcher.
//   - registry: per-language operation registration and discovery.
//   - executor: licensing-checked sync/async operation dispatch.
//   - job: lifecycle tracking for asynchronous operations.
//   - subscription: debounced, filtered change fan-out.
//   - convert: cycle-safe model-to-tree conversion and tree queries.
//   - clock: injectable time source with a deterministic fake.
package model
