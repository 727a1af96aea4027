// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MeridianIDE/MeridianCore/services/model/convert"
	"github.com/MeridianIDE/MeridianCore/services/model/document"
	"github.com/MeridianIDE/MeridianCore/services/model/executor"
)

// ===== HANDLERS =====

// Handlers binds the ModelServer to the REST surface.
type Handlers struct {
	server *ModelServer
	logger *slog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(server *ModelServer, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{server: server, logger: logger}
}

// statusForCode maps executor error codes onto HTTP statuses.
func statusForCode(code executor.Code) int {
	switch code {
	case executor.CodeOperationNotFound, executor.CodeDocumentResolutionFailed:
		return http.StatusNotFound
	case executor.CodeAuthenticationRequired:
		return http.StatusUnauthorized
	case executor.CodeInsufficientTier:
		return http.StatusForbidden
	case executor.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Execute handles POST /v1/model/execute.
//
// Description:
//
//	Binds and validates the request, runs the operation, and maps the
//	outcome to a status: 200 for success and async acceptance, the
//	code-specific status otherwise.
func (h *Handlers) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	res := h.server.Execute(c.Request.Context(), req.toExecutorRequest())
	if !res.Success {
		c.JSON(statusForCode(res.Err.Code), executeResponse(res))
		return
	}
	c.JSON(http.StatusOK, executeResponse(res))
}

// GetJob handles GET /v1/model/jobs/:id.
func (h *Handlers) GetJob(c *gin.Context) {
	j, err := h.server.Job(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "JOB_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, j)
}

// ListJobs handles GET /v1/model/jobs.
func (h *Handlers) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.server.Jobs(), "stats": h.server.JobStats()})
}

// CancelJob handles DELETE /v1/model/jobs/:id. Cancelling a terminal job
// is a conflict, not an error in the job's own lifecycle.
func (h *Handlers) CancelJob(c *gin.Context) {
	id := c.Param("id")
	err := h.server.CancelJob(id)
	switch {
	case errors.Is(err, ErrJobNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "JOB_NOT_FOUND"})
	case err != nil:
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "JOB_TERMINAL"})
	default:
		j, _ := h.server.Job(id)
		c.JSON(http.StatusOK, j)
	}
}

// GetModel handles GET /v1/model?uri=...; optional maxDepth and
// includeIds query parameters tune conversion.
func (h *Handlers) GetModel(c *gin.Context) {
	uri := c.Query("uri")
	if uri == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "uri query parameter is required", Code: "INVALID_REQUEST"})
		return
	}
	opts := convert.Options{IncludeIDs: c.DefaultQuery("includeIds", "true") == "true"}
	if raw := c.Query("maxDepth"); raw != "" {
		depth, err := strconv.Atoi(raw)
		if err != nil || depth <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "maxDepth must be a positive integer", Code: "INVALID_REQUEST"})
			return
		}
		opts.MaxDepth = depth
	}
	res, err := h.server.GetFullModel(uri, opts)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "DOCUMENT_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"uri":          uri,
		"model":        res.Data,
		"hasCircular":  res.HasCircular,
		"circularRefs": res.CircularRefs,
	})
}

// QueryModel handles POST /v1/model/query.
func (h *Handlers) QueryModel(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	result, err := h.server.QueryModel(req.URI, Query{NodeID: req.NodeID, NodeType: req.NodeType, Path: req.Path})
	switch {
	case errors.Is(err, ErrInvalidQuery), errors.Is(err, convert.ErrInvalidPath):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_QUERY"})
	case errors.Is(err, document.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "DOCUMENT_NOT_FOUND"})
	case errors.Is(err, convert.ErrNodeNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NODE_NOT_FOUND"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "INTERNAL"})
	default:
		c.JSON(http.StatusOK, gin.H{"uri": req.URI, "result": result})
	}
}

// Operations handles GET /v1/model/operations?language=...&types=a,b.
// Without types it lists every operation for the language.
func (h *Handlers) Operations(c *gin.Context) {
	languageID := c.Query("language")
	if languageID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "language query parameter is required", Code: "INVALID_REQUEST"})
		return
	}
	var types []string
	if raw := c.Query("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}
	ops := h.server.OperationsForTypes(languageID, types)
	payloads := make([]OperationPayload, 0, len(ops))
	for _, op := range ops {
		payloads = append(payloads, operationPayload(op))
	}
	c.JSON(http.StatusOK, gin.H{"language": languageID, "operations": payloads})
}

// ListDocuments handles GET /v1/model/documents.
func (h *Handlers) ListDocuments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"documents": h.server.Store().URIs()})
}

// ListSubscriptions handles GET /v1/model/subscriptions.
func (h *Handlers) ListSubscriptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"count":         h.server.SubscriptionCount(),
		"subscriptions": h.server.ActiveSubscriptions(),
	})
}

// DeleteSubscription handles DELETE /v1/model/subscriptions/:id.
func (h *Handlers) DeleteSubscription(c *gin.Context) {
	id := c.Param("id")
	if err := h.server.Unsubscribe(id); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "SUBSCRIPTION_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptionId": id, "removed": true})
}

// Health handles GET /health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		Languages:     h.server.Registry().Languages(),
		Documents:     len(h.server.Store().URIs()),
		Subscriptions: h.server.SubscriptionCount(),
		Jobs:          h.server.JobStats(),
	})
}
