// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MeridianIDE/MeridianCore/services/model/document"
	"github.com/MeridianIDE/MeridianCore/services/model/executor"
	"github.com/MeridianIDE/MeridianCore/services/model/job"
	"github.com/MeridianIDE/MeridianCore/services/model/registry"
	"github.com/MeridianIDE/MeridianCore/services/model/subscription"
)

// Shared validator instance for request DTOs.
var validate = validator.New()

// ===== WIRE TYPES =====

// ErrorResponse is the uniform error body for the REST surface.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// UserPayload identifies the requesting user for licensing checks.
type UserPayload struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name,omitempty"`
	Tier string `json:"tier" validate:"required,oneof=free pro enterprise"`
}

// ExecuteRequest asks for one document operation run.
type ExecuteRequest struct {
	LanguageID    string         `json:"languageId" validate:"required"`
	OperationID   string         `json:"operationId" validate:"required"`
	URI           string         `json:"uri" validate:"required,uri"`
	SelectedIDs   []string       `json:"selectedIds,omitempty"`
	Input         map[string]any `json:"input,omitempty"`
	User          *UserPayload   `json:"user,omitempty"`
	CorrelationID string         `json:"correlationId,omitempty"`
}

// Validate checks field constraints beyond JSON shape.
func (r *ExecuteRequest) Validate() error {
	return validate.Struct(r)
}

// toExecutorRequest maps the wire shape onto the executor contract.
func (r *ExecuteRequest) toExecutorRequest() executor.Request {
	req := executor.Request{
		LanguageID:    r.LanguageID,
		OperationID:   r.OperationID,
		Document:      document.Ref{URI: r.URI, LanguageID: r.LanguageID},
		SelectedIDs:   r.SelectedIDs,
		Input:         r.Input,
		CorrelationID: r.CorrelationID,
	}
	if r.User != nil {
		req.User = &registry.User{
			ID:   r.User.ID,
			Name: r.User.Name,
			Tier: registry.Tier(r.User.Tier),
		}
	}
	return req
}

// ExecuteResponse reports an operation outcome. For async operations only
// JobID is set and the caller polls the jobs surface.
type ExecuteResponse struct {
	Success       bool           `json:"success"`
	Value         any            `json:"value,omitempty"`
	JobID         string         `json:"jobId,omitempty"`
	Error         *ErrorResponse `json:"error,omitempty"`
	CorrelationID string         `json:"correlationId"`
	DurationMs    int64          `json:"durationMs"`
}

// executeResponse maps an executor result to the wire shape.
func executeResponse(res executor.Result) ExecuteResponse {
	out := ExecuteResponse{
		Success:       res.Success,
		Value:         res.Value,
		JobID:         res.JobID,
		CorrelationID: res.CorrelationID,
		DurationMs:    res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		out.Error = &ErrorResponse{Error: res.Err.Message, Code: string(res.Err.Code)}
	}
	return out
}

// QueryRequest selects one node from a converted model. Exactly one
// selector must be set; the server enforces this.
type QueryRequest struct {
	URI      string `json:"uri" validate:"required,uri"`
	NodeID   string `json:"nodeId,omitempty"`
	NodeType string `json:"nodeType,omitempty"`
	Path     string `json:"path,omitempty"`
}

// Validate checks field constraints beyond JSON shape.
func (r *QueryRequest) Validate() error {
	return validate.Struct(r)
}

// OperationPayload is the discovery view of a registered operation.
type OperationPayload struct {
	ID          string   `json:"id"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	TargetTypes []string `json:"targetTypes,omitempty"`
	Async       bool     `json:"async"`
	MinTier     string   `json:"minTier,omitempty"`
}

func operationPayload(op *registry.RegisteredOperation) OperationPayload {
	return OperationPayload{
		ID:          op.Declaration.ID,
		Category:    op.Declaration.Category,
		Description: op.Declaration.Description,
		TargetTypes: op.Declaration.TargetTypes,
		Async:       op.Declaration.Execution.Async,
		MinTier:     string(op.Declaration.Licensing.MinTier),
	}
}

// SubscribePayload is the WebSocket subscribe frame body.
type SubscribePayload struct {
	URI            string   `json:"uri" validate:"required"`
	DebounceMs     *int     `json:"debounceMs,omitempty"`
	NodeTypes      []string `json:"nodeTypes,omitempty"`
	IncludeContent bool     `json:"includeContent,omitempty"`
	Immediate      bool     `json:"immediate,omitempty"`
}

// toOptions maps the wire shape onto subscription options for clientID.
func (p *SubscribePayload) toOptions(clientID string) subscription.Options {
	opts := subscription.Options{
		NodeTypes:      p.NodeTypes,
		IncludeContent: p.IncludeContent,
		Immediate:      p.Immediate,
		ClientID:       clientID,
	}
	if p.DebounceMs != nil {
		d := time.Duration(*p.DebounceMs) * time.Millisecond
		opts.Debounce = &d
	}
	return opts
}

// HealthResponse reports process liveness plus coarse runtime counts.
type HealthResponse struct {
	Status        string    `json:"status"`
	Languages     []string  `json:"languages"`
	Documents     int       `json:"documents"`
	Subscriptions int       `json:"subscriptions"`
	Jobs          job.Stats `json:"jobs"`
}
