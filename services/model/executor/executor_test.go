// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeridianIDE/MeridianCore/services/model/ast"
	"github.com/MeridianIDE/MeridianCore/services/model/document"
	"github.com/MeridianIDE/MeridianCore/services/model/job"
	"github.com/MeridianIDE/MeridianCore/services/model/registry"
)

const testURI = "file:///ws/shop.mrd"

type fixture struct {
	exec  *Executor
	jobs  *job.Manager
	store *document.Store
}

// newFixture builds an executor over an in-memory store with one document
// and the given operations registered under language "meridian".
func newFixture(t *testing.T, cfg Config, decls []registry.Declaration, handlers map[string]registry.Handler) *fixture {
	t.Helper()

	store := document.NewStore(nil)
	store.Open(&document.Document{
		URI:        testURI,
		LanguageID: "meridian",
		Version:    1,
		Root:       ast.NewElement("Model", "shop"),
	})

	reg := registry.New(nil)
	_, err := reg.RegisterLanguage("meridian", decls, handlers)
	require.NoError(t, err)

	jobs := job.NewManager(job.Config{}, nil)
	t.Cleanup(jobs.Close)

	return &fixture{
		exec:  New(cfg, reg, jobs, store, nil),
		jobs:  jobs,
		store: store,
	}
}

func syncDecl(id string) registry.Declaration {
	return registry.Declaration{ID: id, TargetTypes: []string{registry.WildcardType}}
}

func TestExecute_SyncSuccess(t *testing.T) {
	invoked := false
	f := newFixture(t, Config{},
		[]registry.Declaration{syncDecl("model.validate")},
		map[string]registry.Handler{
			"model.validate": func(_ context.Context, opCtx *registry.OperationContext, _ registry.ProgressFunc) (any, error) {
				invoked = true
				assert.Equal(t, testURI, opCtx.URI)
				assert.Equal(t, "meridian", opCtx.LanguageID)
				return map[string]any{"valid": true}, nil
			},
		})

	res := f.exec.Execute(context.Background(), Request{
		LanguageID:  "meridian",
		OperationID: "model.validate",
		Document:    document.Ref{URI: testURI},
	})

	assert.True(t, res.Success)
	assert.True(t, invoked)
	assert.Equal(t, map[string]any{"valid": true}, res.Value)
	assert.NotEmpty(t, res.CorrelationID, "correlation id must be generated when absent")
	assert.Empty(t, res.JobID)
}

func TestExecute_CorrelationIDPreserved(t *testing.T) {
	f := newFixture(t, Config{},
		[]registry.Declaration{syncDecl("model.validate")},
		map[string]registry.Handler{
			"model.validate": func(context.Context, *registry.OperationContext, registry.ProgressFunc) (any, error) {
				return nil, nil
			},
		})

	res := f.exec.Execute(context.Background(), Request{
		LanguageID:    "meridian",
		OperationID:   "model.validate",
		Document:      document.Ref{URI: testURI},
		CorrelationID: "corr-42",
	})
	assert.Equal(t, "corr-42", res.CorrelationID)
}

func TestExecute_OperationNotFound(t *testing.T) {
	f := newFixture(t, Config{}, nil, nil)

	res := f.exec.Execute(context.Background(), Request{
		LanguageID:  "meridian",
		OperationID: "model.unknown",
		Document:    document.Ref{URI: testURI},
	})

	assert.False(t, res.Success)
	require.NotNil(t, res.Err)
	assert.Equal(t, CodeOperationNotFound, res.Err.Code)
	assert.ErrorIs(t, res.Err, ErrOperationNotFound)
	assert.Equal(t, job.Stats{}, f.jobs.Stats(), "lookup failure must not create a job")
}

func TestExecute_Licensing(t *testing.T) {
	handlerRan := false
	decl := registry.Declaration{
		ID:          "model.export",
		TargetTypes: []string{registry.WildcardType},
		Licensing:   registry.Licensing{RequiresAuth: true, MinTier: registry.TierPro},
	}
	f := newFixture(t, Config{},
		[]registry.Declaration{decl},
		map[string]registry.Handler{
			"model.export": func(context.Context, *registry.OperationContext, registry.ProgressFunc) (any, error) {
				handlerRan = true
				return "exported", nil
			},
		})

	request := func(user *registry.User) Result {
		return f.exec.Execute(context.Background(), Request{
			LanguageID:  "meridian",
			OperationID: "model.export",
			Document:    document.Ref{URI: testURI},
			User:        user,
		})
	}

	t.Run("no user", func(t *testing.T) {
		res := request(nil)
		assert.False(t, res.Success)
		assert.Equal(t, CodeAuthenticationRequired, res.Err.Code)
		assert.False(t, handlerRan, "handler must not run on licensing failure")
	})

	t.Run("free tier against pro requirement", func(t *testing.T) {
		res := request(&registry.User{ID: "u1", Tier: registry.TierFree})
		assert.False(t, res.Success)
		assert.Equal(t, CodeInsufficientTier, res.Err.Code)
		assert.False(t, handlerRan)
	})

	t.Run("exact tier", func(t *testing.T) {
		res := request(&registry.User{ID: "u1", Tier: registry.TierPro})
		assert.True(t, res.Success)
	})

	t.Run("enterprise tier", func(t *testing.T) {
		res := request(&registry.User{ID: "u1", Tier: registry.TierEnterprise})
		assert.True(t, res.Success)
	})
}

func TestExecute_DocumentResolutionFailed(t *testing.T) {
	f := newFixture(t, Config{},
		[]registry.Declaration{syncDecl("model.validate")},
		map[string]registry.Handler{
			"model.validate": func(context.Context, *registry.OperationContext, registry.ProgressFunc) (any, error) {
				return nil, nil
			},
		})

	res := f.exec.Execute(context.Background(), Request{
		LanguageID:  "meridian",
		OperationID: "model.validate",
		Document:    document.Ref{URI: "file:///missing.mrd"},
	})

	assert.False(t, res.Success)
	assert.Equal(t, CodeDocumentResolutionFailed, res.Err.Code)
	assert.ErrorIs(t, res.Err, document.ErrNotFound, "resolver cause must be preserved")
}

func TestExecute_HandlerError(t *testing.T) {
	f := newFixture(t, Config{},
		[]registry.Declaration{syncDecl("model.validate")},
		map[string]registry.Handler{
			"model.validate": func(context.Context, *registry.OperationContext, registry.ProgressFunc) (any, error) {
				return nil, errors.New("model has 3 errors")
			},
		})

	res := f.exec.Execute(context.Background(), Request{
		LanguageID:  "meridian",
		OperationID: "model.validate",
		Document:    document.Ref{URI: testURI},
	})

	assert.False(t, res.Success)
	assert.Equal(t, CodeHandlerException, res.Err.Code)
	assert.Contains(t, res.Err.Message, "model has 3 errors")
}

func TestExecute_HandlerPanicIsCaught(t *testing.T) {
	f := newFixture(t, Config{},
		[]registry.Declaration{syncDecl("model.validate")},
		map[string]registry.Handler{
			"model.validate": func(context.Context, *registry.OperationContext, registry.ProgressFunc) (any, error) {
				panic("unexpected nil")
			},
		})

	res := f.exec.Execute(context.Background(), Request{
		LanguageID:  "meridian",
		OperationID: "model.validate",
		Document:    document.Ref{URI: testURI},
	})

	assert.False(t, res.Success)
	assert.Equal(t, CodeHandlerException, res.Err.Code)
	assert.Contains(t, res.Err.Message, "handler panic")
}

func TestExecute_Timeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	f := newFixture(t, Config{SyncTimeout: 50 * time.Millisecond},
		[]registry.Declaration{syncDecl("model.slow")},
		map[string]registry.Handler{
			"model.slow": func(context.Context, *registry.OperationContext, registry.ProgressFunc) (any, error) {
				<-block // never settles on its own
				return nil, nil
			},
		})

	started := time.Now()
	res := f.exec.Execute(context.Background(), Request{
		LanguageID:  "meridian",
		OperationID: "model.slow",
		Document:    document.Ref{URI: testURI},
	})
	elapsed := time.Since(started)

	assert.False(t, res.Success)
	require.NotNil(t, res.Err)
	assert.Equal(t, CodeTimeout, res.Err.Code)
	assert.Contains(t, res.Err.Message, "timed out")
	assert.Less(t, elapsed, 500*time.Millisecond, "timeout must fire near the configured window")
}

func TestExecute_AsyncReturnsJobImmediately(t *testing.T) {
	release := make(chan struct{})
	decl := registry.Declaration{
		ID:          "model.export",
		TargetTypes: []string{registry.WildcardType},
		Execution:   registry.Execution{Async: true},
	}
	f := newFixture(t, Config{},
		[]registry.Declaration{decl},
		map[string]registry.Handler{
			"model.export": func(_ context.Context, _ *registry.OperationContext, progress registry.ProgressFunc) (any, error) {
				progress(50, "halfway")
				<-release
				return "artifact", nil
			},
		})

	res := f.exec.Execute(context.Background(), Request{
		LanguageID:  "meridian",
		OperationID: "model.export",
		Document:    document.Ref{URI: testURI},
	})

	assert.True(t, res.Success, "async dispatch succeeds the moment the job exists")
	require.NotEmpty(t, res.JobID)
	assert.Nil(t, res.Value)

	// Progress flows into the job manager while the handler runs.
	require.Eventually(t, func() bool {
		j, ok := f.jobs.Get(res.JobID)
		return ok && j.Status == job.StatusRunning && j.Progress == 50
	}, time.Second, 5*time.Millisecond)

	close(release)

	require.Eventually(t, func() bool {
		j, _ := f.jobs.Get(res.JobID)
		return j.Status == job.StatusCompleted
	}, time.Second, 5*time.Millisecond)

	j, _ := f.jobs.Get(res.JobID)
	assert.Equal(t, 100.0, j.Progress)
	assert.Equal(t, "artifact", j.Result)
	assert.Equal(t, "halfway", j.Message)
}

func TestExecute_AsyncHandlerFailureFailsJob(t *testing.T) {
	decl := registry.Declaration{
		ID:        "model.export",
		Execution: registry.Execution{Async: true},
	}
	f := newFixture(t, Config{},
		[]registry.Declaration{decl},
		map[string]registry.Handler{
			"model.export": func(context.Context, *registry.OperationContext, registry.ProgressFunc) (any, error) {
				return nil, errors.New("disk full")
			},
		})

	res := f.exec.Execute(context.Background(), Request{
		LanguageID:  "meridian",
		OperationID: "model.export",
		Document:    document.Ref{URI: testURI},
	})

	assert.True(t, res.Success, "the initiating call reports job creation, not handler outcome")

	require.Eventually(t, func() bool {
		j, _ := f.jobs.Get(res.JobID)
		return j.Status == job.StatusFailed
	}, time.Second, 5*time.Millisecond)

	j, _ := f.jobs.Get(res.JobID)
	assert.Equal(t, "disk full", j.Error)
}

func TestExecute_AsyncHandlerPanicFailsJob(t *testing.T) {
	decl := registry.Declaration{
		ID:        "model.export",
		Execution: registry.Execution{Async: true},
	}
	f := newFixture(t, Config{},
		[]registry.Declaration{decl},
		map[string]registry.Handler{
			"model.export": func(context.Context, *registry.OperationContext, registry.ProgressFunc) (any, error) {
				panic("boom")
			},
		})

	res := f.exec.Execute(context.Background(), Request{
		LanguageID:  "meridian",
		OperationID: "model.export",
		Document:    document.Ref{URI: testURI},
	})
	require.True(t, res.Success)

	require.Eventually(t, func() bool {
		j, _ := f.jobs.Get(res.JobID)
		return j.Status == job.StatusFailed
	}, time.Second, 5*time.Millisecond)

	j, _ := f.jobs.Get(res.JobID)
	assert.Contains(t, j.Error, "handler panic")
}

func TestCheckLicensing(t *testing.T) {
	tests := []struct {
		name     string
		lic      registry.Licensing
		user     *registry.User
		wantCode Code
	}{
		{"unlicensed operation, no user", registry.Licensing{}, nil, ""},
		{"auth only, user present", registry.Licensing{RequiresAuth: true}, &registry.User{Tier: registry.TierFree}, ""},
		{"auth only, no user", registry.Licensing{RequiresAuth: true}, nil, CodeAuthenticationRequired},
		{"min tier implies auth", registry.Licensing{MinTier: registry.TierPro}, nil, CodeAuthenticationRequired},
		{"free below pro", registry.Licensing{MinTier: registry.TierPro}, &registry.User{Tier: registry.TierFree}, CodeInsufficientTier},
		{"pro meets pro", registry.Licensing{MinTier: registry.TierPro}, &registry.User{Tier: registry.TierPro}, ""},
		{"enterprise above pro", registry.Licensing{MinTier: registry.TierPro}, &registry.User{Tier: registry.TierEnterprise}, ""},
		{"unknown tier fails", registry.Licensing{MinTier: registry.TierFree}, &registry.User{Tier: "trial"}, CodeInsufficientTier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkLicensing(tt.lic, tt.user)
			if tt.wantCode == "" {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, tt.wantCode, err.Code)
		})
	}
}
