// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package httpapi is the HTTP ingress adapter: one thin POST handler per
// operation, each acquiring its operation's concurrency gate before
// invoking the shared pipeline, plus a /health/info endpoint. Routing
// uses chi, the same mux the teacher wires its own rest.Api onto
// (internal/humus/rest/mux), without the OpenAPI-schema machinery that
// API exposes — this gateway's wire contract is the spec's fixed
// request/response shapes, not a generated schema.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yeosa/album-ai-gateway/health"
	"github.com/yeosa/album-ai-gateway/internal/concurrency"
	"github.com/yeosa/album-ai-gateway/internal/model"
	"github.com/yeosa/album-ai-gateway/internal/pipeline"
)

// New builds the gateway's HTTP router. readiness reports overall process
// health at /health/info; the endpoint itself always answers 200, with
// the monitor's verdict carried in the response body.
func New(appCtx *pipeline.Context, readiness health.Monitor) http.Handler {
	r := chi.NewRouter()

	r.Get("/health/info", healthHandler(readiness))

	r.Post("/api/albums/embedding", gated(appCtx.Governor.Embedding, operation(appCtx, func(ctx context.Context, appCtx *pipeline.Context, req model.EmbeddingRequest) model.Response {
		return pipeline.RunEmbedding(ctx, appCtx, req)
	})))
	r.Post("/api/albums/categories", gated(appCtx.Governor.Category, operation(appCtx, func(ctx context.Context, appCtx *pipeline.Context, req model.CategoryRequest) model.Response {
		return pipeline.RunCategory(ctx, appCtx, req, nil)
	})))
	r.Post("/api/albums/duplicates", gated(appCtx.Governor.Duplicate, operation(appCtx, func(ctx context.Context, appCtx *pipeline.Context, req model.DuplicateRequest) model.Response {
		return pipeline.RunDuplicate(ctx, appCtx, req)
	})))
	r.Post("/api/albums/quality", gated(appCtx.Governor.Quality, operation(appCtx, func(ctx context.Context, appCtx *pipeline.Context, req model.QualityRequest) model.Response {
		return pipeline.RunQuality(ctx, appCtx, req)
	})))
	r.Post("/api/albums/score", gated(appCtx.Governor.Score, operation(appCtx, func(ctx context.Context, appCtx *pipeline.Context, req model.ScoreRequest) model.Response {
		return pipeline.RunScore(ctx, appCtx, req)
	})))
	r.Post("/api/albums/people", gated(appCtx.Governor.People, operation(appCtx, func(ctx context.Context, appCtx *pipeline.Context, req model.PeopleRequest) model.Response {
		return pipeline.RunPeople(ctx, appCtx, req)
	})))

	return r
}

// operation decodes the request body into T, invokes run, and writes the
// resulting Response with its StatusCode as the HTTP status. A body that
// fails to decode is treated as an empty request, which every pipeline's
// own field validation turns into a 400.
func operation[T any](appCtx *pipeline.Context, run func(ctx context.Context, appCtx *pipeline.Context, req T) model.Response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req T
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			appCtx.Log.WarnContext(r.Context(), "httpapi: failed to decode request body", "error", err)
		}

		resp := run(r.Context(), appCtx, req)
		writeResponse(w, r, resp)
	}
}

// gated wraps a handler so it only runs while holding one of g's slots,
// answering 503 if the request context is cancelled while waiting.
func gated(g *concurrency.Gate, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := g.Acquire(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		defer g.Release()
		next(w, r)
	}
}

func writeResponse(w http.ResponseWriter, r *http.Request, resp model.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(int(resp.StatusCode))
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Default().ErrorContext(r.Context(), "httpapi: failed to encode response", "error", err)
	}
}

type healthInfo struct {
	Healthy bool `json:"healthy"`
}

// healthHandler always answers 200; the body carries the monitor's
// verdict rather than the status code.
func healthHandler(m health.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy, err := m.Healthy(r.Context())
		if err != nil {
			healthy = false
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(healthInfo{Healthy: healthy})
	}
}
