// Package api exposes the flow persistence wire contract and the preview-run
// endpoints over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/botflowhq/botflow/internal/engine"
	"github.com/botflowhq/botflow/internal/registry"
	"github.com/botflowhq/botflow/internal/store"
	"github.com/botflowhq/botflow/internal/streaming"
	"github.com/botflowhq/botflow/internal/validation"
	"github.com/botflowhq/botflow/pkg/schema"
)

// TranscriptReader is the slice of the transcript log the API reads from.
type TranscriptReader interface {
	GetEvents(ctx context.Context, runID string, since int64) ([]*store.RunEvent, error)
	Replay(ctx context.Context, runID string) ([]schema.Message, error)
}

// Deps holds the collaborators the API server needs.
type Deps struct {
	Store      store.Store
	Transcript TranscriptReader
	Engine     *engine.Engine
	Hub        streaming.EventHub
	Registry   *registry.Registry
	Validator  *validation.Validator
	Logger     *slog.Logger
}

// Server serves the flow builder HTTP API.
type Server struct {
	deps Deps
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{deps: deps}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/blocks", s.handleListBlocks)

		r.Route("/flows", func(r chi.Router) {
			r.Get("/", s.handleListFlows)
			r.Get("/{id}", s.handleGetFlow)
			r.Put("/{id}", s.handleSaveFlow)
			r.Delete("/{id}", s.handleDeleteFlow)
			r.Get("/{id}/diagram", s.handleFlowDiagram)
			r.Post("/{id}/preview", s.handleStartPreview)
		})

		r.Route("/preview/{runID}", func(r chi.Router) {
			r.Get("/", s.handlePreviewStatus)
			r.Post("/input", s.handleSubmitInput)
			r.Post("/restart", s.handleRestartPreview)
			r.Delete("/", s.handleCancelPreview)
			r.Get("/events", s.handlePreviewEvents)
		})
	})

	return r
}
