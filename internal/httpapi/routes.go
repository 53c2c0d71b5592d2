package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/heist-sync/internal/engine"
	"github.com/DoyleJ11/heist-sync/internal/hub"
	"github.com/DoyleJ11/heist-sync/internal/ws"
)

type Options struct {
	Logger         *zap.Logger
	Rules          engine.Rules
	OriginPatterns []string
}

func SetupRoutes(h *hub.Hub, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := chi.NewRouter()

	// Public routes
	r.Post("/tables", CreateTable(h, opts.Rules, opts.Logger))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, ws.Options{
		Logger:         opts.Logger,
		Rules:          opts.Rules,
		OriginPatterns: opts.OriginPatterns,
	}))
	return r
}
