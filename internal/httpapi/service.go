// Package httpapi exposes the gateway over HTTP: POST /api/chat,
// GET /api/models, plus optional usage and request-log endpoints. Handlers
// are thin; all chat semantics live in the gateway.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"unichat/internal/gateway"
	"unichat/internal/storage"
	"unichat/internal/usage"
)

// Chatter is what the chat handler needs from the gateway.
type Chatter interface {
	Chat(ctx context.Context, req gateway.Request) gateway.Response
}

// Catalog is what the models handler needs from the registry.
type Catalog interface {
	Catalogs() map[string][]string
}

type Service struct {
	chatter Chatter
	catalog Catalog
	store   *storage.Store
	usage   *usage.Tracker
	logger  zerolog.Logger
}

type Config struct {
	Chatter Chatter
	Catalog Catalog
	Logger  zerolog.Logger

	// Store and Usage are optional; their endpoints are only registered
	// when present.
	Store *storage.Store
	Usage *usage.Tracker
}

func NewService(cfg Config) *Service {
	return &Service{
		chatter: cfg.Chatter,
		catalog: cfg.Catalog,
		store:   cfg.Store,
		usage:   cfg.Usage,
		logger:  cfg.Logger,
	}
}

func (s *Service) Register(mux *http.ServeMux) {
	mux.Handle("/api/chat", s.withCommon(http.MethodPost, s.handleChat))
	mux.Handle("/api/models", s.withCommon(http.MethodGet, s.handleModels))
	if s.usage != nil && s.usage.Enabled() {
		mux.Handle("/api/usage", s.withCommon(http.MethodGet, s.handleUsage))
	}
	if s.store != nil {
		mux.Handle("/api/requests", s.withCommon(http.MethodGet, s.handleRequests))
	}
}

// withCommon applies CORS (wildcard, the UI is a static page served from
// anywhere), answers preflight, enforces the method and logs the call.
func (s *Service) withCommon(method string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != method {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		start := time.Now()
		next(w, r)
		s.logger.Debug().
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Dur("latency", time.Since(start)).
			Msg("http request")
	})
}
