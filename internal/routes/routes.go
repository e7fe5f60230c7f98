package routes

import (
	"log/slog"

	"github.com/festal-inc/haishin/internal/handler"
	"github.com/festal-inc/haishin/internal/middleware"
	"github.com/festal-inc/haishin/internal/router"
)

// Deps contains everything route registration needs.
type Deps struct {
	Auth    *handler.AuthHandler
	Batch   *handler.BatchHandler
	Metrics *middleware.Metrics
	Logger  *slog.Logger

	// CORSOrigins lists origins allowed to call the API. Empty disables CORS.
	CORSOrigins []string

	// MaxUploadBytes caps the upload request body.
	MaxUploadBytes int64
}

// New builds the router with the full middleware chain and all routes.
func New(deps Deps) *router.Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	chain := []router.Middleware{
		router.Recovery(logger),
		middleware.RequestID,
		middleware.WithRequestLogger(logger),
	}
	if len(deps.CORSOrigins) > 0 {
		chain = append(chain, router.CORS(deps.CORSOrigins))
	}
	if deps.Metrics != nil {
		chain = append(chain, deps.Metrics.Middleware)
	}

	r := router.New(chain...)

	r.Post("/api/auth", deps.Auth.Verify)
	r.Post("/api/upload", deps.Batch.Upload, middleware.MaxBodySize(deps.MaxUploadBytes))
	r.Post("/api/preview", deps.Batch.Preview)
	r.Post("/api/send", deps.Batch.Send)
	r.Get("/api/jobs/{id}", deps.Batch.Progress)

	r.Get("/health", handler.Health)
	if deps.Metrics != nil {
		r.Handle("GET", "/metrics", deps.Metrics.Handler())
	}

	return r
}
