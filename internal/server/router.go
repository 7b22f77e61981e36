package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumenkb/lumen/internal/api"
	"github.com/lumenkb/lumen/internal/api/handlers"
	"github.com/lumenkb/lumen/internal/api/middleware"
)

type RouterConfig struct {
	APIToken           string
	CORSAllowedOrigins []string

	ChatHandler       *handlers.ChatHandler
	SessionHandler    *handlers.SessionHandler
	SyncHandler       *handlers.SyncHandler
	DocumentsHandler  *handlers.DocumentsHandler
	AttachmentHandler *handlers.AttachmentHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 12 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.TokenAuth(cfg.APIToken))

		r.Post("/chat", cfg.ChatHandler.Chat)
		r.Get("/sessions/{id}/turns", cfg.SessionHandler.ListTurns)
		r.Post("/attachments", cfg.AttachmentHandler.Upload)

		r.Post("/sync", cfg.SyncHandler.Trigger)
		r.Get("/sync/latest", cfg.SyncHandler.Latest)

		r.Get("/documents", cfg.DocumentsHandler.List)
	})

	return r
}
