package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/refund-management/api"
	"github.com/frahmantamala/refund-management/internal/refund"
	"github.com/frahmantamala/refund-management/internal/transport/middleware"
	"github.com/frahmantamala/refund-management/internal/transport/swagger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

type RouterConfig struct {
	DB             *sql.DB
	RefundHandler  *refund.Handler
	JWTSecret      []byte
	AllowedOrigins string
	Logger         *slog.Logger
}

func RegisterAllRoutes(router *chi.Mux, cfg RouterConfig) {
	healthHandler := NewHealthHandler(map[string]Checker{"database": cfg.DB.PingContext})

	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(cfg.Logger))

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.OpenAPI)
	})
	router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if cfg.RefundHandler == nil {
			return
		}

		r.Group(func(pr chi.Router) {
			pr.Use(middleware.Actor(cfg.JWTSecret, cfg.Logger))
			pr.Use(middleware.Logging(cfg.Logger))

			h := cfg.RefundHandler
			pr.Route("/refunds", func(rr chi.Router) {
				rr.Post("/", h.CreateRefund)
				rr.Get("/", h.ListRefunds)
				rr.Get("/stats", h.GetStats)
				rr.Get("/range", h.GetRange)
				rr.Get("/{id}", h.GetRefund)
				rr.Patch("/{id}/approve", h.ApproveRefund)
				rr.Patch("/{id}/reject", h.RejectRefund)
				rr.Patch("/{id}/cancel", h.CancelRefund)
				rr.Patch("/{id}/process", h.ProcessRefund)
				rr.Patch("/{id}/complete", h.CompleteRefund)
				rr.Post("/{id}/reconcile", h.ReconcileRefund)
			})
		})
	})
}
