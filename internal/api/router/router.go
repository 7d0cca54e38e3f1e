package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/khakanhyder/schedule-pro-web-app-sub005/internal/http/handlers"
	httpmiddleware "github.com/khakanhyder/schedule-pro-web-app-sub005/internal/http/middleware"
	"github.com/khakanhyder/schedule-pro-web-app-sub005/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Wizard             *handlers.WizardHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/wizard/sessions", func(r chi.Router) {
		r.Post("/", cfg.Wizard.CreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", cfg.Wizard.GetSession)
			r.Patch("/data", cfg.Wizard.UpdateData)
			r.Post("/next", cfg.Wizard.Next)
			r.Post("/previous", cfg.Wizard.Previous)
			r.Post("/jump", cfg.Wizard.Jump)
			r.Post("/payment-intent", cfg.Wizard.CreateIntent)
			r.Post("/payment-outcome", cfg.Wizard.PaymentOutcome)
			r.Post("/payment-retry", cfg.Wizard.PaymentRetry)
			r.Post("/finalize", cfg.Wizard.Finalize)
		})
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
