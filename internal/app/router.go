package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/fiscal"
	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	JournalsHandler *journals.Handler
	FiscalHandler   *fiscal.Handler
	AccountsHandler *accounts.Handler
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		shared.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: params.Logger, Config: params.Config}) {
			r.Use(mw)
		}
		r.Route("/api/accounting", func(r chi.Router) {
			r.Route("/journal-entries", params.JournalsHandler.MountRoutes)
			r.Route("/fiscal", params.FiscalHandler.MountRoutes)
			r.Route("/accounts", params.AccountsHandler.MountRoutes)
		})
	})

	return r
}
