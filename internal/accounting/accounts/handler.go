package accounts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	actshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}/reconciliation", h.Reconcile)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), shared.TenantFromContext(r.Context()))
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, shared.ErrorBody{Kind: string(actshared.KindInternal), Message: "internal error"})
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"accounts": list})
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrorBody{Kind: "bad_request", Message: "invalid account id"})
		return
	}
	rec, err := h.service.Reconcile(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		if errors.Is(err, actshared.ErrAccountNotFound) {
			shared.RespondError(w, http.StatusNotFound, shared.ErrorBody{Kind: string(actshared.KindNotFound), Message: err.Error()})
			return
		}
		h.logger.Error("reconcile account", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, shared.ErrorBody{Kind: string(actshared.KindInternal), Message: "internal error"})
		return
	}
	shared.RespondJSON(w, http.StatusOK, rec)
}
