package fiscal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	actshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/periods", h.ListPeriods)
	r.Post("/periods", h.CreatePeriod)
	r.Get("/periods/{id}", h.GetPeriod)
	r.Post("/periods/{id}/close", h.ClosePeriod)
	r.Post("/periods/{id}/reopen", h.ReopenPeriod)
	r.Post("/years", h.CreateYear)
	r.Get("/years/{id}", h.GetYear)
	r.Post("/years/{id}/close", h.CloseYear)
}

type periodRequest struct {
	FiscalYearID int64  `json:"fiscal_year_id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	StartDate    string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type yearRequest struct {
	Name      string `json:"name" validate:"required"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrorBody{Kind: "bad_request", Message: "malformed JSON body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		body := shared.ErrorBody{Kind: string(actshared.KindValidation), Message: "request validation failed"}
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				body.Errors = append(body.Errors, fe.Namespace()+": failed "+fe.Tag())
			}
		}
		shared.RespondError(w, http.StatusUnprocessableEntity, body)
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := actshared.KindOf(err)
	body := shared.ErrorBody{Kind: string(kind), Message: err.Error()}
	switch kind {
	case actshared.KindNotFound:
		shared.RespondError(w, http.StatusNotFound, body)
	case actshared.KindInvalidState, actshared.KindConflict, actshared.KindPeriodClosed:
		shared.RespondError(w, http.StatusConflict, body)
	case actshared.KindValidation:
		shared.RespondError(w, http.StatusUnprocessableEntity, body)
	default:
		h.logger.Error("fiscal operation failed", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, shared.ErrorBody{Kind: string(actshared.KindInternal), Message: "internal error"})
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.service.ListPeriods(r.Context(), shared.TenantFromContext(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"periods": periods})
}

func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, _ := time.Parse("2006-01-02", req.StartDate)
	end, _ := time.Parse("2006-01-02", req.EndDate)
	period, err := h.service.CreatePeriod(r.Context(), shared.TenantFromContext(r.Context()), CreatePeriodInput{
		FiscalYearID: req.FiscalYearID,
		Name:         req.Name,
		StartDate:    start,
		EndDate:      end,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, period)
}

func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrorBody{Kind: "bad_request", Message: "invalid period id"})
		return
	}
	period, err := h.service.GetPeriod(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, period)
}

func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrorBody{Kind: "bad_request", Message: "invalid period id"})
		return
	}
	period, err := h.service.ClosePeriod(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, period)
}

func (h *Handler) ReopenPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrorBody{Kind: "bad_request", Message: "invalid period id"})
		return
	}
	period, err := h.service.ReopenPeriod(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, period)
}

func (h *Handler) CreateYear(w http.ResponseWriter, r *http.Request) {
	var req yearRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, _ := time.Parse("2006-01-02", req.StartDate)
	end, _ := time.Parse("2006-01-02", req.EndDate)
	year, err := h.service.CreateYear(r.Context(), shared.TenantFromContext(r.Context()), CreateYearInput{
		Name:      req.Name,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, year)
}

func (h *Handler) GetYear(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrorBody{Kind: "bad_request", Message: "invalid year id"})
		return
	}
	year, err := h.service.GetYear(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, year)
}

func (h *Handler) CloseYear(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrorBody{Kind: "bad_request", Message: "invalid year id"})
		return
	}
	result, err := h.service.CloseYear(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, result)
}
