package journals

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

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

type lineRequest struct {
	AccountID   int64           `json:"account_id" validate:"required"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit_amount"`
	Credit      decimal.Decimal `json:"credit_amount"`
}

type entryRequest struct {
	EntryDate   string        `json:"entry_date" validate:"required,datetime=2006-01-02"`
	Description string        `json:"description" validate:"required"`
	Currency    string        `json:"currency" validate:"required,len=3,alpha"`
	SourceType  string        `json:"source_type"`
	SourceID    *uuid.UUID    `json:"source_id"`
	Lines       []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

type voidRequest struct {
	Reason string `json:"reason"`
}

func (r entryRequest) toInput() (CreateEntryInput, error) {
	date, err := time.Parse("2006-01-02", r.EntryDate)
	if err != nil {
		return CreateEntryInput{}, err
	}
	lines := make([]LineInput, 0, len(r.Lines))
	for _, line := range r.Lines {
		lines = append(lines, LineInput{
			AccountID:   line.AccountID,
			Description: line.Description,
			Debit:       line.Debit,
			Credit:      line.Credit,
		})
	}
	return CreateEntryInput{
		EntryDate:   date,
		Description: r.Description,
		Currency:    r.Currency,
		SourceType:  r.SourceType,
		SourceID:    r.SourceID,
		Lines:       lines,
	}, nil
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
	var vErr *actshared.ValidationError
	if errors.As(err, &vErr) {
		body.Errors = vErr.Errors
		body.Warnings = vErr.Warnings
	}
	switch kind {
	case actshared.KindNotFound:
		shared.RespondError(w, http.StatusNotFound, body)
	case actshared.KindInvalidState, actshared.KindConflict, actshared.KindPeriodClosed:
		shared.RespondError(w, http.StatusConflict, body)
	case actshared.KindValidation:
		shared.RespondError(w, http.StatusUnprocessableEntity, body)
	default:
		h.logger.Error("journal operation failed", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, shared.ErrorBody{Kind: string(actshared.KindInternal), Message: "internal error"})
	}
}

func entryID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := shared.TenantFromContext(r.Context())
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	total, err := h.service.Count(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	pagination := shared.NewPagination(page, perPage, total)
	entries, err := h.service.List(r.Context(), tenantID, pagination.PerPage, pagination.Offset())
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"entries": entries, "pagination": pagination})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrorBody{Kind: "bad_request", Message: "invalid entry id"})
		return
	}
	entry, err := h.service.Get(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, entry)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrorBody{Kind: "bad_request", Message: "invalid entry date"})
		return
	}
	entry, err := h.service.CreateDraft(r.Context(), shared.TenantFromContext(r.Context()), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, entry)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrorBody{Kind: "bad_request", Message: "invalid entry id"})
		return
	}
	var req entryRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrorBody{Kind: "bad_request", Message: "invalid entry date"})
		return
	}
	entry, err := h.service.UpdateDraft(r.Context(), shared.TenantFromContext(r.Context()), UpdateEntryInput{
		EntryID:     id,
		EntryDate:   in.EntryDate,
		Description: in.Description,
		Currency:    in.Currency,
		Lines:       in.Lines,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, entry)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrorBody{Kind: "bad_request", Message: "invalid entry id"})
		return
	}
	if err := h.service.DeleteDraft(r.Context(), shared.TenantFromContext(r.Context()), id); err != nil {
		h.writeError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrorBody{Kind: "bad_request", Message: "invalid entry id"})
		return
	}
	entry, err := h.service.Post(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, entry)
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.ErrorBody{Kind: "bad_request", Message: "invalid entry id"})
		return
	}
	var req voidRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.RespondError(w, http.StatusBadRequest, shared.ErrorBody{Kind: "bad_request", Message: "malformed JSON body"})
			return
		}
	}
	entry, err := h.service.Void(r.Context(), shared.TenantFromContext(r.Context()), VoidInput{EntryID: id, Reason: req.Reason})
	if err != nil {
		h.writeError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, entry)
}
