package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"consentdesk/internal/agreement"
	"consentdesk/internal/platform/middleware"
	"consentdesk/internal/transport/http/shared"
	"consentdesk/pkg/domain"
	dErrors "consentdesk/pkg/domain-errors"
)

// AgreementService defines the agreement operations the transport needs.
type AgreementService interface {
	Create(ctx context.Context, draft agreement.Draft) (agreement.Agreement, error)
	Update(ctx context.Context, id domain.AgreementID, patch agreement.Patch) (agreement.Agreement, error)
	Get(ctx context.Context, id domain.AgreementID) (agreement.Agreement, error)
	List(ctx context.Context, filter string) ([]agreement.Agreement, error)
	Archive(ctx context.Context, id domain.AgreementID) (agreement.Agreement, error)
}

// AgreementHandler handles agreement CRUD endpoints. All routes require a
// valid bearer token.
type AgreementHandler struct {
	agreements AgreementService
	tokens     middleware.JWTValidator
	logger     *slog.Logger
}

func NewAgreementHandler(agreements AgreementService, tokens middleware.JWTValidator, logger *slog.Logger) *AgreementHandler {
	return &AgreementHandler{agreements: agreements, tokens: tokens, logger: logger}
}

// Register registers the agreement routes with the chi router.
func (h *AgreementHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.tokens, h.logger))
		r.Post("/agreements", h.handleCreate)
		r.Get("/agreements", h.handleList)
		r.Get("/agreements/{agreementID}", h.handleGet)
		r.Patch("/agreements/{agreementID}", h.handleUpdate)
		r.Post("/agreements/{agreementID}/archive", h.handleArchive)
	})
}

func (h *AgreementHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var draft agreement.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	created, err := h.agreements.Create(ctx, draft)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeValidation) {
			h.logger.ErrorContext(ctx, "failed to create agreement",
				"error", err.Error(),
				"request_id", middleware.GetRequestID(ctx),
			)
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, created)
}

func (h *AgreementHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := h.agreements.List(ctx, r.URL.Query().Get("filter"))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list agreements",
			"error", err.Error(),
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"agreements": list})
}

func (h *AgreementHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseAgreementID(chi.URLParam(r, "agreementID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	a, err := h.agreements.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, a)
}

func (h *AgreementHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseAgreementID(chi.URLParam(r, "agreementID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var patch agreement.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	updated, err := h.agreements.Update(ctx, id, patch)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to update agreement",
				"agreement_id", id.String(),
				"error", err.Error(),
				"request_id", middleware.GetRequestID(ctx),
			)
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *AgreementHandler) handleArchive(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseAgreementID(chi.URLParam(r, "agreementID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	archived, err := h.agreements.Archive(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, archived)
}
