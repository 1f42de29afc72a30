package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"consentdesk/internal/agreement"
	"consentdesk/internal/consent"
	"consentdesk/internal/platform/middleware"
	"consentdesk/internal/session"
	"consentdesk/internal/transport/http/shared"
	"consentdesk/pkg/domain"
	dErrors "consentdesk/pkg/domain-errors"
)

// ConsentEngine defines the consent operations the transport needs.
type ConsentEngine interface {
	Seed(ctx context.Context, ag agreement.Agreement, userID domain.UserID) (consent.ConsentRecord, error)
	SetDecision(ctx context.Context, userID domain.UserID, agreementID domain.AgreementID, purposeName string, granted bool) error
	Commit(ctx context.Context, userID domain.UserID, agreementID domain.AgreementID) (consent.ConsentRecord, error)
	IsDirty(userID domain.UserID, agreementID domain.AgreementID) bool
	Summarize(userID domain.UserID, agreementID domain.AgreementID) (consent.Summary, error)
}

// ConsentHandler handles per-user consent endpoints. Viewing an agreement's
// consent state seeds the record; decisions stage; commit persists. All
// routes require a bearer token and an active session: a user who has not
// completed their profile cannot manage consent yet.
type ConsentHandler struct {
	engine     ConsentEngine
	agreements AgreementService
	sessions   *session.Controller
	tokens     middleware.JWTValidator
	logger     *slog.Logger
}

type decisionRequest struct {
	Purpose string `json:"purpose"`
	Granted bool   `json:"granted"`
}

// consentView pairs the committed record with the dirty flag so the client
// can render an enabled/disabled save button from one response.
type consentView struct {
	Record consent.ConsentRecord `json:"record"`
	Dirty  bool                  `json:"dirty"`
}

type summaryView struct {
	Summary consent.Summary `json:"summary"`
	Dirty   bool            `json:"dirty"`
}

func NewConsentHandler(
	engine ConsentEngine,
	agreements AgreementService,
	sessions *session.Controller,
	tokens middleware.JWTValidator,
	logger *slog.Logger) *ConsentHandler {
	return &ConsentHandler{
		engine:     engine,
		agreements: agreements,
		sessions:   sessions,
		tokens:     tokens,
		logger:     logger,
	}
}

// Register registers the consent routes with the chi router.
func (h *ConsentHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.tokens, h.logger))
		r.Use(h.requireActiveSession)
		r.Get("/agreements/{agreementID}/consent", h.handleView)
		r.Put("/agreements/{agreementID}/consent/decisions", h.handleSetDecision)
		r.Post("/agreements/{agreementID}/consent/commit", h.handleCommit)
		r.Get("/agreements/{agreementID}/consent/summary", h.handleSummary)
	})
}

// requireActiveSession gates consent management on the active phase.
func (h *ConsentHandler) requireActiveSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if phase := h.sessions.Phase(); phase != session.PhaseActive {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidTransition,
				"consent management requires an active session"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleView seeds the consent record for the authenticated user at the
// agreement's current version and returns it. First view creates a record
// with every purpose declined; a stale record is migrated in place.
func (h *ConsentHandler) handleView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, agreementID, err := h.requestIDs(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	ag, err := h.agreements.Get(ctx, agreementID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	rec, err := h.engine.Seed(ctx, ag, userID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to seed consent record",
				"agreement_id", agreementID.String(),
				"error", err.Error(),
				"request_id", middleware.GetRequestID(ctx),
			)
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, consentView{
		Record: rec,
		Dirty:  h.engine.IsDirty(userID, agreementID),
	})
}

func (h *ConsentHandler) handleSetDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, agreementID, err := h.requestIDs(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Purpose == "" {
		var fields dErrors.FieldErrors
		fields.Add("purpose", "purpose is required")
		shared.WriteError(w, fields.Err())
		return
	}

	if err := h.engine.SetDecision(ctx, userID, agreementID, req.Purpose, req.Granted); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]bool{
		"dirty": h.engine.IsDirty(userID, agreementID),
	})
}

func (h *ConsentHandler) handleCommit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, agreementID, err := h.requestIDs(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	rec, err := h.engine.Commit(ctx, userID, agreementID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to commit consent record",
				"agreement_id", agreementID.String(),
				"error", err.Error(),
				"request_id", middleware.GetRequestID(ctx),
			)
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, consentView{
		Record: rec,
		Dirty:  h.engine.IsDirty(userID, agreementID),
	})
}

func (h *ConsentHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, agreementID, err := h.requestIDs(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	summary, err := h.engine.Summarize(userID, agreementID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, summaryView{
		Summary: summary,
		Dirty:   h.engine.IsDirty(userID, agreementID),
	})
}

// requestIDs resolves the authenticated user and the agreement path param.
func (h *ConsentHandler) requestIDs(r *http.Request) (domain.UserID, domain.AgreementID, error) {
	userID, err := domain.ParseUserID(middleware.GetUserID(r.Context()))
	if err != nil {
		return domain.UserID{}, domain.AgreementID{}, dErrors.New(dErrors.CodeInternal, "authentication context error")
	}
	agreementID, err := domain.ParseAgreementID(chi.URLParam(r, "agreementID"))
	if err != nil {
		return domain.UserID{}, domain.AgreementID{}, err
	}
	return userID, agreementID, nil
}
