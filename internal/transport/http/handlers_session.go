package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"consentdesk/internal/identity"
	"consentdesk/internal/platform/middleware"
	"consentdesk/internal/session"
	"consentdesk/internal/transport/http/shared"
	"consentdesk/pkg/domain"
	dErrors "consentdesk/pkg/domain-errors"
)

const accessTokenTTL = 30 * time.Minute

// TokenService mints and validates access tokens.
type TokenService interface {
	GenerateAccessToken(userID domain.UserID, email string, expiresIn time.Duration) (string, error)
	ValidateToken(tokenString string) (*middleware.JWTClaims, error)
}

// SessionHandler exposes the session state machine over HTTP: login, logout,
// profile completion, and the session query.
type SessionHandler struct {
	sessions *session.Controller
	tokens   TokenService
	logger   *slog.Logger
}

// loginResponse carries the minted token plus the resulting session view so
// clients need no follow-up query.
type loginResponse struct {
	AccessToken string             `json:"access_token"`
	TokenType   string             `json:"token_type"`
	ExpiresIn   int64              `json:"expires_in"`
	Phase       session.Phase      `json:"phase"`
	User        *identity.Identity `json:"user"`
}

type sessionResponse struct {
	Phase       session.Phase      `json:"phase"`
	User        *identity.Identity `json:"user,omitempty"`
	LastFailure string             `json:"lastFailure,omitempty"`
}

func NewSessionHandler(sessions *session.Controller, tokens TokenService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, tokens: tokens, logger: logger}
}

// Register registers the session routes. Login, logout, and the session query
// are public; profile completion requires a bearer token.
func (h *SessionHandler) Register(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)
	r.Get("/auth/session", h.handleSession)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.tokens, h.logger))
		r.Post("/auth/profile", h.handleCompleteProfile)
	})
}

func (h *SessionHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var creds identity.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := validateCredentials(creds); err != nil {
		shared.WriteError(w, err)
		return
	}

	id, err := h.sessions.Login(ctx, creds)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	token, err := h.tokens.GenerateAccessToken(id.UserID, id.Email, accessTokenTTL)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to mint access token",
			"error", err.Error(),
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to mint access token"))
		return
	}

	h.logger.InfoContext(ctx, "session established",
		"user_id", id.UserID.String(),
		"device", session.ParseUserAgent(r.Header.Get("User-Agent")),
		"request_id", middleware.GetRequestID(ctx),
	)

	shared.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(accessTokenTTL.Seconds()),
		Phase:       h.sessions.Phase(),
		User:        id,
	})
}

func (h *SessionHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout()
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, sessionResponse{
		Phase:       h.sessions.Phase(),
		User:        h.sessions.User(),
		LastFailure: h.sessions.LastFailure(),
	})
}

func (h *SessionHandler) handleCompleteProfile(w http.ResponseWriter, r *http.Request) {
	var profile identity.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.sessions.CompleteProfile(profile); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, sessionResponse{
		Phase: h.sessions.Phase(),
		User:  h.sessions.User(),
	})
}

func validateCredentials(creds identity.Credentials) error {
	var fields dErrors.FieldErrors
	if strings.TrimSpace(creds.Email) == "" {
		fields.Add("email", "email is required")
	}
	if creds.Password == "" {
		fields.Add("password", "password is required")
	}
	return fields.Err()
}
