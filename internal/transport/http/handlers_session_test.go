package httptransport

import (
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"

	"consentdesk/internal/identity"
	"consentdesk/internal/jwttoken"
	"consentdesk/internal/session"
	dErrors "consentdesk/pkg/domain-errors"
	"consentdesk/pkg/testutil"
)

// SessionHandlerSuite drives the login/profile/logout flow over the real
// router with an in-memory identity provider.
type SessionHandlerSuite struct {
	suite.Suite
	provider *identity.MemoryProvider
	sessions *session.Controller
	router   http.Handler
}

func TestSessionHandlerSuite(t *testing.T) {
	suite.Run(t, new(SessionHandlerSuite))
}

func (s *SessionHandlerSuite) SetupTest() {
	logger := slog.New(slog.DiscardHandler)
	s.provider = identity.NewMemoryProvider(0)
	s.Require().NoError(s.provider.Register("user@example.com", "secret"))
	s.sessions = session.NewController(s.provider, logger)
	tokens := jwttoken.NewJWTService("test-signing-key", "test-issuer", "test-audience")
	s.router = NewRouter(logger, nil, nil, NewSessionHandler(s.sessions, tokens, logger))
}

func (s *SessionHandlerSuite) login() *loginResponse {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/login",
		identity.Credentials{Email: "user@example.com", Password: "secret"})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	return testutil.UnmarshalResponse[loginResponse](s.T(), rr)
}

func (s *SessionHandlerSuite) TestLogin() {
	s.Run("successful login returns a token and the incomplete profile phase", func() {
		resp := s.login()
		s.NotEmpty(resp.AccessToken)
		s.Equal("Bearer", resp.TokenType)
		s.Equal(session.PhaseIncompleteProfile, resp.Phase)
		s.Require().NotNil(resp.User)
		s.Equal("user@example.com", resp.User.Email)
	})

	s.Run("wrong password is 401", func() {
		s.sessions.Logout()
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/login",
			identity.Credentials{Email: "user@example.com", Password: "nope"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})

	s.Run("missing credentials are a validation error", func() {
		s.sessions.Logout()
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/login", identity.Credentials{})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("login while authenticated is a conflict", func() {
		s.sessions.Logout()
		s.login()
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/login",
			identity.Credentials{Email: "user@example.com", Password: "secret"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeInvalidTransition))
	})
}

func (s *SessionHandlerSuite) TestCompleteProfile() {
	s.Run("completing the profile activates the session", func() {
		resp := s.login()

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/profile",
			identity.Profile{Name: "Ada", Company: "Acme"})
		rr := testutil.DoRequest(s.router, testutil.WithBearer(req, resp.AccessToken))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)

		view := testutil.UnmarshalResponse[sessionResponse](s.T(), rr)
		s.Equal(session.PhaseActive, view.Phase)
		s.Equal("Ada", view.User.Name)
	})

	s.Run("without a token it is 401", func() {
		s.sessions.Logout()
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/profile",
			identity.Profile{Name: "Ada", Company: "Acme"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})

	s.Run("from unauthenticated it is an invalid transition", func() {
		resp := s.login()
		s.sessions.Logout()

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/profile",
			identity.Profile{Name: "Ada", Company: "Acme"})
		rr := testutil.DoRequest(s.router, testutil.WithBearer(req, resp.AccessToken))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeInvalidTransition))
	})
}

func (s *SessionHandlerSuite) TestLogoutAndQuery() {
	s.Run("logout always lands unauthenticated", func() {
		s.login()
		req := testutil.NewRequest(s.T(), http.MethodPost, "/auth/logout")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
		s.Equal(session.PhaseUnauthenticated, s.sessions.Phase())
	})

	s.Run("session query reflects the current phase", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/auth/session")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)

		view := testutil.UnmarshalResponse[sessionResponse](s.T(), rr)
		s.Equal(s.sessions.Phase(), view.Phase)
	})
}
