package consent

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"consentdesk/internal/agreement"
	"consentdesk/pkg/domain"
	dErrors "consentdesk/pkg/domain-errors"
)

// failingStore wraps the in-memory store and fails Save on demand so commit
// failure semantics can be exercised.
type failingStore struct {
	*InMemoryStore
	saveErr error
}

func (s *failingStore) Save(ctx context.Context, record ConsentRecord) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.InMemoryStore.Save(ctx, record)
}

// ConsentEngineSuite exercises the staged-versus-committed split: staging
// never leaks into summaries, commit is the only durable write, and a failed
// commit leaves both sides untouched.
type ConsentEngineSuite struct {
	suite.Suite
	store  *failingStore
	engine *Engine
	now    time.Time
	userID domain.UserID
}

func TestConsentEngineSuite(t *testing.T) {
	suite.Run(t, new(ConsentEngineSuite))
}

func (s *ConsentEngineSuite) SetupTest() {
	s.store = &failingStore{InMemoryStore: NewInMemoryStore()}
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.engine = NewEngine(s.store, slog.New(slog.DiscardHandler),
		WithClock(func() time.Time { return s.now }))
	s.userID = domain.NewUserID()
}

func (s *ConsentEngineSuite) cookieAgreement() agreement.Agreement {
	return agreement.Agreement{
		ID:      domain.NewAgreementID(),
		Title:   "Cookie Policy",
		Name:    "cookie_policy",
		Version: 1,
		Text:    "We use cookies.",
		Purposes: []domain.Purpose{
			{Name: "essential_cookies", Description: "Required for the site to function"},
			{Name: "analytics", Description: "Usage analytics"},
			{Name: "email_marketing", Description: "Marketing emails"},
		},
		Status: agreement.StatusActive,
	}
}

// =============================================================================
// Seed Tests
// =============================================================================

func (s *ConsentEngineSuite) TestSeed() {
	ctx := context.Background()

	s.Run("first view seeds every purpose declined", func() {
		ag := s.cookieAgreement()
		rec, err := s.engine.Seed(ctx, ag, s.userID)
		s.Require().NoError(err)

		s.Equal(s.userID, rec.UserID)
		s.Equal(ag.ID, rec.AgreementID)
		s.Equal(ag.Version, rec.AgreementVersion)
		s.Require().Len(rec.Decisions, len(ag.Purposes))
		for _, p := range ag.Purposes {
			granted, ok := rec.Decisions[p.Name]
			s.True(ok, "missing decision for %q", p.Name)
			s.False(granted)
		}
	})

	s.Run("seeding is idempotent at the same version", func() {
		ag := s.cookieAgreement()
		first, err := s.engine.Seed(ctx, ag, s.userID)
		s.Require().NoError(err)

		s.Require().NoError(s.engine.SetDecision(ctx, s.userID, ag.ID, "analytics", true))

		again, err := s.engine.Seed(ctx, ag, s.userID)
		s.Require().NoError(err)
		s.Equal(first, again)
		// Staged state survives a re-seed.
		s.True(s.engine.IsDirty(s.userID, ag.ID))
	})

	s.Run("seed does not persist", func() {
		ag := s.cookieAgreement()
		_, err := s.engine.Seed(ctx, ag, s.userID)
		s.Require().NoError(err)

		_, err = s.store.Load(ctx, s.userID, ag.ID)
		s.Require().Error(err)
	})

	s.Run("stored record is adopted on seed", func() {
		ag := s.cookieAgreement()
		stored := ConsentRecord{
			UserID:           s.userID,
			AgreementID:      ag.ID,
			AgreementVersion: 1,
			Decisions: map[string]bool{
				"essential_cookies": true,
				"analytics":         true,
				"email_marketing":   false,
			},
			UpdatedAt: s.now.Add(-time.Hour),
		}
		s.Require().NoError(s.store.InMemoryStore.Save(ctx, stored))

		rec, err := s.engine.Seed(ctx, ag, s.userID)
		s.Require().NoError(err)
		s.Equal(stored.Decisions, rec.Decisions)
	})

	s.Run("record from a newer version is a conflict", func() {
		ag := s.cookieAgreement()
		stored := ConsentRecord{
			UserID:           s.userID,
			AgreementID:      ag.ID,
			AgreementVersion: 5,
			Decisions:        map[string]bool{"analytics": true},
		}
		s.Require().NoError(s.store.InMemoryStore.Save(ctx, stored))

		_, err := s.engine.Seed(ctx, ag, s.userID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

// =============================================================================
// Migration Tests
// =============================================================================

func (s *ConsentEngineSuite) TestSeedMigration() {
	ctx := context.Background()

	s.Run("decisions carry over, removed drop, added default to declined", func() {
		ag := s.cookieAgreement()
		ag.Purposes = []domain.Purpose{
			{Name: "a", Description: "First"},
			{Name: "b", Description: "Second"},
		}
		_, err := s.engine.Seed(ctx, ag, s.userID)
		s.Require().NoError(err)

		s.Require().NoError(s.engine.SetDecision(ctx, s.userID, ag.ID, "a", true))
		s.Require().NoError(s.engine.SetDecision(ctx, s.userID, ag.ID, "b", true))
		_, err = s.engine.Commit(ctx, s.userID, ag.ID)
		s.Require().NoError(err)

		// Version 2 drops a, keeps b, adds c.
		ag.Version = 2
		ag.Purposes = []domain.Purpose{
			{Name: "b", Description: "Second"},
			{Name: "c", Description: "Third"},
		}
		rec, err := s.engine.Seed(ctx, ag, s.userID)
		s.Require().NoError(err)

		s.Equal(2, rec.AgreementVersion)
		s.Equal(map[string]bool{"b": true, "c": false}, rec.Decisions)
	})

	s.Run("stale staged toggles for removed purposes are dropped", func() {
		ag := s.cookieAgreement()
		_, err := s.engine.Seed(ctx, ag, s.userID)
		s.Require().NoError(err)
		s.Require().NoError(s.engine.SetDecision(ctx, s.userID, ag.ID, "email_marketing", true))

		ag.Version = 2
		ag.Purposes = ag.Purposes[:2] // drops email_marketing
		_, err = s.engine.Seed(ctx, ag, s.userID)
		s.Require().NoError(err)

		s.False(s.engine.IsDirty(s.userID, ag.ID))
	})
}

// =============================================================================
// SetDecision / IsDirty Tests
// =============================================================================

func (s *ConsentEngineSuite) TestSetDecision() {
	ctx := context.Background()

	s.Run("staging marks the record dirty without touching committed state", func() {
		ag := s.cookieAgreement()
		_, err := s.engine.Seed(ctx, ag, s.userID)
		s.Require().NoError(err)
		s.False(s.engine.IsDirty(s.userID, ag.ID))

		s.Require().NoError(s.engine.SetDecision(ctx, s.userID, ag.ID, "analytics", true))
		s.True(s.engine.IsDirty(s.userID, ag.ID))

		rec, err := s.engine.Record(s.userID, ag.ID)
		s.Require().NoError(err)
		s.False(rec.Decisions["analytics"])
	})

	s.Run("unknown purpose is rejected", func() {
		ag := s.cookieAgreement()
		_, err := s.engine.Seed(ctx, ag, s.userID)
		s.Require().NoError(err)

		err = s.engine.SetDecision(ctx, s.userID, ag.ID, "does_not_exist", true)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownPurpose))
		s.False(s.engine.IsDirty(s.userID, ag.ID))
	})

	s.Run("unseeded record is not found", func() {
		err := s.engine.SetDecision(ctx, s.userID, domain.NewAgreementID(), "analytics", true)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Commit Tests
// =============================================================================

func (s *ConsentEngineSuite) TestCommit() {
	ctx := context.Background()

	s.Run("applies staged changes atomically and persists", func() {
		ag := s.cookieAgreement()
		_, err := s.engine.Seed(ctx, ag, s.userID)
		s.Require().NoError(err)

		s.Require().NoError(s.engine.SetDecision(ctx, s.userID, ag.ID, "analytics", true))
		s.Require().NoError(s.engine.SetDecision(ctx, s.userID, ag.ID, "email_marketing", true))

		rec, err := s.engine.Commit(ctx, s.userID, ag.ID)
		s.Require().NoError(err)
		s.True(rec.Decisions["analytics"])
		s.True(rec.Decisions["email_marketing"])
		s.False(rec.Decisions["essential_cookies"])
		s.Equal(s.now, rec.UpdatedAt)
		s.False(s.engine.IsDirty(s.userID, ag.ID))

		persisted, err := s.store.Load(ctx, s.userID, ag.ID)
		s.Require().NoError(err)
		s.Equal(rec.Decisions, persisted.Decisions)
	})

	s.Run("commit with nothing staged is a no-op success", func() {
		ag := s.cookieAgreement()
		seeded, err := s.engine.Seed(ctx, ag, s.userID)
		s.Require().NoError(err)

		rec, err := s.engine.Commit(ctx, s.userID, ag.ID)
		s.Require().NoError(err)
		s.Equal(seeded, rec)

		// Nothing was written either.
		_, err = s.store.Load(ctx, s.userID, ag.ID)
		s.Require().Error(err)
	})

	s.Run("committing twice is idempotent", func() {
		ag := s.cookieAgreement()
		_, err := s.engine.Seed(ctx, ag, s.userID)
		s.Require().NoError(err)
		s.Require().NoError(s.engine.SetDecision(ctx, s.userID, ag.ID, "analytics", true))

		first, err := s.engine.Commit(ctx, s.userID, ag.ID)
		s.Require().NoError(err)
		second, err := s.engine.Commit(ctx, s.userID, ag.ID)
		s.Require().NoError(err)
		s.Equal(first, second)
	})

	s.Run("persistence failure leaves committed state and buffer untouched", func() {
		ag := s.cookieAgreement()
		_, err := s.engine.Seed(ctx, ag, s.userID)
		s.Require().NoError(err)
		s.Require().NoError(s.engine.SetDecision(ctx, s.userID, ag.ID, "analytics", true))

		s.store.saveErr = errors.New("backend down")
		_, err = s.engine.Commit(ctx, s.userID, ag.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		// Committed state unchanged, staged change still pending.
		rec, err := s.engine.Record(s.userID, ag.ID)
		s.Require().NoError(err)
		s.False(rec.Decisions["analytics"])
		s.True(s.engine.IsDirty(s.userID, ag.ID))

		// Retry succeeds once the backend recovers.
		s.store.saveErr = nil
		rec, err = s.engine.Commit(ctx, s.userID, ag.ID)
		s.Require().NoError(err)
		s.True(rec.Decisions["analytics"])
		s.False(s.engine.IsDirty(s.userID, ag.ID))
	})

	s.Run("cancelled context aborts before the write", func() {
		ag := s.cookieAgreement()
		_, err := s.engine.Seed(ctx, ag, s.userID)
		s.Require().NoError(err)
		s.Require().NoError(s.engine.SetDecision(ctx, s.userID, ag.ID, "analytics", true))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err = s.engine.Commit(cancelled, s.userID, ag.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeCancelled))
		s.True(s.engine.IsDirty(s.userID, ag.ID))
	})

	s.Run("concurrent commit for the same record is rejected", func() {
		ag := s.cookieAgreement()
		_, err := s.engine.Seed(ctx, ag, s.userID)
		s.Require().NoError(err)
		s.Require().NoError(s.engine.SetDecision(ctx, s.userID, ag.ID, "analytics", true))

		release, err := s.engine.flights.Acquire(recordKey(s.userID, ag.ID))
		s.Require().NoError(err)
		defer release()

		_, err = s.engine.Commit(ctx, s.userID, ag.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unseeded record is not found", func() {
		_, err := s.engine.Commit(ctx, s.userID, domain.NewAgreementID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Summarize Tests
// =============================================================================

func (s *ConsentEngineSuite) TestSummarize() {
	ctx := context.Background()

	s.Run("counts committed grants only", func() {
		ag := s.cookieAgreement()
		_, err := s.engine.Seed(ctx, ag, s.userID)
		s.Require().NoError(err)

		summary, err := s.engine.Summarize(s.userID, ag.ID)
		s.Require().NoError(err)
		s.Equal(Summary{TotalPurposes: 3, GrantedCount: 0}, summary)

		// Staged grants are invisible until commit.
		s.Require().NoError(s.engine.SetDecision(ctx, s.userID, ag.ID, "analytics", true))
		summary, err = s.engine.Summarize(s.userID, ag.ID)
		s.Require().NoError(err)
		s.Equal(0, summary.GrantedCount)

		_, err = s.engine.Commit(ctx, s.userID, ag.ID)
		s.Require().NoError(err)
		summary, err = s.engine.Summarize(s.userID, ag.ID)
		s.Require().NoError(err)
		s.Equal(Summary{TotalPurposes: 3, GrantedCount: 1}, summary)
	})

	s.Run("unseeded record is not found", func() {
		_, err := s.engine.Summarize(s.userID, domain.NewAgreementID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// End-to-End Scenario
// =============================================================================

// TestCookiePolicyScenario walks the documented flow: view, toggle, commit,
// then a policy revision that adds a purpose.
func (s *ConsentEngineSuite) TestCookiePolicyScenario() {
	ctx := context.Background()

	ag := s.cookieAgreement()
	ag.Purposes = []domain.Purpose{
		{Name: "essential_cookies", Description: "Required for the site to function"},
		{Name: "analytics", Description: "Usage analytics"},
	}

	rec, err := s.engine.Seed(ctx, ag, s.userID)
	s.Require().NoError(err)
	s.Equal(map[string]bool{"essential_cookies": false, "analytics": false}, rec.Decisions)

	s.Require().NoError(s.engine.SetDecision(ctx, s.userID, ag.ID, "essential_cookies", true))
	s.Require().NoError(s.engine.SetDecision(ctx, s.userID, ag.ID, "analytics", true))
	s.True(s.engine.IsDirty(s.userID, ag.ID))

	rec, err = s.engine.Commit(ctx, s.userID, ag.ID)
	s.Require().NoError(err)
	s.Equal(map[string]bool{"essential_cookies": true, "analytics": true}, rec.Decisions)

	// The policy gains an advertising purpose in version 2.
	ag.Version = 2
	ag.Purposes = append(ag.Purposes, domain.Purpose{Name: "advertising", Description: "Ad personalization"})

	rec, err = s.engine.Seed(ctx, ag, s.userID)
	s.Require().NoError(err)
	s.Equal(2, rec.AgreementVersion)
	s.Equal(map[string]bool{
		"essential_cookies": true,
		"analytics":         true,
		"advertising":       false,
	}, rec.Decisions)

	summary, err := s.engine.Summarize(s.userID, ag.ID)
	s.Require().NoError(err)
	s.Equal(Summary{TotalPurposes: 3, GrantedCount: 2}, summary)
}
