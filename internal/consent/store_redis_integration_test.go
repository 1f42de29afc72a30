//go:build integration

package consent_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"consentdesk/internal/consent"
	"consentdesk/pkg/domain"
	"consentdesk/pkg/platform/sentinel"
	"consentdesk/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *consent.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = consent.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) TearDownSuite() {
	if s.redis != nil {
		_ = s.redis.Client.Close()
		_ = s.redis.Container.Terminate(context.Background())
	}
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestSaveAndLoad() {
	ctx := context.Background()
	userID := domain.NewUserID()
	agreementID := domain.NewAgreementID()

	s.Run("round-trips a record as JSON", func() {
		rec := consent.ConsentRecord{
			UserID:           userID,
			AgreementID:      agreementID,
			AgreementVersion: 2,
			Decisions:        map[string]bool{"analytics": true, "email_marketing": false},
			UpdatedAt:        time.Now().UTC().Truncate(time.Second),
		}
		s.Require().NoError(s.store.Save(ctx, rec))

		loaded, err := s.store.Load(ctx, userID, agreementID)
		s.Require().NoError(err)
		s.Equal(rec.AgreementVersion, loaded.AgreementVersion)
		s.Equal(rec.Decisions, loaded.Decisions)
		s.True(rec.UpdatedAt.Equal(loaded.UpdatedAt))
	})

	s.Run("missing record returns ErrNotFound", func() {
		_, err := s.store.Load(ctx, domain.NewUserID(), agreementID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("save replaces the previous value", func() {
		rec := consent.ConsentRecord{
			UserID:           userID,
			AgreementID:      agreementID,
			AgreementVersion: 1,
			Decisions:        map[string]bool{"analytics": false},
		}
		s.Require().NoError(s.store.Save(ctx, rec))

		rec.Decisions["analytics"] = true
		rec.AgreementVersion = 2
		s.Require().NoError(s.store.Save(ctx, rec))

		loaded, err := s.store.Load(ctx, userID, agreementID)
		s.Require().NoError(err)
		s.Equal(2, loaded.AgreementVersion)
		s.True(loaded.Decisions["analytics"])
	})
}
