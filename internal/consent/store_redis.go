package consent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"consentdesk/pkg/domain"
	"consentdesk/pkg/platform/sentinel"
)

// RedisStore persists committed consent records as JSON values keyed by
// (user, agreement). Records are never expired: consent history must survive
// until explicitly superseded.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(userID domain.UserID, agreementID domain.AgreementID) string {
	return fmt.Sprintf("consent:%s:%s", userID, agreementID)
}

func (s *RedisStore) Save(ctx context.Context, record ConsentRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal consent record: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(record.UserID, record.AgreementID), payload, 0).Err(); err != nil {
		return fmt.Errorf("save consent record: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, userID domain.UserID, agreementID domain.AgreementID) (ConsentRecord, error) {
	raw, err := s.client.Get(ctx, redisKey(userID, agreementID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ConsentRecord{}, sentinel.ErrNotFound
		}
		return ConsentRecord{}, fmt.Errorf("load consent record: %w", err)
	}
	var record ConsentRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return ConsentRecord{}, fmt.Errorf("unmarshal consent record: %w", err)
	}
	return record, nil
}
