package consent

import (
	"context"
	"sync"

	"consentdesk/pkg/domain"
	"consentdesk/pkg/platform/sentinel"
)

// InMemoryStore keeps committed consent records in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]ConsentRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]ConsentRecord)}
}

func recordKey(userID domain.UserID, agreementID domain.AgreementID) string {
	return userID.String() + "/" + agreementID.String()
}

func (s *InMemoryStore) Save(_ context.Context, record ConsentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey(record.UserID, record.AgreementID)] = record.Clone()
	return nil
}

func (s *InMemoryStore) Load(_ context.Context, userID domain.UserID, agreementID domain.AgreementID) (ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.records[recordKey(userID, agreementID)]; ok {
		return r.Clone(), nil
	}
	return ConsentRecord{}, sentinel.ErrNotFound
}
