package agreement

import (
	"context"
	"sync"

	"consentdesk/pkg/domain"
	"consentdesk/pkg/platform/sentinel"
)

// InMemoryStore keeps the initial implementation lightweight and testable.
// A slice of ids preserves creation order for List.
type InMemoryStore struct {
	mu         sync.RWMutex
	agreements map[domain.AgreementID]Agreement
	order      []domain.AgreementID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{agreements: make(map[domain.AgreementID]Agreement)}
}

func (s *InMemoryStore) Save(_ context.Context, a Agreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.agreements[a.ID]; !exists {
		s.order = append(s.order, a.ID)
	}
	s.agreements[a.ID] = a.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.AgreementID) (Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.agreements[id]; ok {
		return a.Clone(), nil
	}
	return Agreement{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) List(_ context.Context) ([]Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Agreement, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.agreements[id].Clone())
	}
	return out, nil
}
