package agreement

import (
	"context"

	"consentdesk/pkg/domain"
)

// Store is the persistence collaborator for agreements. Implementations
// return sentinel.ErrNotFound for unknown ids; the service translates to
// domain errors. List returns agreements in creation order.
type Store interface {
	Save(ctx context.Context, a Agreement) error
	FindByID(ctx context.Context, id domain.AgreementID) (Agreement, error)
	List(ctx context.Context) ([]Agreement, error)
}
