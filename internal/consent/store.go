package consent

import (
	"context"

	"consentdesk/pkg/domain"
)

// Store is the persistence collaborator behind the engine. Commit is the
// only engine operation that writes through it. Implementations return
// sentinel.ErrNotFound for unknown records.
type Store interface {
	Save(ctx context.Context, record ConsentRecord) error
	Load(ctx context.Context, userID domain.UserID, agreementID domain.AgreementID) (ConsentRecord, error)
}
