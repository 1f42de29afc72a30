package consent

import (
	"time"

	"consentdesk/pkg/domain"
)

// ConsentRecord captures a user's per-purpose decisions against one specific
// agreement version.
//
// Invariant: the key set of Decisions exactly equals the purpose-name set of
// the agreement version it references. Field names are fixed for interchange
// with persistence backends.
type ConsentRecord struct {
	UserID           domain.UserID      `json:"userId"`
	AgreementID      domain.AgreementID `json:"agreementId"`
	AgreementVersion int                `json:"agreementVersion"`
	Decisions        map[string]bool    `json:"decisions"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// Summary is the committed-state view used for display and compliance
// counts. Staged changes are never reflected here.
type Summary struct {
	TotalPurposes int `json:"totalPurposes"`
	GrantedCount  int `json:"grantedCount"`
}

// Clone returns a deep copy so engine internals never escape.
func (r ConsentRecord) Clone() ConsentRecord {
	out := r
	out.Decisions = make(map[string]bool, len(r.Decisions))
	for k, v := range r.Decisions {
		out.Decisions[k] = v
	}
	return out
}

// migrateDecisions reconciles existing decisions with a target purpose set:
// decisions for purposes present in both versions carry over, removed
// purposes are dropped, added purposes default to declined.
func migrateDecisions(old map[string]bool, purposes []domain.Purpose) map[string]bool {
	next := make(map[string]bool, len(purposes))
	for _, p := range purposes {
		next[p.Name] = old[p.Name]
	}
	return next
}

// seedDecisions defaults every purpose to declined.
func seedDecisions(purposes []domain.Purpose) map[string]bool {
	decisions := make(map[string]bool, len(purposes))
	for _, p := range purposes {
		decisions[p.Name] = false
	}
	return decisions
}
