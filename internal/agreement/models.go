package agreement

import (
	"time"

	"consentdesk/pkg/domain"
)

// Status tracks the agreement lifecycle. Agreements are never physically
// deleted while consent records reference them; archiving is the soft
// replacement.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Agreement is a versioned document bundling a title, consent text, and an
// ordered set of purposes with unique names.
//
// Invariants: Version starts at 1 and increments by exactly 1 on every
// content-affecting update; ID is stable across versions. Field names are
// fixed for interchange with persistence backends.
type Agreement struct {
	ID          domain.AgreementID `json:"id"`
	Title       string             `json:"title"`
	Name        string             `json:"name"`
	Version     int                `json:"version"`
	Text        string             `json:"agreement_text"`
	Purposes    []domain.Purpose   `json:"purposes"`
	CreatedDate time.Time          `json:"created_date"`
	Status      Status             `json:"status"`
}

// Draft is the input to Create.
type Draft struct {
	Title    string           `json:"title"`
	Name     string           `json:"name"`
	Text     string           `json:"agreement_text"`
	Purposes []domain.Purpose `json:"purposes"`
}

// Patch is the input to Update. Nil pointer fields keep the current value;
// a nil Purposes slice keeps the current purposes.
type Patch struct {
	Title    *string          `json:"title,omitempty"`
	Name     *string          `json:"name,omitempty"`
	Text     *string          `json:"agreement_text,omitempty"`
	Purposes []domain.Purpose `json:"purposes,omitempty"`
}

// PurposeNames returns purpose names in document order.
func (a Agreement) PurposeNames() []string {
	names := make([]string, len(a.Purposes))
	for i, p := range a.Purposes {
		names[i] = p.Name
	}
	return names
}

// HasPurpose reports whether the agreement defines the named purpose.
func (a Agreement) HasPurpose(name string) bool {
	for _, p := range a.Purposes {
		if p.Name == name {
			return true
		}
	}
	return false
}

// contentEquals compares the version-relevant content: title, text, and the
// purpose sequence. Metadata (status) is excluded so metadata-only edits
// never bump the version.
func (a Agreement) contentEquals(title, text string, purposes []domain.Purpose) bool {
	if a.Title != title || a.Text != text || len(a.Purposes) != len(purposes) {
		return false
	}
	for i := range purposes {
		if a.Purposes[i] != purposes[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers can never mutate stored state.
func (a Agreement) Clone() Agreement {
	out := a
	out.Purposes = append([]domain.Purpose(nil), a.Purposes...)
	return out
}
