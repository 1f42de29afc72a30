// Package domain holds the value objects shared across features: typed
// identifiers and the Purpose value object. Construct values via the Parse*
// functions at trust boundaries; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "consentdesk/pkg/domain-errors"
)

// UserID identifies an end user. Distinct from AgreementID at compile time so
// the two can never be swapped in a call.
type UserID uuid.UUID

// AgreementID identifies an agreement. The ID is stable across versions: a
// content edit bumps the version, never the ID.
type AgreementID uuid.UUID

func (id UserID) String() string      { return uuid.UUID(id).String() }
func (id AgreementID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsZero() bool      { return uuid.UUID(id) == uuid.Nil }
func (id AgreementID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// The defined types do not inherit uuid.UUID's text marshaling, so it is
// restated here: IDs cross JSON boundaries as canonical UUID strings.

func (id UserID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id AgreementID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *AgreementID) UnmarshalText(b []byte) error {
	parsed, err := ParseAgreementID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewAgreementID allocates a fresh agreement identifier.
func NewAgreementID() AgreementID { return AgreementID(uuid.New()) }

// NewUserID allocates a fresh user identifier.
func NewUserID() UserID { return UserID(uuid.New()) }

// ParseUserID constructs a UserID from external input.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil
// UUID; no other errors are expected.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseAgreementID constructs an AgreementID from external input.
func ParseAgreementID(s string) (AgreementID, error) {
	u, err := parseUUID(s, "agreement id")
	return AgreementID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be nil")
	}
	return u, nil
}
