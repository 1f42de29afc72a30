// Package identity defines the identity-provider collaborator the session
// controller suspends on, plus an in-memory implementation used until a real
// provider is wired in.
package identity

import (
	"context"

	"consentdesk/pkg/domain"
)

// Credentials carry a login attempt. Passwords never leave this package
// unhashed.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Profile is the post-login profile data a user completes before reaching the
// active phase.
type Profile struct {
	Name    string `json:"name"`
	Company string `json:"company"`
}

// Empty reports whether no profile data was supplied.
func (p Profile) Empty() bool { return p.Name == "" && p.Company == "" }

// Identity is the provider's view of an authenticated user.
type Identity struct {
	UserID  domain.UserID `json:"userId"`
	Email   string        `json:"email"`
	Name    string        `json:"name,omitempty"`
	Company string        `json:"company,omitempty"`
}

// ProfileComplete reports whether the identity carries profile data.
func (i Identity) ProfileComplete() bool { return i.Name != "" && i.Company != "" }

// Provider is the external identity collaborator. Both calls may suspend;
// implementations honor ctx cancellation.
type Provider interface {
	// ProbeSession resolves any remembered session. (nil, nil) means no
	// session exists; that is not an error.
	ProbeSession(ctx context.Context) (*Identity, error)

	// Authenticate verifies credentials and returns the identity without
	// profile data: a fresh login always starts with an incomplete profile.
	Authenticate(ctx context.Context, creds Credentials) (*Identity, error)
}
