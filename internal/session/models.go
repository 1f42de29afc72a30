package session

// Phase is the session state. Only the Controller may change it.
type Phase string

const (
	PhaseUnauthenticated   Phase = "unauthenticated"
	PhaseAuthenticating    Phase = "authenticating"
	PhaseIncompleteProfile Phase = "authenticated_incomplete_profile"
	PhaseActive            Phase = "authenticated_active"
)

// Authenticated reports whether the phase represents a logged-in user.
func (p Phase) Authenticated() bool {
	return p == PhaseIncompleteProfile || p == PhaseActive
}
