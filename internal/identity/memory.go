package identity

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"consentdesk/pkg/domain"
	dErrors "consentdesk/pkg/domain-errors"
)

// MemoryProvider is an in-memory identity provider. It hashes passwords with
// bcrypt and simulates the round trip of a real provider with a configurable
// latency, which doubles as the suspension point the session controller's
// cancellation semantics are tested against.
type MemoryProvider struct {
	mu       sync.RWMutex
	accounts map[string]account
	session  *Identity
	latency  time.Duration
}

type account struct {
	hash     []byte
	identity Identity
}

// NewMemoryProvider builds an empty provider. latency of zero disables the
// simulated delay.
func NewMemoryProvider(latency time.Duration) *MemoryProvider {
	return &MemoryProvider{
		accounts: make(map[string]account),
		latency:  latency,
	}
}

// Register adds an account. Cost is bcrypt.DefaultCost; registration is a
// setup concern, not a hot path.
func (p *MemoryProvider) Register(email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[email] = account{
		hash: hash,
		identity: Identity{
			UserID: domain.NewUserID(),
			Email:  email,
		},
	}
	return nil
}

// RememberSession primes the provider with a session for ProbeSession to
// find, standing in for a persisted cookie/refresh token.
func (p *MemoryProvider) RememberSession(id Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = &id
}

// ForgetSession clears the remembered session.
func (p *MemoryProvider) ForgetSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = nil
}

func (p *MemoryProvider) ProbeSession(ctx context.Context) (*Identity, error) {
	if err := p.sleep(ctx); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.session == nil {
		return nil, nil
	}
	id := *p.session
	return &id, nil
}

func (p *MemoryProvider) Authenticate(ctx context.Context, creds Credentials) (*Identity, error) {
	if err := p.sleep(ctx); err != nil {
		return nil, err
	}
	p.mu.RLock()
	acc, ok := p.accounts[creds.Email]
	p.mu.RUnlock()
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown email or wrong password")
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(creds.Password)); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown email or wrong password")
	}
	// Fresh logins never carry profile data.
	id := Identity{UserID: acc.identity.UserID, Email: acc.identity.Email}
	return &id, nil
}

// sleep simulates provider latency while honoring cancellation.
func (p *MemoryProvider) sleep(ctx context.Context) error {
	if p.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
