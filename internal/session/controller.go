package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"consentdesk/internal/identity"
	"consentdesk/internal/platform/metrics"
	dErrors "consentdesk/pkg/domain-errors"
)

// Controller is the process-wide session state machine. It exclusively owns
// the phase and the identity record; everything else reads them through the
// query methods. The machine is cyclic: Logout always returns it to
// unauthenticated.
type Controller struct {
	mu          sync.Mutex
	phase       Phase
	user        *identity.Identity
	lastFailure string

	provider identity.Provider
	// cancelInFlight aborts the provider call of an in-flight Login or
	// BootstrapProbe; Logout is the only caller.
	cancelInFlight context.CancelFunc
	// gen increments on every Logout. A provider call that resolves under a
	// stale generation lost a race with logout: its result is discarded, the
	// machine is left alone.
	gen uint64

	subs    []subscriber
	nextSub int
	// queued holds transitions awaiting observer delivery; notifyMu keeps
	// delivery serialized and in transition order.
	queued   []notification
	notifyMu sync.Mutex

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type notification struct {
	subs  []subscriber
	phase Phase
}

type subscriber struct {
	id int
	fn func(Phase)
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithMetrics attaches Prometheus counters.
func WithMetrics(m *metrics.Metrics) ControllerOption {
	return func(c *Controller) { c.metrics = m }
}

func NewController(provider identity.Provider, logger *slog.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		phase:    PhaseUnauthenticated,
		provider: provider,
		logger:   logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Phase returns the current phase. Never blocks on in-flight mutations
// beyond the brief state lock.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// User returns a copy of the current identity, or nil when unauthenticated.
func (c *Controller) User() *identity.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// LastFailure returns the most recent recorded probe/login failure reason.
func (c *Controller) LastFailure() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFailure
}

// Subscribe registers an observer invoked on every phase transition. The
// returned func unsubscribes.
func (c *Controller) Subscribe(fn func(Phase)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// BootstrapProbe resolves any remembered session. Invoked once at startup,
// typically from a goroutine so construction never blocks. The phase is
// authenticating for the probe's duration; a probe failure records the
// reason, returns to unauthenticated, and must not crash the caller.
func (c *Controller) BootstrapProbe(ctx context.Context) error {
	defer c.flush()
	c.mu.Lock()
	if c.phase != PhaseUnauthenticated {
		c.mu.Unlock()
		return dErrors.New(dErrors.CodeInvalidTransition, "bootstrap probe requires an unauthenticated session")
	}
	probeCtx, cancel := context.WithCancel(ctx)
	c.cancelInFlight = cancel
	gen := c.gen
	c.setPhaseLocked(PhaseAuthenticating)
	c.mu.Unlock()
	defer cancel()

	id, err := c.provider.ProbeSession(probeCtx)

	c.mu.Lock()
	if c.gen != gen {
		// Logout landed while the probe was resolving. Even a successful
		// response must not resurrect the session.
		c.mu.Unlock()
		return dErrors.New(dErrors.CodeCancelled, "session probe cancelled")
	}
	c.cancelInFlight = nil
	if err != nil {
		c.setPhaseLocked(PhaseUnauthenticated)
		if probeCtx.Err() != nil || errors.Is(err, context.Canceled) {
			c.mu.Unlock()
			return dErrors.Wrap(err, dErrors.CodeCancelled, "session probe cancelled")
		}
		c.lastFailure = err.Error()
		c.mu.Unlock()
		c.logger.Warn("session probe failed", "error", err)
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, "session probe failed")
	}
	if probeCtx.Err() != nil {
		// Caller cancellation raced a successful response.
		c.setPhaseLocked(PhaseUnauthenticated)
		c.mu.Unlock()
		return dErrors.Wrap(probeCtx.Err(), dErrors.CodeCancelled, "session probe cancelled")
	}
	if id == nil {
		c.setPhaseLocked(PhaseUnauthenticated)
		c.mu.Unlock()
		return nil
	}
	c.user = id
	if id.ProfileComplete() {
		c.setPhaseLocked(PhaseActive)
	} else {
		c.setPhaseLocked(PhaseIncompleteProfile)
	}
	c.mu.Unlock()
	return nil
}

// Login authenticates against the identity provider. Only valid from
// unauthenticated; a concurrent login while one is already authenticating is
// rejected, not queued. A fresh login always lands in the
// incomplete-profile phase: profiles are never pre-populated.
//
// Errors: CodeInvalidTransition, CodeUnauthorized (authentication failure),
// CodeCancelled (aborted by Logout or caller cancellation).
func (c *Controller) Login(ctx context.Context, creds identity.Credentials) (*identity.Identity, error) {
	defer c.flush()
	c.mu.Lock()
	switch c.phase {
	case PhaseAuthenticating:
		c.mu.Unlock()
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "login already in progress")
	case PhaseUnauthenticated:
	default:
		c.mu.Unlock()
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "login requires an unauthenticated session")
	}
	loginCtx, cancel := context.WithCancel(ctx)
	c.cancelInFlight = cancel
	gen := c.gen
	c.setPhaseLocked(PhaseAuthenticating)
	c.mu.Unlock()
	defer cancel()

	id, err := c.provider.Authenticate(loginCtx, creds)

	c.mu.Lock()
	if c.gen != gen {
		// Logout landed while the provider was resolving. The identity, if
		// any, is discarded without touching the machine: a newer login may
		// already own it.
		c.mu.Unlock()
		c.countLogin("cancelled")
		return nil, dErrors.New(dErrors.CodeCancelled, "login cancelled")
	}
	c.cancelInFlight = nil
	if err != nil {
		c.user = nil
		c.setPhaseLocked(PhaseUnauthenticated)
		if loginCtx.Err() != nil || errors.Is(err, context.Canceled) {
			c.mu.Unlock()
			c.countLogin("cancelled")
			return nil, dErrors.Wrap(err, dErrors.CodeCancelled, "login cancelled")
		}
		c.lastFailure = err.Error()
		c.mu.Unlock()
		c.countLogin("failure")
		c.logger.Warn("login failed", "email", creds.Email)
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "authentication failed")
	}
	if loginCtx.Err() != nil {
		// Caller cancellation raced a successful response; the identity is
		// discarded, never installed.
		c.user = nil
		c.setPhaseLocked(PhaseUnauthenticated)
		c.mu.Unlock()
		c.countLogin("cancelled")
		return nil, dErrors.Wrap(loginCtx.Err(), dErrors.CodeCancelled, "login cancelled")
	}
	c.user = id
	c.setPhaseLocked(PhaseIncompleteProfile)
	c.mu.Unlock()
	c.countLogin("success")
	c.logger.Info("login succeeded", "email", creds.Email)
	u := *id
	return &u, nil
}

// CompleteProfile moves an incomplete-profile session to active. Calling it
// from any other state fails with CodeInvalidTransition and changes nothing.
func (c *Controller) CompleteProfile(profile identity.Profile) error {
	defer c.flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseIncompleteProfile {
		return dErrors.New(dErrors.CodeInvalidTransition, "profile completion requires an authenticated session with an incomplete profile")
	}
	if profile.Empty() {
		var fields dErrors.FieldErrors
		fields.Add("profile", "profile data is required")
		return fields.Err()
	}
	if profile.Name != "" {
		c.user.Name = profile.Name
	}
	if profile.Company != "" {
		c.user.Company = profile.Company
	}
	c.setPhaseLocked(PhaseActive)
	return nil
}

// Logout discards the identity record synchronously and returns the machine
// to unauthenticated from any state. An in-flight login or probe is
// cancelled; its caller resolves with CodeCancelled.
func (c *Controller) Logout() {
	defer c.flush()
	c.mu.Lock()
	c.gen++
	if c.cancelInFlight != nil {
		c.cancelInFlight()
		c.cancelInFlight = nil
	}
	c.user = nil
	c.lastFailure = ""
	c.setPhaseLocked(PhaseUnauthenticated)
	c.mu.Unlock()
}

// setPhaseLocked changes the phase and queues observer callbacks. Callers
// hold c.mu and must call flush after releasing it.
func (c *Controller) setPhaseLocked(next Phase) {
	if c.phase == next {
		return
	}
	c.phase = next
	if len(c.subs) == 0 {
		return
	}
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.queued = append(c.queued, notification{subs: subs, phase: next})
}

// flush delivers queued notifications outside the state lock: an observer is
// free to call back into the controller's query methods.
func (c *Controller) flush() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	for {
		c.mu.Lock()
		batch := c.queued
		c.queued = nil
		c.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, n := range batch {
			for _, s := range n.subs {
				s.fn(n.phase)
			}
		}
	}
}

func (c *Controller) countLogin(outcome string) {
	if c.metrics != nil {
		c.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}
