package consent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"consentdesk/internal/agreement"
	"consentdesk/internal/platform/metrics"
	"consentdesk/pkg/domain"
	dErrors "consentdesk/pkg/domain-errors"
	"consentdesk/pkg/platform/flight"
	"consentdesk/pkg/platform/sentinel"
)

// entry pairs the committed record with its pending-change buffer. The split
// guarantees unsaved toggles never leak into summaries or any downstream
// consumer, and that a failed commit leaves committed state untouched.
type entry struct {
	committed ConsentRecord
	pending   map[string]bool
}

// Engine owns consent records and their pending-change buffers. Commit is
// single-flight per (user, agreement) key and is the only operation that
// writes through the persistence collaborator.
type Engine struct {
	mu      sync.RWMutex
	entries map[string]*entry

	store   Store
	flights *flight.Group
	tracer  trace.Tracer
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock sets the clock function for testability.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithMetrics attaches Prometheus counters.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(store Store, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		entries: make(map[string]*entry),
		store:   store,
		flights: flight.New(),
		tracer:  otel.Tracer("consentdesk/consent"),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Seed materializes the consent record for (user, agreement) at the
// agreement's current version. A missing record is created with every
// purpose declined; a record from an older version is migrated: decisions
// for purposes present in both versions carry over, removed purposes are
// dropped, added purposes default to declined, and the record adopts the new
// version. Seed mutates engine memory only; Commit persists.
func (e *Engine) Seed(ctx context.Context, ag agreement.Agreement, userID domain.UserID) (ConsentRecord, error) {
	key := recordKey(userID, ag.ID)

	e.mu.RLock()
	if ent, ok := e.entries[key]; ok && recordMatches(ent.committed, ag) {
		rec := ent.committed.Clone()
		e.mu.RUnlock()
		return rec, nil
	}
	e.mu.RUnlock()

	// Not in memory at this version; consult the persistence collaborator
	// before defaulting.
	stored, err := e.store.Load(ctx, userID, ag.ID)
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrNotFound):
	default:
		return ConsentRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "load consent record")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[key]
	if !ok {
		if err != nil {
			// First view: every purpose starts declined.
			ent = &entry{
				committed: ConsentRecord{
					UserID:           userID,
					AgreementID:      ag.ID,
					AgreementVersion: ag.Version,
					Decisions:        seedDecisions(ag.Purposes),
				},
				pending: make(map[string]bool),
			}
			e.entries[key] = ent
			return ent.committed.Clone(), nil
		}
		ent = &entry{committed: stored, pending: make(map[string]bool)}
		e.entries[key] = ent
	}

	if !recordMatches(ent.committed, ag) {
		if ent.committed.AgreementVersion > ag.Version {
			// A record from a future version means the caller handed us a
			// stale agreement; surface it instead of silently downgrading.
			return ConsentRecord{}, dErrors.New(dErrors.CodeConflict, "consent record references a newer agreement version")
		}
		ent.committed.Decisions = migrateDecisions(ent.committed.Decisions, ag.Purposes)
		ent.committed.AgreementVersion = ag.Version
		// Staged toggles for purposes that no longer exist are meaningless.
		for name := range ent.pending {
			if !ag.HasPurpose(name) {
				delete(ent.pending, name)
			}
		}
		e.logger.InfoContext(ctx, "consent record migrated",
			"user_id", userID.String(),
			"agreement_id", ag.ID.String(),
			"version", ag.Version,
		)
	}

	return ent.committed.Clone(), nil
}

// SetDecision stages a single purpose decision in the pending buffer. The
// committed record is untouched until Commit.
//
// Errors: CodeNotFound when no record was seeded, CodeUnknownPurpose when
// the purpose name is not a key of the record's decisions.
func (e *Engine) SetDecision(ctx context.Context, userID domain.UserID, agreementID domain.AgreementID, purposeName string, granted bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[recordKey(userID, agreementID)]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "consent record not found; seed it first")
	}
	if _, known := ent.committed.Decisions[purposeName]; !known {
		// A toggle referencing an absent purpose is an integrity error,
		// never silently ignored: it would mask a migration bug.
		return dErrors.New(dErrors.CodeUnknownPurpose, "unknown purpose: "+purposeName)
	}
	ent.pending[purposeName] = granted
	if e.metrics != nil {
		e.metrics.ConsentDecisions.Inc()
	}
	e.logger.DebugContext(ctx, "consent decision staged",
		"user_id", userID.String(),
		"agreement_id", agreementID.String(),
		"purpose", purposeName,
		"granted", granted,
	)
	return nil
}

// Commit atomically applies all staged changes, persists the record, and
// clears the applied entries from the buffer. An empty buffer is a no-op
// success. A persistence failure or cancellation leaves the committed state
// and the buffer untouched, so no batch is ever half-applied.
//
// Errors: CodeNotFound, CodeConflict (commit already in flight for the same
// key), CodeCancelled, CodeInternal.
func (e *Engine) Commit(ctx context.Context, userID domain.UserID, agreementID domain.AgreementID) (ConsentRecord, error) {
	ctx, span := e.tracer.Start(ctx, "consent.commit")
	defer span.End()

	key := recordKey(userID, agreementID)
	release, err := e.flights.Acquire(key)
	if err != nil {
		return ConsentRecord{}, dErrors.Wrap(err, dErrors.CodeConflict, "commit already in flight for consent record")
	}
	defer release()

	e.mu.Lock()
	ent, ok := e.entries[key]
	if !ok {
		e.mu.Unlock()
		return ConsentRecord{}, dErrors.New(dErrors.CodeNotFound, "consent record not found")
	}
	if len(ent.pending) == 0 {
		rec := ent.committed.Clone()
		e.mu.Unlock()
		return rec, nil
	}
	applied := make(map[string]bool, len(ent.pending))
	for name, granted := range ent.pending {
		applied[name] = granted
	}
	next := ent.committed.Clone()
	for name, granted := range applied {
		next.Decisions[name] = granted
	}
	next.UpdatedAt = e.now()
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return ConsentRecord{}, dErrors.Wrap(err, dErrors.CodeCancelled, "commit cancelled")
	}

	// Suspension point: the only durable write in the engine.
	if err := e.store.Save(ctx, next); err != nil {
		if e.metrics != nil {
			e.metrics.ConsentCommits.WithLabelValues("error").Inc()
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return ConsentRecord{}, dErrors.Wrap(err, dErrors.CodeCancelled, "commit cancelled")
		}
		return ConsentRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "persist consent record")
	}

	e.mu.Lock()
	ent.committed = next
	// Drop only what we applied; a toggle staged mid-save survives.
	for name, granted := range applied {
		if staged, still := ent.pending[name]; still && staged == granted {
			delete(ent.pending, name)
		}
	}
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.ConsentCommits.WithLabelValues("ok").Inc()
	}
	e.logger.InfoContext(ctx, "consent record committed",
		"user_id", userID.String(),
		"agreement_id", agreementID.String(),
		"decisions", len(applied),
	)
	return next.Clone(), nil
}

// IsDirty reports whether staged but uncommitted changes exist. Pure query.
func (e *Engine) IsDirty(userID domain.UserID, agreementID domain.AgreementID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.entries[recordKey(userID, agreementID)]
	return ok && len(ent.pending) > 0
}

// Summarize computes display counts over the committed record only; staged
// changes are not reflected until Commit.
func (e *Engine) Summarize(userID domain.UserID, agreementID domain.AgreementID) (Summary, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.entries[recordKey(userID, agreementID)]
	if !ok {
		return Summary{}, dErrors.New(dErrors.CodeNotFound, "consent record not found")
	}
	s := Summary{TotalPurposes: len(ent.committed.Decisions)}
	for _, granted := range ent.committed.Decisions {
		if granted {
			s.GrantedCount++
		}
	}
	return s, nil
}

// Record returns the committed record. Read-only; never blocks on mutations.
func (e *Engine) Record(userID domain.UserID, agreementID domain.AgreementID) (ConsentRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.entries[recordKey(userID, agreementID)]
	if !ok {
		return ConsentRecord{}, dErrors.New(dErrors.CodeNotFound, "consent record not found")
	}
	return ent.committed.Clone(), nil
}

// recordMatches reports whether the record already reflects the agreement's
// version and purpose-name set.
func recordMatches(r ConsentRecord, ag agreement.Agreement) bool {
	if r.AgreementVersion != ag.Version || len(r.Decisions) != len(ag.Purposes) {
		return false
	}
	for _, p := range ag.Purposes {
		if _, ok := r.Decisions[p.Name]; !ok {
			return false
		}
	}
	return true
}
