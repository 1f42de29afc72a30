package agreement

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"consentdesk/internal/platform/metrics"
	"consentdesk/pkg/domain"
	dErrors "consentdesk/pkg/domain-errors"
	"consentdesk/pkg/platform/flight"
	"consentdesk/pkg/platform/sentinel"
)

// Service owns the agreement collection: create, update with version bump,
// list, fetch, archive. Mutations are single-flight per agreement id; reads
// never block on mutations in flight.
type Service struct {
	store   Store
	flights *flight.Group
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock sets the clock function for testability.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics attaches Prometheus counters.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		flights: flight.New(),
		tracer:  otel.Tracer("consentdesk/agreement"),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create validates the draft and stores a fresh agreement with version 1 and
// active status.
//
// Errors: CodeValidation carrying one message per violated field.
func (s *Service) Create(ctx context.Context, draft Draft) (Agreement, error) {
	ctx, span := s.tracer.Start(ctx, "agreement.create")
	defer span.End()

	if err := validateContent(draft.Title, draft.Name, draft.Text, draft.Purposes); err != nil {
		return Agreement{}, err
	}

	a := Agreement{
		ID:          domain.NewAgreementID(),
		Title:       draft.Title,
		Name:        draft.Name,
		Version:     1,
		Text:        draft.Text,
		Purposes:    append([]domain.Purpose(nil), draft.Purposes...),
		CreatedDate: s.now(),
		Status:      StatusActive,
	}
	if err := s.store.Save(ctx, a); err != nil {
		return Agreement{}, dErrors.Wrap(err, dErrors.CodeInternal, "save agreement")
	}
	if s.metrics != nil {
		s.metrics.AgreementsCreated.Inc()
	}
	return a, nil
}

// Update merges the patch onto the current version, re-validates exactly as
// Create, and bumps the version by 1 iff title, text, or purposes changed.
// Metadata-only edits never bump the version.
//
// Errors: CodeNotFound for unknown ids, CodeValidation for an invalid merged
// result, CodeConflict when another update for the same id is in flight.
func (s *Service) Update(ctx context.Context, id domain.AgreementID, patch Patch) (Agreement, error) {
	ctx, span := s.tracer.Start(ctx, "agreement.update")
	defer span.End()

	release, err := s.flights.Acquire(id.String())
	if err != nil {
		return Agreement{}, dErrors.Wrap(err, dErrors.CodeConflict, "update already in flight for agreement")
	}
	defer release()

	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Agreement{}, dErrors.New(dErrors.CodeNotFound, "agreement not found")
		}
		return Agreement{}, dErrors.Wrap(err, dErrors.CodeInternal, "load agreement")
	}

	title, name, text := current.Title, current.Name, current.Text
	purposes := current.Purposes
	if patch.Title != nil {
		title = *patch.Title
	}
	if patch.Name != nil {
		name = *patch.Name
	}
	if patch.Text != nil {
		text = *patch.Text
	}
	if patch.Purposes != nil {
		purposes = patch.Purposes
	}

	if err := validateContent(title, name, text, purposes); err != nil {
		return Agreement{}, err
	}

	next := current.Clone()
	next.Title = title
	next.Name = name
	next.Text = text
	next.Purposes = append([]domain.Purpose(nil), purposes...)
	if !current.contentEquals(title, text, purposes) {
		next.Version = current.Version + 1
		if s.metrics != nil {
			s.metrics.AgreementVersions.Inc()
		}
	}

	if err := s.store.Save(ctx, next); err != nil {
		return Agreement{}, dErrors.Wrap(err, dErrors.CodeInternal, "save agreement")
	}
	return next, nil
}

// Get returns the current (latest) version of an agreement.
func (s *Service) Get(ctx context.Context, id domain.AgreementID) (Agreement, error) {
	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Agreement{}, dErrors.New(dErrors.CodeNotFound, "agreement not found")
		}
		return Agreement{}, dErrors.Wrap(err, dErrors.CodeInternal, "load agreement")
	}
	return a, nil
}

// List returns agreements whose title or name contains the filter substring,
// case-insensitively, in creation order. An empty filter returns all.
func (s *Service) List(ctx context.Context, filter string) ([]Agreement, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list agreements")
	}
	if filter == "" {
		return all, nil
	}
	needle := strings.ToLower(filter)
	out := make([]Agreement, 0, len(all))
	for _, a := range all {
		if strings.Contains(strings.ToLower(a.Title), needle) ||
			strings.Contains(strings.ToLower(a.Name), needle) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Archive soft-deletes an agreement. The version is untouched: status is
// metadata, not content.
func (s *Service) Archive(ctx context.Context, id domain.AgreementID) (Agreement, error) {
	ctx, span := s.tracer.Start(ctx, "agreement.archive")
	defer span.End()

	release, err := s.flights.Acquire(id.String())
	if err != nil {
		return Agreement{}, dErrors.Wrap(err, dErrors.CodeConflict, "update already in flight for agreement")
	}
	defer release()

	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Agreement{}, dErrors.New(dErrors.CodeNotFound, "agreement not found")
		}
		return Agreement{}, dErrors.Wrap(err, dErrors.CodeInternal, "load agreement")
	}
	if current.Status == StatusArchived {
		return current, nil
	}
	next := current.Clone()
	next.Status = StatusArchived
	if err := s.store.Save(ctx, next); err != nil {
		return Agreement{}, dErrors.Wrap(err, dErrors.CodeInternal, "save agreement")
	}
	return next, nil
}

// validateContent enforces the create/update invariants, accumulating one
// message per violated field.
func validateContent(title, name, text string, purposes []domain.Purpose) error {
	var fields dErrors.FieldErrors
	if strings.TrimSpace(title) == "" {
		fields.Add("title", "title is required")
	}
	if name == "" {
		fields.Add("name", "name is required")
	} else if !domain.ValidSlug(name) {
		fields.Add("name", "name must be a slug")
	}
	if strings.TrimSpace(text) == "" {
		fields.Add("agreement_text", "agreement text is required")
	}
	if len(purposes) == 0 {
		fields.Add("purposes", "at least one purpose is required")
	} else {
		for _, p := range purposes {
			switch {
			case p.Name == "":
				fields.Add("purposes", "purpose name is required")
			case !domain.ValidSlug(p.Name):
				fields.Add("purposes", "purpose name must be a slug: "+p.Name)
			case p.Description == "":
				fields.Add("purposes", "purpose description is required: "+p.Name)
			}
		}
		if !domain.UniquePurposeNames(purposes) {
			fields.Add("purposes", "purpose names must be unique")
		}
	}
	return fields.Err()
}
