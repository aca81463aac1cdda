package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Authorizer,NotificationSink,AuditPublisher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taxcase/internal/revision/metrics"
	"taxcase/internal/revision/models"
	id "taxcase/pkg/domain"
	dErrors "taxcase/pkg/domain-errors"
	"taxcase/pkg/platform/audit"
	"taxcase/pkg/platform/sentinel"
	"taxcase/pkg/requestcontext"
)

const (
	tracerName       = "taxcase/revision"
	defaultListLimit = 50
	maxListLimit     = 500
)

// Store persists revisions. UpdateIfState must be a single atomic
// compare-and-set on the stored state.
type Store interface {
	Create(ctx context.Context, r *models.Revision) error
	FindByID(ctx context.Context, revisionID id.RevisionID) (*models.Revision, error)
	UpdateIfState(ctx context.Context, revisionID id.RevisionID, expected, next models.State, decider id.UserID, decidedAt time.Time) (*models.Revision, error)
	ListByState(ctx context.Context, states []models.State, limit int) ([]*models.Revision, error)
	ListByTarget(ctx context.Context, ref models.RevisableRef) ([]*models.Revision, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, principal models.Principal, action models.Action, revision *models.Revision) (bool, error)
}

type NotificationSink interface {
	Publish(ctx context.Context, n models.Notification) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs the revision workflow: it gates every operation through the
// Authorizer, persists transitions, and fans out audit events and
// notifications once a transition is committed.
type Service struct {
	store          Store
	authz          Authorizer
	notifier       NotificationSink
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	newID          func() id.RevisionID
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(sink NotificationSink) Option {
	return func(s *Service) {
		s.notifier = sink
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithIDGenerator overrides revision id generation.
func WithIDGenerator(fn func() id.RevisionID) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

func New(store Store, authz Authorizer, opts ...Option) *Service {
	s := &Service{
		store:  store,
		authz:  authz,
		tracer: otel.Tracer(tracerName),
		newID:  func() id.RevisionID { return id.RevisionID(uuid.New()) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authorize exposes the gate to callers that need a yes/no answer without
// performing the action.
func (s *Service) Authorize(ctx context.Context, principal models.Principal, action models.Action, revision *models.Revision) (bool, error) {
	return s.authz.Authorize(ctx, principal, action, revision)
}

// Request opens a revision against target on behalf of principal.
func (s *Service) Request(ctx context.Context, principal models.Principal, target models.RevisableRef, reason string) (*models.Revision, error) {
	ctx, span := s.tracer.Start(ctx, "revision.Request", trace.WithAttributes(
		attribute.String("revision.target", target.String()),
	))
	defer span.End()

	revision, err := s.request(ctx, principal, target, reason)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("revision.id", revision.ID.String()))
	return revision, nil
}

func (s *Service) request(ctx context.Context, principal models.Principal, target models.RevisableRef, reason string) (*models.Revision, error) {
	if err := s.ensureAllowed(ctx, principal, models.ActionRequest, nil); err != nil {
		return nil, err
	}
	target, err := models.ParseRevisableRef(string(target.Kind), target.ID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	revision, err := models.NewRevision(s.newID(), target, principal.ID, reason, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	start := time.Now()
	err = s.store.Create(ctx, revision)
	s.metrics.ObserveStore("create", time.Since(start))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create revision")
	}

	s.metrics.IncRequested()
	s.logInfo(ctx, "revision requested",
		"revision_id", revision.ID,
		"principal_id", principal.ID,
		"target", target.String(),
	)

	after := context.WithoutCancel(ctx)
	s.emitAudit(after, audit.EventRevisionRequested, principal, revision)
	s.notify(after, models.NewRevisionRequested(revision, now))
	return revision, nil
}

// Decide applies outcome to a requested revision. Of several concurrent
// deciders exactly one succeeds; the others get ErrInvalidStateTransition.
func (s *Service) Decide(ctx context.Context, principal models.Principal, revisionID id.RevisionID, outcome models.Outcome) (*models.Revision, error) {
	ctx, span := s.tracer.Start(ctx, "revision.Decide", trace.WithAttributes(
		attribute.String("revision.id", revisionID.String()),
		attribute.String("revision.outcome", string(outcome)),
	))
	defer span.End()

	revision, err := s.decide(ctx, principal, revisionID, outcome)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return revision, nil
}

func (s *Service) decide(ctx context.Context, principal models.Principal, revisionID id.RevisionID, outcome models.Outcome) (*models.Revision, error) {
	if !outcome.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "outcome must be approved or rejected")
	}
	// Gate before the lookup so a denied principal learns nothing about
	// which revisions exist.
	if err := s.ensureAllowed(ctx, principal, models.ActionDecide, nil); err != nil {
		return nil, err
	}

	current, err := s.find(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if err := current.CanDecide(outcome); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	start := time.Now()
	decided, err := s.store.UpdateIfState(ctx, revisionID, models.StateRequested, outcome.State(), principal.ID, now)
	s.metrics.ObserveStore("update_if_state", time.Since(start))
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			s.metrics.IncConflict()
			s.logWarn(ctx, "revision decided concurrently",
				"revision_id", revisionID,
				"principal_id", principal.ID,
			)
			return nil, models.ErrInvalidStateTransition
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, models.ErrNotFound
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record decision")
		}
	}

	s.metrics.IncDecision(string(outcome))
	s.logInfo(ctx, "revision decided",
		"revision_id", decided.ID,
		"principal_id", principal.ID,
		"outcome", string(outcome),
	)

	after := context.WithoutCancel(ctx)
	switch outcome {
	case models.OutcomeApproved:
		s.emitAudit(after, audit.EventRevisionApproved, principal, decided)
		s.notify(after, models.NewRevisionApproved(decided, now))
	case models.OutcomeRejected:
		s.emitAudit(after, audit.EventRevisionRejected, principal, decided)
	}
	return decided, nil
}

// View returns revision to principal when the gate allows it.
func (s *Service) View(ctx context.Context, principal models.Principal, revision *models.Revision) (*models.Revision, error) {
	if revision == nil {
		return nil, models.ErrNotFound
	}
	if err := s.ensureAllowed(ctx, principal, models.ActionView, revision); err != nil {
		return nil, err
	}
	return revision.Clone(), nil
}

// Get loads a revision by id and applies View.
func (s *Service) Get(ctx context.Context, principal models.Principal, revisionID id.RevisionID) (*models.Revision, error) {
	if err := s.ensureAllowed(ctx, principal, models.ActionView, nil); err != nil {
		return nil, err
	}
	revision, err := s.find(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	return s.View(ctx, principal, revision)
}

// ListPending returns requested revisions, newest first.
func (s *Service) ListPending(ctx context.Context, principal models.Principal, limit int) ([]*models.Revision, error) {
	return s.ListByState(ctx, principal, models.StateRequested, limit)
}

// ListByState returns revisions in state, newest first. limit is clamped to
// [1, 500] with 50 as the default.
func (s *Service) ListByState(ctx context.Context, principal models.Principal, state models.State, limit int) ([]*models.Revision, error) {
	if err := s.ensureAllowed(ctx, principal, models.ActionView, nil); err != nil {
		return nil, err
	}
	if !state.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown state: "+string(state))
	}
	start := time.Now()
	revisions, err := s.store.ListByState(ctx, []models.State{state}, clampLimit(limit))
	s.metrics.ObserveStore("list_by_state", time.Since(start))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list revisions")
	}
	return revisions, nil
}

// ListForTarget returns every revision of one revisable, newest first.
func (s *Service) ListForTarget(ctx context.Context, principal models.Principal, target models.RevisableRef) ([]*models.Revision, error) {
	if err := s.ensureAllowed(ctx, principal, models.ActionView, nil); err != nil {
		return nil, err
	}
	target, err := models.ParseRevisableRef(string(target.Kind), target.ID)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	revisions, err := s.store.ListByTarget(ctx, target)
	s.metrics.ObserveStore("list_by_target", time.Since(start))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list revisions")
	}
	return revisions, nil
}

func (s *Service) ensureAllowed(ctx context.Context, principal models.Principal, action models.Action, revision *models.Revision) error {
	allowed, err := s.authz.Authorize(ctx, principal, action, revision)
	if err != nil {
		return err
	}
	if !allowed {
		s.emitDenied(context.WithoutCancel(ctx), principal, action, revision)
		return models.ErrUnauthorized
	}
	return nil
}

// emitDenied records a gate refusal in the security audit trail.
func (s *Service) emitDenied(ctx context.Context, principal models.Principal, action models.Action, revision *models.Revision) {
	if s.auditPublisher == nil {
		return
	}
	e := audit.Event{
		Category:  audit.EventAccessDenied.Category(),
		Timestamp: requestcontext.Now(ctx),
		UserID:    principal.ID,
		Action:    string(audit.EventAccessDenied),
		Decision:  "denied",
		Reason:    string(action),
		RequestID: requestcontext.RequestID(ctx),
	}
	if revision != nil {
		e.Subject = revision.ID.String()
	}
	if err := s.auditPublisher.Emit(ctx, e); err != nil {
		s.logWarn(ctx, "audit emit failed",
			"action", string(audit.EventAccessDenied),
			"error", err,
		)
	}
}

func (s *Service) find(ctx context.Context, revisionID id.RevisionID) (*models.Revision, error) {
	start := time.Now()
	revision, err := s.store.FindByID(ctx, revisionID)
	s.metrics.ObserveStore("find_by_id", time.Since(start))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load revision")
	}
	return revision, nil
}

// notify hands n to the sink. Failures are logged and counted, never returned:
// the transition is already committed.
func (s *Service) notify(ctx context.Context, n models.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, n); err != nil {
		s.metrics.IncNotificationFailure(string(n.Type()))
		s.logWarn(ctx, "revision notification failed",
			"type", string(n.Type()),
			"revision_id", n.Snapshot().ID,
			"error", err,
		)
	}
}

func (s *Service) emitAudit(ctx context.Context, event audit.AuditEvent, principal models.Principal, revision *models.Revision) {
	if s.auditPublisher == nil {
		return
	}
	e := audit.Event{
		Category:  event.Category(),
		Timestamp: requestcontext.Now(ctx),
		UserID:    principal.ID,
		Subject:   revision.ID.String(),
		Action:    string(event),
		Decision:  string(revision.State),
		Reason:    revision.Reason,
		RequestID: requestcontext.RequestID(ctx),
	}
	if err := s.auditPublisher.Emit(ctx, e); err != nil {
		s.logWarn(ctx, "audit emit failed",
			"action", string(event),
			"revision_id", revision.ID,
			"error", err,
		)
	}
}

func (s *Service) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, msg, args...)
}

func (s *Service) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	s.logger.WarnContext(ctx, msg, args...)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
