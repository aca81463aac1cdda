// Package identity turns an authenticated user id into a fully loaded
// workflow principal.
package identity

import (
	"context"
	"errors"
	"log/slog"

	dirmodels "taxcase/internal/directory/models"
	"taxcase/internal/revision/models"
	id "taxcase/pkg/domain"
	dErrors "taxcase/pkg/domain-errors"
	"taxcase/pkg/platform/sentinel"
)

// Directory is the read side of the directory store.
type Directory interface {
	FindUser(ctx context.Context, userID id.UserID) (*dirmodels.User, error)
	FindEntity(ctx context.Context, entityID id.EntityID) (*dirmodels.Entity, error)
}

// Cache stores resolved principals. A miss is (zero, false, nil).
type Cache interface {
	Get(ctx context.Context, userID id.UserID) (Snapshot, bool, error)
	Set(ctx context.Context, snap Snapshot) error
	Invalidate(ctx context.Context, userID id.UserID) error
}

// Resolver loads a user's role and entity from the directory, optionally
// through a cache.
type Resolver struct {
	directory Directory
	cache     Cache
	logger    *slog.Logger
	metrics   *Metrics
}

type Option func(*Resolver)

func WithCache(cache Cache) Option {
	return func(r *Resolver) {
		r.cache = cache
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func NewResolver(directory Directory, opts ...Option) *Resolver {
	r := &Resolver{directory: directory}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns a resolved principal for userID. Unknown users, users
// without a role, and users whose entity is missing yield
// models.ErrPrincipalNotResolved. Cache failures fall back to the directory.
func (r *Resolver) Resolve(ctx context.Context, userID id.UserID) (models.Principal, error) {
	if userID.IsNil() {
		return models.Principal{}, models.ErrPrincipalNotResolved
	}

	if r.cache != nil {
		snap, ok, err := r.cache.Get(ctx, userID)
		switch {
		case err != nil:
			r.logWarn(ctx, "principal cache read failed", "user_id", userID, "error", err)
		case ok:
			r.metrics.IncHit()
			return snap.Principal(), nil
		default:
			r.metrics.IncMiss()
		}
	}

	snap, err := r.load(ctx, userID)
	if err != nil {
		return models.Principal{}, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, snap); err != nil {
			r.logWarn(ctx, "principal cache write failed", "user_id", userID, "error", err)
		}
	}
	return snap.Principal(), nil
}

// Invalidate drops the cached principal after a role or entity change.
func (r *Resolver) Invalidate(ctx context.Context, userID id.UserID) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Invalidate(ctx, userID)
}

func (r *Resolver) load(ctx context.Context, userID id.UserID) (Snapshot, error) {
	user, err := r.directory.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Snapshot{}, models.ErrPrincipalNotResolved
		}
		return Snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if user.Role == "" {
		return Snapshot{}, models.ErrPrincipalNotResolved
	}

	snap := Snapshot{UserID: user.ID, Role: user.Role}
	if user.EntityID == nil {
		return snap, nil
	}
	entity, err := r.directory.FindEntity(ctx, *user.EntityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			r.logWarn(ctx, "user references missing entity", "user_id", userID, "entity_id", *user.EntityID)
			return Snapshot{}, models.ErrPrincipalNotResolved
		}
		return Snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entity")
	}
	snap.Entity = &EntitySnapshot{ID: entity.ID, Name: entity.Name, Type: entity.Type}
	return snap, nil
}

func (r *Resolver) logWarn(ctx context.Context, msg string, args ...any) {
	if r.logger != nil {
		r.logger.WarnContext(ctx, msg, args...)
	}
}
