package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"taxcase/internal/revision/models"
	id "taxcase/pkg/domain"
	"taxcase/pkg/platform/sentinel"
	txcontext "taxcase/pkg/platform/tx"
)

const uniqueViolation = "23505"

const revisionColumns = `id, target_kind, target_id, requester_id, state, reason, decider_id, requested_at, decided_at`

// PostgresStore persists revisions in PostgreSQL. It is pure I/O; lifecycle
// rules live in the models and the service.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed revision store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, r *models.Revision) error {
	if r == nil {
		return fmt.Errorf("revision is required")
	}
	query := `
		INSERT INTO revisions (` + revisionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(r.ID),
		string(r.Target.Kind),
		r.Target.ID,
		uuid.UUID(r.RequesterID),
		string(r.State),
		r.Reason,
		nullableUserID(r.DeciderID),
		r.RequestedAt,
		r.DecidedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("revision %s: %w", r.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert revision: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, revisionID id.RevisionID) (*models.Revision, error) {
	query := `SELECT ` + revisionColumns + ` FROM revisions WHERE id = $1`
	r, err := scanRevision(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(revisionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find revision: %w", err)
	}
	return r, nil
}

// UpdateIfState applies a decision with a single conditional UPDATE so
// concurrent deciders serialize on the row; only the first sees its state
// guard match. A miss is then classified as not found or conflict.
func (s *PostgresStore) UpdateIfState(ctx context.Context, revisionID id.RevisionID, expected, next models.State, decider id.UserID, decidedAt time.Time) (*models.Revision, error) {
	exec := txcontext.Exec(ctx, s.db)
	query := `
		UPDATE revisions
		SET state = $3, decider_id = $4, decided_at = $5
		WHERE id = $1 AND state = $2
		RETURNING ` + revisionColumns
	r, err := scanRevision(exec.QueryRowContext(ctx, query,
		uuid.UUID(revisionID),
		string(expected),
		string(next),
		uuid.UUID(decider),
		decidedAt,
	))
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update revision state: %w", err)
	}

	var exists bool
	if err := exec.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revisions WHERE id = $1)`, uuid.UUID(revisionID),
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check revision existence: %w", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return nil, sentinel.ErrConflict
}

func (s *PostgresStore) ListByState(ctx context.Context, states []models.State, limit int) ([]*models.Revision, error) {
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = string(st)
	}
	if limit <= 0 {
		limit = maxListLimit
	}
	query := `
		SELECT ` + revisionColumns + `
		FROM revisions
		WHERE state = ANY($1)
		ORDER BY requested_at DESC, id DESC
		LIMIT $2
	`
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, pq.Array(names), limit)
	if err != nil {
		return nil, fmt.Errorf("list revisions by state: %w", err)
	}
	defer rows.Close()
	return scanRevisions(rows)
}

func (s *PostgresStore) ListByTarget(ctx context.Context, ref models.RevisableRef) ([]*models.Revision, error) {
	query := `
		SELECT ` + revisionColumns + `
		FROM revisions
		WHERE target_kind = $1 AND target_id = $2
		ORDER BY requested_at DESC, id DESC
	`
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, string(ref.Kind), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("list revisions by target: %w", err)
	}
	defer rows.Close()
	return scanRevisions(rows)
}

// maxListLimit caps unbounded list queries.
const maxListLimit = 500

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRevision(row rowScanner) (*models.Revision, error) {
	var (
		revisionID  uuid.UUID
		kind        string
		targetID    string
		requesterID uuid.UUID
		state       string
		reason      string
		deciderID   uuid.NullUUID
		requestedAt time.Time
		decidedAt   sql.NullTime
	)
	if err := row.Scan(&revisionID, &kind, &targetID, &requesterID, &state, &reason, &deciderID, &requestedAt, &decidedAt); err != nil {
		return nil, err
	}
	r := &models.Revision{
		ID:          id.RevisionID(revisionID),
		Target:      models.RevisableRef{Kind: models.RevisableKind(kind), ID: targetID},
		RequesterID: id.UserID(requesterID),
		State:       models.State(state),
		Reason:      reason,
		RequestedAt: requestedAt,
	}
	if deciderID.Valid {
		d := id.UserID(deciderID.UUID)
		r.DeciderID = &d
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		r.DecidedAt = &t
	}
	return r, nil
}

func scanRevisions(rows *sql.Rows) ([]*models.Revision, error) {
	out := make([]*models.Revision, 0)
	for rows.Next() {
		r, err := scanRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return out, nil
}

func nullableUserID(u *id.UserID) any {
	if u == nil {
		return nil
	}
	return uuid.UUID(*u)
}
