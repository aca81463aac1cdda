package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"taxcase/internal/directory/models"
	id "taxcase/pkg/domain"
	"taxcase/pkg/platform/sentinel"
	txcontext "taxcase/pkg/platform/tx"
)

// PostgresStore reads and writes the users and entities tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	query := `
		SELECT id, email, name, role, entity_id, created_at
		FROM users
		WHERE id = $1
	`
	var (
		u        models.User
		rawID    uuid.UUID
		entityID uuid.NullUUID
	)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(userID)).
		Scan(&rawID, &u.Email, &u.Name, &u.Role, &entityID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.ID = id.UserID(rawID)
	if entityID.Valid {
		e := id.EntityID(entityID.UUID)
		u.EntityID = &e
	}
	return &u, nil
}

func (s *PostgresStore) FindEntity(ctx context.Context, entityID id.EntityID) (*models.Entity, error) {
	query := `
		SELECT id, name, entity_type, parent_id, created_at
		FROM entities
		WHERE id = $1
	`
	var (
		e        models.Entity
		rawID    uuid.UUID
		parentID uuid.NullUUID
	)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(entityID)).
		Scan(&rawID, &e.Name, &e.Type, &parentID, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find entity: %w", err)
	}
	e.ID = id.EntityID(rawID)
	if parentID.Valid {
		p := id.EntityID(parentID.UUID)
		e.ParentID = &p
	}
	return &e, nil
}

func (s *PostgresStore) SaveUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (id, email, name, role, entity_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			entity_id = EXCLUDED.entity_id
	`
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(u.ID), u.Email, u.Name, u.Role, nullableEntityID(u.EntityID), u.CreatedAt)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveEntity(ctx context.Context, e *models.Entity) error {
	query := `
		INSERT INTO entities (id, name, entity_type, parent_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			entity_type = EXCLUDED.entity_type,
			parent_id = EXCLUDED.parent_id
	`
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(e.ID), e.Name, e.Type, nullableEntityID(e.ParentID), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("save entity: %w", err)
	}
	return nil
}

func nullableEntityID(e *id.EntityID) uuid.NullUUID {
	if e == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*e), Valid: true}
}
