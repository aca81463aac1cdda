package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taxcase/internal/directory/models"
	id "taxcase/pkg/domain"
)

// Writer is the write side of a directory store.
type Writer interface {
	SaveUser(ctx context.Context, u *models.User) error
	SaveEntity(ctx context.Context, e *models.Entity) error
}

// Seed holds the ids created by SeedDevelopment.
type Seed struct {
	Holding      id.EntityID
	Branch       id.EntityID
	Admin        id.UserID
	HoldingStaff id.UserID
	BranchStaff  id.UserID
}

// Fixed ids keep development tokens stable across restarts.
var (
	seedHolding      = uuid.MustParse("6f1d3c2a-0000-4000-8000-000000000001")
	seedBranch       = uuid.MustParse("6f1d3c2a-0000-4000-8000-000000000002")
	seedAdmin        = uuid.MustParse("6f1d3c2a-0000-4000-8000-000000000010")
	seedHoldingStaff = uuid.MustParse("6f1d3c2a-0000-4000-8000-000000000011")
	seedBranchStaff  = uuid.MustParse("6f1d3c2a-0000-4000-8000-000000000012")
)

// SeedDevelopment creates a holding with one branch, an administrator without
// an entity, and one staff member in each entity. It is idempotent.
func SeedDevelopment(ctx context.Context, w Writer, now time.Time) (*Seed, error) {
	seed := &Seed{
		Holding:      id.EntityID(seedHolding),
		Branch:       id.EntityID(seedBranch),
		Admin:        id.UserID(seedAdmin),
		HoldingStaff: id.UserID(seedHoldingStaff),
		BranchStaff:  id.UserID(seedBranchStaff),
	}

	holding, err := models.NewEntity(seed.Holding, "Holding Group", "HOLDING", nil, now)
	if err != nil {
		return nil, err
	}
	branch, err := models.NewEntity(seed.Branch, "Branch Office", "BRANCH", &seed.Holding, now)
	if err != nil {
		return nil, err
	}
	for _, e := range []*models.Entity{holding, branch} {
		if err := w.SaveEntity(ctx, e); err != nil {
			return nil, fmt.Errorf("seed entity %s: %w", e.Name, err)
		}
	}

	users := []struct {
		id     id.UserID
		email  string
		name   string
		role   string
		entity *id.EntityID
	}{
		{seed.Admin, "admin@taxcase.local", "Administrator", "admin", nil},
		{seed.HoldingStaff, "holding.staff@taxcase.local", "Holding Staff", "staff", &seed.Holding},
		{seed.BranchStaff, "branch.staff@taxcase.local", "Branch Staff", "staff", &seed.Branch},
	}
	for _, u := range users {
		user, err := models.NewUser(u.id, u.email, u.name, u.role, u.entity, now)
		if err != nil {
			return nil, err
		}
		if err := w.SaveUser(ctx, user); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.email, err)
		}
	}
	return seed, nil
}
