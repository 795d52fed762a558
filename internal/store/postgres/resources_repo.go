package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"studioops/backend/internal/domain"
	"studioops/backend/internal/store"
)

type ResourceRepo struct {
	db *bun.DB
}

func NewResourceRepo(db *bun.DB) *ResourceRepo {
	return &ResourceRepo{db: db}
}

func (r *ResourceRepo) List(ctx context.Context) ([]domain.Resource, error) {
	var rows []domain.Resource
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("r.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ResourceRepo) Get(ctx context.Context, id uuid.UUID) (domain.Resource, error) {
	var out domain.Resource
	err := r.db.NewSelect().
		Model(&out).
		Where("r.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Resource{}, store.ErrNotFound
		}
		return domain.Resource{}, err
	}
	return out, nil
}

// Create is used for seeding and tests; resources are otherwise managed elsewhere.
func (r *ResourceRepo) Create(ctx context.Context, res domain.Resource) (domain.Resource, error) {
	m := res
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Resource{}, err
	}
	return m, nil
}
