package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"studioops/backend/internal/domain"
	"studioops/backend/internal/store"
)

type PaymentRepo struct {
	db *bun.DB
}

func NewPaymentRepo(db *bun.DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

// Append inserts a payment. Replaying a payment with the same id or the same
// provider reference returns the stored row instead of recording it twice.
func (r *PaymentRepo) Append(ctx context.Context, p domain.Payment) (domain.Payment, error) {
	m := p
	res, err := r.db.NewInsert().
		Model(&m).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.Payment{}, store.ErrNotFound
		}
		return domain.Payment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Payment{}, err
	}
	if affected > 0 {
		return m, nil
	}

	existing, err := r.findDuplicate(ctx, m)
	if err != nil {
		return domain.Payment{}, err
	}
	if existing.AppointmentID != p.AppointmentID || existing.Amount != p.Amount || existing.Method != p.Method {
		return domain.Payment{}, store.ErrIdempotencyConflict
	}
	return existing, nil
}

func (r *PaymentRepo) findDuplicate(ctx context.Context, p domain.Payment) (domain.Payment, error) {
	var existing domain.Payment
	q := r.db.NewSelect().Model(&existing)
	if p.Reference != "" {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("p.id = ?", p.ID).
				WhereOr("p.method = ? AND p.reference = ?", p.Method, p.Reference)
		})
	} else {
		q = q.Where("p.id = ?", p.ID)
	}
	err := q.Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Payment{}, store.ErrNotFound
	}
	return existing, err
}

func (r *PaymentRepo) List(ctx context.Context, appointmentID uuid.UUID) ([]domain.Payment, error) {
	var rows []domain.Payment
	err := r.db.NewSelect().
		Model(&rows).
		Where("p.appointment_id = ?", appointmentID).
		OrderExpr("p.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
