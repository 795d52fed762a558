package postgres

import (
	"context"
	"database/sql"
	"errors"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"studioops/backend/internal/conflict"
	"studioops/backend/internal/domain"
	"studioops/backend/internal/store"
	"studioops/backend/internal/timegrid"
)

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

type scheduleTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.db.NewSelect().
		Model(&out).
		Relation("Payments", orderPayments).
		Where("a.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return out, nil
}

// ListDay returns every resource's appointments on day, cancelled ones included.
func (r *AppointmentRepo) ListDay(ctx context.Context, day civil.Date) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Payments", orderPayments).
		Where("a.appointment_date = ?", day.String()).
		OrderExpr("a.start_time ASC, a.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	day, err := timegrid.ParseDate(appt.Date)
	if err != nil {
		return domain.Appointment{}, err
	}

	var out domain.Appointment
	err = r.InResourceDay(ctx, appt.ResourceID, day, func(ctx context.Context, tx store.ScheduleTx) error {
		if err := ensureFree(ctx, tx, appt, day); err != nil {
			return err
		}
		a, err := tx.InsertAppointment(ctx, appt)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

// Update applies patch under the lock of the appointment's destination day.
// Time or resource changes are re-checked for overlaps first.
func (r *AppointmentRepo) Update(ctx context.Context, id uuid.UUID, patch domain.AppointmentPatch) (domain.Appointment, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}

	target := current.Clone()
	patch.Apply(&target)
	day, err := timegrid.ParseDate(target.Date)
	if err != nil {
		return domain.Appointment{}, err
	}

	var out domain.Appointment
	err = r.InResourceDay(ctx, target.ResourceID, day, func(ctx context.Context, tx store.ScheduleTx) error {
		fresh, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		next := fresh.Clone()
		patch.Apply(&next)

		if patch.MovesTime() {
			if err := ensureFree(ctx, tx, next, day); err != nil {
				return err
			}
		}
		cols := append(patch.Columns(), "updated_at")
		if err := tx.UpdateAppointment(ctx, next, cols); err != nil {
			return err
		}
		payments, err := tx.ListPayments(ctx, id)
		if err != nil {
			return err
		}
		next.Payments = payments
		out = next
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

// Delete removes an appointment that never took money. Anything with a
// recorded payment or deposit returns ErrHasPayments.
func (r *AppointmentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	day, err := timegrid.ParseDate(current.Date)
	if err != nil {
		return err
	}

	return r.InResourceDay(ctx, current.ResourceID, day, func(ctx context.Context, tx store.ScheduleTx) error {
		fresh, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		if fresh.DepositPaid > 0 {
			return store.ErrHasPayments
		}
		n, err := tx.CountPayments(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return store.ErrHasPayments
		}
		return tx.DeleteAppointment(ctx, id)
	})
}

// InResourceDay runs fn in a transaction holding the advisory lock for one
// resource's day, so concurrent bookings on it are serialized.
func (r *AppointmentRepo) InResourceDay(ctx context.Context, resourceID uuid.UUID, day civil.Date, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockResourceDay(ctx, tx, resourceID, day); err != nil {
			return err
		}
		return fn(ctx, scheduleTx{tx: tx})
	})
}

func lockResourceDay(ctx context.Context, tx bun.Tx, resourceID uuid.UUID, day civil.Date) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", resourceID.String()+":"+day.String()).Exec(ctx)
	return err
}

func ensureFree(ctx context.Context, tx store.ScheduleTx, appt domain.Appointment, day civil.Date) error {
	start, end, ok := conflict.Interval(appt)
	if !ok {
		return domain.Validation("invalid start time")
	}
	existing, err := tx.ListResourceDay(ctx, appt.ResourceID, day)
	if err != nil {
		return err
	}
	if conflict.HasConflict(appt.ResourceID, day, start, end, existing, appt.ID) {
		return store.ErrConflict
	}
	return nil
}

func orderPayments(q *bun.SelectQuery) *bun.SelectQuery {
	return q.OrderExpr("created_at ASC")
}

func (r scheduleTx) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.tx.NewSelect().
		Model(&out).
		Where("a.id = ?", id).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r scheduleTx) ListResourceDay(ctx context.Context, resourceID uuid.UUID, day civil.Date) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.tx.NewSelect().
		Model(&rows).
		Where("a.resource_id = ?", resourceID).
		Where("a.appointment_date = ?", day.String()).
		OrderExpr("a.start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertAppointment treats a replayed id as an idempotent retry: the stored
// row is returned when it describes the same booking.
func (r scheduleTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt.Clone()
	m.Payments = nil

	res, err := r.tx.NewInsert().
		Model(&m).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected > 0 {
		return m, nil
	}

	var existing domain.Appointment
	err = r.tx.NewSelect().
		Model(&existing).
		Where("a.id = ?", m.ID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !sameBooking(existing, appt) {
		return domain.Appointment{}, store.ErrIdempotencyConflict
	}
	return existing, nil
}

func sameBooking(a, b domain.Appointment) bool {
	return a.ResourceID == b.ResourceID &&
		a.Date == b.Date &&
		a.StartTime == b.StartTime &&
		a.Duration() == b.Duration() &&
		a.Price == b.Price &&
		a.DepositPaid == b.DepositPaid
}

func (r scheduleTx) UpdateAppointment(ctx context.Context, appt domain.Appointment, columns []string) error {
	m := appt.Clone()
	res, err := r.tx.NewUpdate().
		Model(&m).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r scheduleTx) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	res, err := r.tx.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r scheduleTx) ListPayments(ctx context.Context, appointmentID uuid.UUID) ([]domain.Payment, error) {
	var rows []domain.Payment
	err := r.tx.NewSelect().
		Model(&rows).
		Where("appointment_id = ?", appointmentID).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r scheduleTx) CountPayments(ctx context.Context, appointmentID uuid.UUID) (int, error) {
	return r.tx.NewSelect().
		Model((*domain.Payment)(nil)).
		Where("appointment_id = ?", appointmentID).
		Count(ctx)
}
