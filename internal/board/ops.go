package board

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"studioops/backend/internal/domain"
	"studioops/backend/internal/planner"
)

var ErrUnknownAppointment = errors.New("board: appointment is not on the board")

// Create validates the draft's full span against the current snapshot and
// adds it locally before committing.
func (b *Board) Create(ctx context.Context, d *planner.Draft) (*Pending, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.planner.ValidateDraft(d, b.snapshotLocked()); err != nil {
		return nil, err
	}
	a, err := d.Build()
	if err != nil {
		return nil, err
	}
	if a.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		a.ID = id
	}

	rev := b.applyLocked(a.ID, &a)
	return b.commit(ctx, "create appointment", a.ID, nil, rev, func(ctx context.Context) (domain.Appointment, error) {
		return b.store.CreateAppointment(ctx, a)
	}), nil
}

// Move drops an existing appointment at target, keeping its duration.
func (b *Board) Move(ctx context.Context, id uuid.UUID, target planner.Target, override bool) (*Pending, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, ok := b.appts[id]
	if !ok {
		return nil, ErrUnknownAppointment
	}
	patch, err := b.planner.Move(prev, target, override, b.snapshotLocked())
	if err != nil {
		return nil, err
	}
	next := prev.Clone()
	patch.Apply(&next)

	prev = prev.Clone()
	rev := b.applyLocked(id, &next)
	return b.commit(ctx, "move appointment", id, &prev, rev, func(ctx context.Context) (domain.Appointment, error) {
		return b.store.UpdateAppointment(ctx, id, patch)
	}), nil
}

// SetStatus runs the lifecycle guard against the current snapshot and keeps
// the persisted payment status in step.
func (b *Board) SetStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (*Pending, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, ok := b.appts[id]
	if !ok {
		return nil, ErrUnknownAppointment
	}
	if err := b.guard.Check(prev, status); err != nil {
		return nil, err
	}
	next := prev.Clone()
	next.Status = status
	b.guard.Sync(&next)
	if next.Status == prev.Status && next.PaymentStatus == prev.PaymentStatus {
		return done(next), nil
	}

	patch := domain.AppointmentPatch{Status: &next.Status, PaymentStatus: &next.PaymentStatus}
	prev = prev.Clone()
	rev := b.applyLocked(id, &next)
	return b.commit(ctx, "set status", id, &prev, rev, func(ctx context.Context) (domain.Appointment, error) {
		return b.store.UpdateAppointment(ctx, id, patch)
	}), nil
}

// RecordPayment appends a payment and, when it clears the balance, moves the
// appointment to completed if the guard allows it.
//
// The payment row is the source of truth. If it is stored but the follow-up
// status write fails, the payment stays on the board and the error is still
// returned.
func (b *Board) RecordPayment(ctx context.Context, p domain.Payment) (*Pending, error) {
	if p.Amount <= 0 {
		return nil, domain.Validation("amount must be greater than zero")
	}
	if !p.Method.Valid() {
		return nil, domain.Validation("unknown payment method")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	prev, ok := b.appts[p.AppointmentID]
	if !ok {
		return nil, ErrUnknownAppointment
	}
	if p.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		p.ID = id
	}

	prev = prev.Clone()
	next, patch := b.withPayment(prev, p)

	id := p.AppointmentID
	rev := b.applyLocked(id, &next)
	pending := newPending()
	go func() {
		stored, err := b.store.AppendPayment(ctx, p)
		if err != nil {
			b.rollback(id, &prev, rev)
			b.logger.Warn("payment append failed, rolled back", slog.String("appointment_id", id.String()), slog.Any("err", err))
			pending.finish(domain.Appointment{}, domain.Persistence("record payment", err))
			return
		}

		// The store returns the existing row for a replayed payment, which
		// must not be counted twice.
		var settled domain.Appointment
		if stored.ID != p.ID {
			b.logger.Info("payment already recorded",
				slog.String("appointment_id", id.String()),
				slog.String("payment_id", stored.ID.String()),
			)
			settled, patch = b.withPayment(prev, stored)
		} else {
			settled = next.Clone()
			for i := range settled.Payments {
				if settled.Payments[i].ID == stored.ID {
					settled.Payments[i] = stored
				}
			}
		}

		updated, err := b.store.UpdateAppointment(ctx, id, patch)
		if err != nil {
			b.logger.Error("payment stored but status sync failed",
				slog.String("appointment_id", id.String()),
				slog.String("payment_id", stored.ID.String()),
				slog.Any("err", err),
			)
			pending.finish(b.settle(id, settled, rev), domain.Persistence("sync payment status", err))
			return
		}
		updated.Payments = settled.Payments
		pending.finish(b.settle(id, updated, rev), nil)
	}()
	return pending, nil
}

// withPayment returns a with p added unless a payment with the same id is
// already there, along with the status patch that keeps the store in step.
func (b *Board) withPayment(a domain.Appointment, p domain.Payment) (domain.Appointment, domain.AppointmentPatch) {
	next := a.Clone()
	if !hasPayment(next.Payments, p.ID) {
		next.Payments = append(next.Payments, p)
	}
	b.guard.Sync(&next)
	if status, ok := b.guard.Settle(next); ok {
		next.Status = status
	}
	patch := domain.AppointmentPatch{PaymentStatus: &next.PaymentStatus}
	if next.Status != a.Status {
		patch.Status = &next.Status
	}
	return next, patch
}

func hasPayment(payments []domain.Payment, id uuid.UUID) bool {
	for _, p := range payments {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Delete removes a never-paid appointment.
func (b *Board) Delete(ctx context.Context, id uuid.UUID) (*Pending, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, ok := b.appts[id]
	if !ok {
		return nil, ErrUnknownAppointment
	}
	if err := b.guard.CanDelete(prev); err != nil {
		return nil, err
	}

	prev = prev.Clone()
	rev := b.applyLocked(id, nil)
	return b.commit(ctx, "delete appointment", id, &prev, rev, func(ctx context.Context) (domain.Appointment, error) {
		return domain.Appointment{}, b.store.DeleteAppointment(ctx, id)
	}), nil
}
