package appointments

import (
	"context"

	"github.com/google/uuid"

	"studioops/backend/internal/domain"
	"studioops/backend/internal/store"
)

// committer persists board changes through the repositories.
type committer struct {
	appts    store.AppointmentRepository
	payments store.PaymentRepository
}

func (c committer) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	return c.appts.Create(ctx, appt)
}

func (c committer) UpdateAppointment(ctx context.Context, id uuid.UUID, patch domain.AppointmentPatch) (domain.Appointment, error) {
	return c.appts.Update(ctx, id, patch)
}

func (c committer) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	return c.appts.Delete(ctx, id)
}

func (c committer) AppendPayment(ctx context.Context, p domain.Payment) (domain.Payment, error) {
	return c.payments.Append(ctx, p)
}
