package store

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"studioops/backend/internal/domain"
)

// AppointmentRepository returns appointments with their payments loaded.
// Create and Update re-check for overlaps inside the write transaction and
// return ErrConflict when the time is taken.
type AppointmentRepository interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListDay(ctx context.Context, day civil.Date) ([]domain.Appointment, error)
	Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, patch domain.AppointmentPatch) (domain.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type PaymentRepository interface {
	Append(ctx context.Context, p domain.Payment) (domain.Payment, error)
	List(ctx context.Context, appointmentID uuid.UUID) ([]domain.Payment, error)
}

type ResourceRepository interface {
	List(ctx context.Context) ([]domain.Resource, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Resource, error)
}

// ChargeLocks keeps two operators from charging the same appointment's card
// at once. The token returned by Acquire is needed to release the lock.
type ChargeLocks interface {
	Acquire(ctx context.Context, appointmentID uuid.UUID, ttl time.Duration) (token string, err error)
	Release(ctx context.Context, appointmentID uuid.UUID, token string) error
}

// ScheduleTx is the set of writes available while a resource's day is locked.
type ScheduleTx interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListResourceDay(ctx context.Context, resourceID uuid.UUID, day civil.Date) ([]domain.Appointment, error)
	InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment, columns []string) error
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	CountPayments(ctx context.Context, appointmentID uuid.UUID) (int, error)
	ListPayments(ctx context.Context, appointmentID uuid.UUID) ([]domain.Payment, error)
}
