package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	StatusPending    AppointmentStatus = "pending"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in-progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no-show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentDeposit PaymentStatus = "deposit"
	PaymentPaid    PaymentStatus = "paid"
)

// DefaultDurationMinutes is assumed for appointments stored without a duration.
const DefaultDurationMinutes = 60

type Appointment struct {
	bun.BaseModel `bun:"table:appointments,alias:a"`

	ID              uuid.UUID         `bun:"id,pk,type:uuid"`
	ResourceID      uuid.UUID         `bun:"resource_id,notnull,type:uuid"`
	ClientID        *uuid.UUID        `bun:"client_id,type:uuid"`
	ServiceID       *uuid.UUID        `bun:"service_id,type:uuid"`
	Date            string            `bun:"appointment_date,notnull"`
	StartTime       string            `bun:"start_time,notnull"`
	DurationMinutes int               `bun:"duration,notnull"`
	Price           Money             `bun:"price,notnull"`
	DepositPaid     Money             `bun:"deposit_paid,notnull"`
	Status          AppointmentStatus `bun:"status,notnull"`
	PaymentStatus   PaymentStatus     `bun:"payment_status,notnull"`
	Notes           string            `bun:"notes"`
	Payments        []Payment         `bun:"rel:has-many,join:id=appointment_id"`
	CreatedAt       time.Time         `bun:"created_at,notnull"`
	UpdatedAt       time.Time         `bun:"updated_at,notnull"`
}

// Duration returns the booked length in minutes, falling back to the default
// for legacy rows stored without one.
func (a Appointment) Duration() int {
	if a.DurationMinutes <= 0 {
		return DefaultDurationMinutes
	}
	return a.DurationMinutes
}

// Clone returns a copy that shares no slices with a.
func (a Appointment) Clone() Appointment {
	out := a
	if a.Payments != nil {
		out.Payments = append([]Payment(nil), a.Payments...)
	}
	if a.ClientID != nil {
		id := *a.ClientID
		out.ClientID = &id
	}
	if a.ServiceID != nil {
		id := *a.ServiceID
		out.ServiceID = &id
	}
	return out
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// AppointmentPatch is a partial update. Nil fields are left untouched.
type AppointmentPatch struct {
	ResourceID      *uuid.UUID
	Date            *string
	StartTime       *string
	DurationMinutes *int
	Price           *Money
	DepositPaid     *Money
	Status          *AppointmentStatus
	PaymentStatus   *PaymentStatus
	Notes           *string
}

func (p AppointmentPatch) Apply(a *Appointment) {
	if p.ResourceID != nil {
		a.ResourceID = *p.ResourceID
	}
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.StartTime != nil {
		a.StartTime = *p.StartTime
	}
	if p.DurationMinutes != nil {
		a.DurationMinutes = *p.DurationMinutes
	}
	if p.Price != nil {
		a.Price = *p.Price
	}
	if p.DepositPaid != nil {
		a.DepositPaid = *p.DepositPaid
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.PaymentStatus != nil {
		a.PaymentStatus = *p.PaymentStatus
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
}

// Columns lists the database columns touched by the patch.
func (p AppointmentPatch) Columns() []string {
	cols := make([]string, 0, 9)
	if p.ResourceID != nil {
		cols = append(cols, "resource_id")
	}
	if p.Date != nil {
		cols = append(cols, "appointment_date")
	}
	if p.StartTime != nil {
		cols = append(cols, "start_time")
	}
	if p.DurationMinutes != nil {
		cols = append(cols, "duration")
	}
	if p.Price != nil {
		cols = append(cols, "price")
	}
	if p.DepositPaid != nil {
		cols = append(cols, "deposit_paid")
	}
	if p.Status != nil {
		cols = append(cols, "status")
	}
	if p.PaymentStatus != nil {
		cols = append(cols, "payment_status")
	}
	if p.Notes != nil {
		cols = append(cols, "notes")
	}
	return cols
}

// MovesTime reports whether the patch changes where the appointment sits on the grid.
func (p AppointmentPatch) MovesTime() bool {
	return p.ResourceID != nil || p.Date != nil || p.StartTime != nil || p.DurationMinutes != nil
}
