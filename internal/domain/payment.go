package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type PaymentMethod string

const (
	MethodCash    PaymentMethod = "cash"
	MethodCard    PaymentMethod = "card"
	MethodCashApp PaymentMethod = "cashapp"
	MethodVenmo   PaymentMethod = "venmo"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodCashApp, MethodVenmo:
		return true
	}
	return false
}

// Payment is append-only: once stored it is never updated or deleted.
type Payment struct {
	bun.BaseModel `bun:"table:payments,alias:p"`

	ID            uuid.UUID     `bun:"id,pk,type:uuid"`
	AppointmentID uuid.UUID     `bun:"appointment_id,notnull,type:uuid"`
	Amount        Money         `bun:"amount,notnull"`
	Method        PaymentMethod `bun:"method,notnull"`
	Reference     string        `bun:"reference,nullzero"`
	CardBrand     string        `bun:"card_brand,nullzero"`
	CardLast4     string        `bun:"card_last4,nullzero"`
	CreatedAt     time.Time     `bun:"created_at,notnull"`
}

func (p *Payment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if p.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		p.ID = id
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return nil
}
