package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DayHours is one weekday's opening window as "HH:MM" wall-clock strings.
type DayHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed"`
}

// WeeklyHours is keyed by lowercase English weekday name ("monday".."sunday").
type WeeklyHours map[string]DayHours

// For returns the hours configured for wd. ok is false when the weekday has no entry.
func (w WeeklyHours) For(wd time.Weekday) (DayHours, bool) {
	if w == nil {
		return DayHours{}, false
	}
	h, ok := w[strings.ToLower(wd.String())]
	return h, ok
}

// Resource is a bookable artist. Hours may be nil, in which case the artist
// is available whenever the shop is open.
type Resource struct {
	bun.BaseModel `bun:"table:resources,alias:r"`

	ID         uuid.UUID   `bun:"id,pk,type:uuid"`
	Name       string      `bun:"name,notnull"`
	HourlyRate Money       `bun:"hourly_rate,notnull"`
	Hours      WeeklyHours `bun:"hours,type:jsonb"`
	UserID     string      `bun:"user_id,nullzero"`
	CreatedAt  time.Time   `bun:"created_at,notnull"`
	UpdatedAt  time.Time   `bun:"updated_at,notnull"`
}

func (r *Resource) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}
