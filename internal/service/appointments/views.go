package appointments

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"studioops/backend/internal/availability"
	"studioops/backend/internal/conflict"
	"studioops/backend/internal/domain"
	"studioops/backend/internal/ledger"
	"studioops/backend/internal/timegrid"
)

type LedgerView struct {
	Appointment     domain.Appointment         `json:"appointment"`
	Summary         ledger.Summary             `json:"summary"`
	AllowedStatuses []domain.AppointmentStatus `json:"allowed_statuses"`
	CanDelete       bool                       `json:"can_delete"`
}

// Ledger reconciles an appointment's money from the stored payments.
func (s *Service) Ledger(ctx context.Context, id uuid.UUID) (LedgerView, error) {
	if id == uuid.Nil {
		return LedgerView{}, domain.Validation("appointment_id is required")
	}
	a, err := s.appts.Get(ctx, id)
	if err != nil {
		return LedgerView{}, err
	}
	return LedgerView{
		Appointment:     a,
		Summary:         ledger.Summarize(a),
		AllowedStatuses: s.guard.AllowedStatuses(a),
		CanDelete:       s.guard.CanDelete(a) == nil,
	}, nil
}

type Cell struct {
	Time          string                  `json:"time"`
	Status        availability.SlotStatus `json:"status"`
	AppointmentID *uuid.UUID              `json:"appointment_id,omitempty"`
}

type Column struct {
	ResourceID uuid.UUID `json:"resource_id"`
	Name       string    `json:"name"`
	Cells      []Cell    `json:"cells"`
}

type Booking struct {
	Appointment domain.Appointment `json:"appointment"`
	Start       string             `json:"start"`
	End         string             `json:"end"`
	Summary     ledger.Summary     `json:"summary"`
}

// DayView is the calendar grid for one day: a column per resource with the
// status of every slot inside shop hours.
type DayView struct {
	Date     string    `json:"date"`
	Closed   bool      `json:"closed"`
	Open     string    `json:"open,omitempty"`
	Close    string    `json:"close,omitempty"`
	Columns  []Column  `json:"columns"`
	Bookings []Booking `json:"bookings"`
}

func (s *Service) DayView(ctx context.Context, date string) (DayView, error) {
	day, err := parseDay(date)
	if err != nil {
		return DayView{}, err
	}
	resources, err := s.resources.List(ctx)
	if err != nil {
		return DayView{}, err
	}
	appts, err := s.appts.ListDay(ctx, day)
	if err != nil {
		return DayView{}, err
	}
	sort.Slice(resources, func(i, j int) bool { return resources[i].Name < resources[j].Name })

	resolver := availability.NewResolver(s.cfg.ShopHours, resources)
	view := DayView{Date: day.String(), Columns: make([]Column, 0, len(resources))}

	open, close, ok := resolver.WorkingWindow(day)
	var slots []float64
	if ok {
		view.Open = timegrid.FormatDecimal(open)
		view.Close = timegrid.FormatDecimal(close)
		for _, slot := range s.cfg.Grid.Slots() {
			if slot >= open && slot < close {
				slots = append(slots, slot)
			}
		}
	} else {
		view.Closed = true
	}

	for _, res := range resources {
		col := Column{ResourceID: res.ID, Name: res.Name, Cells: make([]Cell, 0, len(slots))}
		for _, slot := range slots {
			cell := Cell{Time: timegrid.FormatDecimal(slot), Status: resolver.Status(res.ID, slot, day, appts)}
			if cell.Status == availability.SlotBooked {
				if occ, found := conflict.Occupant(res.ID, day, slot, appts); found {
					id := occ.ID
					cell.AppointmentID = &id
				}
			}
			col.Cells = append(col.Cells, cell)
		}
		view.Columns = append(view.Columns, col)
	}

	for _, a := range appts {
		b := Booking{Appointment: a, Summary: ledger.Summarize(a), Start: a.StartTime}
		if start, end, ok := conflict.Interval(a); ok {
			b.Start = timegrid.FormatDisplay(start)
			b.End = timegrid.FormatDisplay(end)
		}
		view.Bookings = append(view.Bookings, b)
	}
	sort.SliceStable(view.Bookings, func(i, j int) bool {
		return view.Bookings[i].Appointment.StartTime < view.Bookings[j].Appointment.StartTime
	})
	return view, nil
}
