package grpc

import (
	"time"

	"studioops/backend/internal/checkout"
	"studioops/backend/internal/domain"
	"studioops/backend/internal/ledger"
	"studioops/backend/internal/service/appointments"
)

// Amounts on the wire are integer cents.

type Payment struct {
	ID        string    `json:"id"`
	Amount    int64     `json:"amount"`
	Method    string    `json:"method"`
	Reference string    `json:"reference,omitempty"`
	CardBrand string    `json:"card_brand,omitempty"`
	CardLast4 string    `json:"card_last4,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Appointment struct {
	ID              string    `json:"id"`
	ResourceID      string    `json:"resource_id"`
	ClientID        string    `json:"client_id,omitempty"`
	ServiceID       string    `json:"service_id,omitempty"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           int64     `json:"price"`
	DepositPaid     int64     `json:"deposit_paid"`
	Status          string    `json:"status"`
	PaymentStatus   string    `json:"payment_status"`
	Notes           string    `json:"notes,omitempty"`
	Payments        []Payment `json:"payments,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

type PlanRequest struct {
	ResourceID string `json:"resource_id"`
	Date       string `json:"date"`
	From       string `json:"from"`
	To         string `json:"to,omitempty"`
	Override   bool   `json:"override,omitempty"`
}

type BookRequest struct {
	ResourceID      string `json:"resource_id"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	ClientID        string `json:"client_id,omitempty"`
	ServiceID       string `json:"service_id,omitempty"`
	Price           *int64 `json:"price,omitempty"`
	Deposit         int64  `json:"deposit,omitempty"`
	Notes           string `json:"notes,omitempty"`
	Status          string `json:"status,omitempty"`
	Override        bool   `json:"override,omitempty"`
}

type MoveRequest struct {
	AppointmentID string `json:"appointment_id"`
	ResourceID    string `json:"resource_id,omitempty"`
	Date          string `json:"date,omitempty"`
	StartTime     string `json:"start_time"`
	Override      bool   `json:"override,omitempty"`
}

type SetStatusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

type AppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type AppointmentResponse struct {
	Appointment Appointment `json:"appointment"`
}

type Empty struct{}

type LedgerResponse struct {
	Appointment     Appointment    `json:"appointment"`
	Summary         ledger.Summary `json:"summary"`
	AllowedStatuses []string       `json:"allowed_statuses"`
	CanDelete       bool           `json:"can_delete"`
}

type DayViewRequest struct {
	Date string `json:"date"`
}

type Booking struct {
	Appointment Appointment    `json:"appointment"`
	Start       string         `json:"start"`
	End         string         `json:"end"`
	Summary     ledger.Summary `json:"summary"`
}

type DayViewResponse struct {
	Date     string                `json:"date"`
	Closed   bool                  `json:"closed"`
	Open     string                `json:"open,omitempty"`
	Close    string                `json:"close,omitempty"`
	Columns  []appointments.Column `json:"columns"`
	Bookings []Booking             `json:"bookings"`
}

type CashCheckoutRequest struct {
	AppointmentID string `json:"appointment_id"`
	Received      int64  `json:"received"`
	Tip           int64  `json:"tip,omitempty"`
}

type ReceiptResponse struct {
	Appointment Appointment    `json:"appointment"`
	Applied     int64          `json:"applied"`
	Tip         int64          `json:"tip,omitempty"`
	ChangeDue   int64          `json:"change_due,omitempty"`
	Summary     ledger.Summary `json:"summary"`
	Completed   bool           `json:"completed"`
}

type PaymentLinkRequest struct {
	AppointmentID string `json:"appointment_id"`
	Method        string `json:"method"`
	Amount        int64  `json:"amount"`
	Note          string `json:"note,omitempty"`
}

type RecordPeerPaymentRequest struct {
	AppointmentID string `json:"appointment_id"`
	Method        string `json:"method"`
	Amount        int64  `json:"amount"`
	Reference     string `json:"reference,omitempty"`
}

type StartCardRequest struct {
	AppointmentID string `json:"appointment_id"`
	Amount        int64  `json:"amount"`
}

type FinishCardRequest struct {
	AppointmentID   string `json:"appointment_id"`
	ClientSecret    string `json:"client_secret"`
	PaymentMethodID string `json:"payment_method_id,omitempty"`
	LockToken       string `json:"lock_token"`
}

type CancelCardRequest struct {
	AppointmentID string `json:"appointment_id"`
	LockToken     string `json:"lock_token"`
}

func toWireAppointment(a domain.Appointment) Appointment {
	out := Appointment{
		ID:              a.ID.String(),
		ResourceID:      a.ResourceID.String(),
		Date:            a.Date,
		StartTime:       a.StartTime,
		DurationMinutes: a.Duration(),
		Price:           int64(a.Price),
		DepositPaid:     int64(a.DepositPaid),
		Status:          string(a.Status),
		PaymentStatus:   string(ledger.Status(a)),
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.ClientID != nil {
		out.ClientID = a.ClientID.String()
	}
	if a.ServiceID != nil {
		out.ServiceID = a.ServiceID.String()
	}
	for _, p := range a.Payments {
		out.Payments = append(out.Payments, Payment{
			ID:        p.ID.String(),
			Amount:    int64(p.Amount),
			Method:    string(p.Method),
			Reference: p.Reference,
			CardBrand: p.CardBrand,
			CardLast4: p.CardLast4,
			CreatedAt: p.CreatedAt,
		})
	}
	return out
}

func toWireReceipt(r checkout.Receipt) *ReceiptResponse {
	return &ReceiptResponse{
		Appointment: toWireAppointment(r.Appointment),
		Applied:     int64(r.Applied),
		Tip:         int64(r.Tip),
		ChangeDue:   int64(r.ChangeDue),
		Summary:     r.Summary,
		Completed:   r.Completed,
	}
}

func toWireDayView(v appointments.DayView) *DayViewResponse {
	out := &DayViewResponse{
		Date:     v.Date,
		Closed:   v.Closed,
		Open:     v.Open,
		Close:    v.Close,
		Columns:  v.Columns,
		Bookings: make([]Booking, 0, len(v.Bookings)),
	}
	for _, b := range v.Bookings {
		out.Bookings = append(out.Bookings, Booking{
			Appointment: toWireAppointment(b.Appointment),
			Start:       b.Start,
			End:         b.End,
			Summary:     b.Summary,
		})
	}
	return out
}

type PaymentLinkResponse struct {
	Method      string `json:"method"`
	Amount      int64  `json:"amount"`
	URL         string `json:"url"`
	FallbackURL string `json:"fallback_url,omitempty"`
}

type CardSessionResponse struct {
	AppointmentID string `json:"appointment_id"`
	IntentID      string `json:"intent_id"`
	ClientSecret  string `json:"client_secret"`
	AccountID     string `json:"provider_account_id,omitempty"`
	Amount        int64  `json:"amount"`
	LockToken     string `json:"lock_token"`
}

func toWireLedger(v appointments.LedgerView) *LedgerResponse {
	out := &LedgerResponse{
		Appointment:     toWireAppointment(v.Appointment),
		Summary:         v.Summary,
		AllowedStatuses: make([]string, 0, len(v.AllowedStatuses)),
		CanDelete:       v.CanDelete,
	}
	for _, st := range v.AllowedStatuses {
		out.AllowedStatuses = append(out.AllowedStatuses, string(st))
	}
	return out
}
