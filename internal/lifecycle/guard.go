// Package lifecycle enforces which appointment status changes are legal
// given the money collected against the appointment.
package lifecycle

import (
	"fmt"

	"studioops/backend/internal/domain"
	"studioops/backend/internal/ledger"
)

const (
	ReasonPaymentReceived = "payment received, cannot cancel/delete"
	ReasonBalanceDue      = "balance still due"
	ReasonPaidStatus      = "payment received, status can only be confirmed or completed"
)

// Statuses lists every status in display order.
var Statuses = []domain.AppointmentStatus{
	domain.StatusPending,
	domain.StatusConfirmed,
	domain.StatusInProgress,
	domain.StatusCompleted,
	domain.StatusCancelled,
	domain.StatusNoShow,
}

// Guard evaluates transitions against the appointment snapshot it is given.
// It holds no state between calls.
type Guard struct {
	transitions map[domain.AppointmentStatus][]domain.AppointmentStatus
}

func NewGuard() *Guard {
	return &Guard{transitions: map[domain.AppointmentStatus][]domain.AppointmentStatus{
		domain.StatusPending:    {domain.StatusConfirmed, domain.StatusInProgress, domain.StatusCompleted, domain.StatusCancelled, domain.StatusNoShow},
		domain.StatusConfirmed:  {domain.StatusPending, domain.StatusInProgress, domain.StatusCompleted, domain.StatusCancelled, domain.StatusNoShow},
		domain.StatusInProgress: {domain.StatusConfirmed, domain.StatusCompleted},
		domain.StatusCompleted:  {domain.StatusConfirmed},
		domain.StatusCancelled:  {domain.StatusPending, domain.StatusConfirmed},
		domain.StatusNoShow:     {domain.StatusPending, domain.StatusConfirmed},
	}}
}

// Check returns nil when a may move to status to. Moving to the current
// status is always accepted as a no-op.
func (g *Guard) Check(a domain.Appointment, to domain.AppointmentStatus) error {
	if !to.Valid() {
		return domain.Validation(fmt.Sprintf("unknown status %q", to))
	}
	if to == a.Status {
		return nil
	}

	paid := ledger.TotalPaid(a)
	switch to {
	case domain.StatusCancelled, domain.StatusNoShow:
		if paid > 0 {
			return domain.Guard(ReasonPaymentReceived)
		}
	case domain.StatusCompleted, domain.StatusInProgress:
		if ledger.BalanceDue(a) > 0 {
			return domain.Guard(ReasonBalanceDue)
		}
	}
	if paid > 0 && to != domain.StatusConfirmed && to != domain.StatusCompleted {
		return domain.Guard(ReasonPaidStatus)
	}

	// Rows with a status outside the known set are treated like pending.
	from := a.Status
	if !from.Valid() {
		from = domain.StatusPending
	}
	for _, s := range g.transitions[from] {
		if s == to {
			return nil
		}
	}
	return domain.Guard(fmt.Sprintf("cannot change status from %s to %s", a.Status, to))
}

func (g *Guard) CanCancel(a domain.Appointment) error {
	return g.Check(a, domain.StatusCancelled)
}

// CanDelete allows a hard delete only for appointments that never took money.
func (g *Guard) CanDelete(a domain.Appointment) error {
	if ledger.TotalPaid(a) > 0 || len(a.Payments) > 0 {
		return domain.Guard(ReasonPaymentReceived)
	}
	return nil
}

// AllowedStatuses lists the statuses an operator may pick for a, current one included.
func (g *Guard) AllowedStatuses(a domain.Appointment) []domain.AppointmentStatus {
	out := make([]domain.AppointmentStatus, 0, len(Statuses))
	for _, s := range Statuses {
		if g.Check(a, s) == nil {
			out = append(out, s)
		}
	}
	return out
}

// Sync recomputes the persisted payment status from the ledger. It reports
// whether the stored value was stale.
func (g *Guard) Sync(a *domain.Appointment) bool {
	status := ledger.Status(*a)
	if a.PaymentStatus == status {
		return false
	}
	a.PaymentStatus = status
	return true
}

// Settle returns the status a should move to after a payment lands: completed
// once the balance is cleared and the transition is legal, otherwise the
// current status unchanged.
func (g *Guard) Settle(a domain.Appointment) (domain.AppointmentStatus, bool) {
	if a.Status == domain.StatusCompleted || !ledger.FullyPaid(a) {
		return a.Status, false
	}
	if g.Check(a, domain.StatusCompleted) != nil {
		return a.Status, false
	}
	return domain.StatusCompleted, true
}
