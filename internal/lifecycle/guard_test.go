package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"studioops/backend/internal/domain"
)

func appt(status domain.AppointmentStatus, price, deposit domain.Money, payments ...domain.Money) domain.Appointment {
	a := domain.Appointment{Status: status, Price: price, DepositPaid: deposit}
	for _, amt := range payments {
		a.Payments = append(a.Payments, domain.Payment{Amount: amt, Method: domain.MethodCard})
	}
	return a
}

func requireGuard(t *testing.T, err error, reason string) {
	t.Helper()
	var gv *domain.GuardViolation
	require.True(t, errors.As(err, &gv), "expected GuardViolation, got %v", err)
	if reason != "" {
		require.Equal(t, reason, gv.Reason)
	}
}

func TestCheck(t *testing.T) {
	g := NewGuard()

	tests := []struct {
		name   string
		appt   domain.Appointment
		to     domain.AppointmentStatus
		reason string
		ok     bool
	}{
		{name: "pending to confirmed", appt: appt(domain.StatusPending, 10000, 0), to: domain.StatusConfirmed, ok: true},
		{name: "confirmed back to pending", appt: appt(domain.StatusConfirmed, 10000, 0), to: domain.StatusPending, ok: true},
		{name: "unpaid cancel", appt: appt(domain.StatusPending, 10000, 0), to: domain.StatusCancelled, ok: true},
		{name: "unpaid no-show", appt: appt(domain.StatusConfirmed, 10000, 0), to: domain.StatusNoShow, ok: true},
		{name: "same status is a no-op", appt: appt(domain.StatusInProgress, 10000, 0, 10000), to: domain.StatusInProgress, ok: true},
		{name: "cancel with deposit", appt: appt(domain.StatusConfirmed, 10000, 2000), to: domain.StatusCancelled, reason: ReasonPaymentReceived},
		{name: "no-show with payment", appt: appt(domain.StatusPending, 10000, 0, 500), to: domain.StatusNoShow, reason: ReasonPaymentReceived},
		{name: "complete with balance", appt: appt(domain.StatusConfirmed, 10000, 2000), to: domain.StatusCompleted, reason: ReasonBalanceDue},
		{name: "start with balance", appt: appt(domain.StatusConfirmed, 10000, 0), to: domain.StatusInProgress, reason: ReasonBalanceDue},
		{name: "complete when paid", appt: appt(domain.StatusConfirmed, 10000, 0, 10000), to: domain.StatusCompleted, ok: true},
		{name: "paid in-progress back to pending", appt: appt(domain.StatusInProgress, 10000, 0, 10000), to: domain.StatusPending, reason: ReasonPaidStatus},
		{name: "paid back to confirmed", appt: appt(domain.StatusCompleted, 10000, 0, 10000), to: domain.StatusConfirmed, ok: true},
		{name: "partially paid to pending", appt: appt(domain.StatusConfirmed, 10000, 3000), to: domain.StatusPending, reason: ReasonPaidStatus},
		{name: "completed to pending not a transition", appt: appt(domain.StatusCompleted, 0, 0), to: domain.StatusPending},
		{name: "cancelled reopened", appt: appt(domain.StatusCancelled, 10000, 0), to: domain.StatusPending, ok: true},
		{name: "cancelled straight to completed", appt: appt(domain.StatusCancelled, 0, 0), to: domain.StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Check(tt.appt, tt.to)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			requireGuard(t, err, tt.reason)
		})
	}
}

func TestCheck_UnknownStatus(t *testing.T) {
	err := NewGuard().Check(appt(domain.StatusPending, 0, 0), "archived")
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
}

func TestGuardSafety(t *testing.T) {
	g := NewGuard()
	for _, from := range Statuses {
		for _, paid := range []struct{ deposit, payment domain.Money }{{1, 0}, {0, 1}, {5000, 2000}, {0, 10000}} {
			a := appt(from, 10000, paid.deposit, paid.payment)
			if from != domain.StatusCancelled {
				requireGuard(t, g.CanCancel(a), ReasonPaymentReceived)
			}
			requireGuard(t, g.CanDelete(a), ReasonPaymentReceived)
		}
		for _, deposit := range []domain.Money{0, 1, 9999} {
			a := appt(from, 10000, deposit)
			for _, to := range []domain.AppointmentStatus{domain.StatusCompleted, domain.StatusInProgress} {
				if to == from {
					continue
				}
				requireGuard(t, g.Check(a, to), ReasonBalanceDue)
			}
		}
	}
}

func TestCanDelete_NeverPaid(t *testing.T) {
	require.NoError(t, NewGuard().CanDelete(appt(domain.StatusConfirmed, 10000, 0)))
}

func TestAllowedStatuses(t *testing.T) {
	g := NewGuard()

	require.Equal(t,
		[]domain.AppointmentStatus{domain.StatusPending, domain.StatusConfirmed, domain.StatusCancelled, domain.StatusNoShow},
		g.AllowedStatuses(appt(domain.StatusPending, 10000, 0)))

	require.Equal(t,
		[]domain.AppointmentStatus{domain.StatusConfirmed, domain.StatusCompleted},
		g.AllowedStatuses(appt(domain.StatusConfirmed, 10000, 0, 10000)))

	require.Equal(t,
		[]domain.AppointmentStatus{domain.StatusConfirmed},
		g.AllowedStatuses(appt(domain.StatusConfirmed, 10000, 2500)))
}

func TestSync(t *testing.T) {
	g := NewGuard()
	a := appt(domain.StatusConfirmed, 10000, 0, 4000)
	a.PaymentStatus = domain.PaymentUnpaid

	require.True(t, g.Sync(&a))
	require.Equal(t, domain.PaymentDeposit, a.PaymentStatus)
	require.False(t, g.Sync(&a))
}

func TestSettle(t *testing.T) {
	g := NewGuard()

	status, ok := g.Settle(appt(domain.StatusConfirmed, 10000, 0, 10000))
	require.True(t, ok)
	require.Equal(t, domain.StatusCompleted, status)

	status, ok = g.Settle(appt(domain.StatusConfirmed, 10000, 0, 6000))
	require.False(t, ok)
	require.Equal(t, domain.StatusConfirmed, status)

	_, ok = g.Settle(appt(domain.StatusCancelled, 10000, 0, 10000))
	require.False(t, ok)
}
