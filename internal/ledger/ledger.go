// Package ledger reconciles an appointment's price, legacy deposit and
// itemized payments into what has been paid and what is still owed.
//
// Figures are recomputed from the appointment snapshot on every call; the
// persisted payment_status column is never trusted.
package ledger

import "studioops/backend/internal/domain"

// PaymentsTotal sums every itemized payment.
func PaymentsTotal(a domain.Appointment) domain.Money {
	var sum domain.Money
	for _, p := range a.Payments {
		sum += p.Amount
	}
	return sum
}

// TotalPaid credits the legacy deposit on top of itemized payments only while
// those payments are below the deposit. Once they reach it the deposit is
// assumed to be one of them.
func TotalPaid(a domain.Appointment) domain.Money {
	payments := PaymentsTotal(a)
	if payments >= a.DepositPaid {
		return payments
	}
	return a.DepositPaid + payments
}

func BalanceDue(a domain.Appointment) domain.Money {
	due := a.Price - TotalPaid(a)
	if due < 0 {
		return 0
	}
	return due
}

func Status(a domain.Appointment) domain.PaymentStatus {
	paid := TotalPaid(a)
	switch {
	case paid >= a.Price:
		return domain.PaymentPaid
	case paid > 0:
		return domain.PaymentDeposit
	default:
		return domain.PaymentUnpaid
	}
}

type Summary struct {
	Price         domain.Money         `json:"price"`
	DepositPaid   domain.Money         `json:"deposit_paid"`
	PaymentsTotal domain.Money         `json:"payments_total"`
	TotalPaid     domain.Money         `json:"total_paid"`
	BalanceDue    domain.Money         `json:"balance_due"`
	Status        domain.PaymentStatus `json:"payment_status"`
}

func Summarize(a domain.Appointment) Summary {
	return Summary{
		Price:         a.Price,
		DepositPaid:   a.DepositPaid,
		PaymentsTotal: PaymentsTotal(a),
		TotalPaid:     TotalPaid(a),
		BalanceDue:    BalanceDue(a),
		Status:        Status(a),
	}
}

// FullyPaid reports whether nothing remains owed.
func FullyPaid(a domain.Appointment) bool {
	return BalanceDue(a) == 0
}
