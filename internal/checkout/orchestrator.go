// Package checkout takes payment against an appointment's balance through
// cash, peer-payment links or a card processor.
//
// Every amount is validated against the current ledger before any provider
// is called. Recording the payment, and completing the appointment once it is
// fully paid, is delegated to the Recorder.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"studioops/backend/internal/domain"
	"studioops/backend/internal/ledger"
	"studioops/backend/internal/store"
	"studioops/backend/internal/timegrid"
)

// Recorder appends a payment and returns the appointment as it stands afterwards.
type Recorder interface {
	RecordPayment(ctx context.Context, p domain.Payment) (domain.Appointment, error)
}

type Config struct {
	Peer    PeerHandles
	LockTTL time.Duration
}

type Orchestrator struct {
	provider Provider
	recorder Recorder
	locks    store.ChargeLocks
	cfg      Config
	logger   *slog.Logger
}

func New(provider Provider, recorder Recorder, locks store.ChargeLocks, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		provider: provider,
		recorder: recorder,
		locks:    locks,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "checkout")),
	}
}

// Quote validates a charge of amount against what a still owes.
func Quote(a domain.Appointment, amount domain.Money) error {
	if a.Status == domain.StatusCancelled || a.Status == domain.StatusNoShow {
		return domain.Guard(fmt.Sprintf("cannot take payment on a %s appointment", a.Status))
	}
	due := ledger.BalanceDue(a)
	if due <= 0 {
		return domain.Validation("nothing is due on this appointment")
	}
	if amount <= 0 {
		return domain.Validation("amount must be greater than zero")
	}
	if amount > due {
		return domain.Validation(fmt.Sprintf("amount %s exceeds balance due %s", amount, due))
	}
	return nil
}

// Receipt is the outcome of a recorded payment.
type Receipt struct {
	Appointment domain.Appointment `json:"appointment"`
	Applied     domain.Money       `json:"applied"`
	Tip         domain.Money       `json:"tip,omitempty"`
	ChangeDue   domain.Money       `json:"change_due,omitempty"`
	Summary     ledger.Summary     `json:"summary"`
	Completed   bool               `json:"completed"`
}

func receipt(before, after domain.Appointment, applied domain.Money) Receipt {
	return Receipt{
		Appointment: after,
		Applied:     applied,
		Summary:     ledger.Summarize(after),
		Completed:   before.Status != domain.StatusCompleted && after.Status == domain.StatusCompleted,
	}
}

type CashInput struct {
	Received domain.Money
	Tip      domain.Money
}

// Cash records the part of the cash handed over that goes toward the price.
// The tip is kept out of the payment. Change due is received less the
// balance and is only reported back.
func (o *Orchestrator) Cash(ctx context.Context, a domain.Appointment, in CashInput) (Receipt, error) {
	if in.Received <= 0 {
		return Receipt{}, domain.Validation("amount received must be greater than zero")
	}
	if in.Tip < 0 {
		return Receipt{}, domain.Validation("tip cannot be negative")
	}
	if in.Tip >= in.Received {
		return Receipt{}, domain.Validation("amount received must cover more than the tip")
	}

	due := ledger.BalanceDue(a)
	applied := min(in.Received-in.Tip, due)
	if err := Quote(a, applied); err != nil {
		return Receipt{}, err
	}
	unlock, err := o.outsideCardCharge(ctx, a.ID)
	if err != nil {
		return Receipt{}, err
	}
	defer unlock()

	after, err := o.recorder.RecordPayment(ctx, domain.Payment{
		AppointmentID: a.ID,
		Amount:        applied,
		Method:        domain.MethodCash,
	})
	if err != nil {
		return Receipt{}, err
	}

	r := receipt(a, after, applied)
	r.Tip = in.Tip
	r.ChangeDue = max(0, in.Received-due)
	return r, nil
}

// PeerLink builds the Cash App or Venmo request for amount. The operator
// records the payment separately once it shows up.
func (o *Orchestrator) PeerLink(a domain.Appointment, method domain.PaymentMethod, amount domain.Money, note string) (PeerLink, error) {
	if err := Quote(a, amount); err != nil {
		return PeerLink{}, err
	}
	if note == "" {
		note = defaultNote(a)
	}
	switch method {
	case domain.MethodCashApp:
		if o.cfg.Peer.CashApp == "" {
			return PeerLink{}, domain.Validation("cash app is not configured")
		}
		return cashAppLink(o.cfg.Peer.CashApp, amount, note), nil
	case domain.MethodVenmo:
		if o.cfg.Peer.Venmo == "" {
			return PeerLink{}, domain.Validation("venmo is not configured")
		}
		return venmoLink(o.cfg.Peer.Venmo, amount, note), nil
	default:
		return PeerLink{}, domain.Validation("payment links are only available for cashapp and venmo")
	}
}

func defaultNote(a domain.Appointment) string {
	start := a.StartTime
	if d, err := timegrid.ToDecimalHours(a.StartTime); err == nil {
		start = timegrid.FormatDisplay(d)
	}
	return fmt.Sprintf("Appointment %s %s", a.Date, start)
}

// RecordManual records a peer payment the operator has seen arrive.
func (o *Orchestrator) RecordManual(ctx context.Context, a domain.Appointment, method domain.PaymentMethod, amount domain.Money, reference string) (Receipt, error) {
	if method != domain.MethodCashApp && method != domain.MethodVenmo {
		return Receipt{}, domain.Validation("manual payments are only recorded for cashapp and venmo")
	}
	if err := Quote(a, amount); err != nil {
		return Receipt{}, err
	}
	unlock, err := o.outsideCardCharge(ctx, a.ID)
	if err != nil {
		return Receipt{}, err
	}
	defer unlock()

	after, err := o.recorder.RecordPayment(ctx, domain.Payment{
		AppointmentID: a.ID,
		Amount:        amount,
		Method:        method,
		Reference:     reference,
	})
	if err != nil {
		return Receipt{}, err
	}
	return receipt(a, after, amount), nil
}

// CardSession is an open card charge. LockToken must be passed back to
// FinishCard or CancelCard.
type CardSession struct {
	Intent
	AppointmentID uuid.UUID `json:"appointment_id"`
	LockToken     string    `json:"lock_token"`
}

// StartCard takes the appointment's charge lock and opens a payment intent
// for amount.
func (o *Orchestrator) StartCard(ctx context.Context, a domain.Appointment, amount domain.Money) (CardSession, error) {
	if err := Quote(a, amount); err != nil {
		return CardSession{}, err
	}

	token, err := o.locks.Acquire(ctx, a.ID, o.cfg.LockTTL)
	if err != nil {
		return CardSession{}, err
	}

	intent, err := o.provider.CreateIntent(ctx, a.ID, amount)
	if err != nil {
		o.release(ctx, a.ID, token)
		return CardSession{}, providerError(err)
	}

	o.logger.Info("card charge started",
		slog.String("appointment_id", a.ID.String()),
		slog.String("intent_id", intent.IntentID),
		slog.Int64("amount", int64(amount)),
	)
	return CardSession{Intent: intent, AppointmentID: a.ID, LockToken: token}, nil
}

type FinishCardInput struct {
	ClientSecret    string
	PaymentMethodID string
	LockToken       string
}

// FinishCard confirms the intent, reads the settled charge back from the
// provider and records it. The lock is released whatever the outcome.
func (o *Orchestrator) FinishCard(ctx context.Context, a domain.Appointment, in FinishCardInput) (Receipt, error) {
	intentID, ok := IntentIDFromSecret(in.ClientSecret)
	if !ok {
		return Receipt{}, domain.Validation("invalid client secret")
	}
	defer o.release(ctx, a.ID, in.LockToken)

	if err := o.provider.ConfirmIntent(ctx, in.ClientSecret, in.PaymentMethodID); err != nil {
		o.logger.Info("card charge declined", slog.String("appointment_id", a.ID.String()), slog.String("intent_id", intentID), slog.Any("err", err))
		return Receipt{}, providerError(err)
	}
	details, err := o.provider.IntentDetails(ctx, intentID)
	if err != nil {
		return Receipt{}, providerError(err)
	}
	if !details.Succeeded {
		return Receipt{}, &ProviderError{Message: "payment has not completed"}
	}
	if details.Amount <= 0 {
		return Receipt{}, &ProviderError{Message: "provider reported no amount captured"}
	}
	// The capture has happened, so it is recorded even when it overshoots.
	if due := ledger.BalanceDue(a); details.Amount > due {
		o.logger.Error("card capture exceeds balance due",
			slog.String("appointment_id", a.ID.String()),
			slog.String("intent_id", intentID),
			slog.Int64("captured", int64(details.Amount)),
			slog.Int64("balance_due", int64(due)),
		)
	}

	after, err := o.recorder.RecordPayment(ctx, domain.Payment{
		AppointmentID: a.ID,
		Amount:        details.Amount,
		Method:        domain.MethodCard,
		Reference:     details.Reference,
		CardBrand:     details.CardBrand,
		CardLast4:     details.CardLast4,
	})
	if err != nil {
		o.logger.Error("card captured but payment not recorded",
			slog.String("appointment_id", a.ID.String()),
			slog.String("intent_id", intentID),
			slog.Any("err", err),
		)
		return Receipt{}, err
	}
	return receipt(a, after, details.Amount), nil
}

// outsideCardCharge holds the charge lock while a non-card payment is
// recorded, so it cannot land between StartCard and FinishCard.
func (o *Orchestrator) outsideCardCharge(ctx context.Context, appointmentID uuid.UUID) (func(), error) {
	if o.locks == nil {
		return func() {}, nil
	}
	token, err := o.locks.Acquire(ctx, appointmentID, o.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	return func() { o.release(ctx, appointmentID, token) }, nil
}

// CancelCard releases the charge lock for an abandoned card checkout.
func (o *Orchestrator) CancelCard(ctx context.Context, appointmentID uuid.UUID, lockToken string) {
	o.release(ctx, appointmentID, lockToken)
}

func (o *Orchestrator) release(ctx context.Context, appointmentID uuid.UUID, token string) {
	if token == "" {
		return
	}
	if err := o.locks.Release(context.WithoutCancel(ctx), appointmentID, token); err != nil {
		o.logger.Warn("release charge lock", slog.String("appointment_id", appointmentID.String()), slog.Any("err", err))
	}
}

func providerError(err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProviderError{Message: err.Error(), Err: err}
}
