package appointments

import (
	"context"

	"github.com/google/uuid"

	"studioops/backend/internal/checkout"
	"studioops/backend/internal/domain"
)

func (s *Service) load(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, domain.Validation("appointment_id is required")
	}
	return s.appts.Get(ctx, id)
}

func (s *Service) CashCheckout(ctx context.Context, id uuid.UUID, in checkout.CashInput) (checkout.Receipt, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return checkout.Receipt{}, err
	}
	return s.checkout.Cash(ctx, a, in)
}

func (s *Service) PaymentLink(ctx context.Context, id uuid.UUID, method domain.PaymentMethod, amount domain.Money, note string) (checkout.PeerLink, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return checkout.PeerLink{}, err
	}
	return s.checkout.PeerLink(a, method, amount, note)
}

// RecordPeerPayment records a Cash App or Venmo payment once the operator
// has seen it arrive.
func (s *Service) RecordPeerPayment(ctx context.Context, id uuid.UUID, method domain.PaymentMethod, amount domain.Money, reference string) (checkout.Receipt, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return checkout.Receipt{}, err
	}
	return s.checkout.RecordManual(ctx, a, method, amount, reference)
}

func (s *Service) StartCardCheckout(ctx context.Context, id uuid.UUID, amount domain.Money) (checkout.CardSession, error) {
	if !s.cardReady {
		return checkout.CardSession{}, domain.Validation("card payments are not configured")
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return checkout.CardSession{}, err
	}
	return s.checkout.StartCard(ctx, a, amount)
}

func (s *Service) FinishCardCheckout(ctx context.Context, id uuid.UUID, in checkout.FinishCardInput) (checkout.Receipt, error) {
	if !s.cardReady {
		return checkout.Receipt{}, domain.Validation("card payments are not configured")
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return checkout.Receipt{}, err
	}
	return s.checkout.FinishCard(ctx, a, in)
}

func (s *Service) CancelCardCheckout(ctx context.Context, id uuid.UUID, lockToken string) error {
	if !s.cardReady {
		return domain.Validation("card payments are not configured")
	}
	if id == uuid.Nil {
		return domain.Validation("appointment_id is required")
	}
	s.checkout.CancelCard(ctx, id, lockToken)
	return nil
}
