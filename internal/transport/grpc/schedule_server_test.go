package grpc

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"studioops/backend/internal/authz"
	"studioops/backend/internal/board"
	"studioops/backend/internal/checkout"
	"studioops/backend/internal/domain"
	"studioops/backend/internal/service/appointments"
	"studioops/backend/internal/store"
)

type fakeScheduleService struct {
	planFn       func(ctx context.Context, in appointments.PlanInput) (domain.Appointment, error)
	bookFn       func(ctx context.Context, in appointments.BookInput) (domain.Appointment, error)
	moveFn       func(ctx context.Context, in appointments.MoveInput) (domain.Appointment, error)
	setStatusFn  func(ctx context.Context, id uuid.UUID, st domain.AppointmentStatus) (domain.Appointment, error)
	deleteFn     func(ctx context.Context, id uuid.UUID) error
	ledgerFn     func(ctx context.Context, id uuid.UUID) (appointments.LedgerView, error)
	dayViewFn    func(ctx context.Context, date string) (appointments.DayView, error)
	cashFn       func(ctx context.Context, id uuid.UUID, in checkout.CashInput) (checkout.Receipt, error)
	linkFn       func(ctx context.Context, id uuid.UUID, method domain.PaymentMethod, amount domain.Money, note string) (checkout.PeerLink, error)
	peerFn       func(ctx context.Context, id uuid.UUID, method domain.PaymentMethod, amount domain.Money, reference string) (checkout.Receipt, error)
	startCardFn  func(ctx context.Context, id uuid.UUID, amount domain.Money) (checkout.CardSession, error)
	finishCardFn func(ctx context.Context, id uuid.UUID, in checkout.FinishCardInput) (checkout.Receipt, error)
	cancelCardFn func(ctx context.Context, id uuid.UUID, lockToken string) error
}

func (f *fakeScheduleService) Plan(ctx context.Context, in appointments.PlanInput) (domain.Appointment, error) {
	if f.planFn == nil {
		panic("Plan not configured")
	}
	return f.planFn(ctx, in)
}

func (f *fakeScheduleService) Book(ctx context.Context, in appointments.BookInput) (domain.Appointment, error) {
	if f.bookFn == nil {
		panic("Book not configured")
	}
	return f.bookFn(ctx, in)
}

func (f *fakeScheduleService) Move(ctx context.Context, in appointments.MoveInput) (domain.Appointment, error) {
	if f.moveFn == nil {
		panic("Move not configured")
	}
	return f.moveFn(ctx, in)
}

func (f *fakeScheduleService) SetStatus(ctx context.Context, id uuid.UUID, st domain.AppointmentStatus) (domain.Appointment, error) {
	if f.setStatusFn == nil {
		panic("SetStatus not configured")
	}
	return f.setStatusFn(ctx, id, st)
}

func (f *fakeScheduleService) Delete(ctx context.Context, id uuid.UUID) error {
	if f.deleteFn == nil {
		panic("Delete not configured")
	}
	return f.deleteFn(ctx, id)
}

func (f *fakeScheduleService) Ledger(ctx context.Context, id uuid.UUID) (appointments.LedgerView, error) {
	if f.ledgerFn == nil {
		panic("Ledger not configured")
	}
	return f.ledgerFn(ctx, id)
}

func (f *fakeScheduleService) DayView(ctx context.Context, date string) (appointments.DayView, error) {
	if f.dayViewFn == nil {
		panic("DayView not configured")
	}
	return f.dayViewFn(ctx, date)
}

func (f *fakeScheduleService) CashCheckout(ctx context.Context, id uuid.UUID, in checkout.CashInput) (checkout.Receipt, error) {
	if f.cashFn == nil {
		panic("CashCheckout not configured")
	}
	return f.cashFn(ctx, id, in)
}

func (f *fakeScheduleService) PaymentLink(ctx context.Context, id uuid.UUID, method domain.PaymentMethod, amount domain.Money, note string) (checkout.PeerLink, error) {
	if f.linkFn == nil {
		panic("PaymentLink not configured")
	}
	return f.linkFn(ctx, id, method, amount, note)
}

func (f *fakeScheduleService) RecordPeerPayment(ctx context.Context, id uuid.UUID, method domain.PaymentMethod, amount domain.Money, reference string) (checkout.Receipt, error) {
	if f.peerFn == nil {
		panic("RecordPeerPayment not configured")
	}
	return f.peerFn(ctx, id, method, amount, reference)
}

func (f *fakeScheduleService) StartCardCheckout(ctx context.Context, id uuid.UUID, amount domain.Money) (checkout.CardSession, error) {
	if f.startCardFn == nil {
		panic("StartCardCheckout not configured")
	}
	return f.startCardFn(ctx, id, amount)
}

func (f *fakeScheduleService) FinishCardCheckout(ctx context.Context, id uuid.UUID, in checkout.FinishCardInput) (checkout.Receipt, error) {
	if f.finishCardFn == nil {
		panic("FinishCardCheckout not configured")
	}
	return f.finishCardFn(ctx, id, in)
}

func (f *fakeScheduleService) CancelCardCheckout(ctx context.Context, id uuid.UUID, lockToken string) error {
	if f.cancelCardFn == nil {
		panic("CancelCardCheckout not configured")
	}
	return f.cancelCardFn(ctx, id, lockToken)
}

var (
	testResourceID    = uuid.MustParse("00000000-0000-0000-0000-000000000011")
	testAppointmentID = uuid.MustParse("00000000-0000-0000-0000-000000000010")
)

func TestIdempotencyKey_ReadsHeadersAndTrims(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("idempotency-key", "  abc  "))
	if got := idempotencyKey(ctx); got != "abc" {
		t.Fatalf("idempotencyKey = %q, want %q", got, "abc")
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-idempotency-key", "xyz"))
	if got := idempotencyKey(ctx); got != "xyz" {
		t.Fatalf("idempotencyKey = %q, want %q", got, "xyz")
	}

	if got := idempotencyKey(context.Background()); got != "" {
		t.Fatalf("idempotencyKey without metadata = %q, want empty", got)
	}
}

func TestBook_RejectsInvalidResourceID(t *testing.T) {
	srv := NewScheduleServer(&fakeScheduleService{}, slog.Default())

	_, err := srv.Book(context.Background(), &BookRequest{ResourceID: "nope", Date: "2026-01-05", StartTime: "10:00"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}

	_, err = srv.Book(context.Background(), nil)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("nil request code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}
}

func TestBook_PassesCallerKeyAndPrice(t *testing.T) {
	var got appointments.BookInput
	srv := NewScheduleServer(&fakeScheduleService{
		bookFn: func(ctx context.Context, in appointments.BookInput) (domain.Appointment, error) {
			got = in
			return domain.Appointment{
				ID:          testAppointmentID,
				ResourceID:  in.ResourceID,
				Date:        in.Date,
				StartTime:   in.StartTime,
				Price:       *in.Price,
				DepositPaid: in.Deposit,
				Status:      domain.StatusPending,
			}, nil
		},
	}, slog.Default())

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("idempotency-key", "k1"))
	ctx = authz.WithIdentity(ctx, authz.Identity{UserID: "u1", Role: authz.RoleStaff})
	price := int64(12000)

	resp, err := srv.Book(ctx, &BookRequest{
		ResourceID: testResourceID.String(),
		Date:       "2026-01-05",
		StartTime:  "10:00",
		Price:      &price,
		Deposit:    2000,
	})
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if got.IdempotencyKey != "k1" {
		t.Fatalf("idempotency_key = %q, want %q", got.IdempotencyKey, "k1")
	}
	if got.Caller.UserID != "u1" {
		t.Fatalf("caller = %q, want %q", got.Caller.UserID, "u1")
	}
	if got.Price == nil || *got.Price != 12000 || got.Deposit != 2000 {
		t.Fatalf("price/deposit = %v/%d", got.Price, got.Deposit)
	}
	if resp.Appointment.PaymentStatus != string(domain.PaymentDeposit) {
		t.Fatalf("payment_status = %q, want %q", resp.Appointment.PaymentStatus, domain.PaymentDeposit)
	}
	if resp.Appointment.DurationMinutes != domain.DefaultDurationMinutes {
		t.Fatalf("duration = %d, want %d", resp.Appointment.DurationMinutes, domain.DefaultDurationMinutes)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    codes.Code
		message string
	}{
		{"validation", domain.Validation("start_time must be on the grid"), codes.InvalidArgument, "start_time must be on the grid"},
		{"override denied", appointments.ErrOverrideDenied, codes.PermissionDenied, ""},
		{"overlap", domain.Conflict("overlaps an existing appointment"), codes.FailedPrecondition, "overlaps an existing appointment"},
		{"store conflict", domain.Persistence("create appointment", store.ErrConflict), codes.FailedPrecondition, "That time is no longer available. Pick a different slot."},
		{"idempotency", store.ErrIdempotencyConflict, codes.FailedPrecondition, "This request key was already used for a different appointment. Try again."},
		{"charge in flight", store.ErrChargeInFlight, codes.FailedPrecondition, ""},
		{"guard", domain.Guard("appointment is not fully paid"), codes.FailedPrecondition, "appointment is not fully paid"},
		{"not found", store.ErrNotFound, codes.NotFound, "appointment not found"},
		{"not on board", board.ErrUnknownAppointment, codes.NotFound, "appointment not found"},
		{"decline", &checkout.ProviderError{Message: "Your card was declined."}, codes.Aborted, "Your card was declined."},
		{"unknown", errors.New("boom"), codes.Internal, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewScheduleServer(&fakeScheduleService{
				setStatusFn: func(ctx context.Context, id uuid.UUID, st domain.AppointmentStatus) (domain.Appointment, error) {
					return domain.Appointment{}, tt.err
				},
			}, slog.Default())

			_, err := srv.SetStatus(context.Background(), &SetStatusRequest{
				AppointmentID: testAppointmentID.String(),
				Status:        string(domain.StatusCompleted),
			})
			st, _ := status.FromError(err)
			if st.Code() != tt.code {
				t.Fatalf("code = %s, want %s", st.Code(), tt.code)
			}
			if tt.message != "" && st.Message() != tt.message {
				t.Fatalf("message = %q, want %q", st.Message(), tt.message)
			}
		})
	}
}

func TestMove_EmptyResourceKeepsCurrent(t *testing.T) {
	var got appointments.MoveInput
	srv := NewScheduleServer(&fakeScheduleService{
		moveFn: func(ctx context.Context, in appointments.MoveInput) (domain.Appointment, error) {
			got = in
			return domain.Appointment{ID: in.AppointmentID, ResourceID: testResourceID}, nil
		},
	}, slog.Default())

	if _, err := srv.Move(context.Background(), &MoveRequest{AppointmentID: testAppointmentID.String(), StartTime: "11:00"}); err != nil {
		t.Fatalf("Move error: %v", err)
	}
	if got.ResourceID != uuid.Nil {
		t.Fatalf("resource_id = %s, want nil", got.ResourceID)
	}
	if got.AppointmentID != testAppointmentID || got.StartTime != "11:00" {
		t.Fatalf("move input = %+v", got)
	}
}

func TestLedger_ConvertsAllowedStatuses(t *testing.T) {
	srv := NewScheduleServer(&fakeScheduleService{
		ledgerFn: func(ctx context.Context, id uuid.UUID) (appointments.LedgerView, error) {
			return appointments.LedgerView{
				Appointment:     domain.Appointment{ID: id, Price: 10000},
				AllowedStatuses: []domain.AppointmentStatus{domain.StatusPending, domain.StatusCancelled},
				CanDelete:       true,
			}, nil
		},
	}, slog.Default())

	resp, err := srv.Ledger(context.Background(), &AppointmentRequest{AppointmentID: testAppointmentID.String()})
	if err != nil {
		t.Fatalf("Ledger error: %v", err)
	}
	if len(resp.AllowedStatuses) != 2 || resp.AllowedStatuses[1] != "cancelled" {
		t.Fatalf("allowed = %v", resp.AllowedStatuses)
	}
	if !resp.CanDelete {
		t.Fatalf("can_delete = false, want true")
	}
}

func TestCardCheckout_PassesLockToken(t *testing.T) {
	var got checkout.FinishCardInput
	srv := NewScheduleServer(&fakeScheduleService{
		startCardFn: func(ctx context.Context, id uuid.UUID, amount domain.Money) (checkout.CardSession, error) {
			return checkout.CardSession{
				Intent:        checkout.Intent{IntentID: "pi_1", ClientSecret: "pi_1_secret_x", Amount: amount},
				AppointmentID: id,
				LockToken:     "tok",
			}, nil
		},
		finishCardFn: func(ctx context.Context, id uuid.UUID, in checkout.FinishCardInput) (checkout.Receipt, error) {
			got = in
			return checkout.Receipt{Applied: 5000, Completed: true}, nil
		},
	}, slog.Default())

	sess, err := srv.StartCardCheckout(context.Background(), &StartCardRequest{AppointmentID: testAppointmentID.String(), Amount: 5000})
	if err != nil {
		t.Fatalf("StartCardCheckout error: %v", err)
	}
	if sess.LockToken != "tok" || sess.ClientSecret != "pi_1_secret_x" || sess.Amount != 5000 {
		t.Fatalf("session = %+v", sess)
	}

	r, err := srv.FinishCardCheckout(context.Background(), &FinishCardRequest{
		AppointmentID: testAppointmentID.String(),
		ClientSecret:  sess.ClientSecret,
		LockToken:     sess.LockToken,
	})
	if err != nil {
		t.Fatalf("FinishCardCheckout error: %v", err)
	}
	if got.LockToken != "tok" || got.ClientSecret != "pi_1_secret_x" {
		t.Fatalf("finish input = %+v", got)
	}
	if !r.Completed || r.Applied != 5000 {
		t.Fatalf("receipt = %+v", r)
	}
}
