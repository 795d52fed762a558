package grpc

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"studioops/backend/internal/authz"
	"studioops/backend/internal/checkout"
	"studioops/backend/internal/domain"
	"studioops/backend/internal/service/appointments"
)

type ScheduleServer struct {
	svc scheduleService
	log *slog.Logger
}

type scheduleService interface {
	Plan(ctx context.Context, in appointments.PlanInput) (domain.Appointment, error)
	Book(ctx context.Context, in appointments.BookInput) (domain.Appointment, error)
	Move(ctx context.Context, in appointments.MoveInput) (domain.Appointment, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Ledger(ctx context.Context, id uuid.UUID) (appointments.LedgerView, error)
	DayView(ctx context.Context, date string) (appointments.DayView, error)
	CashCheckout(ctx context.Context, id uuid.UUID, in checkout.CashInput) (checkout.Receipt, error)
	PaymentLink(ctx context.Context, id uuid.UUID, method domain.PaymentMethod, amount domain.Money, note string) (checkout.PeerLink, error)
	RecordPeerPayment(ctx context.Context, id uuid.UUID, method domain.PaymentMethod, amount domain.Money, reference string) (checkout.Receipt, error)
	StartCardCheckout(ctx context.Context, id uuid.UUID, amount domain.Money) (checkout.CardSession, error)
	FinishCardCheckout(ctx context.Context, id uuid.UUID, in checkout.FinishCardInput) (checkout.Receipt, error)
	CancelCardCheckout(ctx context.Context, id uuid.UUID, lockToken string) error
}

var _ ScheduleServiceServer = (*ScheduleServer)(nil)

func NewScheduleServer(svc scheduleService, log *slog.Logger) *ScheduleServer {
	if log == nil {
		log = slog.Default()
	}
	return &ScheduleServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.schedule")),
	}
}

func (s *ScheduleServer) Plan(ctx context.Context, req *PlanRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "Plan"))
	if req == nil {
		return nil, nilRequest(log)
	}
	resourceID, err := parseID(log, "resource_id", req.ResourceID)
	if err != nil {
		return nil, err
	}
	caller := callerFrom(ctx)

	appt, err := s.svc.Plan(ctx, appointments.PlanInput{
		Caller:     caller,
		ResourceID: resourceID,
		Date:       req.Date,
		From:       req.From,
		To:         req.To,
		Override:   req.Override,
	})
	if err != nil {
		return nil, toStatus(log, "appointment plan", err, slog.String("resource_id", req.ResourceID), slog.String("date", req.Date))
	}
	log.Debug("appointment planned",
		slog.String("resource_id", req.ResourceID),
		slog.String("date", appt.Date),
		slog.String("start_time", appt.StartTime),
		slog.Int("duration", appt.Duration()),
	)
	return &AppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func (s *ScheduleServer) Book(ctx context.Context, req *BookRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "Book"))
	if req == nil {
		return nil, nilRequest(log)
	}
	resourceID, err := parseID(log, "resource_id", req.ResourceID)
	if err != nil {
		return nil, err
	}
	clientID, err := parseOptionalID(log, "client_id", req.ClientID)
	if err != nil {
		return nil, err
	}
	serviceID, err := parseOptionalID(log, "service_id", req.ServiceID)
	if err != nil {
		return nil, err
	}
	caller := callerFrom(ctx)

	in := appointments.BookInput{
		Caller:          caller,
		ResourceID:      resourceID,
		Date:            req.Date,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		ClientID:        clientID,
		ServiceID:       serviceID,
		Deposit:         domain.Money(req.Deposit),
		Notes:           req.Notes,
		Status:          domain.AppointmentStatus(req.Status),
		Override:        req.Override,
		IdempotencyKey:  idempotencyKey(ctx),
	}
	if req.Price != nil {
		price := domain.Money(*req.Price)
		in.Price = &price
	}

	appt, err := s.svc.Book(ctx, in)
	if err != nil {
		return nil, toStatus(log, "appointment book", err,
			slog.String("user_id", caller.UserID),
			slog.String("resource_id", req.ResourceID),
			slog.String("date", req.Date),
			slog.String("start_time", req.StartTime),
		)
	}

	log.Info("appointment booked",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("user_id", caller.UserID),
		slog.String("resource_id", appt.ResourceID.String()),
		slog.String("date", appt.Date),
		slog.String("start_time", appt.StartTime),
	)
	return &AppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func (s *ScheduleServer) Move(ctx context.Context, req *MoveRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "Move"))
	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseID(log, "appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	var resourceID uuid.UUID
	if strings.TrimSpace(req.ResourceID) != "" {
		if resourceID, err = parseID(log, "resource_id", req.ResourceID); err != nil {
			return nil, err
		}
	}

	appt, err := s.svc.Move(ctx, appointments.MoveInput{
		Caller:        callerFrom(ctx),
		AppointmentID: id,
		ResourceID:    resourceID,
		Date:          req.Date,
		StartTime:     req.StartTime,
		Override:      req.Override,
	})
	if err != nil {
		return nil, toStatus(log, "appointment move", err, slog.String("appointment_id", id.String()))
	}
	log.Info("appointment moved",
		slog.String("appointment_id", id.String()),
		slog.String("resource_id", appt.ResourceID.String()),
		slog.String("date", appt.Date),
		slog.String("start_time", appt.StartTime),
	)
	return &AppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func (s *ScheduleServer) SetStatus(ctx context.Context, req *SetStatusRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "SetStatus"))
	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseID(log, "appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.SetStatus(ctx, id, domain.AppointmentStatus(req.Status))
	if err != nil {
		return nil, toStatus(log, "appointment status", err, slog.String("appointment_id", id.String()), slog.String("status", req.Status))
	}
	log.Info("appointment status set", slog.String("appointment_id", id.String()), slog.String("status", string(appt.Status)))
	return &AppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func (s *ScheduleServer) Delete(ctx context.Context, req *AppointmentRequest) (*Empty, error) {
	log := s.log.With(slog.String("rpc", "Delete"))
	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseID(log, "appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Delete(ctx, id); err != nil {
		return nil, toStatus(log, "appointment delete", err, slog.String("appointment_id", id.String()))
	}
	log.Info("appointment deleted", slog.String("appointment_id", id.String()))
	return &Empty{}, nil
}

func (s *ScheduleServer) Ledger(ctx context.Context, req *AppointmentRequest) (*LedgerResponse, error) {
	log := s.log.With(slog.String("rpc", "Ledger"))
	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseID(log, "appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	view, err := s.svc.Ledger(ctx, id)
	if err != nil {
		return nil, toStatus(log, "ledger", err, slog.String("appointment_id", id.String()))
	}
	return toWireLedger(view), nil
}

func (s *ScheduleServer) DayView(ctx context.Context, req *DayViewRequest) (*DayViewResponse, error) {
	log := s.log.With(slog.String("rpc", "DayView"))
	if req == nil {
		return nil, nilRequest(log)
	}
	view, err := s.svc.DayView(ctx, req.Date)
	if err != nil {
		return nil, toStatus(log, "day view", err, slog.String("date", req.Date))
	}
	log.Debug("day view built",
		slog.String("date", view.Date),
		slog.Int("columns", len(view.Columns)),
		slog.Int("bookings", len(view.Bookings)),
	)
	return toWireDayView(view), nil
}

func (s *ScheduleServer) CashCheckout(ctx context.Context, req *CashCheckoutRequest) (*ReceiptResponse, error) {
	log := s.log.With(slog.String("rpc", "CashCheckout"))
	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseID(log, "appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	r, err := s.svc.CashCheckout(ctx, id, checkout.CashInput{
		Received: domain.Money(req.Received),
		Tip:      domain.Money(req.Tip),
	})
	if err != nil {
		return nil, toStatus(log, "cash checkout", err, slog.String("appointment_id", id.String()))
	}
	log.Info("cash payment recorded",
		slog.String("appointment_id", id.String()),
		slog.Int64("applied", int64(r.Applied)),
		slog.Int64("change_due", int64(r.ChangeDue)),
		slog.Bool("completed", r.Completed),
	)
	return toWireReceipt(r), nil
}

func (s *ScheduleServer) PaymentLink(ctx context.Context, req *PaymentLinkRequest) (*PaymentLinkResponse, error) {
	log := s.log.With(slog.String("rpc", "PaymentLink"))
	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseID(log, "appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	link, err := s.svc.PaymentLink(ctx, id, domain.PaymentMethod(req.Method), domain.Money(req.Amount), req.Note)
	if err != nil {
		return nil, toStatus(log, "payment link", err, slog.String("appointment_id", id.String()), slog.String("method", req.Method))
	}
	return &PaymentLinkResponse{
		Method:      string(link.Method),
		Amount:      int64(link.Amount),
		URL:         link.URL,
		FallbackURL: link.FallbackURL,
	}, nil
}

func (s *ScheduleServer) RecordPeerPayment(ctx context.Context, req *RecordPeerPaymentRequest) (*ReceiptResponse, error) {
	log := s.log.With(slog.String("rpc", "RecordPeerPayment"))
	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseID(log, "appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	r, err := s.svc.RecordPeerPayment(ctx, id, domain.PaymentMethod(req.Method), domain.Money(req.Amount), req.Reference)
	if err != nil {
		return nil, toStatus(log, "peer payment", err, slog.String("appointment_id", id.String()), slog.String("method", req.Method))
	}
	log.Info("peer payment recorded",
		slog.String("appointment_id", id.String()),
		slog.String("method", req.Method),
		slog.Int64("applied", int64(r.Applied)),
		slog.Bool("completed", r.Completed),
	)
	return toWireReceipt(r), nil
}

func (s *ScheduleServer) StartCardCheckout(ctx context.Context, req *StartCardRequest) (*CardSessionResponse, error) {
	log := s.log.With(slog.String("rpc", "StartCardCheckout"))
	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseID(log, "appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	sess, err := s.svc.StartCardCheckout(ctx, id, domain.Money(req.Amount))
	if err != nil {
		return nil, toStatus(log, "card checkout start", err, slog.String("appointment_id", id.String()))
	}
	return &CardSessionResponse{
		AppointmentID: sess.AppointmentID.String(),
		IntentID:      sess.IntentID,
		ClientSecret:  sess.ClientSecret,
		AccountID:     sess.AccountID,
		Amount:        int64(sess.Amount),
		LockToken:     sess.LockToken,
	}, nil
}

func (s *ScheduleServer) FinishCardCheckout(ctx context.Context, req *FinishCardRequest) (*ReceiptResponse, error) {
	log := s.log.With(slog.String("rpc", "FinishCardCheckout"))
	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseID(log, "appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	r, err := s.svc.FinishCardCheckout(ctx, id, checkout.FinishCardInput{
		ClientSecret:    req.ClientSecret,
		PaymentMethodID: req.PaymentMethodID,
		LockToken:       req.LockToken,
	})
	if err != nil {
		return nil, toStatus(log, "card checkout finish", err, slog.String("appointment_id", id.String()))
	}
	log.Info("card payment recorded",
		slog.String("appointment_id", id.String()),
		slog.Int64("applied", int64(r.Applied)),
		slog.Bool("completed", r.Completed),
	)
	return toWireReceipt(r), nil
}

func (s *ScheduleServer) CancelCardCheckout(ctx context.Context, req *CancelCardRequest) (*Empty, error) {
	log := s.log.With(slog.String("rpc", "CancelCardCheckout"))
	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseID(log, "appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.svc.CancelCardCheckout(ctx, id, req.LockToken); err != nil {
		return nil, toStatus(log, "card checkout cancel", err, slog.String("appointment_id", id.String()))
	}
	return &Empty{}, nil
}

func nilRequest(log *slog.Logger) error {
	log.Warn("invalid request", slog.String("reason", "nil_request"))
	return status.Error(codes.InvalidArgument, "request is required")
}

func parseID(log *slog.Logger, field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"), slog.String("field", field))
		return uuid.Nil, status.Error(codes.InvalidArgument, field+" must be a UUID")
	}
	return id, nil
}

func parseOptionalID(log *slog.Logger, field, raw string) (*uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := parseID(log, field, raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// callerFrom returns the identity the auth interceptor attached. Without one
// the caller is anonymous and cannot override working hours.
func callerFrom(ctx context.Context) authz.Identity {
	id, _ := authz.FromContext(ctx)
	return id
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
