package appointments

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"studioops/backend/internal/authz"
	"studioops/backend/internal/availability"
	"studioops/backend/internal/board"
	"studioops/backend/internal/checkout"
	"studioops/backend/internal/domain"
	"studioops/backend/internal/events"
	"studioops/backend/internal/lifecycle"
	"studioops/backend/internal/observability/metrics"
	"studioops/backend/internal/planner"
	"studioops/backend/internal/store"
	"studioops/backend/internal/timegrid"
)

// ErrOverrideDenied is returned when a caller asks to book outside working
// hours without the right to.
var ErrOverrideDenied = errors.New("not allowed to book outside working hours")

type Config struct {
	Grid      timegrid.Grid
	ShopHours domain.WeeklyHours
	Planner   planner.Config
	Checkout  checkout.Config
}

type Deps struct {
	Appointments store.AppointmentRepository
	Payments     store.PaymentRepository
	Resources    store.ResourceRepository
	// Provider and Locks are optional. Card checkout is refused without them.
	Provider checkout.Provider
	Locks    store.ChargeLocks
	Events   events.Publisher
	Metrics  *metrics.ScheduleMetrics
	Logger   *slog.Logger
}

type Service struct {
	appts     store.AppointmentRepository
	resources store.ResourceRepository
	committer board.Committer
	guard     *lifecycle.Guard
	checkout  *checkout.Orchestrator
	cardReady bool
	events    events.Publisher
	metrics   *metrics.ScheduleMetrics
	cfg       Config
	logger    *slog.Logger
}

func NewService(deps Deps, cfg Config) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Grid.SlotMinutes() == 0 {
		cfg.Grid = timegrid.Default()
	}
	pub := deps.Events
	if pub == nil {
		pub = events.Nop{}
	}
	s := &Service{
		appts:     deps.Appointments,
		resources: deps.Resources,
		committer: committer{appts: deps.Appointments, payments: deps.Payments},
		guard:     lifecycle.NewGuard(),
		cardReady: deps.Provider != nil && deps.Locks != nil,
		events:    pub,
		metrics:   deps.Metrics,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "appointments")),
	}
	s.checkout = checkout.New(deps.Provider, s, deps.Locks, cfg.Checkout, logger)
	return s
}

// open loads resources and every appointment on days into a fresh planner
// and snapshot.
func (s *Service) open(ctx context.Context, days ...civil.Date) (*planner.Planner, []domain.Appointment, error) {
	resources, err := s.resources.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	var appts []domain.Appointment
	seen := make(map[civil.Date]bool, len(days))
	for _, day := range days {
		if seen[day] {
			continue
		}
		seen[day] = true
		dayAppts, err := s.appts.ListDay(ctx, day)
		if err != nil {
			return nil, nil, err
		}
		appts = append(appts, dayAppts...)
	}
	resolver := availability.NewResolver(s.cfg.ShopHours, resources)
	return planner.New(s.cfg.Grid, resolver, s.cfg.Planner), appts, nil
}

func (s *Service) board(day civil.Date, p *planner.Planner, appts []domain.Appointment) *board.Board {
	return board.New(day, p, s.guard, s.committer, s.logger, appts)
}

// override grants the hours bypass only when asked for and allowed.
func override(caller authz.Identity, resourceID uuid.UUID, requested bool) (bool, error) {
	if !requested {
		return false, nil
	}
	if !caller.CanOverride(resourceID) {
		return false, ErrOverrideDenied
	}
	return true, nil
}

func parseDay(s string) (civil.Date, error) {
	day, err := timegrid.ParseDate(s)
	if err != nil {
		return civil.Date{}, domain.Validation("invalid date")
	}
	return day, nil
}

func parseSlot(s string) (float64, error) {
	slot, err := timegrid.ToDecimalHours(s)
	if err != nil {
		return 0, domain.Validation("invalid start time")
	}
	return slot, nil
}

// dayOf is the stored date of an appointment already in the store.
func dayOf(a domain.Appointment) (civil.Date, error) {
	day, err := timegrid.ParseDate(a.Date)
	if err != nil {
		return civil.Date{}, domain.Validation("appointment has an invalid date")
	}
	return day, nil
}

type PlanInput struct {
	Caller     authz.Identity
	ResourceID uuid.UUID
	Date       string
	From       string
	// To is the last selected slot. Empty plans a single click.
	To       string
	Override bool
}

// Plan previews the appointment a click or drag-select would create. Nothing
// is stored.
func (s *Service) Plan(ctx context.Context, in PlanInput) (domain.Appointment, error) {
	if in.ResourceID == uuid.Nil {
		return domain.Appointment{}, domain.Validation("resource_id is required")
	}
	day, err := parseDay(in.Date)
	if err != nil {
		return domain.Appointment{}, err
	}
	from, err := parseSlot(in.From)
	if err != nil {
		return domain.Appointment{}, err
	}
	ov, err := override(in.Caller, in.ResourceID, in.Override)
	if err != nil {
		return domain.Appointment{}, err
	}
	p, appts, err := s.open(ctx, day)
	if err != nil {
		return domain.Appointment{}, err
	}

	var d *planner.Draft
	if strings.TrimSpace(in.To) == "" {
		d, err = p.ClickToBook(planner.Click{ResourceID: in.ResourceID, Day: day, Slot: from, Override: ov}, appts)
	} else {
		to, perr := parseSlot(in.To)
		if perr != nil {
			return domain.Appointment{}, perr
		}
		d, err = p.SelectRange(planner.Selection{ResourceID: in.ResourceID, Day: day, From: from, To: to, Override: ov}, appts)
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	return d.Build()
}

type BookInput struct {
	Caller          authz.Identity
	ResourceID      uuid.UUID
	Date            string
	StartTime       string
	DurationMinutes int
	ClientID        *uuid.UUID
	ServiceID       *uuid.UUID
	// Price overrides rate × duration when set.
	Price          *domain.Money
	Deposit        domain.Money
	Notes          string
	Status         domain.AppointmentStatus
	Override       bool
	IdempotencyKey string
}

func (s *Service) Book(ctx context.Context, in BookInput) (appt domain.Appointment, err error) {
	defer func() { s.observe("book", err) }()

	if in.ResourceID == uuid.Nil {
		return domain.Appointment{}, domain.Validation("resource_id is required")
	}
	day, err := parseDay(in.Date)
	if err != nil {
		return domain.Appointment{}, err
	}
	start, err := parseSlot(in.StartTime)
	if err != nil {
		return domain.Appointment{}, err
	}
	ov, err := override(in.Caller, in.ResourceID, in.Override)
	if err != nil {
		return domain.Appointment{}, err
	}

	var id uuid.UUID
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		if len(key) > 256 {
			return domain.Appointment{}, domain.Validation("idempotency_key too long")
		}
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte("studio:book_appointment:"+in.Caller.UserID+":"+key))
	}

	p, appts, err := s.open(ctx, day)
	if err != nil {
		return domain.Appointment{}, err
	}

	duration := in.DurationMinutes
	if duration == 0 {
		duration = p.DefaultDuration()
	}
	status := in.Status
	if status == "" {
		status = domain.StatusPending
	}
	d := planner.NewDraft(in.ResourceID, day, start).
		WithID(id).
		WithDuration(duration).
		WithRate(p.RateFor(in.ResourceID)).
		WithDeposit(in.Deposit).
		WithNotes(in.Notes).
		WithStatus(status).
		WithOverride(ov)
	if in.ClientID != nil {
		d.WithClient(*in.ClientID)
	}
	if in.ServiceID != nil {
		d.WithService(*in.ServiceID)
	}
	if in.Price != nil {
		d.WithPrice(*in.Price)
	}

	// A retried booking would overlap itself; let the store compare it with
	// what was saved the first time.
	if id != uuid.Nil && containsID(appts, id) {
		a, err := d.Build()
		if err != nil {
			return domain.Appointment{}, err
		}
		return s.appts.Create(ctx, a)
	}

	pending, err := s.board(day, p, appts).Create(ctx, d)
	if err != nil {
		return domain.Appointment{}, err
	}
	appt, err = pending.Wait(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	s.publish(ctx, events.AppointmentBooked, appt, nil)
	return appt, nil
}

func containsID(appts []domain.Appointment, id uuid.UUID) bool {
	for _, a := range appts {
		if a.ID == id {
			return true
		}
	}
	return false
}

type MoveInput struct {
	Caller        authz.Identity
	AppointmentID uuid.UUID
	// ResourceID defaults to the appointment's current resource.
	ResourceID uuid.UUID
	Date       string
	StartTime  string
	Override   bool
}

// Move re-places an appointment, keeping its duration. The target span is
// validated against a snapshot loaded for this call.
func (s *Service) Move(ctx context.Context, in MoveInput) (appt domain.Appointment, err error) {
	defer func() { s.observe("move", err) }()

	if in.AppointmentID == uuid.Nil {
		return domain.Appointment{}, domain.Validation("appointment_id is required")
	}
	current, err := s.appts.Get(ctx, in.AppointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	fromDay, err := dayOf(current)
	if err != nil {
		return domain.Appointment{}, err
	}
	toDay := fromDay
	if strings.TrimSpace(in.Date) != "" {
		if toDay, err = parseDay(in.Date); err != nil {
			return domain.Appointment{}, err
		}
	}
	slot, err := parseSlot(in.StartTime)
	if err != nil {
		return domain.Appointment{}, err
	}
	resourceID := in.ResourceID
	if resourceID == uuid.Nil {
		resourceID = current.ResourceID
	}
	ov, err := override(in.Caller, resourceID, in.Override)
	if err != nil {
		return domain.Appointment{}, err
	}

	p, appts, err := s.open(ctx, fromDay, toDay)
	if err != nil {
		return domain.Appointment{}, err
	}
	pending, err := s.board(toDay, p, appts).Move(ctx, current.ID, planner.Target{ResourceID: resourceID, Day: toDay, Slot: slot}, ov)
	if err != nil {
		return domain.Appointment{}, err
	}
	appt, err = pending.Wait(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	s.publish(ctx, events.AppointmentMoved, appt, map[string]string{
		"from_resource_id": current.ResourceID.String(),
		"from_date":        current.Date,
		"from_start_time":  current.StartTime,
	})
	return appt, nil
}

// SetStatus applies a lifecycle transition.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (appt domain.Appointment, err error) {
	defer func() { s.observe("set_status", err) }()

	b, current, err := s.boardFor(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	pending, err := b.SetStatus(ctx, id, status)
	if err != nil {
		return domain.Appointment{}, err
	}
	appt, err = pending.Wait(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	if appt.Status != current.Status {
		s.publish(ctx, events.AppointmentStatusChanged, appt, map[string]string{"from": string(current.Status), "to": string(appt.Status)})
	}
	return appt, nil
}

// Delete removes an appointment that has never been paid. Cancelling is a
// status change, not a delete.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (err error) {
	defer func() { s.observe("delete", err) }()

	b, current, err := s.boardFor(ctx, id)
	if err != nil {
		return err
	}
	pending, err := b.Delete(ctx, id)
	if err != nil {
		return err
	}
	if _, err := pending.Wait(ctx); err != nil {
		return err
	}
	s.publish(ctx, events.AppointmentDeleted, current, nil)
	return nil
}

// RecordPayment appends a payment through the board so the appointment's
// payment status and completion follow it. It returns the appointment as
// reloaded from the store.
func (s *Service) RecordPayment(ctx context.Context, p domain.Payment) (appt domain.Appointment, err error) {
	defer func() { s.observe("record_payment", err) }()

	b, _, err := s.boardFor(ctx, p.AppointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	pending, err := b.RecordPayment(ctx, p)
	if err != nil {
		return domain.Appointment{}, err
	}
	appt, err = pending.Wait(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	if fresh, gerr := s.appts.Get(ctx, p.AppointmentID); gerr == nil {
		appt = fresh
	} else {
		s.logger.Warn("reload after payment", slog.String("appointment_id", p.AppointmentID.String()), slog.Any("err", gerr))
	}

	s.metrics.ObservePayment(string(p.Method), int64(p.Amount))
	s.publish(ctx, events.PaymentRecorded, appt, map[string]any{
		"amount":         p.Amount,
		"method":         p.Method,
		"reference":      p.Reference,
		"status":         appt.Status,
		"payment_status": appt.PaymentStatus,
	})
	return appt, nil
}

// boardFor loads the board for the day id is booked on.
func (s *Service) boardFor(ctx context.Context, id uuid.UUID) (*board.Board, domain.Appointment, error) {
	if id == uuid.Nil {
		return nil, domain.Appointment{}, domain.Validation("appointment_id is required")
	}
	current, err := s.appts.Get(ctx, id)
	if err != nil {
		return nil, domain.Appointment{}, err
	}
	day, err := dayOf(current)
	if err != nil {
		return nil, domain.Appointment{}, err
	}
	p, appts, err := s.open(ctx, day)
	if err != nil {
		return nil, domain.Appointment{}, err
	}
	return s.board(day, p, appts), current, nil
}

func (s *Service) publish(ctx context.Context, t events.Type, a domain.Appointment, data any) {
	e, err := events.New(t, a.ID, a.ResourceID, a.Date, data)
	if err == nil {
		err = s.events.Publish(ctx, e)
	}
	if err != nil {
		s.logger.Warn("publish event", slog.String("event_type", string(t)), slog.String("appointment_id", a.ID.String()), slog.Any("err", err))
	}
}

func (s *Service) observe(op string, err error) {
	s.metrics.ObserveOperation(op, outcome(err))
}

func outcome(err error) string {
	var (
		ce *domain.ConflictError
		ve *domain.ValidationError
		gv *domain.GuardViolation
	)
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &ce), errors.Is(err, store.ErrConflict):
		return metrics.OutcomeConflict
	case errors.As(err, &ve), errors.As(err, &gv), errors.Is(err, ErrOverrideDenied):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeFailed
	}
}
