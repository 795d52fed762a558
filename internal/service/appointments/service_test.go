package appointments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"studioops/backend/internal/authz"
	"studioops/backend/internal/availability"
	"studioops/backend/internal/checkout"
	"studioops/backend/internal/domain"
	"studioops/backend/internal/events"
	"studioops/backend/internal/planner"
	"studioops/backend/internal/store"
	"studioops/backend/internal/timegrid"
)

type fakeAppointments struct {
	getFn     func(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	listDayFn func(ctx context.Context, day civil.Date) ([]domain.Appointment, error)
	createFn  func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	updateFn  func(ctx context.Context, id uuid.UUID, patch domain.AppointmentPatch) (domain.Appointment, error)
	deleteFn  func(ctx context.Context, id uuid.UUID) error
}

func (f *fakeAppointments) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if f.getFn == nil {
		panic("Get not configured")
	}
	return f.getFn(ctx, id)
}

func (f *fakeAppointments) ListDay(ctx context.Context, day civil.Date) ([]domain.Appointment, error) {
	if f.listDayFn == nil {
		panic("ListDay not configured")
	}
	return f.listDayFn(ctx, day)
}

func (f *fakeAppointments) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if f.createFn == nil {
		panic("Create not configured")
	}
	return f.createFn(ctx, appt)
}

func (f *fakeAppointments) Update(ctx context.Context, id uuid.UUID, patch domain.AppointmentPatch) (domain.Appointment, error) {
	if f.updateFn == nil {
		panic("Update not configured")
	}
	return f.updateFn(ctx, id, patch)
}

func (f *fakeAppointments) Delete(ctx context.Context, id uuid.UUID) error {
	if f.deleteFn == nil {
		panic("Delete not configured")
	}
	return f.deleteFn(ctx, id)
}

type fakePayments struct {
	appendFn func(ctx context.Context, p domain.Payment) (domain.Payment, error)
	listFn   func(ctx context.Context, appointmentID uuid.UUID) ([]domain.Payment, error)
}

func (f *fakePayments) Append(ctx context.Context, p domain.Payment) (domain.Payment, error) {
	if f.appendFn == nil {
		panic("Append not configured")
	}
	return f.appendFn(ctx, p)
}

func (f *fakePayments) List(ctx context.Context, appointmentID uuid.UUID) ([]domain.Payment, error) {
	if f.listFn == nil {
		panic("List not configured")
	}
	return f.listFn(ctx, appointmentID)
}

type fakeResources struct {
	resources []domain.Resource
}

func (f *fakeResources) List(ctx context.Context) ([]domain.Resource, error) {
	return append([]domain.Resource(nil), f.resources...), nil
}

func (f *fakeResources) Get(ctx context.Context, id uuid.UUID) (domain.Resource, error) {
	for _, r := range f.resources {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.Resource{}, store.ErrNotFound
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, es ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, es...)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// memStore backs the fakes with maps so whole flows can run.
type memStore struct {
	mu       sync.Mutex
	appts    map[uuid.UUID]domain.Appointment
	payments map[uuid.UUID][]domain.Payment
	creates  int

	appointments *fakeAppointments
	paymentRepo  *fakePayments
}

func newMemStore() *memStore {
	m := &memStore{
		appts:    map[uuid.UUID]domain.Appointment{},
		payments: map[uuid.UUID][]domain.Payment{},
	}
	m.appointments = &fakeAppointments{
		getFn: func(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			return m.getLocked(id)
		},
		listDayFn: func(ctx context.Context, day civil.Date) ([]domain.Appointment, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			var out []domain.Appointment
			for id, a := range m.appts {
				if a.Date == day.String() {
					full, _ := m.getLocked(id)
					out = append(out, full)
				}
			}
			return out, nil
		},
		createFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.creates++
			if existing, ok := m.appts[appt.ID]; ok {
				if existing.StartTime != appt.StartTime || existing.ResourceID != appt.ResourceID {
					return domain.Appointment{}, store.ErrIdempotencyConflict
				}
				return existing.Clone(), nil
			}
			appt.CreatedAt = time.Now().UTC()
			appt.UpdatedAt = appt.CreatedAt
			appt.Payments = nil
			m.appts[appt.ID] = appt.Clone()
			return appt, nil
		},
		updateFn: func(ctx context.Context, id uuid.UUID, patch domain.AppointmentPatch) (domain.Appointment, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			a, ok := m.appts[id]
			if !ok {
				return domain.Appointment{}, store.ErrNotFound
			}
			patch.Apply(&a)
			m.appts[id] = a
			return m.getLocked(id)
		},
		deleteFn: func(ctx context.Context, id uuid.UUID) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			if _, ok := m.appts[id]; !ok {
				return store.ErrNotFound
			}
			delete(m.appts, id)
			return nil
		},
	}
	m.paymentRepo = &fakePayments{
		appendFn: func(ctx context.Context, p domain.Payment) (domain.Payment, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			if _, ok := m.appts[p.AppointmentID]; !ok {
				return domain.Payment{}, store.ErrNotFound
			}
			p.CreatedAt = time.Now().UTC()
			m.payments[p.AppointmentID] = append(m.payments[p.AppointmentID], p)
			return p, nil
		},
		listFn: func(ctx context.Context, appointmentID uuid.UUID) ([]domain.Payment, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			return append([]domain.Payment(nil), m.payments[appointmentID]...), nil
		},
	}
	return m
}

func (m *memStore) getLocked(id uuid.UUID) (domain.Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	out := a.Clone()
	out.Payments = append([]domain.Payment(nil), m.payments[id]...)
	return out, nil
}

func (m *memStore) put(a domain.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[a.ID] = a.Payments
	a.Payments = nil
	m.appts[a.ID] = a
}

const monday = "2026-01-05"

type fixture struct {
	svc    *Service
	store  *memStore
	events *recordingPublisher
	artist domain.Resource
}

func newFixture(t *testing.T, provider checkout.Provider, locks store.ChargeLocks) fixture {
	t.Helper()
	artist := domain.Resource{ID: uuid.New(), Name: "Ana", HourlyRate: domain.Dollars(100)}
	m := newMemStore()
	pub := &recordingPublisher{}
	svc := NewService(Deps{
		Appointments: m.appointments,
		Payments:     m.paymentRepo,
		Resources:    &fakeResources{resources: []domain.Resource{artist}},
		Provider:     provider,
		Locks:        locks,
		Events:       pub,
	}, Config{
		Grid: timegrid.Default(),
		ShopHours: domain.WeeklyHours{
			"monday": {Open: "08:00", Close: "20:00"},
			"sunday": {Closed: true},
		},
		Planner:  planner.Config{DefaultDurationMinutes: 60, DefaultHourlyRate: domain.Dollars(80)},
		Checkout: checkout.Config{Peer: checkout.PeerHandles{CashApp: "studio"}},
	})
	return fixture{svc: svc, store: m, events: pub, artist: artist}
}

func (f fixture) existing(t *testing.T, start string, minutes int, price, deposit domain.Money) domain.Appointment {
	t.Helper()
	a := domain.Appointment{
		ID:              uuid.New(),
		ResourceID:      f.artist.ID,
		Date:            monday,
		StartTime:       start,
		DurationMinutes: minutes,
		Price:           price,
		DepositPaid:     deposit,
		Status:          domain.StatusConfirmed,
		PaymentStatus:   domain.PaymentUnpaid,
	}
	f.store.put(a)
	return a
}

func staff() authz.Identity { return authz.Identity{UserID: "staff-1", Role: authz.RoleStaff} }
func admin() authz.Identity { return authz.Identity{UserID: "admin-1", Role: authz.RoleAdmin} }

func TestBook_AutoPricesAndPublishes(t *testing.T) {
	f := newFixture(t, nil, nil)

	appt, err := f.svc.Book(context.Background(), BookInput{
		Caller:          staff(),
		ResourceID:      f.artist.ID,
		Date:            monday,
		StartTime:       "10:00",
		DurationMinutes: 90,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, appt.ID)
	require.Equal(t, domain.Dollars(150), appt.Price)
	require.Equal(t, "10:00", appt.StartTime)
	require.Equal(t, domain.StatusPending, appt.Status)
	require.Equal(t, domain.PaymentUnpaid, appt.PaymentStatus)
	require.Equal(t, []events.Type{events.AppointmentBooked}, f.events.types())

	stored, err := f.store.appointments.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	require.Equal(t, 90, stored.DurationMinutes)
}

func TestBook_Rejections(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.existing(t, "10:00", 60, domain.Dollars(100), 0)

	tests := []struct {
		name  string
		in    BookInput
		check func(t *testing.T, err error)
	}{
		{
			name: "overlap",
			in:   BookInput{Caller: staff(), ResourceID: f.artist.ID, Date: monday, StartTime: "10:30"},
			check: func(t *testing.T, err error) {
				var ce *domain.ConflictError
				require.True(t, errors.As(err, &ce))
				require.Equal(t, "That time is no longer available. Pick a different slot.", ce.Error())
			},
		},
		{
			name: "before shop opens",
			in:   BookInput{Caller: staff(), ResourceID: f.artist.ID, Date: monday, StartTime: "07:00"},
			check: func(t *testing.T, err error) {
				var ce *domain.ConflictError
				require.True(t, errors.As(err, &ce))
			},
		},
		{
			name: "override without permission",
			in:   BookInput{Caller: staff(), ResourceID: f.artist.ID, Date: monday, StartTime: "07:00", Override: true},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrOverrideDenied)
			},
		},
		{
			name: "bad date",
			in:   BookInput{Caller: staff(), ResourceID: f.artist.ID, Date: "05/01/2026", StartTime: "12:00"},
			check: func(t *testing.T, err error) {
				var ve *domain.ValidationError
				require.True(t, errors.As(err, &ve))
			},
		},
		{
			name: "missing resource",
			in:   BookInput{Caller: staff(), Date: monday, StartTime: "12:00"},
			check: func(t *testing.T, err error) {
				var ve *domain.ValidationError
				require.True(t, errors.As(err, &ve))
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Book(context.Background(), tc.in)
			require.Error(t, err)
			tc.check(t, err)
		})
	}
	require.Zero(t, f.store.creates)
	require.Empty(t, f.events.types())
}

func TestBook_AdminOverrideOutsideHours(t *testing.T) {
	f := newFixture(t, nil, nil)

	appt, err := f.svc.Book(context.Background(), BookInput{
		Caller: admin(), ResourceID: f.artist.ID, Date: monday, StartTime: "07:00", Override: true,
	})
	require.NoError(t, err)
	require.Equal(t, "07:00", appt.StartTime)
}

func TestBook_IdempotencyKeyReplays(t *testing.T) {
	f := newFixture(t, nil, nil)
	in := BookInput{Caller: staff(), ResourceID: f.artist.ID, Date: monday, StartTime: "12:00", IdempotencyKey: "k-1"}

	first, err := f.svc.Book(context.Background(), in)
	require.NoError(t, err)
	want := uuid.NewSHA1(uuid.NameSpaceOID, []byte("studio:book_appointment:staff-1:k-1"))
	require.Equal(t, want, first.ID)

	second, err := f.svc.Book(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	in.StartTime = "15:00"
	_, err = f.svc.Book(context.Background(), in)
	require.ErrorIs(t, err, store.ErrIdempotencyConflict)
}

func TestBook_StoreConflictSurfacesAsPersistence(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.store.appointments.createFn = func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
		return domain.Appointment{}, store.ErrConflict
	}

	_, err := f.svc.Book(context.Background(), BookInput{Caller: staff(), ResourceID: f.artist.ID, Date: monday, StartTime: "12:00"})
	require.ErrorIs(t, err, store.ErrConflict)
	var pe *domain.PersistenceError
	require.True(t, errors.As(err, &pe))
	require.Empty(t, f.events.types())
}

func TestPlan_DragSelect(t *testing.T) {
	f := newFixture(t, nil, nil)

	preview, err := f.svc.Plan(context.Background(), PlanInput{
		Caller: staff(), ResourceID: f.artist.ID, Date: monday, From: "10:00", To: "09:00",
	})
	require.NoError(t, err)
	require.Equal(t, "09:00", preview.StartTime)
	require.Equal(t, 90, preview.DurationMinutes)
	require.Equal(t, domain.Dollars(150), preview.Price)
	require.Equal(t, domain.StatusConfirmed, preview.Status)

	click, err := f.svc.Plan(context.Background(), PlanInput{Caller: staff(), ResourceID: f.artist.ID, Date: monday, From: "13:30"})
	require.NoError(t, err)
	require.Equal(t, 60, click.DurationMinutes)
	require.Equal(t, domain.StatusPending, click.Status)
	require.Zero(t, f.store.creates)
}

func TestMove(t *testing.T) {
	f := newFixture(t, nil, nil)
	a := f.existing(t, "10:00", 60, domain.Dollars(100), 0)
	f.existing(t, "14:00", 60, domain.Dollars(100), 0)

	_, err := f.svc.Move(context.Background(), MoveInput{Caller: staff(), AppointmentID: a.ID, StartTime: "13:30"})
	var ce *domain.ConflictError
	require.True(t, errors.As(err, &ce))

	moved, err := f.svc.Move(context.Background(), MoveInput{Caller: staff(), AppointmentID: a.ID, StartTime: "15:00"})
	require.NoError(t, err)
	require.Equal(t, "15:00", moved.StartTime)
	require.Equal(t, 60, moved.DurationMinutes)
	require.Equal(t, []events.Type{events.AppointmentMoved}, f.events.types())
}

func TestMove_ToAnotherDay(t *testing.T) {
	f := newFixture(t, nil, nil)
	a := f.existing(t, "10:00", 60, domain.Dollars(100), 0)

	_, err := f.svc.Move(context.Background(), MoveInput{Caller: staff(), AppointmentID: a.ID, Date: "2026-01-11", StartTime: "12:00"})
	var ce *domain.ConflictError
	require.True(t, errors.As(err, &ce), "sunday is closed")

	moved, err := f.svc.Move(context.Background(), MoveInput{Caller: admin(), AppointmentID: a.ID, Date: "2026-01-11", StartTime: "12:00", Override: true})
	require.NoError(t, err)
	require.Equal(t, "2026-01-11", moved.Date)
}

func TestSetStatus_GuardedByPayments(t *testing.T) {
	f := newFixture(t, nil, nil)
	paid := f.existing(t, "10:00", 60, domain.Dollars(100), domain.Dollars(20))

	_, err := f.svc.SetStatus(context.Background(), paid.ID, domain.StatusCancelled)
	var gv *domain.GuardViolation
	require.True(t, errors.As(err, &gv))

	_, err = f.svc.SetStatus(context.Background(), paid.ID, domain.StatusCompleted)
	require.True(t, errors.As(err, &gv))
	require.Equal(t, "balance still due", gv.Reason)

	unpaid := f.existing(t, "12:00", 60, domain.Dollars(100), 0)
	out, err := f.svc.SetStatus(context.Background(), unpaid.ID, domain.StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, out.Status)
	require.Equal(t, []events.Type{events.AppointmentStatusChanged}, f.events.types())
}

func TestDelete(t *testing.T) {
	f := newFixture(t, nil, nil)
	paid := f.existing(t, "10:00", 60, domain.Dollars(100), domain.Dollars(20))
	unpaid := f.existing(t, "12:00", 60, domain.Dollars(100), 0)

	var gv *domain.GuardViolation
	require.True(t, errors.As(f.svc.Delete(context.Background(), paid.ID), &gv))

	require.NoError(t, f.svc.Delete(context.Background(), unpaid.ID))
	_, err := f.store.appointments.Get(context.Background(), unpaid.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Equal(t, []events.Type{events.AppointmentDeleted}, f.events.types())
}

func TestCashCheckout_CompletesAppointment(t *testing.T) {
	f := newFixture(t, nil, nil)
	a := f.existing(t, "10:00", 60, domain.Dollars(100), 0)

	r, err := f.svc.CashCheckout(context.Background(), a.ID, checkout.CashInput{Received: domain.Dollars(120), Tip: domain.Dollars(10)})
	require.NoError(t, err)
	require.Equal(t, domain.Dollars(100), r.Applied)
	require.Equal(t, domain.Dollars(20), r.ChangeDue)
	require.True(t, r.Completed)
	require.Equal(t, domain.StatusCompleted, r.Appointment.Status)
	require.Equal(t, domain.PaymentPaid, r.Appointment.PaymentStatus)
	require.Len(t, r.Appointment.Payments, 1)
	require.Equal(t, []events.Type{events.PaymentRecorded}, f.events.types())

	view, err := f.svc.Ledger(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.Money(0), view.Summary.BalanceDue)
	require.False(t, view.CanDelete)

	_, err = f.svc.CashCheckout(context.Background(), a.ID, checkout.CashInput{Received: domain.Dollars(5)})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve), "nothing left to pay")
}

func TestPartialPayment_StaysOpen(t *testing.T) {
	f := newFixture(t, nil, nil)
	a := f.existing(t, "10:00", 60, domain.Dollars(200), 0)

	r, err := f.svc.RecordPeerPayment(context.Background(), a.ID, domain.MethodVenmo, domain.Dollars(50), "v-1")
	require.NoError(t, err)
	require.False(t, r.Completed)
	require.Equal(t, domain.PaymentDeposit, r.Appointment.PaymentStatus)
	require.Equal(t, domain.Dollars(150), r.Summary.BalanceDue)
}

func TestPaymentLink(t *testing.T) {
	f := newFixture(t, nil, nil)
	a := f.existing(t, "10:00", 60, domain.Dollars(200), 0)

	link, err := f.svc.PaymentLink(context.Background(), a.ID, domain.MethodCashApp, domain.Dollars(50), "")
	require.NoError(t, err)
	require.Contains(t, link.URL, "https://cash.app/$studio/50.00")

	_, err = f.svc.PaymentLink(context.Background(), a.ID, domain.MethodVenmo, domain.Dollars(50), "")
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve), "venmo handle not configured")
}

func TestCardCheckout_RequiresProvider(t *testing.T) {
	f := newFixture(t, nil, nil)
	a := f.existing(t, "10:00", 60, domain.Dollars(100), 0)

	_, err := f.svc.StartCardCheckout(context.Background(), a.ID, domain.Dollars(100))
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
}

func TestDayView(t *testing.T) {
	f := newFixture(t, nil, nil)
	a := f.existing(t, "10:00", 60, domain.Dollars(100), domain.Dollars(20))

	view, err := f.svc.DayView(context.Background(), monday)
	require.NoError(t, err)
	require.False(t, view.Closed)
	require.Equal(t, "08:00", view.Open)
	require.Equal(t, "20:00", view.Close)
	require.Len(t, view.Columns, 1)

	cells := view.Columns[0].Cells
	require.Len(t, cells, 24)
	byTime := map[string]Cell{}
	for _, c := range cells {
		byTime[c.Time] = c
	}
	require.Equal(t, availability.SlotBooked, byTime["10:00"].Status)
	require.Equal(t, a.ID, *byTime["10:30"].AppointmentID)
	require.Equal(t, availability.SlotAvailable, byTime["11:00"].Status)

	require.Len(t, view.Bookings, 1)
	require.Equal(t, "10AM", view.Bookings[0].Start)
	require.Equal(t, "11AM", view.Bookings[0].End)
	require.Equal(t, domain.Dollars(80), view.Bookings[0].Summary.BalanceDue)

	closed, err := f.svc.DayView(context.Background(), "2026-01-11")
	require.NoError(t, err)
	require.True(t, closed.Closed)
	require.Empty(t, closed.Columns[0].Cells)
}
