// Package board holds one day's appointments in memory and applies each
// operation optimistically: validate against the snapshot, apply locally,
// commit in the background, and put the touched record back if the commit
// fails.
package board

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"studioops/backend/internal/domain"
	"studioops/backend/internal/lifecycle"
	"studioops/backend/internal/planner"
)

// Committer persists accepted changes.
type Committer interface {
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, id uuid.UUID, patch domain.AppointmentPatch) (domain.Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	AppendPayment(ctx context.Context, p domain.Payment) (domain.Payment, error)
}

type Board struct {
	day     civil.Date
	planner *planner.Planner
	guard   *lifecycle.Guard
	store   Committer
	logger  *slog.Logger

	mu    sync.Mutex
	appts map[uuid.UUID]domain.Appointment
	// revs counts local changes per record so a late commit result never
	// clobbers a newer local change.
	revs map[uuid.UUID]uint64
}

func New(day civil.Date, p *planner.Planner, guard *lifecycle.Guard, store Committer, logger *slog.Logger, appts []domain.Appointment) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Board{
		day:     day,
		planner: p,
		guard:   guard,
		store:   store,
		logger:  logger.With(slog.String("component", "board"), slog.String("day", day.String())),
		revs:    make(map[uuid.UUID]uint64),
	}
	b.Replace(appts)
	return b
}

func (b *Board) Day() civil.Date {
	return b.day
}

// Replace swaps in a freshly loaded snapshot. The snapshot may span more than
// one day; conflict checks only compare same-day appointments. Commits still
// in flight no longer touch local state once their records are replaced.
func (b *Board) Replace(appts []domain.Appointment) {
	m := make(map[uuid.UUID]domain.Appointment, len(appts))
	for _, a := range appts {
		m[a.ID] = a.Clone()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appts = m
	for id := range b.revs {
		b.revs[id]++
	}
}

// Snapshot returns copies of the current appointments ordered by start time.
func (b *Board) Snapshot() []domain.Appointment {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Board) Get(id uuid.UUID) (domain.Appointment, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.appts[id]
	if !ok {
		return domain.Appointment{}, false
	}
	return a.Clone(), true
}

func (b *Board) snapshotLocked() []domain.Appointment {
	out := make([]domain.Appointment, 0, len(b.appts))
	for _, a := range b.appts {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Pending is the background commit of an operation already applied locally.
type Pending struct {
	done chan struct{}
	appt domain.Appointment
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) finish(appt domain.Appointment, err error) {
	p.appt, p.err = appt, err
	close(p.done)
}

// Wait blocks until the commit settles. A failed commit has already been
// rolled back locally when Wait returns its error.
func (p *Pending) Wait(ctx context.Context) (domain.Appointment, error) {
	select {
	case <-p.done:
		return p.appt, p.err
	case <-ctx.Done():
		return domain.Appointment{}, ctx.Err()
	}
}

// Done is closed once the commit settles.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// applyLocked sets the local version of a record, or removes it when a is nil.
func (b *Board) applyLocked(id uuid.UUID, a *domain.Appointment) uint64 {
	b.revs[id]++
	if a == nil {
		delete(b.appts, id)
	} else {
		b.appts[id] = a.Clone()
	}
	return b.revs[id]
}

// commit runs fn in the background. On failure the record goes back to prev,
// or is removed when prev is nil.
func (b *Board) commit(ctx context.Context, op string, id uuid.UUID, prev *domain.Appointment, rev uint64, fn func(ctx context.Context) (domain.Appointment, error)) *Pending {
	p := newPending()
	go func() {
		stored, err := fn(ctx)
		if err != nil {
			b.rollback(id, prev, rev)
			b.logger.Warn("commit failed, rolled back",
				slog.String("op", op),
				slog.String("appointment_id", id.String()),
				slog.Any("err", err),
			)
			p.finish(domain.Appointment{}, domain.Persistence(op, err))
			return
		}
		p.finish(b.settle(id, stored, rev), nil)
	}()
	return p
}

func (b *Board) rollback(id uuid.UUID, prev *domain.Appointment, rev uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.revs[id] != rev {
		return
	}
	b.applyLocked(id, prev)
}

// settle replaces the optimistic record with what the store returned and
// hands back the settled copy. A zero stored record means the appointment is
// gone. Store records may come back without payments; the local ones are kept
// since payments are never removed.
func (b *Board) settle(id uuid.UUID, stored domain.Appointment, rev uint64) domain.Appointment {
	b.mu.Lock()
	defer b.mu.Unlock()
	if stored.ID == uuid.Nil {
		if b.revs[id] == rev {
			b.applyLocked(id, nil)
		}
		return stored
	}
	if stored.Payments == nil {
		if local, ok := b.appts[id]; ok && len(local.Payments) > 0 {
			stored.Payments = append([]domain.Payment(nil), local.Payments...)
		}
	}
	if b.revs[id] == rev {
		b.applyLocked(id, &stored)
	}
	return stored
}

// done returns an already settled Pending for operations with nothing to commit.
func done(a domain.Appointment) *Pending {
	p := newPending()
	p.finish(a, nil)
	return p
}
