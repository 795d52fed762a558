package planner

import (
	"errors"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"studioops/backend/internal/domain"
	"studioops/backend/internal/timegrid"
)

type GestureState int

const (
	Idle GestureState = iota
	Selecting
	Dragging
)

func (s GestureState) String() string {
	switch s {
	case Selecting:
		return "selecting"
	case Dragging:
		return "dragging"
	default:
		return "idle"
	}
}

var (
	ErrGestureActive = errors.New("planner: a gesture is already in progress")
	ErrNoGesture     = errors.New("planner: no gesture in progress")
)

// Gesture tracks one pointer interaction on the board: a range selection or
// an appointment drag. Only one may be active at a time. Not safe for
// concurrent use.
type Gesture struct {
	grid  timegrid.Grid
	state GestureState
	day   civil.Date

	resourceID uuid.UUID
	anchor     float64
	current    float64

	appt   domain.Appointment
	target *Target
}

func NewGesture(grid timegrid.Grid, day civil.Date) *Gesture {
	return &Gesture{grid: grid, day: day}
}

func (g *Gesture) State() GestureState {
	return g.state
}

// BeginSelect starts a range selection on pointer-down over an empty slot.
func (g *Gesture) BeginSelect(resourceID uuid.UUID, slot float64) error {
	if g.state != Idle {
		return ErrGestureActive
	}
	g.state = Selecting
	g.resourceID = resourceID
	g.anchor, g.current = slot, slot
	return nil
}

// Extend grows the selection as the pointer moves. Slots on another
// resource's column are ignored.
func (g *Gesture) Extend(resourceID uuid.UUID, slot float64) error {
	if g.state != Selecting {
		return ErrNoGesture
	}
	if resourceID == g.resourceID {
		g.current = slot
	}
	return nil
}

// BeginDrag picks up an existing appointment.
func (g *Gesture) BeginDrag(a domain.Appointment) error {
	if g.state != Idle {
		return ErrGestureActive
	}
	g.state = Dragging
	g.appt = a.Clone()
	g.target = nil
	return nil
}

// Hover records the slot currently under a dragged appointment.
func (g *Gesture) Hover(resourceID uuid.UUID, slot float64) error {
	if g.state != Dragging {
		return ErrNoGesture
	}
	g.target = &Target{ResourceID: resourceID, Day: g.day, Slot: slot}
	return nil
}

// Outcome is what a released gesture asks the planner to do. Exactly one of
// Selection or Move is set, or neither when a drag was dropped nowhere.
type Outcome struct {
	Selection *Selection
	Move      *MoveRequest
}

type MoveRequest struct {
	Appointment domain.Appointment
	Target      Target
}

// Release ends the gesture on pointer-up and returns to Idle.
func (g *Gesture) Release() (Outcome, error) {
	defer g.reset()
	switch g.state {
	case Selecting:
		return Outcome{Selection: &Selection{
			ResourceID: g.resourceID,
			Day:        g.day,
			From:       g.anchor,
			To:         g.current,
		}}, nil
	case Dragging:
		if g.target == nil {
			return Outcome{}, nil
		}
		return Outcome{Move: &MoveRequest{Appointment: g.appt, Target: *g.target}}, nil
	default:
		return Outcome{}, ErrNoGesture
	}
}

// Cancel discards any gesture in progress.
func (g *Gesture) Cancel() {
	g.reset()
}

// Highlighted reports whether slot on resourceID is part of the current
// selection or drop target, for rendering.
func (g *Gesture) Highlighted(resourceID uuid.UUID, slot float64) bool {
	switch g.state {
	case Selecting:
		if resourceID != g.resourceID {
			return false
		}
		start, minutes := Selection{From: g.anchor, To: g.current}.Bounds(g.grid)
		return within(g.grid, slot, start, minutes)
	case Dragging:
		if g.target == nil || g.target.ResourceID != resourceID {
			return false
		}
		return within(g.grid, slot, g.target.Slot, g.appt.Duration())
	}
	return false
}

func within(grid timegrid.Grid, slot, start float64, minutes int) bool {
	i, first := grid.Index(slot), grid.Index(start)
	return i >= first && float64(i-first)*float64(grid.SlotMinutes()) < float64(minutes)
}

func (g *Gesture) reset() {
	day := g.day
	grid := g.grid
	*g = Gesture{grid: grid, day: day}
}
