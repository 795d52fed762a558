// Package availability decides whether shop and artist hours allow a booking
// at a slot, independent of existing appointments.
package availability

import (
	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"studioops/backend/internal/domain"
	"studioops/backend/internal/timegrid"
)

type Resolver struct {
	shop      domain.WeeklyHours
	resources map[uuid.UUID]domain.Resource
}

func NewResolver(shop domain.WeeklyHours, resources []domain.Resource) *Resolver {
	byID := make(map[uuid.UUID]domain.Resource, len(resources))
	for _, r := range resources {
		byID[r.ID] = r
	}
	return &Resolver{shop: shop, resources: byID}
}

func (r *Resolver) Resource(id uuid.UUID) (domain.Resource, bool) {
	res, ok := r.resources[id]
	return res, ok
}

// IsSchedulable reports whether slot on day falls inside both the shop's and
// the artist's hours. override skips the hours checks entirely; it must come
// from the caller's authorization decision. Unknown resources are never schedulable.
func (r *Resolver) IsSchedulable(resourceID uuid.UUID, slot float64, day civil.Date, override bool) bool {
	res, ok := r.resources[resourceID]
	if !ok {
		return false
	}
	if slot < 0 || slot >= timegrid.HoursPerDay {
		return false
	}
	if override {
		return true
	}

	wd := weekday(day)
	if !r.ShopOpen(slot, day) {
		return false
	}
	if res.Hours == nil {
		return true
	}
	open, close, ok := window(res.Hours, wd)
	if !ok {
		return false
	}
	return slot >= open && slot < close
}

// ShopOpen reports whether the shop itself is open at slot on day.
func (r *Resolver) ShopOpen(slot float64, day civil.Date) bool {
	open, close, ok := r.WorkingWindow(day)
	if !ok {
		return false
	}
	return slot >= open && slot < close
}

// WorkingWindow returns the shop's opening window for day in decimal hours.
func (r *Resolver) WorkingWindow(day civil.Date) (open, close float64, ok bool) {
	return window(r.shop, weekday(day))
}
