package availability

import (
	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"studioops/backend/internal/conflict"
	"studioops/backend/internal/domain"
)

type SlotStatus string

const (
	SlotBooked            SlotStatus = "booked"
	SlotShopClosed        SlotStatus = "shop-closed"
	SlotArtistUnavailable SlotStatus = "artist-unavailable"
	SlotAvailable         SlotStatus = "available"
)

// Status classifies a slot for rendering. A booking wins over closed hours so
// appointments placed with an override stay visible.
func (r *Resolver) Status(resourceID uuid.UUID, slot float64, day civil.Date, appts []domain.Appointment) SlotStatus {
	if _, ok := conflict.Occupant(resourceID, day, slot, appts); ok {
		return SlotBooked
	}
	if !r.ShopOpen(slot, day) {
		return SlotShopClosed
	}
	if !r.IsSchedulable(resourceID, slot, day, false) {
		return SlotArtistUnavailable
	}
	return SlotAvailable
}
