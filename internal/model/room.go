package model

import "time"

// DefaultRoomCapacity is used when a room row carries no capacity.
const DefaultRoomCapacity = 6

// Room represents a bookable study room as stored in the `rooms`
// table.  The name doubles as the primary key, so renaming a room
// means inserting a new row and deleting the old one.
//
// Fields:
//  Name      – unique room name (also the identifier).
//  Capacity  – maximum combined party size per slot.
//  Occupied  – whether the room is currently allocated.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Room struct {
	Name      string    `json:"name"`      // rooms.name
	Capacity  int       `json:"capacity"`  // rooms.capacity
	Occupied  bool      `json:"occupied"`  // rooms.occupied
	CreatedAt time.Time `json:"createdAt"` // rooms.created_at
	UpdatedAt time.Time `json:"updatedAt"` // rooms.updated_at
}

// EffectiveCapacity returns the room capacity, or fallback when the
// row has no positive capacity.
func (r Room) EffectiveCapacity(fallback int) int {
	if r.Capacity > 0 {
		return r.Capacity
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultRoomCapacity
}
