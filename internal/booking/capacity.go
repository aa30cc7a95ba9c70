// Package booking holds the pure booking rules: slot capacity, the slot
// catalog and the reservation/account state machine.  Nothing here
// touches the store; callers pass in the snapshot they just read.
package booking

import "github.com/iliyamo/study-room-booking/internal/model"

// Evaluator decides whether a party fits a room slot.  Capacity is
// recomputed from the reservation set on every call so that rejected
// and cancelled reservations release their seats without a counter.
type Evaluator struct {
	// FallbackCapacity applies to rooms stored without a capacity.
	FallbackCapacity int
}

// NewEvaluator returns an Evaluator using fallback for rooms without a
// capacity.  A non-positive fallback selects model.DefaultRoomCapacity.
func NewEvaluator(fallback int) Evaluator {
	if fallback <= 0 {
		fallback = model.DefaultRoomCapacity
	}
	return Evaluator{FallbackCapacity: fallback}
}

// Remaining returns the seats left in room for (date, slot) given the
// existing reservations.  Only pending and approved reservations for the
// same room, date and slot count.  The result may be negative when the
// slot is already over-admitted.
func (e Evaluator) Remaining(room model.Room, existing []model.Reservation, date, slot string) int {
	used := 0
	for _, r := range existing {
		if r.RoomID != room.Name || r.Date != date || r.TimeSlot != slot {
			continue
		}
		if !r.Status.Holds() {
			continue
		}
		used += r.Seats()
	}
	return room.EffectiveCapacity(e.FallbackCapacity) - used
}

// CanAccept reports whether requested seats fit.  The caller validates
// requested >= 1.
func (e Evaluator) CanAccept(room model.Room, existing []model.Reservation, date, slot string, requested int) bool {
	return e.Remaining(room, existing, date, slot) >= requested
}

// RemainingCapacity is Evaluator.Remaining with an explicit fallback.
func RemainingCapacity(room model.Room, existing []model.Reservation, date, slot string, fallback int) int {
	return NewEvaluator(fallback).Remaining(room, existing, date, slot)
}

// CanAccept is Evaluator.CanAccept with an explicit fallback.
func CanAccept(room model.Room, existing []model.Reservation, date, slot string, requested, fallback int) bool {
	return NewEvaluator(fallback).CanAccept(room, existing, date, slot, requested)
}

// Excluding returns existing without the reservation identified by id.
// Manual approval re-validates against the other reservations only.
func Excluding(existing []model.Reservation, id string) []model.Reservation {
	out := make([]model.Reservation, 0, len(existing))
	for _, r := range existing {
		if r.ID == id {
			continue
		}
		out = append(out, r)
	}
	return out
}
