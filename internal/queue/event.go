// Package queue publishes booking lifecycle events to the message
// broker and consumes them into the booking audit log.
package queue

import (
	"time"

	"github.com/iliyamo/study-room-booking/internal/model"
)

// Event types.  The type doubles as the AMQP routing key.
const (
	BookingCreated   = "booking.created"
	BookingApproved  = "booking.approved"
	BookingRejected  = "booking.rejected"
	BookingCancelled = "booking.cancelled"
	BookingPaid      = "booking.paid"
	BookingRefund    = "booking.refund"
	AccountApproved  = "account.approved"
	AccountRejected  = "account.rejected"
)

// BookingEvent carries enough of a reservation or account for
// downstream consumers to log or notify without querying the database.
type BookingEvent struct {
	Type          string `json:"type"`
	ReservationID string `json:"reservation_id,omitempty"`
	RoomID        string `json:"room_id,omitempty"`
	Date          string `json:"date,omitempty"`
	TimeSlot      string `json:"time_slot,omitempty"`
	Members       int    `json:"members,omitempty"`
	UserID        uint64 `json:"user_id"`
	UserEmail     string `json:"user_email,omitempty"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status,omitempty"`
	RefundStatus  string `json:"refund_status,omitempty"`
	Auto          bool   `json:"auto"`
	OccurredAt    string `json:"occurred_at"`
}

// ReservationEvent builds an event from the reservation state after a
// transition.
func ReservationEvent(typ string, r model.Reservation, now time.Time) BookingEvent {
	return BookingEvent{
		Type:          typ,
		ReservationID: r.ID,
		RoomID:        r.RoomID,
		Date:          r.Date,
		TimeSlot:      r.TimeSlot,
		Members:       r.Members,
		UserID:        r.UserID,
		UserEmail:     r.UserEmail,
		Status:        string(r.Status),
		PaymentStatus: string(r.PaymentStatus),
		RefundStatus:  string(r.RefundStatus),
		Auto:          r.AutoApproved,
		OccurredAt:    now.UTC().Format(time.RFC3339),
	}
}

// AccountEvent builds an event from the account state after a transition.
func AccountEvent(typ string, u model.User, now time.Time) BookingEvent {
	return BookingEvent{
		Type:       typ,
		UserID:     u.ID,
		UserEmail:  u.Email,
		Status:     string(u.Status),
		Auto:       u.AutoCancelled,
		OccurredAt: now.UTC().Format(time.RFC3339),
	}
}
