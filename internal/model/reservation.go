package model

import "time"

// ReservationStatus is the lifecycle state of a booking request.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusApproved  ReservationStatus = "approved"
	StatusRejected  ReservationStatus = "rejected"
	StatusCancelled ReservationStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s ReservationStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// Holds reports whether a reservation in this state consumes seats.
func (s ReservationStatus) Holds() bool {
	return s == StatusPending || s == StatusApproved
}

// Valid reports whether s is a known status.
func (s ReservationStatus) Valid() bool {
	return s == StatusPending || s.IsTerminal()
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

type RefundStatus string

const (
	RefundNotInitiated RefundStatus = "not_initiated"
	RefundInitiated    RefundStatus = "initiated"
	RefundRefunded     RefundStatus = "refunded"
	RefundFailed       RefundStatus = "failed"
)

const (
	RefundReasonAdminRejected = "admin_rejected"
	RefundReasonUserCancelled = "user_cancelled"
)

// Reservation mirrors a row of the `booking_requests` table.  Nullable
// columns are pointers so that "never set" and "zero" stay distinct.
type Reservation struct {
	ID                string            `json:"id"`
	RoomID            string            `json:"roomId"`
	Date              string            `json:"date"`
	TimeSlot          string            `json:"time"`
	SlotType          string            `json:"slotType,omitempty"`
	Members           int               `json:"members"`
	Amount            int               `json:"amount"`
	UserID            uint64            `json:"userId"`
	UserEmail         string            `json:"userEmail"`
	Status            ReservationStatus `json:"status"`
	PaymentStatus     PaymentStatus     `json:"paymentStatus"`
	RazorpayOrderID   *string           `json:"razorpayOrderId"`
	RazorpayPaymentID *string           `json:"razorpayPaymentId"`
	PaidAt            *time.Time        `json:"paidAt"`
	PaidAmount        *int64            `json:"paidAmount,omitempty"`
	RefundStatus      RefundStatus      `json:"refundStatus"`
	RefundReason      *string           `json:"refundReason"`
	RefundID          *string           `json:"refundId,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	ApprovedAt        *time.Time        `json:"approvedAt"`
	RejectedAt        *time.Time        `json:"rejectedAt"`
	CancelledAt       *time.Time        `json:"cancelledAt"`
	CancelledBy       *string           `json:"cancelledBy,omitempty"`
	AutoApproved      bool              `json:"autoApproved"`
}

// Seats returns the party size, counting a missing size as one seat.
func (r Reservation) Seats() int {
	if r.Members < 1 {
		return 1
	}
	return r.Members
}

// ReservationFilter selects reservations.  Zero-valued fields do not
// constrain the query.
type ReservationFilter struct {
	RoomID    string
	Date      string
	TimeSlot  string
	Statuses  []ReservationStatus
	UserID    uint64
	OrderID   string
	PaymentID string
}

// ReservationPatch is a partial update of one reservation.  Only non-nil
// fields are written.
type ReservationPatch struct {
	ID                string
	Status            *ReservationStatus
	PaymentStatus     *PaymentStatus
	RazorpayPaymentID *string
	PaidAt            *time.Time
	PaidAmount        *int64
	RefundStatus      *RefundStatus
	RefundReason      *string
	RefundID          *string
	ApprovedAt        *time.Time
	RejectedAt        *time.Time
	CancelledAt       *time.Time
	CancelledBy       *string
	AutoApproved      *bool
}

// Empty reports whether the patch writes nothing.
func (p ReservationPatch) Empty() bool {
	return p.Status == nil && p.PaymentStatus == nil && p.RazorpayPaymentID == nil &&
		p.PaidAt == nil && p.PaidAmount == nil && p.RefundStatus == nil && p.RefundReason == nil &&
		p.RefundID == nil && p.ApprovedAt == nil && p.RejectedAt == nil &&
		p.CancelledAt == nil && p.CancelledBy == nil && p.AutoApproved == nil
}

// Apply returns a copy of r with the patch fields written over it.
func (p ReservationPatch) Apply(r Reservation) Reservation {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.PaymentStatus != nil {
		r.PaymentStatus = *p.PaymentStatus
	}
	if p.RazorpayPaymentID != nil {
		r.RazorpayPaymentID = p.RazorpayPaymentID
	}
	if p.PaidAt != nil {
		r.PaidAt = p.PaidAt
	}
	if p.PaidAmount != nil {
		r.PaidAmount = p.PaidAmount
	}
	if p.RefundStatus != nil {
		r.RefundStatus = *p.RefundStatus
	}
	if p.RefundReason != nil {
		r.RefundReason = p.RefundReason
	}
	if p.RefundID != nil {
		r.RefundID = p.RefundID
	}
	if p.ApprovedAt != nil {
		r.ApprovedAt = p.ApprovedAt
	}
	if p.RejectedAt != nil {
		r.RejectedAt = p.RejectedAt
	}
	if p.CancelledAt != nil {
		r.CancelledAt = p.CancelledAt
	}
	if p.CancelledBy != nil {
		r.CancelledBy = p.CancelledBy
	}
	if p.AutoApproved != nil {
		r.AutoApproved = *p.AutoApproved
	}
	return r
}
