package booking

import (
	"time"

	"github.com/iliyamo/study-room-booking/internal/model"
)

// Reservation transitions.  Each function returns the patch to persist
// and whether anything changes.  A reservation that already left the
// pending state yields (patch{ID}, false): re-running a transition on a
// terminal reservation is a no-op, never an error.

// AutoApprove approves r when it has been pending for at least window.
// Capacity is not re-checked: the check made at creation is authoritative.
func AutoApprove(r model.Reservation, now time.Time, window time.Duration) (model.ReservationPatch, bool) {
	p := model.ReservationPatch{ID: r.ID}
	if r.Status != model.StatusPending || now.Sub(r.CreatedAt) < window {
		return p, false
	}
	p.Status = ptr(model.StatusApproved)
	p.ApprovedAt = ptr(now)
	p.AutoApproved = ptr(true)
	return p, true
}

// Approve is the admin approval.  The caller re-validates capacity
// against the other reservations of the slot before persisting.
func Approve(r model.Reservation, now time.Time) (model.ReservationPatch, bool) {
	p := model.ReservationPatch{ID: r.ID}
	if r.Status != model.StatusPending {
		return p, false
	}
	p.Status = ptr(model.StatusApproved)
	p.ApprovedAt = ptr(now)
	p.AutoApproved = ptr(false)
	return p, true
}

// Reject is the admin rejection.  A paid reservation gets its refund
// initiated with reason admin_rejected.
func Reject(r model.Reservation, now time.Time) (model.ReservationPatch, bool) {
	p := model.ReservationPatch{ID: r.ID}
	if r.Status != model.StatusPending {
		return p, false
	}
	p.Status = ptr(model.StatusRejected)
	p.RejectedAt = ptr(now)
	initiateRefund(r, &p, model.RefundReasonAdminRejected)
	return p, true
}

// Cancel is the owner's cancellation.  Ownership is checked by the caller.
func Cancel(r model.Reservation, now time.Time) (model.ReservationPatch, bool) {
	p := model.ReservationPatch{ID: r.ID}
	if r.Status != model.StatusPending {
		return p, false
	}
	p.Status = ptr(model.StatusCancelled)
	p.CancelledAt = ptr(now)
	p.CancelledBy = ptr("user")
	initiateRefund(r, &p, model.RefundReasonUserCancelled)
	return p, true
}

func initiateRefund(r model.Reservation, p *model.ReservationPatch, reason string) {
	if r.PaymentStatus == model.PaymentUnpaid || r.PaymentStatus == "" {
		return
	}
	if r.RefundStatus != "" && r.RefundStatus != model.RefundNotInitiated {
		return
	}
	p.RefundStatus = ptr(model.RefundInitiated)
	p.RefundReason = ptr(reason)
}

// MarkPaid records a captured payment of amount paise.  Replaying the
// same capture on a reservation already paid with paymentID changes
// nothing, so paidAt keeps its first value.  A capture that lands after
// the booking was rejected or cancelled starts the refund that the
// terminal transition could not.
func MarkPaid(r model.Reservation, paymentID string, amount int64, now time.Time) (model.ReservationPatch, bool) {
	p := model.ReservationPatch{ID: r.ID}
	if r.PaymentStatus == model.PaymentPaid && r.RazorpayPaymentID != nil && *r.RazorpayPaymentID == paymentID {
		return p, false
	}
	p.PaymentStatus = ptr(model.PaymentPaid)
	p.RazorpayPaymentID = ptr(paymentID)
	p.PaidAt = ptr(now)
	if amount > 0 {
		p.PaidAmount = ptr(amount)
	}
	switch r.Status {
	case model.StatusRejected:
		initiateRefund(p.Apply(r), &p, model.RefundReasonAdminRejected)
	case model.StatusCancelled:
		initiateRefund(p.Apply(r), &p, model.RefundReasonUserCancelled)
	}
	return p, true
}

// SettleRefund moves an initiated refund to refunded or failed.
func SettleRefund(r model.Reservation, ok bool, refundID string) (model.ReservationPatch, bool) {
	p := model.ReservationPatch{ID: r.ID}
	if r.RefundStatus != model.RefundInitiated {
		return p, false
	}
	if ok {
		p.RefundStatus = ptr(model.RefundRefunded)
	} else {
		p.RefundStatus = ptr(model.RefundFailed)
	}
	if refundID != "" {
		p.RefundID = ptr(refundID)
	}
	return p, true
}

// Account transitions follow the same rules: only pending accounts move.

// AutoRejectAccount rejects u when it has been pending for at least window.
func AutoRejectAccount(u model.User, now time.Time, window time.Duration) (model.UserPatch, bool) {
	p := model.UserPatch{ID: u.ID}
	if u.Status != model.AccountPending || now.Sub(u.CreatedAt) < window {
		return p, false
	}
	p.Status = ptr(model.AccountRejected)
	p.RejectedAt = ptr(now)
	p.AutoCancelled = ptr(true)
	return p, true
}

func ApproveAccount(u model.User, now time.Time) (model.UserPatch, bool) {
	p := model.UserPatch{ID: u.ID}
	if u.Status != model.AccountPending {
		return p, false
	}
	p.Status = ptr(model.AccountApproved)
	p.ApprovedAt = ptr(now)
	return p, true
}

func RejectAccount(u model.User, now time.Time) (model.UserPatch, bool) {
	p := model.UserPatch{ID: u.ID}
	if u.Status != model.AccountPending {
		return p, false
	}
	p.Status = ptr(model.AccountRejected)
	p.RejectedAt = ptr(now)
	p.AutoCancelled = ptr(false)
	return p, true
}

// Expired reports whether an approved reservation's slot has ended.
// Expired reservations are shown as such and never deleted.
func Expired(r model.Reservation, now time.Time, loc *time.Location) bool {
	if r.Status != model.StatusApproved {
		return false
	}
	s, err := ParseSlot(r.TimeSlot)
	if err != nil {
		return false
	}
	_, end, err := s.Bounds(r.Date, loc)
	if err != nil {
		return false
	}
	return !now.Before(end)
}

func ptr[T any](v T) *T { return &v }
