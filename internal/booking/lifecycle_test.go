package booking

import (
	"testing"
	"time"

	"github.com/iliyamo/study-room-booking/internal/model"
)

var t0 = time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)

func pending(id string) model.Reservation {
	return model.Reservation{
		ID:            id,
		RoomID:        "Room A",
		Date:          "2024-01-10",
		TimeSlot:      "09:00 - 10:00",
		Members:       2,
		Status:        model.StatusPending,
		PaymentStatus: model.PaymentUnpaid,
		RefundStatus:  model.RefundNotInitiated,
		CreatedAt:     t0,
	}
}

func TestAutoApproveTiming(t *testing.T) {
	t.Parallel()

	r := pending("r1")
	window := 5 * time.Minute

	if _, ok := AutoApprove(r, t0.Add(4*time.Minute+59*time.Second), window); ok {
		t.Fatal("approved before the window elapsed")
	}

	now := t0.Add(5*time.Minute + time.Second)
	p, ok := AutoApprove(r, now, window)
	if !ok {
		t.Fatal("not approved after the window elapsed")
	}
	got := p.Apply(r)
	if got.Status != model.StatusApproved || !got.AutoApproved {
		t.Fatalf("status=%s autoApproved=%v", got.Status, got.AutoApproved)
	}
	if got.ApprovedAt == nil || !got.ApprovedAt.Equal(now) {
		t.Fatalf("approvedAt = %v", got.ApprovedAt)
	}
}

func TestTransitionsFromTerminalAreNoops(t *testing.T) {
	t.Parallel()

	now := t0.Add(time.Hour)
	for _, st := range []model.ReservationStatus{model.StatusApproved, model.StatusRejected, model.StatusCancelled} {
		r := pending("r")
		r.Status = st
		for name, fn := range map[string]func(model.Reservation) (model.ReservationPatch, bool){
			"auto-approve": func(r model.Reservation) (model.ReservationPatch, bool) { return AutoApprove(r, now, time.Minute) },
			"approve":      func(r model.Reservation) (model.ReservationPatch, bool) { return Approve(r, now) },
			"reject":       func(r model.Reservation) (model.ReservationPatch, bool) { return Reject(r, now) },
			"cancel":       func(r model.Reservation) (model.ReservationPatch, bool) { return Cancel(r, now) },
		} {
			p, ok := fn(r)
			if ok || !p.Empty() {
				t.Fatalf("%s on %s changed state: %+v", name, st, p)
			}
			if p.Apply(r) != r {
				t.Fatalf("%s on %s mutated the reservation", name, st)
			}
		}
	}

	for _, st := range []model.AccountStatus{model.AccountApproved, model.AccountRejected} {
		u := model.User{ID: 1, Status: st, CreatedAt: t0}
		if p, ok := AutoRejectAccount(u, now, time.Minute); ok || !p.Empty() {
			t.Fatalf("auto-reject on %s changed state", st)
		}
		if _, ok := ApproveAccount(u, now); ok {
			t.Fatalf("approve on %s changed state", st)
		}
	}
}

func TestRejectUnpaidLeavesRefundUntouched(t *testing.T) {
	t.Parallel()

	r := pending("r1")
	p, ok := Reject(r, t0.Add(time.Minute))
	if !ok {
		t.Fatal("reject did not apply")
	}
	got := p.Apply(r)
	if got.Status != model.StatusRejected || got.RejectedAt == nil {
		t.Fatalf("got %+v", got)
	}
	if got.RefundStatus != model.RefundNotInitiated || got.RefundReason != nil {
		t.Fatalf("refund = %s %v", got.RefundStatus, got.RefundReason)
	}
}

func TestCancelPaidInitiatesRefund(t *testing.T) {
	t.Parallel()

	r := pending("r1")
	r.PaymentStatus = model.PaymentPaid
	p, ok := Cancel(r, t0.Add(time.Minute))
	if !ok {
		t.Fatal("cancel did not apply")
	}
	got := p.Apply(r)
	if got.Status != model.StatusCancelled || got.CancelledAt == nil {
		t.Fatalf("got %+v", got)
	}
	if got.RefundStatus != model.RefundInitiated {
		t.Fatalf("refundStatus = %s", got.RefundStatus)
	}
	if got.RefundReason == nil || *got.RefundReason != model.RefundReasonUserCancelled {
		t.Fatalf("refundReason = %v", got.RefundReason)
	}
	if got.CancelledBy == nil || *got.CancelledBy != "user" {
		t.Fatalf("cancelledBy = %v", got.CancelledBy)
	}
}

func TestRejectPaidUsesAdminReason(t *testing.T) {
	t.Parallel()

	r := pending("r1")
	r.PaymentStatus = model.PaymentPaid
	p, _ := Reject(r, t0)
	if p.RefundReason == nil || *p.RefundReason != model.RefundReasonAdminRejected {
		t.Fatalf("refundReason = %v", p.RefundReason)
	}
}

func TestManualApproveIsNotAuto(t *testing.T) {
	t.Parallel()

	p, ok := Approve(pending("r1"), t0)
	if !ok || p.AutoApproved == nil || *p.AutoApproved {
		t.Fatalf("patch = %+v", p)
	}
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	t.Parallel()

	r := pending("r1")
	first, ok := MarkPaid(r, "pay_1", 4000, t0)
	if !ok {
		t.Fatal("first capture ignored")
	}
	once := first.Apply(r)

	replay, ok := MarkPaid(once, "pay_1", 4000, t0.Add(time.Minute))
	if ok {
		t.Fatalf("replay produced a patch: %+v", replay)
	}
	twice := replay.Apply(once)
	if twice.PaymentStatus != once.PaymentStatus || *twice.RazorpayPaymentID != *once.RazorpayPaymentID || !twice.PaidAt.Equal(*once.PaidAt) {
		t.Fatalf("replay changed state: %+v vs %+v", twice, once)
	}
}

func TestMarkPaidRecordsAmount(t *testing.T) {
	t.Parallel()

	p, ok := MarkPaid(pending("r1"), "pay_1", 4000, t0)
	if !ok || p.PaidAmount == nil || *p.PaidAmount != 4000 {
		t.Fatalf("patch = %+v", p)
	}
	if p.RefundStatus != nil {
		t.Fatalf("pending booking started a refund: %+v", p)
	}
}

func TestMarkPaidAfterTerminalStartsRefund(t *testing.T) {
	t.Parallel()

	cases := map[model.ReservationStatus]string{
		model.StatusRejected:  model.RefundReasonAdminRejected,
		model.StatusCancelled: model.RefundReasonUserCancelled,
	}
	for status, reason := range cases {
		r := pending("r1")
		r.Status = status
		r.RefundStatus = model.RefundNotInitiated
		p, ok := MarkPaid(r, "pay_late", 4000, t0)
		if !ok {
			t.Fatalf("%s: capture ignored", status)
		}
		got := p.Apply(r)
		if got.PaymentStatus != model.PaymentPaid || got.RefundStatus != model.RefundInitiated {
			t.Fatalf("%s: payment/refund = %s/%s", status, got.PaymentStatus, got.RefundStatus)
		}
		if got.RefundReason == nil || *got.RefundReason != reason {
			t.Fatalf("%s: reason = %v", status, got.RefundReason)
		}
	}

	approved := pending("r2")
	approved.Status = model.StatusApproved
	if p, _ := MarkPaid(approved, "pay_2", 4000, t0); p.RefundStatus != nil {
		t.Fatalf("approved booking started a refund: %+v", p)
	}
}

func TestAutoRejectAccount(t *testing.T) {
	t.Parallel()

	u := model.User{ID: 7, Status: model.AccountPending, CreatedAt: t0}
	if _, ok := AutoRejectAccount(u, t0.Add(4*time.Minute), 5*time.Minute); ok {
		t.Fatal("rejected before window")
	}
	p, ok := AutoRejectAccount(u, t0.Add(5*time.Minute), 5*time.Minute)
	if !ok {
		t.Fatal("not rejected at window")
	}
	got := p.Apply(u)
	if got.Status != model.AccountRejected || !got.AutoCancelled || got.RejectedAt == nil {
		t.Fatalf("got %+v", got)
	}
}

func TestSettleRefund(t *testing.T) {
	t.Parallel()

	r := pending("r1")
	if _, ok := SettleRefund(r, true, "rfnd_1"); ok {
		t.Fatal("settled a refund that was never initiated")
	}
	r.RefundStatus = model.RefundInitiated
	p, ok := SettleRefund(r, true, "rfnd_1")
	if !ok || *p.RefundStatus != model.RefundRefunded || *p.RefundID != "rfnd_1" {
		t.Fatalf("patch = %+v", p)
	}
	p, _ = SettleRefund(r, false, "")
	if *p.RefundStatus != model.RefundFailed || p.RefundID != nil {
		t.Fatalf("patch = %+v", p)
	}
}

func TestExpired(t *testing.T) {
	t.Parallel()

	r := pending("r1")
	r.Status = model.StatusApproved
	end := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	if Expired(r, end.Add(-time.Second), time.UTC) {
		t.Fatal("expired before slot end")
	}
	if !Expired(r, end, time.UTC) {
		t.Fatal("not expired at slot end")
	}
	r.Status = model.StatusPending
	if Expired(r, end.Add(time.Hour), time.UTC) {
		t.Fatal("pending reservation reported expired")
	}
}
