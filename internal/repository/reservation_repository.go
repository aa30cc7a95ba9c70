package repository

import (
	"context"
	"database/sql"
	"iter"
	"strings"
	"sync/atomic"

	"github.com/iliyamo/study-room-booking/internal/apperror"
	"github.com/iliyamo/study-room-booking/internal/model"
)

// ReservationRepo provides data access to the booking_requests table.
// All timestamps are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, room_id, date, time_slot, slot_type, members, amount,
	user_id, user_email, status, payment_status, razorpay_order_id, razorpay_payment_id,
	paid_at, paid_amount, refund_status, refund_reason, refund_id, created_at, approved_at,
	rejected_at, cancelled_at, cancelled_by, auto_approved`

func scanReservation(row interface{ Scan(...any) error }) (model.Reservation, error) {
	var (
		r                                    model.Reservation
		status, payment, refund              string
		orderID, paymentID, reason, refundID sql.NullString
		cancelledBy                          sql.NullString
		paidAt, approvedAt, rejectedAt       sql.NullTime
		cancelledAt                          sql.NullTime
		paidAmount                           sql.NullInt64
	)
	err := row.Scan(
		&r.ID, &r.RoomID, &r.Date, &r.TimeSlot, &r.SlotType, &r.Members, &r.Amount,
		&r.UserID, &r.UserEmail, &status, &payment, &orderID, &paymentID,
		&paidAt, &paidAmount, &refund, &reason, &refundID, &r.CreatedAt, &approvedAt,
		&rejectedAt, &cancelledAt, &cancelledBy, &r.AutoApproved,
	)
	if err != nil {
		return model.Reservation{}, err
	}
	r.Status = model.ReservationStatus(status)
	r.PaymentStatus = model.PaymentStatus(payment)
	r.RefundStatus = model.RefundStatus(refund)
	r.RazorpayOrderID = nullString(orderID)
	r.RazorpayPaymentID = nullString(paymentID)
	r.RefundReason = nullString(reason)
	r.RefundID = nullString(refundID)
	r.CancelledBy = nullString(cancelledBy)
	r.PaidAt = nullTime(paidAt)
	r.PaidAmount = nullInt64(paidAmount)
	r.ApprovedAt = nullTime(approvedAt)
	r.RejectedAt = nullTime(rejectedAt)
	r.CancelledAt = nullTime(cancelledAt)
	return r, nil
}

// Create inserts a reservation.  The caller supplies the id and the
// initial state (normally pending, unpaid, not_initiated).
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO booking_requests
		(id, room_id, date, time_slot, slot_type, members, amount, user_id, user_email,
		 status, payment_status, razorpay_order_id, razorpay_payment_id, paid_at,
		 paid_amount, refund_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := conn(ctx, r.db).ExecContext(ctx, q,
		res.ID, res.RoomID, res.Date, res.TimeSlot, res.SlotType, res.Members, res.Amount,
		res.UserID, res.UserEmail, string(res.Status), string(res.PaymentStatus),
		res.RazorpayOrderID, res.RazorpayPaymentID, res.PaidAt,
		res.PaidAmount, string(res.RefundStatus), res.CreatedAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return apperror.Conflict("reservation already exists")
		}
		return apperror.StoreWrite("create reservation", err)
	}
	return nil
}

// Get returns a single reservation by id.
func (r *ReservationRepo) Get(ctx context.Context, id string) (model.Reservation, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM booking_requests WHERE id = ?`, id)
	res, err := scanReservation(row)
	if err != nil {
		return model.Reservation{}, readErr("get reservation", "reservation not found", err)
	}
	return res, nil
}

// Query returns the reservations matching f, oldest first.  The
// sequence is lazy: the statement runs when iteration starts and rows
// are streamed as they are consumed.  It can be ranged over only once;
// a second range yields ErrSequenceConsumed.  Failures are yielded as
// store read errors and end the sequence.
func (r *ReservationRepo) Query(ctx context.Context, f model.ReservationFilter) iter.Seq2[model.Reservation, error] {
	query, args := buildReservationQuery(f)
	var used atomic.Bool
	return func(yield func(model.Reservation, error) bool) {
		if !used.CompareAndSwap(false, true) {
			yield(model.Reservation{}, apperror.StoreRead("query reservations", ErrSequenceConsumed))
			return
		}
		rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
		if err != nil {
			yield(model.Reservation{}, apperror.StoreRead("query reservations", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			res, err := scanReservation(rows)
			if err != nil {
				yield(model.Reservation{}, apperror.StoreRead("scan reservation", err))
				return
			}
			if !yield(res, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.Reservation{}, apperror.StoreRead("query reservations", err))
		}
	}
}

func buildReservationQuery(f model.ReservationFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.RoomID != "" {
		where = append(where, "room_id = ?")
		args = append(args, f.RoomID)
	}
	if f.Date != "" {
		where = append(where, "date = ?")
		args = append(args, f.Date)
	}
	if f.TimeSlot != "" {
		where = append(where, "time_slot = ?")
		args = append(args, f.TimeSlot)
	}
	if len(f.Statuses) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(f.Statuses)), ",")
		where = append(where, "status IN ("+marks+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.OrderID != "" {
		where = append(where, "razorpay_order_id = ?")
		args = append(args, f.OrderID)
	}
	if f.PaymentID != "" {
		where = append(where, "razorpay_payment_id = ?")
		args = append(args, f.PaymentID)
	}

	q := `SELECT ` + reservationColumns + ` FROM booking_requests`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at ASC, id ASC"
	return q, args
}

// BatchUpdate applies every patch in one transaction: either all of
// them become visible or none does.  Empty patches and patches whose
// row no longer exists are skipped.
func (r *ReservationRepo) BatchUpdate(ctx context.Context, patches []model.ReservationPatch) error {
	pending := make([]model.ReservationPatch, 0, len(patches))
	for _, p := range patches {
		if !p.Empty() {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	return withTx(ctx, r.db, func(ctx context.Context) error {
		for _, p := range pending {
			q, args := buildReservationUpdate(p)
			if _, err := conn(ctx, r.db).ExecContext(ctx, q, args...); err != nil {
				return apperror.StoreWrite("update reservation "+p.ID, err)
			}
		}
		return nil
	})
}

func buildReservationUpdate(p model.ReservationPatch) (string, []any) {
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Status != nil {
		set("status", string(*p.Status))
	}
	if p.PaymentStatus != nil {
		set("payment_status", string(*p.PaymentStatus))
	}
	if p.RazorpayPaymentID != nil {
		set("razorpay_payment_id", *p.RazorpayPaymentID)
	}
	if p.PaidAt != nil {
		set("paid_at", p.PaidAt.UTC())
	}
	if p.PaidAmount != nil {
		set("paid_amount", *p.PaidAmount)
	}
	if p.RefundStatus != nil {
		set("refund_status", string(*p.RefundStatus))
	}
	if p.RefundReason != nil {
		set("refund_reason", *p.RefundReason)
	}
	if p.RefundID != nil {
		set("refund_id", *p.RefundID)
	}
	if p.ApprovedAt != nil {
		set("approved_at", p.ApprovedAt.UTC())
	}
	if p.RejectedAt != nil {
		set("rejected_at", p.RejectedAt.UTC())
	}
	if p.CancelledAt != nil {
		set("cancelled_at", p.CancelledAt.UTC())
	}
	if p.CancelledBy != nil {
		set("cancelled_by", *p.CancelledBy)
	}
	if p.AutoApproved != nil {
		set("auto_approved", *p.AutoApproved)
	}
	args = append(args, p.ID)
	return "UPDATE booking_requests SET " + strings.Join(sets, ", ") + " WHERE id = ?", args
}

// WithTx runs fn in a transaction shared through the context.
func (r *ReservationRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, fn)
}
