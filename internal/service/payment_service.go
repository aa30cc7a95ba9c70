package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iliyamo/study-room-booking/internal/apperror"
	"github.com/iliyamo/study-room-booking/internal/booking"
	"github.com/iliyamo/study-room-booking/internal/clock"
	"github.com/iliyamo/study-room-booking/internal/model"
	"github.com/iliyamo/study-room-booking/internal/payment"
	"github.com/iliyamo/study-room-booking/internal/queue"
)

// Result is the outcome of a webhook delivery, mapped by the HTTP layer
// to 200, 400 and 500.
type Result int

const (
	ResultOK Result = iota
	ResultInvalidSignature
	ResultInternalError
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultInvalidSignature:
		return "invalid_signature"
	default:
		return "internal_error"
	}
}

// PaymentConfig carries the gateway secrets and currency.
type PaymentConfig struct {
	KeySecret     string
	WebhookSecret string
	Currency      string
}

// PaymentService correlates gateway payments and refunds with
// reservations.
type PaymentService struct {
	reservations ReservationStore
	gateway      payment.Gateway
	events       queue.Publisher
	clock        clock.Clock
	logger       *slog.Logger
	cfg          PaymentConfig
}

func NewPaymentService(reservations ReservationStore, gateway payment.Gateway, events queue.Publisher, clk clock.Clock, logger *slog.Logger, cfg PaymentConfig) *PaymentService {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &PaymentService{
		reservations: reservations,
		gateway:      gateway,
		events:       events,
		clock:        clk,
		logger:       logger.With(slog.String("component", "payment")),
		cfg:          cfg,
	}
}

// HandlePaymentCaptured processes one webhook delivery.  The signature
// is checked over the exact raw bytes before anything is parsed; a
// mismatch mutates nothing.  A capture marks every reservation carrying
// the order id as paid in one batch.  Replays of the same capture leave
// paid reservations untouched.
func (s *PaymentService) HandlePaymentCaptured(ctx context.Context, body []byte, signature string) Result {
	if !payment.VerifySignature(body, signature, s.cfg.WebhookSecret) {
		s.logger.Warn("webhook signature mismatch", slog.String("signature", signature), slog.Int("bytes", len(body)))
		return ResultInvalidSignature
	}
	ev, err := payment.ParseEvent(body)
	if err != nil {
		s.logger.Error("webhook payload rejected", slog.Any("error", err))
		return ResultInternalError
	}

	switch ev := ev.(type) {
	case payment.PaymentCaptured:
		err = s.markPaid(ctx, ev)
	case payment.RefundSettled:
		err = s.settleRefund(ctx, ev)
	default:
		s.logger.Debug("webhook event ignored", slog.String("event", ev.Type()))
		return ResultOK
	}
	if err != nil {
		s.logger.Error("webhook processing failed", slog.String("event", ev.Type()), slog.Any("error", err))
		return ResultInternalError
	}
	return ResultOK
}

func (s *PaymentService) markPaid(ctx context.Context, ev payment.PaymentCaptured) error {
	now := s.clock.Now()
	matches, err := Collect(s.reservations.Query(ctx, model.ReservationFilter{OrderID: ev.OrderID}))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		s.logger.Warn("no booking for captured payment",
			slog.String("order_id", ev.OrderID),
			slog.String("payment_id", ev.PaymentID))
		return nil
	}

	var (
		patches []model.ReservationPatch
		paid    []model.Reservation
	)
	for _, r := range matches {
		if p, ok := booking.MarkPaid(r, ev.PaymentID, ev.Amount, now); ok {
			patches = append(patches, p)
			paid = append(paid, p.Apply(r))
		}
	}
	if len(patches) == 0 {
		s.logger.Debug("capture already recorded", slog.String("order_id", ev.OrderID))
		return nil
	}
	if err := s.reservations.BatchUpdate(ctx, patches); err != nil {
		return err
	}
	for _, r := range paid {
		s.logger.Info("booking paid", slog.String("reservation_id", r.ID), slog.String("order_id", ev.OrderID))
		s.publish(ctx, queue.BookingPaid, r)
	}
	return nil
}

func (s *PaymentService) settleRefund(ctx context.Context, ev payment.RefundSettled) error {
	matches, err := Collect(s.reservations.Query(ctx, model.ReservationFilter{PaymentID: ev.PaymentID}))
	if err != nil {
		return err
	}
	var (
		patches []model.ReservationPatch
		settled []model.Reservation
	)
	for _, r := range matches {
		if p, ok := booking.SettleRefund(r, ev.OK, ev.RefundID); ok {
			patches = append(patches, p)
			settled = append(settled, p.Apply(r))
		}
	}
	if len(patches) == 0 {
		s.logger.Warn("no refund awaiting settlement", slog.String("payment_id", ev.PaymentID))
		return nil
	}
	if err := s.reservations.BatchUpdate(ctx, patches); err != nil {
		return err
	}
	for _, r := range settled {
		s.logger.Info("refund settled", slog.String("reservation_id", r.ID), slog.String("refund_status", string(r.RefundStatus)))
		s.publish(ctx, queue.BookingRefund, r)
	}
	return nil
}

// CreateOrder opens a gateway order for amount rupees.
func (s *PaymentService) CreateOrder(ctx context.Context, amount int) (payment.Order, error) {
	if amount <= 0 {
		return payment.Order{}, apperror.Validation("amount must be positive")
	}
	receipt := fmt.Sprintf("receipt_%d", s.clock.Now().UnixMilli())
	order, err := s.gateway.CreateOrder(ctx, int64(amount)*100, s.cfg.Currency, receipt)
	if err != nil {
		return payment.Order{}, fmt.Errorf("create order: %w", err)
	}
	s.logger.Info("order created", slog.String("order_id", order.ID), slog.Int64("amount", order.Amount))
	return order, nil
}

// VerifyCheckout checks the signature the client received on checkout.
func (s *PaymentService) VerifyCheckout(orderRef, paymentRef, signature string) bool {
	if orderRef == "" || paymentRef == "" || signature == "" {
		return false
	}
	return payment.VerifyCheckout(orderRef, paymentRef, signature, s.cfg.KeySecret)
}

// ProcessRefund sends an initiated refund to the gateway.  A gateway
// failure marks the refund failed; a refund the gateway reports as
// processed is settled at once, otherwise the refund webhook settles it.
func (s *PaymentService) ProcessRefund(ctx context.Context, id string) (model.Reservation, error) {
	r, err := s.reservations.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if r.RefundStatus != model.RefundInitiated || r.RazorpayPaymentID == nil {
		return model.Reservation{}, apperror.Validation("no refund pending for this booking")
	}

	amount := refundAmount(r)
	if amount <= 0 {
		return model.Reservation{}, apperror.Validation("refund amount unknown for this booking")
	}

	refund, gerr := s.gateway.Refund(ctx, *r.RazorpayPaymentID, amount)
	var patch model.ReservationPatch
	switch {
	case gerr != nil:
		patch, _ = booking.SettleRefund(r, false, "")
	case refund.Status == "processed":
		patch, _ = booking.SettleRefund(r, true, refund.ID)
	default:
		patch = model.ReservationPatch{ID: r.ID, RefundID: &refund.ID}
	}
	if err := s.reservations.BatchUpdate(ctx, []model.ReservationPatch{patch}); err != nil {
		return model.Reservation{}, errors.Join(gerr, err)
	}
	r = patch.Apply(r)
	if gerr != nil {
		s.logger.Error("refund failed", slog.String("reservation_id", r.ID), slog.Any("error", gerr))
		s.publish(ctx, queue.BookingRefund, r)
		return r, fmt.Errorf("refund: %w", gerr)
	}
	s.logger.Info("refund requested",
		slog.String("reservation_id", r.ID),
		slog.String("refund_id", refund.ID),
		slog.String("refund_status", string(r.RefundStatus)))
	s.publish(ctx, queue.BookingRefund, r)
	return r, nil
}

// refundAmount is the captured amount in paise, falling back to the
// catalog price for bookings paid before captures were recorded.
func refundAmount(r model.Reservation) int64 {
	if r.PaidAmount != nil && *r.PaidAmount > 0 {
		return *r.PaidAmount
	}
	return int64(r.Amount) * 100
}

func (s *PaymentService) publish(ctx context.Context, typ string, r model.Reservation) {
	_ = s.events.Publish(context.WithoutCancel(ctx), queue.ReservationEvent(typ, r, s.clock.Now()))
}
