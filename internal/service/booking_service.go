package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/study-room-booking/internal/apperror"
	"github.com/iliyamo/study-room-booking/internal/booking"
	"github.com/iliyamo/study-room-booking/internal/clock"
	"github.com/iliyamo/study-room-booking/internal/model"
	"github.com/iliyamo/study-room-booking/internal/payment"
	"github.com/iliyamo/study-room-booking/internal/queue"
)

const dateLayout = "2006-01-02"

var holding = []model.ReservationStatus{model.StatusPending, model.StatusApproved}

// BookingService creates reservations and applies the admin and owner
// transitions to them.
type BookingService struct {
	tx           TxRunner
	rooms        RoomStore
	reservations ReservationStore
	events       queue.Publisher
	clock        clock.Clock
	logger       *slog.Logger

	evaluator      booking.Evaluator
	catalog        booking.Catalog
	loc            *time.Location
	checkoutSecret string
}

type BookingOption func(*BookingService)

// WithCatalog replaces the default slot catalog.
func WithCatalog(c booking.Catalog) BookingOption {
	return func(s *BookingService) { s.catalog = c }
}

// WithLocation sets the zone slot times are interpreted in.
func WithLocation(loc *time.Location) BookingOption {
	return func(s *BookingService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithFallbackCapacity sets the capacity used for rooms without one.
func WithFallbackCapacity(n int) BookingOption {
	return func(s *BookingService) { s.evaluator = booking.NewEvaluator(n) }
}

// WithCheckoutSecret enables marking a booking paid at creation when
// the client passes a checkout signature made with secret.
func WithCheckoutSecret(secret string) BookingOption {
	return func(s *BookingService) { s.checkoutSecret = secret }
}

func NewBookingService(tx TxRunner, rooms RoomStore, reservations ReservationStore, events queue.Publisher, clk clock.Clock, logger *slog.Logger, opts ...BookingOption) *BookingService {
	s := &BookingService{
		tx:           tx,
		rooms:        rooms,
		reservations: reservations,
		events:       events,
		clock:        clk,
		logger:       logger.With(slog.String("component", "booking")),
		evaluator:    booking.NewEvaluator(model.DefaultRoomCapacity),
		catalog:      booking.DefaultCatalog(),
		loc:          time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the slot catalog bookings are validated against.
func (s *BookingService) Catalog() booking.Catalog { return s.catalog }

// CreateInput is a booking request.  OrderID correlates the booking
// with a gateway order; PaymentID and Signature are the client checkout
// result when payment completed before submission.
type CreateInput struct {
	UserID    uint64
	UserEmail string
	RoomID    string
	Date      string
	TimeSlot  string
	SlotType  string
	Members   int
	OrderID   string
	PaymentID string
	Signature string
}

// Create validates in and inserts a pending reservation.  The room row
// is locked for the capacity check and the insert, so two requests for
// the same room cannot both take the last seats.
func (s *BookingService) Create(ctx context.Context, in CreateInput) (model.Reservation, error) {
	now := s.clock.Now()
	v, err := s.validate(in, now)
	if err != nil {
		return model.Reservation{}, err
	}

	res := model.Reservation{
		ID:            uuid.NewString(),
		Date:          in.Date,
		TimeSlot:      v.slot.String(),
		SlotType:      strings.ToLower(v.slotType.Name),
		Members:       in.Members,
		Amount:        v.slotType.Price,
		UserID:        in.UserID,
		UserEmail:     in.UserEmail,
		Status:        model.StatusPending,
		PaymentStatus: model.PaymentUnpaid,
		RefundStatus:  model.RefundNotInitiated,
		CreatedAt:     now,
	}
	if in.OrderID != "" {
		res.RazorpayOrderID = &in.OrderID
	}
	if in.PaymentID != "" {
		if !payment.VerifyCheckout(in.OrderID, in.PaymentID, in.Signature, s.checkoutSecret) {
			return model.Reservation{}, apperror.Authentication("payment signature mismatch")
		}
		res.PaymentStatus = model.PaymentPaid
		res.RazorpayPaymentID = &in.PaymentID
		res.PaidAt = &now
		paid := int64(res.Amount) * 100
		res.PaidAmount = &paid
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		room, err := s.rooms.GetForUpdate(ctx, v.room)
		if err != nil {
			return err
		}
		if room.Occupied {
			return apperror.Validation("room is currently occupied")
		}
		existing, err := Collect(s.reservations.Query(ctx, model.ReservationFilter{
			RoomID: room.Name, Date: res.Date, TimeSlot: res.TimeSlot, Statuses: holding,
		}))
		if err != nil {
			return err
		}
		if remaining := s.evaluator.Remaining(room, existing, res.Date, res.TimeSlot); remaining < in.Members {
			return &apperror.CapacityError{Remaining: remaining}
		}
		res.RoomID = room.Name
		return s.reservations.Create(ctx, &res)
	})
	if err != nil {
		return model.Reservation{}, err
	}

	s.logger.Info("booking created",
		slog.String("reservation_id", res.ID),
		slog.String("room", res.RoomID),
		slog.String("date", res.Date),
		slog.String("slot", res.TimeSlot),
		slog.Int("members", res.Members))
	s.publish(ctx, queue.BookingCreated, res, now)
	return res, nil
}

type validated struct {
	room     string
	slot     booking.Slot
	slotType booking.SlotType
}

// validate checks in against the slot catalog.  An omitted slot type is
// resolved from the slot itself, so every stored booking carries a
// catalog type and price.
func (s *BookingService) validate(in CreateInput, now time.Time) (validated, error) {
	if in.Members < 1 {
		return validated{}, apperror.Validation("members must be at least 1")
	}
	room, err := NormalizeRoomName(in.RoomID)
	if err != nil {
		return validated{}, err
	}
	if _, err := time.ParseInLocation(dateLayout, in.Date, s.loc); err != nil {
		return validated{}, apperror.Validationf("invalid date %q", in.Date)
	}
	slot, err := booking.ParseSlot(in.TimeSlot)
	if err != nil {
		return validated{}, apperror.Validationf("invalid time slot %q", in.TimeSlot)
	}
	var st booking.SlotType
	if in.SlotType != "" {
		t, ok := s.catalog.Type(in.SlotType)
		if !ok {
			return validated{}, apperror.Validationf("unknown slot type %q", in.SlotType)
		}
		if !s.catalog.Contains(t.Name, slot) {
			return validated{}, apperror.Validationf("slot %s is not a %s slot", slot, in.SlotType)
		}
		st = t
	} else {
		t, ok := s.catalog.TypeOf(slot)
		if !ok {
			return validated{}, apperror.Validationf("slot %s is not offered", slot)
		}
		st = t
	}
	start, _, err := slot.Bounds(in.Date, s.loc)
	if err != nil {
		return validated{}, apperror.Validationf("invalid date %q", in.Date)
	}
	if !now.Before(start) {
		return validated{}, apperror.Validation("slot has already started")
	}
	if in.PaymentID != "" && in.OrderID == "" {
		return validated{}, apperror.Validation("payment id without order id")
	}
	return validated{room: room, slot: slot, slotType: st}, nil
}

// Approve is the admin approval.  Capacity is re-checked against the
// other reservations holding the slot; when the booking no longer fits
// it stays pending and a capacity error is returned.
func (s *BookingService) Approve(ctx context.Context, id string) (model.Reservation, error) {
	now := s.clock.Now()
	var (
		out     model.Reservation
		changed bool
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		r, err := s.reservations.Get(ctx, id)
		if err != nil {
			return err
		}
		out = r
		patch, ok := booking.Approve(r, now)
		if !ok {
			return nil
		}
		room, err := s.rooms.GetForUpdate(ctx, r.RoomID)
		if errors.Is(err, apperror.ErrNotFound) {
			// Renamed or deleted room: judge against the fallback capacity.
			room = model.Room{Name: r.RoomID}
		} else if err != nil {
			return err
		}
		existing, err := Collect(s.reservations.Query(ctx, model.ReservationFilter{
			RoomID: r.RoomID, Date: r.Date, TimeSlot: r.TimeSlot, Statuses: holding,
		}))
		if err != nil {
			return err
		}
		others := booking.Excluding(existing, r.ID)
		if remaining := s.evaluator.Remaining(room, others, r.Date, r.TimeSlot); remaining < r.Seats() {
			return &apperror.CapacityError{Remaining: remaining}
		}
		if err := s.reservations.BatchUpdate(ctx, []model.ReservationPatch{patch}); err != nil {
			return err
		}
		out, changed = patch.Apply(r), true
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	if changed {
		s.logger.Info("booking approved", slog.String("reservation_id", out.ID))
		s.publish(ctx, queue.BookingApproved, out, now)
	}
	return out, nil
}

// Reject is the admin rejection.  A paid booking has its refund
// initiated.
func (s *BookingService) Reject(ctx context.Context, id string) (model.Reservation, error) {
	return s.transition(ctx, id, 0, booking.Reject, queue.BookingRejected)
}

// Cancel is the owner's cancellation.  A booking owned by someone else
// is reported as not found.
func (s *BookingService) Cancel(ctx context.Context, userID uint64, id string) (model.Reservation, error) {
	return s.transition(ctx, id, userID, booking.Cancel, queue.BookingCancelled)
}

type transitionFunc func(model.Reservation, time.Time) (model.ReservationPatch, bool)

func (s *BookingService) transition(ctx context.Context, id string, owner uint64, fn transitionFunc, event string) (model.Reservation, error) {
	now := s.clock.Now()
	var (
		out     model.Reservation
		changed bool
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		r, err := s.reservations.Get(ctx, id)
		if err != nil {
			return err
		}
		if owner != 0 && r.UserID != owner {
			return apperror.NotFound("reservation not found")
		}
		out = r
		patch, ok := fn(r, now)
		if !ok {
			return nil
		}
		if err := s.reservations.BatchUpdate(ctx, []model.ReservationPatch{patch}); err != nil {
			return err
		}
		out, changed = patch.Apply(r), true
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	if changed {
		s.logger.Info("booking "+string(out.Status),
			slog.String("reservation_id", out.ID),
			slog.String("refund_status", string(out.RefundStatus)))
		s.publish(ctx, event, out, now)
	}
	return out, nil
}

// Get returns one reservation.  A non-zero owner restricts the lookup to
// that user's reservations.
func (s *BookingService) Get(ctx context.Context, owner uint64, id string) (model.Reservation, error) {
	r, err := s.reservations.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if owner != 0 && r.UserID != owner {
		return model.Reservation{}, apperror.NotFound("reservation not found")
	}
	return r, nil
}

// ListMine returns a user's reservations, oldest first.
func (s *BookingService) ListMine(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return Collect(s.reservations.Query(ctx, model.ReservationFilter{UserID: userID}))
}

// ListByStatus returns reservations in status, or all of them when
// status is empty.
func (s *BookingService) ListByStatus(ctx context.Context, status model.ReservationStatus) ([]model.Reservation, error) {
	f := model.ReservationFilter{}
	if status != "" {
		if !status.Valid() {
			return nil, apperror.Validationf("unknown status %q", status)
		}
		f.Statuses = []model.ReservationStatus{status}
	}
	return Collect(s.reservations.Query(ctx, f))
}

// RoomAvailability is the free capacity of one room for a slot.
type RoomAvailability struct {
	Room      string `json:"room"`
	Capacity  int    `json:"capacity"`
	Remaining int    `json:"remaining"`
	Available bool   `json:"available"`
}

// Availability reports, for every unoccupied room, how many seats are
// left in the slot and whether a party of members fits.
func (s *BookingService) Availability(ctx context.Context, date, slotRaw string, members int) ([]RoomAvailability, error) {
	if members < 1 {
		members = 1
	}
	if _, err := time.ParseInLocation(dateLayout, date, s.loc); err != nil {
		return nil, apperror.Validationf("invalid date %q", date)
	}
	slot, err := booking.ParseSlot(slotRaw)
	if err != nil {
		return nil, apperror.Validationf("invalid time slot %q", slotRaw)
	}
	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := Collect(s.reservations.Query(ctx, model.ReservationFilter{
		Date: date, TimeSlot: slot.String(), Statuses: holding,
	}))
	if err != nil {
		return nil, err
	}

	out := make([]RoomAvailability, 0, len(rooms))
	for _, room := range rooms {
		if room.Occupied {
			continue
		}
		remaining := s.evaluator.Remaining(room, existing, date, slot.String())
		out = append(out, RoomAvailability{
			Room:      room.Name,
			Capacity:  room.EffectiveCapacity(s.evaluator.FallbackCapacity),
			Remaining: max(remaining, 0),
			Available: remaining >= members,
		})
	}
	return out, nil
}

// ReservationView is a reservation with its derived expiry flag.
type ReservationView struct {
	model.Reservation
	Expired bool `json:"expired"`
}

// View decorates r for responses.
func (s *BookingService) View(r model.Reservation) ReservationView {
	return ReservationView{Reservation: r, Expired: booking.Expired(r, s.clock.Now(), s.loc)}
}

// Views decorates a list of reservations.
func (s *BookingService) Views(rs []model.Reservation) []ReservationView {
	out := make([]ReservationView, len(rs))
	for i, r := range rs {
		out[i] = s.View(r)
	}
	return out
}

func (s *BookingService) publish(ctx context.Context, typ string, r model.Reservation, now time.Time) {
	_ = s.events.Publish(context.WithoutCancel(ctx), queue.ReservationEvent(typ, r, now))
}
