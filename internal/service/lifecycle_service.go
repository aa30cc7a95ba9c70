package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/study-room-booking/internal/booking"
	"github.com/iliyamo/study-room-booking/internal/clock"
	"github.com/iliyamo/study-room-booking/internal/model"
	"github.com/iliyamo/study-room-booking/internal/queue"
)

// LifecycleService runs the periodic sweep: pending reservations older
// than the approval window are auto-approved and pending accounts older
// than the cancel window are auto-rejected.
type LifecycleService struct {
	reservations   ReservationStore
	users          UserStore
	events         queue.Publisher
	clock          clock.Clock
	logger         *slog.Logger
	approvalWindow time.Duration
	cancelWindow   time.Duration
}

func NewLifecycleService(reservations ReservationStore, users UserStore, events queue.Publisher, clk clock.Clock, logger *slog.Logger, approvalWindow, cancelWindow time.Duration) *LifecycleService {
	return &LifecycleService{
		reservations:   reservations,
		users:          users,
		events:         events,
		clock:          clk,
		logger:         logger.With(slog.String("component", "sweep")),
		approvalWindow: approvalWindow,
		cancelWindow:   cancelWindow,
	}
}

// Sweep runs both phases.  A failing phase does not stop the other; the
// returned error joins whatever failed.
func (s *LifecycleService) Sweep(ctx context.Context) error {
	approved, rerr := s.SweepReservations(ctx)
	if rerr != nil {
		s.logger.Error("reservation sweep failed", slog.Any("error", rerr))
	}
	rejected, aerr := s.SweepAccounts(ctx)
	if aerr != nil {
		s.logger.Error("account sweep failed", slog.Any("error", aerr))
	}
	if approved > 0 || rejected > 0 {
		s.logger.Info("sweep applied", slog.Int("auto_approved", approved), slog.Int("auto_rejected", rejected))
	}
	return errors.Join(rerr, aerr)
}

// SweepReservations auto-approves every pending reservation whose age
// reached the approval window, in one batch.  Capacity is not
// re-checked.  It returns the number of approved reservations.
func (s *LifecycleService) SweepReservations(ctx context.Context) (int, error) {
	now := s.clock.Now()
	pending, err := Collect(s.reservations.Query(ctx, model.ReservationFilter{
		Statuses: []model.ReservationStatus{model.StatusPending},
	}))
	if err != nil {
		return 0, fmt.Errorf("query pending reservations: %w", err)
	}

	var (
		patches []model.ReservationPatch
		updated []model.Reservation
	)
	for _, r := range pending {
		if p, ok := booking.AutoApprove(r, now, s.approvalWindow); ok {
			patches = append(patches, p)
			updated = append(updated, p.Apply(r))
		}
	}
	if len(patches) == 0 {
		return 0, nil
	}
	if err := s.reservations.BatchUpdate(ctx, patches); err != nil {
		return 0, fmt.Errorf("auto-approve %d reservations: %w", len(patches), err)
	}
	for _, r := range updated {
		s.logger.Info("booking auto-approved", slog.String("reservation_id", r.ID), slog.String("room", r.RoomID))
		_ = s.events.Publish(ctx, queue.ReservationEvent(queue.BookingApproved, r, now))
	}
	return len(updated), nil
}

// SweepAccounts auto-rejects every pending account whose age reached
// the cancel window, in one batch.  It returns the number rejected.
func (s *LifecycleService) SweepAccounts(ctx context.Context) (int, error) {
	now := s.clock.Now()
	pending, err := s.users.Query(ctx, model.UserFilter{Status: model.AccountPending})
	if err != nil {
		return 0, fmt.Errorf("query pending accounts: %w", err)
	}

	var (
		patches []model.UserPatch
		updated []model.User
	)
	for _, u := range pending {
		if p, ok := booking.AutoRejectAccount(u, now, s.cancelWindow); ok {
			patches = append(patches, p)
			updated = append(updated, p.Apply(u))
		}
	}
	if len(patches) == 0 {
		return 0, nil
	}
	if err := s.users.BatchUpdate(ctx, patches); err != nil {
		return 0, fmt.Errorf("auto-reject %d accounts: %w", len(patches), err)
	}
	for _, u := range updated {
		s.logger.Info("account auto-rejected", slog.Uint64("user_id", u.ID))
		_ = s.events.Publish(ctx, queue.AccountEvent(queue.AccountRejected, u, now))
	}
	return len(updated), nil
}
