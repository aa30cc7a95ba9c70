package handler_test

import (
	"context"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/iliyamo/study-room-booking/internal/apperror"
	"github.com/iliyamo/study-room-booking/internal/model"
	"github.com/iliyamo/study-room-booking/internal/payment"
)

// memStore backs every service port with in-memory state.
type memStore struct {
	mu           sync.Mutex
	rooms        map[string]model.Room
	reservations []model.Reservation
	users        []model.User
	batchErr     error
}

func newMemStore() *memStore {
	return &memStore{rooms: map[string]model.Room{}}
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *memStore) reservation(id string) model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reservations {
		if r.ID == id {
			return r
		}
	}
	return model.Reservation{}
}

type memRooms struct{ *memStore }

func (s memRooms) Create(_ context.Context, room model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.Name]; ok {
		return apperror.Conflict("room exists")
	}
	s.rooms[room.Name] = room
	return nil
}

func (s memRooms) Get(_ context.Context, name string) (model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[name]
	if !ok {
		return model.Room{}, apperror.NotFound("room not found")
	}
	return r, nil
}

func (s memRooms) GetForUpdate(ctx context.Context, name string) (model.Room, error) {
	return s.Get(ctx, name)
}

func (s memRooms) List(context.Context) ([]model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b model.Room) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out, nil
}

func (s memRooms) Rename(_ context.Context, oldName, newName string) (model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[oldName]
	if !ok {
		return model.Room{}, apperror.NotFound("room not found")
	}
	delete(s.rooms, oldName)
	r.Name = newName
	s.rooms[newName] = r
	return r, nil
}

func (s memRooms) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, name)
	return nil
}

func (s memRooms) SetOccupied(_ context.Context, name string, occupied bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rooms[name]
	r.Occupied = occupied
	s.rooms[name] = r
	return nil
}

type memReservations struct{ *memStore }

func (s memReservations) Create(_ context.Context, r *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations = append(s.reservations, *r)
	return nil
}

func (s memReservations) Get(_ context.Context, id string) (model.Reservation, error) {
	if r := s.reservation(id); r.ID != "" {
		return r, nil
	}
	return model.Reservation{}, apperror.NotFound("reservation not found")
}

func (s memReservations) Query(_ context.Context, f model.ReservationFilter) iter.Seq2[model.Reservation, error] {
	s.mu.Lock()
	snapshot := slices.Clone(s.reservations)
	s.mu.Unlock()
	return func(yield func(model.Reservation, error) bool) {
		for _, r := range snapshot {
			switch {
			case f.RoomID != "" && r.RoomID != f.RoomID,
				f.Date != "" && r.Date != f.Date,
				f.TimeSlot != "" && r.TimeSlot != f.TimeSlot,
				len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status),
				f.UserID != 0 && r.UserID != f.UserID,
				f.OrderID != "" && (r.RazorpayOrderID == nil || *r.RazorpayOrderID != f.OrderID),
				f.PaymentID != "" && (r.RazorpayPaymentID == nil || *r.RazorpayPaymentID != f.PaymentID):
				continue
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (s memReservations) BatchUpdate(_ context.Context, patches []model.ReservationPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchErr != nil {
		return apperror.StoreWrite("batch update", s.batchErr)
	}
	for _, p := range patches {
		for i, r := range s.reservations {
			if r.ID == p.ID {
				s.reservations[i] = p.Apply(r)
			}
		}
	}
	return nil
}

type memUsers struct{ *memStore }

func (s memUsers) Create(_ context.Context, email, _ string, role model.Role, status model.AccountStatus, _ int) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uint64(len(s.users) + 1)
	s.users = append(s.users, model.User{ID: id, Email: email, Role: role, Status: status})
	return id, nil
}

func (s memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, apperror.NotFound("user not found")
}

func (s memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, apperror.NotFound("user not found")
}

func (s memUsers) Query(_ context.Context, f model.UserFilter) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.User
	for _, u := range s.users {
		if (f.Role == "" || u.Role == f.Role) && (f.Status == "" || u.Status == f.Status) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s memUsers) BatchUpdate(_ context.Context, patches []model.UserPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range patches {
		for i, u := range s.users {
			if u.ID == p.ID {
				s.users[i] = p.Apply(u)
			}
		}
	}
	return nil
}

type noTokens struct{}

func (noTokens) StoreRefresh(context.Context, uint64, string, time.Time) error { return nil }
func (noTokens) ValidateRefresh(context.Context, string, time.Time) (uint64, error) {
	return 0, apperror.NotFound("refresh token not found")
}
func (noTokens) RevokeByHash(context.Context, string) error     { return nil }
func (noTokens) RevokeAllForUser(context.Context, uint64) error { return nil }

type stubGateway struct{}

func (stubGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (payment.Order, error) {
	return payment.Order{ID: "order_stub", Amount: amount, Currency: currency, Receipt: receipt}, nil
}

func (stubGateway) Refund(context.Context, string, int64) (payment.Refund, error) {
	return payment.Refund{ID: "rfnd_stub", Status: "processed"}, nil
}

// stubSweeper reports busy when busy is set.
type stubSweeper struct{ busy bool }

func (s stubSweeper) RunOnce(context.Context) bool { return !s.busy }
