package service

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/study-room-booking/internal/apperror"
	"github.com/iliyamo/study-room-booking/internal/model"
	"github.com/iliyamo/study-room-booking/internal/payment"
	"github.com/iliyamo/study-room-booking/internal/queue"
	"github.com/iliyamo/study-room-booking/internal/utils"
)

// fakeStore keeps rooms and reservations in memory.  WithTx serializes
// callers the way the room row lock does in MySQL.
type fakeStore struct {
	txMu sync.Mutex

	mu           sync.Mutex
	rooms        map[string]model.Room
	reservations []model.Reservation
	queryErr     error
	batchErr     error
	batches      int
}

func newFakeStore(rooms ...model.Room) *fakeStore {
	s := &fakeStore{rooms: map[string]model.Room{}}
	for _, r := range rooms {
		s.rooms[r.Name] = r
	}
	return s
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx)
}

func (s *fakeStore) seed(rs ...model.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations = append(s.reservations, rs...)
}

func (s *fakeStore) reservation(id string) model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reservations {
		if r.ID == id {
			return r
		}
	}
	return model.Reservation{}
}

func (s *fakeStore) all() []model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.reservations)
}

// rooms

func (s *fakeStore) Create(ctx context.Context, room model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.Name]; ok {
		return apperror.Conflict("room exists")
	}
	s.rooms[room.Name] = room
	return nil
}

func (s *fakeStore) Get(ctx context.Context, name string) (model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[name]
	if !ok {
		return model.Room{}, apperror.NotFound("room not found")
	}
	return r, nil
}

func (s *fakeStore) GetForUpdate(ctx context.Context, name string) (model.Room, error) {
	return s.Get(ctx, name)
}

func (s *fakeStore) List(ctx context.Context) ([]model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Room
	for _, r := range s.rooms {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b model.Room) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *fakeStore) Rename(ctx context.Context, oldName, newName string) (model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.rooms[oldName]
	if !ok {
		return model.Room{}, apperror.NotFound("room not found")
	}
	if _, ok := s.rooms[newName]; ok {
		return model.Room{}, apperror.Conflict("room exists")
	}
	delete(s.rooms, oldName)
	old.Name = newName
	s.rooms[newName] = old
	return old, nil
}

func (s *fakeStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[name]; !ok {
		return apperror.NotFound("room not found")
	}
	delete(s.rooms, name)
	return nil
}

func (s *fakeStore) SetOccupied(ctx context.Context, name string, occupied bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[name]
	if !ok {
		return apperror.NotFound("room not found")
	}
	r.Occupied = occupied
	s.rooms[name] = r
	return nil
}

// reservations, exposed through fakeReservations so the method names
// do not collide with the room store.

type fakeReservations struct{ *fakeStore }

func (f fakeReservations) Create(ctx context.Context, r *model.Reservation) error {
	f.seed(*r)
	return nil
}

func (f fakeReservations) Get(ctx context.Context, id string) (model.Reservation, error) {
	r := f.reservation(id)
	if r.ID == "" {
		return model.Reservation{}, apperror.NotFound("reservation not found")
	}
	return r, nil
}

func (f fakeReservations) Query(ctx context.Context, flt model.ReservationFilter) iter.Seq2[model.Reservation, error] {
	f.mu.Lock()
	err := f.queryErr
	snapshot := slices.Clone(f.reservations)
	f.mu.Unlock()
	return func(yield func(model.Reservation, error) bool) {
		if err != nil {
			yield(model.Reservation{}, apperror.StoreRead("query reservations", err))
			return
		}
		for _, r := range snapshot {
			if matches(r, flt) && !yield(r, nil) {
				return
			}
		}
	}
}

func matches(r model.Reservation, f model.ReservationFilter) bool {
	switch {
	case f.RoomID != "" && r.RoomID != f.RoomID,
		f.Date != "" && r.Date != f.Date,
		f.TimeSlot != "" && r.TimeSlot != f.TimeSlot,
		len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status),
		f.UserID != 0 && r.UserID != f.UserID,
		f.OrderID != "" && (r.RazorpayOrderID == nil || *r.RazorpayOrderID != f.OrderID),
		f.PaymentID != "" && (r.RazorpayPaymentID == nil || *r.RazorpayPaymentID != f.PaymentID):
		return false
	}
	return true
}

func (f fakeReservations) BatchUpdate(ctx context.Context, patches []model.ReservationPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batchErr != nil {
		return apperror.StoreWrite("batch update", f.batchErr)
	}
	f.batches++
	for _, p := range patches {
		for i, r := range f.reservations {
			if r.ID == p.ID {
				f.reservations[i] = p.Apply(r)
			}
		}
	}
	return nil
}

// fakeUsers is an in-memory account store.
type fakeUsers struct {
	mu       sync.Mutex
	users    []model.User
	queryErr error
	nextID   uint64
}

func (f *fakeUsers) Create(ctx context.Context, email, password string, role model.Role, status model.AccountStatus, cost int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return 0, apperror.Conflict("email already exists")
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	f.nextID++
	f.users = append(f.users, model.User{ID: f.nextID, Email: email, PasswordHash: hash, Role: role, Status: status})
	return f.nextID, nil
}

func (f *fakeUsers) add(u model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, u)
	if u.ID > f.nextID {
		f.nextID = u.ID
	}
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, apperror.NotFound("user not found")
}

func (f *fakeUsers) GetByID(ctx context.Context, id uint64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, apperror.NotFound("user not found")
}

func (f *fakeUsers) Query(ctx context.Context, flt model.UserFilter) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, apperror.StoreRead("query users", f.queryErr)
	}
	var out []model.User
	for _, u := range f.users {
		if (flt.Role == "" || u.Role == flt.Role) && (flt.Status == "" || u.Status == flt.Status) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) BatchUpdate(ctx context.Context, patches []model.UserPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range patches {
		for i, u := range f.users {
			if u.ID == p.ID {
				f.users[i] = p.Apply(u)
			}
		}
	}
	return nil
}

// fakeTokens stores refresh token hashes.
type fakeTokens struct {
	mu      sync.Mutex
	byHash  map[string]uint64
	revoked map[string]bool
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{byHash: map[string]uint64{}, revoked: map[string]bool{}}
}

func (f *fakeTokens) StoreRefresh(ctx context.Context, userID uint64, hash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byHash[hash] = userID
	return nil
}

func (f *fakeTokens) ValidateRefresh(ctx context.Context, hash string, now time.Time) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uid, ok := f.byHash[hash]
	if !ok || f.revoked[hash] {
		return 0, apperror.NotFound("refresh token not found")
	}
	return uid, nil
}

func (f *fakeTokens) RevokeByHash(ctx context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[hash] = true
	return nil
}

func (f *fakeTokens) RevokeAllForUser(ctx context.Context, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for h, uid := range f.byHash {
		if uid == userID {
			f.revoked[h] = true
		}
	}
	return nil
}

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []queue.BookingEvent
}

func (r *recorder) Publish(_ context.Context, ev queue.BookingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// fakeGateway records gateway calls.
type fakeGateway struct {
	orders    []payment.Order
	refunds   []string
	amounts   []int64
	refund    payment.Refund
	refundErr error
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (payment.Order, error) {
	o := payment.Order{ID: "order_test", Amount: amount, Currency: currency, Receipt: receipt}
	g.orders = append(g.orders, o)
	return o, nil
}

func (g *fakeGateway) Refund(ctx context.Context, paymentID string, amount int64) (payment.Refund, error) {
	g.refunds = append(g.refunds, paymentID)
	g.amounts = append(g.amounts, amount)
	return g.refund, g.refundErr
}

// fakeCache counts invalidations.
type fakeCache struct{ n int }

func (c *fakeCache) Invalidate(context.Context) error { c.n++; return nil }

func ptr[T any](v T) *T { return &v }
