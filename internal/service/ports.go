// Package service holds the booking use cases: reservation creation and
// admin decisions, the periodic lifecycle sweep, payment correlation,
// account approval and room management.  Persistence is reached through
// the interfaces below; the MySQL repositories satisfy them in
// production and in-memory fakes satisfy them in tests.
package service

import (
	"context"
	"iter"
	"time"

	"github.com/iliyamo/study-room-booking/internal/model"
)

// TxRunner opens a transaction that every store called with the inner
// context takes part in.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type RoomStore interface {
	Create(ctx context.Context, room model.Room) error
	Get(ctx context.Context, name string) (model.Room, error)
	GetForUpdate(ctx context.Context, name string) (model.Room, error)
	List(ctx context.Context) ([]model.Room, error)
	Rename(ctx context.Context, oldName, newName string) (model.Room, error)
	Delete(ctx context.Context, name string) error
	SetOccupied(ctx context.Context, name string, occupied bool) error
}

type ReservationStore interface {
	Create(ctx context.Context, r *model.Reservation) error
	Get(ctx context.Context, id string) (model.Reservation, error)
	Query(ctx context.Context, f model.ReservationFilter) iter.Seq2[model.Reservation, error]
	BatchUpdate(ctx context.Context, patches []model.ReservationPatch) error
}

type UserStore interface {
	Create(ctx context.Context, email, password string, role model.Role, status model.AccountStatus, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	Query(ctx context.Context, f model.UserFilter) ([]model.User, error)
	BatchUpdate(ctx context.Context, patches []model.UserPatch) error
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// CacheInvalidator drops cached responses derived from room data.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}
