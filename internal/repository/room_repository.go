package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/study-room-booking/internal/apperror"
	"github.com/iliyamo/study-room-booking/internal/model"
)

// RoomRepo provides data access to the rooms table.  Rooms are keyed by
// name; the name is also what reservations store as their room id.
type RoomRepo struct {
	db *sql.DB
}

func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

const roomColumns = `name, capacity, occupied, created_at, updated_at`

func scanRoom(row interface{ Scan(...any) error }) (model.Room, error) {
	var r model.Room
	err := row.Scan(&r.Name, &r.Capacity, &r.Occupied, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// Create inserts a room.  A duplicate name is a conflict.
func (r *RoomRepo) Create(ctx context.Context, room model.Room) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO rooms (name, capacity, occupied) VALUES (?, ?, ?)`,
		room.Name, room.Capacity, room.Occupied)
	if err != nil {
		if isDuplicate(err) {
			return apperror.Conflict(fmt.Sprintf("room %q already exists", room.Name))
		}
		return apperror.StoreWrite("create room", err)
	}
	return nil
}

// Get returns the room with the given name.
func (r *RoomRepo) Get(ctx context.Context, name string) (model.Room, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE name = ?`, name)
	room, err := scanRoom(row)
	if err != nil {
		return model.Room{}, readErr("get room", "room not found", err)
	}
	return room, nil
}

// GetForUpdate reads the room and locks its row until the surrounding
// transaction ends.  Booking creation holds this lock across the
// capacity check and the insert, so concurrent requests for the same
// room are serialized.  Outside a transaction the lock is released at
// once.
func (r *RoomRepo) GetForUpdate(ctx context.Context, name string) (model.Room, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE name = ? FOR UPDATE`, name)
	room, err := scanRoom(row)
	if err != nil {
		return model.Room{}, readErr("lock room", "room not found", err)
	}
	return room, nil
}

// List returns all rooms ordered by name.
func (r *RoomRepo) List(ctx context.Context) ([]model.Room, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+roomColumns+` FROM rooms ORDER BY name`)
	if err != nil {
		return nil, apperror.StoreRead("list rooms", err)
	}
	defer rows.Close()

	rooms := []model.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, apperror.StoreRead("scan room", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.StoreRead("list rooms", err)
	}
	return rooms, nil
}

// Rename moves a room to a new key: the new row is inserted with the old
// row's capacity and occupancy, then the old row is deleted, both in one
// transaction.  Existing reservations keep the name they were made with.
func (r *RoomRepo) Rename(ctx context.Context, oldName, newName string) (model.Room, error) {
	var renamed model.Room
	err := withTx(ctx, r.db, func(ctx context.Context) error {
		old, err := r.GetForUpdate(ctx, oldName)
		if err != nil {
			return err
		}
		renamed = model.Room{Name: newName, Capacity: old.Capacity, Occupied: old.Occupied}
		if err := r.Create(ctx, renamed); err != nil {
			return err
		}
		return r.Delete(ctx, oldName)
	})
	if err != nil {
		return model.Room{}, err
	}
	return r.Get(ctx, newName)
}

// Delete removes a room.
func (r *RoomRepo) Delete(ctx context.Context, name string) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM rooms WHERE name = ?`, name)
	if err != nil {
		return apperror.StoreWrite("delete room", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.NotFound("room not found")
	}
	return nil
}

// SetOccupied sets the allocation flag.
func (r *RoomRepo) SetOccupied(ctx context.Context, name string, occupied bool) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE rooms SET occupied = ? WHERE name = ?`, occupied, name)
	if err != nil {
		return apperror.StoreWrite("update room", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 affected rows when the value is unchanged.
		if _, err := r.Get(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// WithTx runs fn in a transaction shared through the context.
func (r *RoomRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, fn)
}
