package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iliyamo/study-room-booking/internal/apperror"
	"github.com/iliyamo/study-room-booking/internal/model"
)

// RoomService manages the room list.  Every change drops the cached
// public room listing.
type RoomService struct {
	rooms  RoomStore
	cache  CacheInvalidator
	logger *slog.Logger
}

func NewRoomService(rooms RoomStore, cache CacheInvalidator, logger *slog.Logger) *RoomService {
	return &RoomService{rooms: rooms, cache: cache, logger: logger.With(slog.String("component", "rooms"))}
}

// NormalizeRoomName trims the name and upper-cases its first letter.
// Names shorter than three characters are invalid.
func NormalizeRoomName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if utf8.RuneCountInString(name) < 3 {
		return "", apperror.Validation("room name must be at least 3 characters")
	}
	first, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(first)) + name[size:], nil
}

func (s *RoomService) List(ctx context.Context) ([]model.Room, error) {
	return s.rooms.List(ctx)
}

// Add creates a room.  A non-positive capacity is stored as zero and
// resolves to the default capacity when bookings are evaluated.
func (s *RoomService) Add(ctx context.Context, name string, capacity int) (model.Room, error) {
	name, err := NormalizeRoomName(name)
	if err != nil {
		return model.Room{}, err
	}
	room := model.Room{Name: name, Capacity: max(capacity, 0)}
	if err := s.rooms.Create(ctx, room); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return model.Room{}, apperror.Validationf("room %q already exists", name)
		}
		return model.Room{}, err
	}
	s.changed(ctx, "room added", name)
	return s.rooms.Get(ctx, name)
}

// Rename moves a room to a new name.  Reservations keep the old name.
func (s *RoomService) Rename(ctx context.Context, oldName, newName string) (model.Room, error) {
	newName, err := NormalizeRoomName(newName)
	if err != nil {
		return model.Room{}, err
	}
	if newName == oldName {
		return s.rooms.Get(ctx, oldName)
	}
	room, err := s.rooms.Rename(ctx, oldName, newName)
	if errors.Is(err, apperror.ErrConflict) {
		return model.Room{}, apperror.Validationf("room %q already exists", newName)
	}
	if err != nil {
		return model.Room{}, err
	}
	s.changed(ctx, "room renamed", newName, slog.String("from", oldName))
	return room, nil
}

func (s *RoomService) Delete(ctx context.Context, name string) error {
	if err := s.rooms.Delete(ctx, name); err != nil {
		return err
	}
	s.changed(ctx, "room deleted", name)
	return nil
}

// Allocate marks a room occupied; occupied rooms take no new bookings.
func (s *RoomService) Allocate(ctx context.Context, name string) (model.Room, error) {
	return s.setOccupied(ctx, name, true)
}

// Free clears the occupied flag.
func (s *RoomService) Free(ctx context.Context, name string) (model.Room, error) {
	return s.setOccupied(ctx, name, false)
}

func (s *RoomService) setOccupied(ctx context.Context, name string, occupied bool) (model.Room, error) {
	if err := s.rooms.SetOccupied(ctx, name, occupied); err != nil {
		return model.Room{}, err
	}
	s.changed(ctx, "room occupancy changed", name, slog.Bool("occupied", occupied))
	return s.rooms.Get(ctx, name)
}

func (s *RoomService) changed(ctx context.Context, msg, name string, attrs ...any) {
	s.logger.Info(msg, append([]any{slog.String("room", name)}, attrs...)...)
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("room cache invalidation failed", slog.Any("error", err))
	}
}
