package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-booking/internal/service"
)

// RoomHandler serves the room listing and the admin room routes.
type RoomHandler struct {
	Rooms *service.RoomService
}

func NewRoomHandler(r *service.RoomService) *RoomHandler {
	return &RoomHandler{Rooms: r}
}

type roomReq struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

func (h *RoomHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	rooms, err := h.Rooms.List(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, rooms)
}

func (h *RoomHandler) Add(c echo.Context) error {
	var req roomReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	room, err := h.Rooms.Add(ctx, req.Name, req.Capacity)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, room)
}

// Rename: PUT /v1/admin/rooms/:name {"name": "new name"}
func (h *RoomHandler) Rename(c echo.Context) error {
	var req roomReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	room, err := h.Rooms.Rename(ctx, c.Param("name"), req.Name)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Rooms.Delete(ctx, c.Param("name")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *RoomHandler) Allocate(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	room, err := h.Rooms.Allocate(ctx, c.Param("name"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) Free(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	room, err := h.Rooms.Free(ctx, c.Param("name"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, room)
}
