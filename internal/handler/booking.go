package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-booking/internal/middleware"
	"github.com/iliyamo/study-room-booking/internal/service"
)

// BookingHandler serves the student booking routes.
type BookingHandler struct {
	Bookings *service.BookingService
	Accounts *service.AccountService
}

func NewBookingHandler(b *service.BookingService, a *service.AccountService) *BookingHandler {
	return &BookingHandler{Bookings: b, Accounts: a}
}

type createBookingReq struct {
	Room      string `json:"room"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	SlotType  string `json:"slotType"`
	Members   int    `json:"members"`
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

// Create submits a booking request for the authenticated student.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	uid, _ := middleware.UserID(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Accounts.Get(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	res, err := h.Bookings.Create(ctx, service.CreateInput{
		UserID:    uid,
		UserEmail: u.Email,
		RoomID:    req.Room,
		Date:      req.Date,
		TimeSlot:  req.Time,
		SlotType:  req.SlotType,
		Members:   req.Members,
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, h.Bookings.View(res))
}

// Mine lists the student's bookings.
func (h *BookingHandler) Mine(c echo.Context) error {
	uid, _ := middleware.UserID(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Bookings.ListMine(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h.Bookings.Views(list))
}

// History splits the student's approved bookings into active and
// completed ones.
func (h *BookingHandler) History(c echo.Context) error {
	uid, _ := middleware.UserID(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	hist, err := h.Bookings.History(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, hist)
}

// Get returns one of the student's bookings.
func (h *BookingHandler) Get(c echo.Context) error {
	uid, _ := middleware.UserID(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Bookings.Get(ctx, uid, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h.Bookings.View(res))
}

// Cancel withdraws a pending booking.  Cancelling twice is harmless.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, _ := middleware.UserID(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Bookings.Cancel(ctx, uid, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h.Bookings.View(res))
}

// Availability reports remaining seats per room:
// GET /v1/availability?date=2025-03-10&slot=10:00-11:00&members=2
func (h *BookingHandler) Availability(c echo.Context) error {
	members := 1
	if raw := c.QueryParam("members"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return badRequest(c, "members must be a positive integer")
		}
		members = n
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	rooms, err := h.Bookings.Availability(ctx, c.QueryParam("date"), c.QueryParam("slot"), members)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, rooms)
}

type slotTypeResp struct {
	Name     string   `json:"name"`
	Duration int      `json:"durationMinutes"`
	Price    int      `json:"price"`
	Slots    []string `json:"slots"`
}

// Slots lists the bookable slots, optionally for one type.
func (h *BookingHandler) Slots(c echo.Context) error {
	catalog := h.Bookings.Catalog()
	names := catalog.TypeNames()
	if t := c.QueryParam("type"); t != "" {
		st, ok := catalog.Type(t)
		if !ok {
			return badRequest(c, "unknown slot type")
		}
		names = []string{st.Name}
	}

	out := make([]slotTypeResp, 0, len(names))
	for _, name := range names {
		st, _ := catalog.Type(name)
		resp := slotTypeResp{Name: st.Name, Duration: st.Duration, Price: st.Price}
		for _, s := range catalog.Slots(name) {
			resp.Slots = append(resp.Slots, s.String())
		}
		out = append(out, resp)
	}
	return c.JSON(http.StatusOK, out)
}
