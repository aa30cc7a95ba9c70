package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-booking/internal/model"
	"github.com/iliyamo/study-room-booking/internal/service"
)

// Sweeper triggers one lifecycle sweep unless one is already running.
type Sweeper interface {
	RunOnce(ctx context.Context) bool
}

// AdminHandler serves the admin booking and account routes.
type AdminHandler struct {
	Bookings *service.BookingService
	Payments *service.PaymentService
	Accounts *service.AccountService
	Sweeper  Sweeper
}

func NewAdminHandler(b *service.BookingService, p *service.PaymentService, a *service.AccountService, s Sweeper) *AdminHandler {
	return &AdminHandler{Bookings: b, Payments: p, Accounts: a, Sweeper: s}
}

// ListBookings: GET /v1/admin/bookings?status=pending
func (h *AdminHandler) ListBookings(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Bookings.ListByStatus(ctx, model.ReservationStatus(c.QueryParam("status")))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h.Bookings.Views(list))
}

func (h *AdminHandler) Approve(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Bookings.Approve(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h.Bookings.View(res))
}

func (h *AdminHandler) Reject(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Bookings.Reject(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h.Bookings.View(res))
}

// Refund sends an initiated refund to the gateway.
func (h *AdminHandler) Refund(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Payments.ProcessRefund(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h.Bookings.View(res))
}

// Analytics: GET /v1/admin/analytics
func (h *AdminHandler) Analytics(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	a, err := h.Bookings.Analytics(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// ListUsers: GET /v1/admin/users?status=pending
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	var (
		users []model.User
		err   error
	)
	if status := model.AccountStatus(c.QueryParam("status")); status == model.AccountPending {
		users, err = h.Accounts.ListPending(ctx)
	} else {
		users, err = h.Accounts.List(ctx, status)
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *AdminHandler) ApproveUser(c echo.Context) error {
	return h.decideUser(c, h.Accounts.Approve)
}

func (h *AdminHandler) RejectUser(c echo.Context) error {
	return h.decideUser(c, h.Accounts.Reject)
}

func (h *AdminHandler) decideUser(c echo.Context, fn func(context.Context, uint64) (model.User, error)) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return badRequest(c, "invalid user id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := fn(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Sweep runs the lifecycle sweep now.  The request is refused while a
// scheduled sweep is in flight.
func (h *AdminHandler) Sweep(c echo.Context) error {
	if !h.Sweeper.RunOnce(c.Request().Context()) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "a sweep is already running", "code": "conflict"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
