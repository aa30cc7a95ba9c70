package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-booking/internal/apperror"
	"github.com/iliyamo/study-room-booking/internal/clock"
	"github.com/iliyamo/study-room-booking/internal/handler"
	"github.com/iliyamo/study-room-booking/internal/logging"
	"github.com/iliyamo/study-room-booking/internal/model"
	"github.com/iliyamo/study-room-booking/internal/payment"
	"github.com/iliyamo/study-room-booking/internal/queue"
	"github.com/iliyamo/study-room-booking/internal/router"
	"github.com/iliyamo/study-room-booking/internal/service"
	"github.com/iliyamo/study-room-booking/internal/utils"
)

const (
	jwtSecret     = "jwt-secret"
	keySecret     = "key-secret"
	webhookSecret = "whsec"
)

var testNow = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

type harness struct {
	e     *echo.Echo
	store *memStore
}

func newHarness(t *testing.T, sweeper handler.Sweeper) *harness {
	t.Helper()
	store := newMemStore()
	store.rooms["Alpha"] = model.Room{Name: "Alpha", Capacity: 6}
	store.users = []model.User{
		{ID: 1, Email: "admin@uni.edu", Role: model.RoleAdmin, Status: model.AccountApproved},
		{ID: 2, Email: "s@uni.edu", Role: model.RoleStudent, Status: model.AccountApproved},
		{ID: 3, Email: "new@uni.edu", Role: model.RoleStudent, Status: model.AccountPending},
	}

	logger := logging.Discard()
	clk := clock.NewFixed(testNow)
	events := queue.Nop{}
	rooms, reservations, users := memRooms{store}, memReservations{store}, memUsers{store}

	bookings := service.NewBookingService(store, rooms, reservations, events, clk, logger,
		service.WithCheckoutSecret(keySecret))
	payments := service.NewPaymentService(reservations, stubGateway{}, events, clk, logger, service.PaymentConfig{
		KeySecret:     keySecret,
		WebhookSecret: webhookSecret,
		Currency:      "INR",
	})
	accounts := service.NewAccountService(users, noTokens{}, events, clk, logger, service.AuthConfig{
		JWTSecret:  jwtSecret,
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		BcryptCost: 4,
	})
	if sweeper == nil {
		sweeper = stubSweeper{}
	}

	e := router.New(router.Handlers{
		Auth:     handler.NewAuthHandler(accounts),
		Bookings: handler.NewBookingHandler(bookings, accounts),
		Rooms:    handler.NewRoomHandler(service.NewRoomService(rooms, nil, logger)),
		Admin:    handler.NewAdminHandler(bookings, payments, accounts, sweeper),
		Payments: handler.NewPaymentHandler(payments),
	}, router.Options{JWTSecret: jwtSecret, Logger: logger})
	return &harness{e: e, store: store}
}

func bearer(t *testing.T, uid uint64, role model.Role) string {
	t.Helper()
	tok, err := utils.NewAccessToken(jwtSecret, uid, string(role), string(model.AccountApproved), time.Minute, time.Now())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + tok.Token
}

func (h *harness) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func captured(order, pay string) string {
	return fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"amount":4000}}}}`, pay, order)
}

func TestLiveness(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "running") {
		t.Fatalf("GET / = %d %q", rec.Code, rec.Body.String())
	}
	if rec := h.do(http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d", rec.Code)
	}
}

func TestWebhook(t *testing.T) {
	t.Parallel()

	order := "order_1"
	seed := func(h *harness) {
		h.store.reservations = append(h.store.reservations, model.Reservation{
			ID: "r1", RoomID: "Alpha", Date: "2025-03-10", TimeSlot: "10:00 - 11:00", Members: 1,
			UserID: 2, Status: model.StatusPending, PaymentStatus: model.PaymentUnpaid,
			RefundStatus: model.RefundNotInitiated, RazorpayOrderID: &order,
		})
	}

	t.Run("valid signature marks the booking paid", func(t *testing.T) {
		h := newHarness(t, nil)
		seed(h)
		body := captured(order, "pay_1")
		rec := h.do(http.MethodPost, "/payment/webhook", body, map[string]string{
			"X-Signature": payment.Sign([]byte(body), webhookSecret),
		})
		if rec.Code != http.StatusOK || decode(t, rec)["status"] != "ok" {
			t.Fatalf("webhook = %d %s", rec.Code, rec.Body.String())
		}
		if r := h.store.reservation("r1"); r.PaymentStatus != model.PaymentPaid {
			t.Fatalf("reservation not paid: %+v", r)
		}
	})

	t.Run("gateway header name is accepted", func(t *testing.T) {
		h := newHarness(t, nil)
		seed(h)
		body := captured(order, "pay_1")
		rec := h.do(http.MethodPost, "/payment/webhook", body, map[string]string{
			"X-Razorpay-Signature": payment.Sign([]byte(body), webhookSecret),
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("webhook = %d", rec.Code)
		}
	})

	t.Run("bad signature is refused without changes", func(t *testing.T) {
		h := newHarness(t, nil)
		seed(h)
		body := captured(order, "pay_1")
		rec := h.do(http.MethodPost, "/payment/webhook", body, map[string]string{
			"X-Signature": payment.Sign([]byte(body+" "), webhookSecret),
		})
		if rec.Code != http.StatusBadRequest || decode(t, rec)["code"] != "invalid_signature" {
			t.Fatalf("webhook = %d %s", rec.Code, rec.Body.String())
		}
		if r := h.store.reservation("r1"); r.PaymentStatus != model.PaymentUnpaid {
			t.Fatalf("reservation changed: %+v", r)
		}
	})

	t.Run("store failure asks the gateway to retry", func(t *testing.T) {
		h := newHarness(t, nil)
		seed(h)
		h.store.batchErr = errors.New("connection reset")
		body := captured(order, "pay_1")
		rec := h.do(http.MethodPost, "/payment/webhook", body, map[string]string{
			"X-Signature": payment.Sign([]byte(body), webhookSecret),
		})
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("webhook = %d", rec.Code)
		}
	})
}

func TestCheckoutRoutes(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/payment/create-order", `{"amount":40}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("create-order = %d %s", rec.Code, rec.Body.String())
	}
	if got := decode(t, rec); got["orderId"] != "order_stub" || got["amount"] != float64(4000) {
		t.Fatalf("order = %v", got)
	}
	if rec := h.do(http.MethodPost, "/payment/create-order", `{"amount":0}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("zero amount = %d", rec.Code)
	}

	sig := payment.Sign([]byte("order_1|pay_1"), keySecret)
	rec = h.do(http.MethodPost, "/payment/verify", fmt.Sprintf(`{"orderRef":"order_1","paymentRef":"pay_1","signature":%q}`, sig), nil)
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "success" {
		t.Fatalf("verify = %d %s", rec.Code, rec.Body.String())
	}
	rec = h.do(http.MethodPost, "/payment/verify", `{"orderRef":"order_1","paymentRef":"pay_2","signature":"00"}`, nil)
	if rec.Code != http.StatusBadRequest || decode(t, rec)["status"] != "failure" {
		t.Fatalf("verify mismatch = %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateBooking(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	student := map[string]string{"Authorization": bearer(t, 2, model.RoleStudent)}
	req := func(members int) string {
		return fmt.Sprintf(`{"room":"Alpha","date":"2025-03-10","time":"10:00 - 11:00","slotType":"normal","members":%d}`, members)
	}

	rec := h.do(http.MethodPost, "/v1/bookings", req(4), student)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	if got := decode(t, rec); got["status"] != "pending" || got["userEmail"] != "s@uni.edu" {
		t.Fatalf("booking = %v", got)
	}

	rec = h.do(http.MethodPost, "/v1/bookings", req(3), student)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("over capacity = %d", rec.Code)
	}
	got := decode(t, rec)
	if got["code"] != "capacity_exceeded" || got["remaining"] != float64(2) || got["error"] != "Only 2 seat(s) left." {
		t.Fatalf("capacity body = %v", got)
	}

	offCatalog := `{"room":"Alpha","date":"2025-03-10","time":"10:17 - 23:59","members":1}`
	if rec := h.do(http.MethodPost, "/v1/bookings", offCatalog, student); rec.Code != http.StatusBadRequest {
		t.Fatalf("off-catalog slot = %d %s", rec.Code, rec.Body.String())
	}

	if rec := h.do(http.MethodPost, "/v1/bookings", req(1), nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous = %d", rec.Code)
	}
	admin := map[string]string{"Authorization": bearer(t, 1, model.RoleAdmin)}
	if rec := h.do(http.MethodPost, "/v1/bookings", req(1), admin); rec.Code != http.StatusForbidden {
		t.Fatalf("admin booking = %d", rec.Code)
	}
}

func TestAdminRoutes(t *testing.T) {
	t.Parallel()

	t.Run("student cannot reach admin routes", func(t *testing.T) {
		h := newHarness(t, nil)
		rec := h.do(http.MethodGet, "/v1/admin/bookings", "", map[string]string{"Authorization": bearer(t, 2, model.RoleStudent)})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("pending accounts are listed and approved", func(t *testing.T) {
		h := newHarness(t, nil)
		admin := map[string]string{"Authorization": bearer(t, 1, model.RoleAdmin)}

		rec := h.do(http.MethodGet, "/v1/admin/users?status=pending", "", admin)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "new@uni.edu") {
			t.Fatalf("list = %d %s", rec.Code, rec.Body.String())
		}
		rec = h.do(http.MethodPost, "/v1/admin/users/3/approve", "", admin)
		if rec.Code != http.StatusOK || decode(t, rec)["status"] != "approved" {
			t.Fatalf("approve = %d %s", rec.Code, rec.Body.String())
		}
		if rec := h.do(http.MethodPost, "/v1/admin/users/abc/approve", "", admin); rec.Code != http.StatusBadRequest {
			t.Fatalf("bad id = %d", rec.Code)
		}
	})

	t.Run("rooms are added and listed publicly", func(t *testing.T) {
		h := newHarness(t, nil)
		admin := map[string]string{"Authorization": bearer(t, 1, model.RoleAdmin)}

		rec := h.do(http.MethodPost, "/v1/admin/rooms", `{"name":"  beta","capacity":4}`, admin)
		if rec.Code != http.StatusCreated || decode(t, rec)["name"] != "Beta" {
			t.Fatalf("add = %d %s", rec.Code, rec.Body.String())
		}
		rec = h.do(http.MethodGet, "/v1/rooms", "", nil)
		var rooms []model.Room
		if err := json.Unmarshal(rec.Body.Bytes(), &rooms); err != nil || len(rooms) != 2 {
			t.Fatalf("list = %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("manual sweep reports a sweep in flight", func(t *testing.T) {
		admin := map[string]string{"Authorization": bearer(t, 1, model.RoleAdmin)}
		if rec := newHarness(t, nil).do(http.MethodPost, "/v1/admin/sweep", "", admin); rec.Code != http.StatusOK {
			t.Fatalf("idle sweep = %d", rec.Code)
		}
		if rec := newHarness(t, stubSweeper{busy: true}).do(http.MethodPost, "/v1/admin/sweep", "", admin); rec.Code != http.StatusConflict {
			t.Fatalf("busy sweep = %d", rec.Code)
		}
	})
}

func TestUsageRoutes(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.store.rooms["Beta"] = model.Room{Name: "Beta", Capacity: 4, Occupied: true}
	approved := func(id, date, slot string) model.Reservation {
		return model.Reservation{
			ID: id, RoomID: "Alpha", Date: date, TimeSlot: slot, Members: 1, UserID: 2,
			Status: model.StatusApproved, PaymentStatus: model.PaymentUnpaid, RefundStatus: model.RefundNotInitiated,
		}
	}
	h.store.reservations = append(h.store.reservations,
		approved("past", "2025-03-09", "10:00 - 11:00"),
		approved("next", "2025-03-10", "10:00 - 11:00"),
		approved("later", "2025-03-11", "12:00 - 13:00"),
	)

	rec := h.do(http.MethodGet, "/v1/bookings/history", "", map[string]string{"Authorization": bearer(t, 2, model.RoleStudent)})
	if rec.Code != http.StatusOK {
		t.Fatalf("history = %d %s", rec.Code, rec.Body.String())
	}
	var hist service.UsageHistory
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hist.Completed) != 1 || hist.Completed[0].ID != "past" || len(hist.Active) != 2 {
		t.Fatalf("history = %+v", hist)
	}

	admin := map[string]string{"Authorization": bearer(t, 1, model.RoleAdmin)}
	rec = h.do(http.MethodGet, "/v1/admin/analytics", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("analytics = %d %s", rec.Code, rec.Body.String())
	}
	got := decode(t, rec)
	if got["occupancyRate"] != float64(50) || got["availableRooms"] != float64(1) || got["peakSlot"] != "10:00 - 11:00" {
		t.Fatalf("analytics = %v", got)
	}
	if rec := h.do(http.MethodGet, "/v1/admin/analytics", "", map[string]string{"Authorization": bearer(t, 2, model.RoleStudent)}); rec.Code != http.StatusForbidden {
		t.Fatalf("student analytics = %d", rec.Code)
	}
}

func TestErrorMapper(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
	}{
		{"validation", apperror.Validation("Room is required"), http.StatusBadRequest, "validation_error", "Room is required"},
		{"capacity", &apperror.CapacityError{Remaining: 1}, http.StatusBadRequest, "validation_error", "Only 1 seat(s) left."},
		{"auth", apperror.Authentication("bad credentials"), http.StatusUnauthorized, "unauthorized", "bad credentials"},
		{"not found", apperror.NotFound("reservation not found"), http.StatusNotFound, "not_found", "reservation not found"},
		{"store", apperror.StoreWrite("insert", errors.New("dsn leaked")), http.StatusInternalServerError, "store_write_error", "Internal Server Error"},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout", "request timeout"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error", "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := handler.DefaultErrors.Map(tc.err)
			if got.Status != tc.status || got.Code != tc.code || got.Message != tc.msg {
				t.Fatalf("Map(%v) = %+v", tc.err, got)
			}
		})
	}
}
