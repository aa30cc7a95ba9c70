// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/study-room-booking/internal/handler"
	"github.com/iliyamo/study-room-booking/internal/middleware"
	"github.com/iliyamo/study-room-booking/internal/model"
)

// Handlers groups everything the routes dispatch to.
type Handlers struct {
	Auth     *handler.AuthHandler
	Bookings *handler.BookingHandler
	Rooms    *handler.RoomHandler
	Admin    *handler.AdminHandler
	Payments *handler.PaymentHandler
	Live     *handler.WSHandler
}

// Options carries the cross-cutting layers.  A nil RateLimit or Cache
// disables that layer.
type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	RateLimit      echo.MiddlewareFunc
	Cache          *middleware.ResponseCache
	Logger         *slog.Logger
}

// New builds the echo instance with every route registered.
func New(h Handlers, opt Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(requestLogger(opt.Logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: origins(opt.AllowedOrigins),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	limit := opt.RateLimit
	if limit == nil {
		limit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	RegisterPublic(e, h, opt.Cache)
	RegisterPayment(e, h.Payments, limit)
	RegisterAuth(e, h.Auth, opt.JWTSecret, limit)
	RegisterStudent(e, h.Bookings, opt.JWTSecret, limit)
	RegisterAdmin(e, h.Admin, h.Rooms, opt.JWTSecret)
	if h.Live != nil {
		e.GET("/v1/ws/bookings", h.Live.Bookings)
	}
	return e
}

func origins(allowed []string) []string {
	if len(allowed) == 0 {
		return []string{"*"}
	}
	return allowed
}

// RegisterPublic registers routes that need no token.
func RegisterPublic(e *echo.Echo, h Handlers, cache *middleware.ResponseCache) {
	e.GET("/", handler.Root)
	e.GET("/healthz", handler.Health)
	e.GET("/v1/rooms", h.Rooms.List, cache.Middleware())
}

// RegisterPayment registers the gateway-facing routes.  The paths are
// fixed by the checkout client and the webhook configuration.
func RegisterPayment(e *echo.Echo, p *handler.PaymentHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/payment")
	g.POST("/create-order", p.CreateOrder, limit)
	g.POST("/verify", p.Verify, limit)
	g.POST("/webhook", p.Webhook)
}

// RegisterAuth registers session routes under /v1/auth and /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterStudent registers booking routes for approved students.
func RegisterStudent(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStudent),
		limit,
	)
	g.POST("/bookings", b.Create)
	g.GET("/bookings/mine", b.Mine)
	g.GET("/bookings/history", b.History)
	g.GET("/bookings/:id", b.Get)
	g.POST("/bookings/:id/cancel", b.Cancel)
	g.GET("/availability", b.Availability)
	g.GET("/slots", b.Slots)
}

// RegisterAdmin registers the admin console routes.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, r *handler.RoomHandler, jwtSecret string) {
	g := e.Group("/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/bookings", a.ListBookings)
	g.POST("/bookings/:id/approve", a.Approve)
	g.POST("/bookings/:id/reject", a.Reject)
	g.POST("/bookings/:id/refund", a.Refund)
	g.GET("/analytics", a.Analytics)

	g.GET("/users", a.ListUsers)
	g.POST("/users/:id/approve", a.ApproveUser)
	g.POST("/users/:id/reject", a.RejectUser)

	g.POST("/rooms", r.Add)
	g.PUT("/rooms/:name", r.Rename)
	g.DELETE("/rooms/:name", r.Delete)
	g.POST("/rooms/:name/allocate", r.Allocate)
	g.POST("/rooms/:name/free", r.Free)

	g.POST("/sweep", a.Sweep)
}

// requestLogger forwards one line per request to slog.  Failures
// stored by the handlers under handler.ErrorKey are attached.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("ip", v.RemoteIP),
			}
			err := v.Error
			if cause, ok := c.Get(handler.ErrorKey).(error); ok {
				err = cause
			}
			level := slog.LevelInfo
			if err != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}
