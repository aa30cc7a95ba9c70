package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-booking/internal/model"
	"github.com/iliyamo/study-room-booking/internal/realtime"
	"github.com/iliyamo/study-room-booking/internal/utils"
)

// WSHandler streams booking events over a websocket.  Browsers cannot
// set headers on the upgrade, so the access token travels in ?token=.
type WSHandler struct {
	Hub      *realtime.Hub
	Secret   string
	Upgrader websocket.Upgrader
	Logger   *slog.Logger
}

func NewWSHandler(hub *realtime.Hub, secret string, allowed []string, logger *slog.Logger) *WSHandler {
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		origins[o] = true
	}
	return &WSHandler{
		Hub:    hub,
		Secret: secret,
		Logger: logger,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || origins[origin]
			},
		},
	}
}

// Bookings: GET /v1/ws/bookings?token=<access token>
func (h *WSHandler) Bookings(c echo.Context) error {
	claims, err := utils.ParseAccessToken(h.Secret, c.QueryParam("token"))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "unauthorized"})
	}
	if model.AccountStatus(claims.Status) != model.AccountApproved {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account not approved", "code": "forbidden"})
	}
	uid, err := claims.UserID()
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "unauthorized"})
	}

	conn, err := h.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.Logger.Warn("ws upgrade failed", slog.String("ip", c.RealIP()), slog.Any("error", err))
		return nil
	}
	client := realtime.NewClient(h.Hub, conn, uid, model.Role(claims.Role) == model.RoleAdmin, 16)
	h.Hub.Attach(client)
	go client.WritePump()
	go client.ReadPump()
	return nil
}
