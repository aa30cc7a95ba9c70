package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-booking/internal/service"
)

// maxWebhookBody caps the raw webhook payload.
const maxWebhookBody = 1 << 20

// PaymentHandler serves the gateway routes under /payment.
type PaymentHandler struct {
	Payments *service.PaymentService
}

func NewPaymentHandler(p *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{Payments: p}
}

type createOrderReq struct {
	Amount int `json:"amount"`
}

// CreateOrder opens a gateway order for an amount in rupees.
func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	order, err := h.Payments.CreateOrder(ctx, req.Amount)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

type verifyReq struct {
	OrderRef   string `json:"orderRef"`
	PaymentRef string `json:"paymentRef"`
	Signature  string `json:"signature"`
}

// Verify checks a client checkout signature.
func (h *PaymentHandler) Verify(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if !h.Payments.VerifyCheckout(req.OrderRef, req.PaymentRef, req.Signature) {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "failure"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "success"})
}

// Webhook receives gateway events.  The body is read raw and handed
// over unparsed: the signature covers the exact bytes sent.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(c, "unreadable body")
	}
	sig := c.Request().Header.Get("X-Signature")
	if sig == "" {
		sig = c.Request().Header.Get("X-Razorpay-Signature")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	switch h.Payments.HandlePaymentCaptured(ctx, body, sig) {
	case service.ResultOK:
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	case service.ResultInvalidSignature:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature", "code": "invalid_signature"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "webhook processing failed", "code": "internal_error"})
	}
}
