package payment

import (
	"context"
	"errors"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

// Order is a gateway order.  Amount is in the smallest currency unit.
type Order struct {
	ID       string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// Refund is a refund accepted by the gateway.
type Refund struct {
	ID     string
	Status string
}

// Gateway is the part of the payment provider the service uses.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (Order, error)
	Refund(ctx context.Context, paymentID string, amount int64) (Refund, error)
}

// RazorpayGateway implements Gateway with the Razorpay SDK.
type RazorpayGateway struct {
	client *razorpay.Client
}

func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	return &RazorpayGateway{client: razorpay.NewClient(keyID, keySecret)}
}

// ErrGateway wraps every failure reported by the provider.
var ErrGateway = errors.New("payment gateway error")

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	body, err := g.client.Order.Create(map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		return Order{}, fmt.Errorf("%w: create order: %v", ErrGateway, err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return Order{}, fmt.Errorf("%w: create order: response without id", ErrGateway)
	}
	return Order{
		ID:       id,
		Amount:   toInt64(body["amount"], amount),
		Currency: stringOr(body["currency"], currency),
		Receipt:  stringOr(body["receipt"], receipt),
	}, nil
}

// Refund requests a refund of amount paise.  The SDK always sends the
// amount, so a non-positive one is refused before any call is made.
func (g *RazorpayGateway) Refund(ctx context.Context, paymentID string, amount int64) (Refund, error) {
	if err := ctx.Err(); err != nil {
		return Refund{}, err
	}
	if amount <= 0 {
		return Refund{}, fmt.Errorf("%w: refund %s: amount must be positive", ErrGateway, paymentID)
	}
	body, err := g.client.Payment.Refund(paymentID, int(amount), nil, nil)
	if err != nil {
		return Refund{}, fmt.Errorf("%w: refund %s: %v", ErrGateway, paymentID, err)
	}
	id, _ := body["id"].(string)
	return Refund{ID: id, Status: stringOr(body["status"], "")}, nil
}

// The SDK decodes JSON into map[string]interface{}, so numbers arrive
// as float64.
func toInt64(v interface{}, def int64) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return def
}

func stringOr(v interface{}, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}
