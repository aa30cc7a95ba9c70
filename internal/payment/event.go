package payment

import (
	"encoding/json"
	"fmt"
)

// Event types the service acts on.
const (
	EventPaymentCaptured = "payment.captured"
	EventRefundProcessed = "refund.processed"
	EventRefundFailed    = "refund.failed"
)

// Event is one verified webhook delivery.  The concrete type is chosen
// by the "event" field: PaymentCaptured, RefundSettled or Ignored.
type Event interface {
	Type() string
}

// PaymentCaptured correlates a captured payment with an order.
type PaymentCaptured struct {
	OrderID   string
	PaymentID string
	Amount    int64 // paise
}

func (PaymentCaptured) Type() string { return EventPaymentCaptured }

// RefundSettled reports the final outcome of a refund.
type RefundSettled struct {
	RefundID  string
	PaymentID string
	OK        bool
}

func (e RefundSettled) Type() string {
	if e.OK {
		return EventRefundProcessed
	}
	return EventRefundFailed
}

// Ignored is any event type the service does not handle.
type Ignored struct {
	Name string
}

func (e Ignored) Type() string { return e.Name }

type envelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Amount  int64  `json:"amount"`
			} `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity struct {
				ID        string `json:"id"`
				PaymentID string `json:"payment_id"`
			} `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// ParseEvent decodes a verified webhook body.  Unknown event types
// decode to Ignored; a known type missing its identifiers is an error.
func ParseEvent(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	switch env.Event {
	case EventPaymentCaptured:
		p := env.Payload.Payment.Entity
		if p.OrderID == "" || p.ID == "" {
			return nil, fmt.Errorf("decode webhook: %s without order or payment id", env.Event)
		}
		return PaymentCaptured{OrderID: p.OrderID, PaymentID: p.ID, Amount: p.Amount}, nil
	case EventRefundProcessed, EventRefundFailed:
		r := env.Payload.Refund.Entity
		if r.PaymentID == "" {
			return nil, fmt.Errorf("decode webhook: %s without payment id", env.Event)
		}
		return RefundSettled{RefundID: r.ID, PaymentID: r.PaymentID, OK: env.Event == EventRefundProcessed}, nil
	default:
		return Ignored{Name: env.Event}, nil
	}
}
