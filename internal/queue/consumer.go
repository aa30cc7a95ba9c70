package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
)

// AuditLog appends one human-readable line per booking event to a file.
type AuditLog struct {
	path string
	mu   sync.Mutex
}

func NewAuditLog(path string) *AuditLog { return &AuditLog{path: path} }

// Handle decodes a message body and appends its line.
func (a *AuditLog) Handle(body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return a.Write(ev)
}

func (a *AuditLog) Write(ev BookingEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatAuditLine renders ev as a single log line.
func FormatAuditLine(ev BookingEvent) string {
	if ev.ReservationID == "" {
		return fmt.Sprintf("[%s] %s | user_id=%d | email=%q | status=%s | auto=%t\n",
			ev.OccurredAt, ev.Type, ev.UserID, ev.UserEmail, ev.Status, ev.Auto)
	}
	return fmt.Sprintf("[%s] %s | reservation_id=%s | user_id=%d | room=%q | date=%s | slot=%q | members=%d | status=%s | payment=%s | refund=%s | auto=%t\n",
		ev.OccurredAt, ev.Type, ev.ReservationID, ev.UserID, ev.RoomID, ev.Date, ev.TimeSlot,
		ev.Members, ev.Status, ev.PaymentStatus, ev.RefundStatus, ev.Auto)
}

// ConsumeAMQP consumes the booking queue into the audit log until ctx is
// done, reconnecting with exponential backoff.  Undecodable messages are
// rejected without requeue.
func ConsumeAMQP(ctx context.Context, url, exchange string, audit *AuditLog, logger *slog.Logger) {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("booking consumer: dial failed", slog.Any("error", err), slog.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, exchange, audit, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Warn("booking consumer: consume loop ended, reconnecting", slog.Any("error", err))
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, exchange string, audit *AuditLog, logger *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("booking consumer: set QoS failed", slog.Any("error", err))
	}
	if err := declareTopology(ch, exchange); err != nil {
		return err
	}
	msgs, err := ch.ConsumeWithContext(ctx, BookingQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := audit.Handle(d.Body); err != nil {
			logger.Warn("booking consumer: handle message failed", slog.Any("error", err))
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// ConsumeKafka reads the events topic into the audit log until ctx is done.
func ConsumeKafka(ctx context.Context, brokers []string, topic, groupID string, audit *AuditLog, logger *slog.Logger) {
	if len(brokers) == 0 {
		return
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
	})
	defer reader.Close()

	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("kafka read error", slog.Any("error", err))
			if !sleep(ctx, time.Second) {
				return
			}
			continue
		}
		if err := audit.Handle(m.Value); err != nil {
			logger.Warn("booking consumer: handle message failed",
				slog.Int("partition", m.Partition),
				slog.Int64("offset", m.Offset),
				slog.Any("error", err))
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
