package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/courier-booking/internal/logging"
	"github.com/example/courier-booking/internal/models"
)

// StatusSink records a status change on a stored order. The order store
// satisfies it.
type StatusSink interface {
	UpdateStatus(orderID, status string) error
}

// StatusPusher forwards a status event to the client that placed the
// booking. *dispatch.PushDispatcher satisfies it.
type StatusPusher interface {
	Push(sessionID string, ev models.OrderStatusEvent) error
}

// StatusConsumer tails the order-status topic inside the gateway process,
// keeping the local order history current and pushing each event out to
// the client's live connection.
type StatusConsumer struct {
	reader *kafka.Reader
	store  StatusSink
	push   StatusPusher
	log    *slog.Logger
}

func NewStatusConsumer(brokers []string, topic, group string, store StatusSink, push StatusPusher, log *slog.Logger) *StatusConsumer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	return &StatusConsumer{reader: r, store: store, push: push, log: log}
}

// Run consumes until ctx is cancelled, backing off on broker errors.
func (c *StatusConsumer) Run(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("status topic read error", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		c.handle(m.Value)
	}
}

func (c *StatusConsumer) handle(payload []byte) {
	var ev models.OrderStatusEvent
	if err := json.Unmarshal(payload, &ev); err != nil || ev.OrderID == "" {
		c.log.Warn("discarding malformed status event", "error", err)
		return
	}
	if err := c.store.UpdateStatus(ev.OrderID, ev.Status); err != nil {
		c.log.Warn("order status update failed", "order_id", ev.OrderID, "error", err)
	}
	if c.push != nil && ev.SessionID != "" {
		if err := c.push.Push(ev.SessionID, ev); err != nil {
			c.log.Debug("status push skipped", "order_id", ev.OrderID, "session_id", ev.SessionID, "error", err)
		}
	}
}

func (c *StatusConsumer) Close() error {
	return c.reader.Close()
}
