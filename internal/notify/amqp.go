// Package notify republishes committed order updates to a RabbitMQ
// fanout exchange for collaborators outside the websocket fleet
// (printers, dashboards, auditing). It is an ordinary hub subscriber:
// the in-process hub stays the one broadcast path for role views.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"cafe-system/internal/hub"
)

const exchange = "orders_fanout"

type Bridge struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  *zap.Logger
}

func Dial(host string, port int, user, pass string, log *zap.Logger) (*Bridge, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/", user, pass, host, port)
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Bridge{conn: conn, ch: ch, log: log}, nil
}

func (b *Bridge) Close() {
	if b == nil {
		return
	}
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
}

// Run consumes the subscription until ctx is cancelled. Publish
// failures are logged and skipped; the broker is an optional sink and
// must never block the live feed.
func (b *Bridge) Run(ctx context.Context, sub *hub.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case order, ok := <-sub.C:
			if !ok {
				return
			}
			body, err := json.Marshal(order)
			if err != nil {
				b.log.Error("encode order update", zap.Error(err))
				continue
			}
			err = b.ch.PublishWithContext(ctx, exchange, "", false, false, amqp.Publishing{
				DeliveryMode: amqp.Persistent,
				ContentType:  "application/json",
				Timestamp:    time.Now().UTC(),
				Body:         body,
			})
			if err != nil {
				b.log.Error("publish order update", zap.String("order", order.ID), zap.Error(err))
			}
		}
	}
}
