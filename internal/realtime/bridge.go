package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"food-marketplace/internal/common/logger"
	"food-marketplace/internal/common/metrics"
	"food-marketplace/internal/domain"
)

const (
	EventsExchange = "order_events_fanout"
	publishTimeout = 5 * time.Second
	sourceHeader   = "x-source"
)

// Broker is the part of the RabbitMQ client the bridge needs.
type Broker interface {
	DeclareFanout(exchange string) error
	BindQueue(queue, exchange string, exclusive bool) (string, error)
	Consume(queue, consumer string, prefetch int, autoAck bool) (<-chan amqp.Delivery, error)
	Publish(ctx context.Context, exchange, key string, body []byte, headers amqp.Table, contentType string, persistent bool) error
}

// ErrConsumerClosed is returned by Run when the broker closes the delivery
// channel. Local delivery keeps working; events from other instances stop
// arriving until Run is started again.
var ErrConsumerClosed = errors.New("broker closed the event consumer")

// Bridge spreads envelopes to every instance. Dispatch delivers to this
// instance's sessions right away and publishes one message per command to the
// fanout exchange. Run feeds what other instances published into the local
// dispatcher and skips this instance's own messages by their x-source header.
type Bridge struct {
	broker   Broker
	local    Dispatcher
	instance string
	metrics  *metrics.RealtimeMetrics
	log      *logger.Logger
}

func NewBridge(b Broker, local Dispatcher, instance string, m *metrics.RealtimeMetrics, lg *logger.Logger) *Bridge {
	return &Bridge{broker: b, local: local, instance: instance, metrics: m, log: lg}
}

func (b *Bridge) Dispatch(envs []domain.Envelope) {
	if len(envs) == 0 {
		return
	}
	b.local.Dispatch(envs)

	body, err := json.Marshal(envs)
	if err != nil {
		b.metrics.Bridged.WithLabelValues("out", "error").Inc()
		b.log.Error("bridge_encode_failed", err, map[string]any{"order_id": envs[0].Event.OrderID})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	headers := amqp.Table{sourceHeader: b.instance, "x-order-id": envs[0].Event.OrderID}
	if err := b.broker.Publish(ctx, EventsExchange, "", body, headers, "application/json", false); err != nil {
		b.metrics.Bridged.WithLabelValues("out", "error").Inc()
		b.log.Error("bridge_publish_failed", err, map[string]any{"order_id": envs[0].Event.OrderID, "events": len(envs)})
		return
	}
	b.metrics.Bridged.WithLabelValues("out", "ok").Inc()
}

// Run declares the exchange and this instance's queue and consumes until ctx
// is done. A closed delivery channel is reported as ErrConsumerClosed.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.broker.DeclareFanout(EventsExchange); err != nil {
		return err
	}
	queue, err := b.broker.BindQueue("", EventsExchange, true)
	if err != nil {
		return err
	}
	msgs, err := b.broker.Consume(queue, "realtime-"+b.instance, 0, true)
	if err != nil {
		return err
	}
	b.log.Info("bridge_consuming", map[string]any{"queue": queue, "exchange": EventsExchange})

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return ErrConsumerClosed
			}
			if src, _ := msg.Headers[sourceHeader].(string); src == b.instance {
				continue
			}
			b.handle(msg.Body)
		}
	}
}

func (b *Bridge) handle(body []byte) {
	var envs []domain.Envelope
	if err := json.Unmarshal(body, &envs); err != nil {
		b.metrics.Bridged.WithLabelValues("in", "error").Inc()
		b.log.Error("bridge_decode_failed", err, nil)
		return
	}
	b.metrics.Bridged.WithLabelValues("in", "ok").Inc()
	b.local.Dispatch(envs)
}
