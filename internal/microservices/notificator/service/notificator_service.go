package service

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"food-marketplace/internal/common/logger"
	"food-marketplace/internal/domain"
)

const (
	NotificationsQueue = "notifications_queue"
	EventsExchange     = "order_events_fanout"
)

// Subscriber is the part of the RabbitMQ client the notificator needs.
type Subscriber interface {
	DeclareFanout(exchange string) error
	BindQueue(queue, exchange string, exclusive bool) (string, error)
	Consume(queue, consumer string, prefetch int, autoAck bool) (<-chan amqp.Delivery, error)
}

// NotificatorService turns order events into user notifications. Push
// delivery is not wired, so a notification is a structured log line per
// recipient channel.
type NotificatorService struct {
	rmq Subscriber
	log *logger.Logger
}

func NewNotificatorService(rmq Subscriber, lg *logger.Logger) *NotificatorService {
	return &NotificatorService{rmq: rmq, log: lg}
}

// Notify consumes the durable notifications queue until ctx is done or the
// broker closes the delivery channel.
func (ns *NotificatorService) Notify(ctx context.Context) error {
	if err := ns.rmq.DeclareFanout(EventsExchange); err != nil {
		return err
	}
	queue, err := ns.rmq.BindQueue(NotificationsQueue, EventsExchange, false)
	if err != nil {
		return err
	}
	msgs, err := ns.rmq.Consume(queue, "notificator", 10, false)
	if err != nil {
		return err
	}
	ns.log.Info("notificator_consuming", map[string]any{"queue": queue})

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			ns.handle(msg)
		}
	}
}

func (ns *NotificatorService) handle(msg amqp.Delivery) {
	var envs []domain.Envelope
	if err := json.Unmarshal(msg.Body, &envs); err != nil {
		ns.log.Error("notification_decode_failed", err, map[string]any{"message_id": msg.MessageId})
		// poison message, do not requeue
		_ = msg.Nack(false, false)
		return
	}
	for _, env := range envs {
		ns.log.Info("notification_sent", map[string]any{
			"recipient":    env.Channel.String(),
			"event_type":   env.Event.Type,
			"order_id":     env.Event.OrderID,
			"order_number": env.Event.OrderNumber,
			"status":       env.Event.Status,
		})
	}
	_ = msg.Ack(false)
}
