package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-marketplace/internal/common/logger"
	"food-marketplace/internal/domain"
)

type fakeSubscriber struct {
	deliveries chan amqp.Delivery
	bound      string
	exclusive  bool
}

func (f *fakeSubscriber) DeclareFanout(string) error { return nil }

func (f *fakeSubscriber) BindQueue(queue, exchange string, exclusive bool) (string, error) {
	f.bound = queue + "->" + exchange
	f.exclusive = exclusive
	return queue, nil
}

func (f *fakeSubscriber) Consume(string, string, int, bool) (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

type acker struct {
	acks, nacks int
}

func (a *acker) Ack(uint64, bool) error        { a.acks++; return nil }
func (a *acker) Nack(uint64, bool, bool) error { a.nacks++; return nil }
func (a *acker) Reject(uint64, bool) error     { return nil }

func TestNotify_LogsOneNotificationPerRecipient(t *testing.T) {
	o := &domain.Order{ID: "o-1", Number: "ORD_20261019_000001", Status: domain.StatusDelivered}
	ev := domain.NewEvent(o, domain.OrderDelivered{PartnerID: "drv-1", DeliveredAt: time.Now().UTC()}, time.Now().UTC())
	body, err := json.Marshal([]domain.Envelope{
		{Channel: domain.UserChannel("cust-1"), Event: ev},
		{Channel: domain.UserChannel("vend-1"), Event: ev},
	})
	require.NoError(t, err)

	ack := &acker{}
	sub := &fakeSubscriber{deliveries: make(chan amqp.Delivery, 2)}
	sub.deliveries <- amqp.Delivery{Acknowledger: ack, Body: body}
	sub.deliveries <- amqp.Delivery{Acknowledger: ack, Body: []byte("not json")}
	close(sub.deliveries)

	var buf bytes.Buffer
	ns := NewNotificatorService(sub, logger.NewWithWriter("notification-subscriber", &buf, logger.LevelInfo))
	require.NoError(t, ns.Notify(context.Background()))

	assert.Equal(t, NotificationsQueue+"->"+EventsExchange, sub.bound)
	assert.False(t, sub.exclusive)
	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, 1, ack.nacks)

	var recipients []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["action"] == "notification_sent" {
			recipients = append(recipients, entry["recipient"].(string))
			assert.Equal(t, "order_delivered", entry["event_type"])
		}
	}
	assert.Equal(t, []string{"user:cust-1", "user:vend-1"}, recipients)
}

func TestNotify_StopsWithContext(t *testing.T) {
	sub := &fakeSubscriber{deliveries: make(chan amqp.Delivery)}
	ns := NewNotificatorService(sub, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ns.Notify(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Notify did not return after cancel")
	}
}
