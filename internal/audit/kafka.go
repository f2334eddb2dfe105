package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// KafkaProcessor publishes audit records keyed by order ID, so every change
// of one order lands on the same partition in order.
type KafkaProcessor struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaProcessor(producer sarama.SyncProducer, topic string) *KafkaProcessor {
	return &KafkaProcessor{producer: producer, topic: topic}
}

// NewSaramaProducer builds the synchronous producer used by KafkaProcessor.
func NewSaramaProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Timeout = 5 * time.Second
	config.Producer.Retry.Max = 3
	return sarama.NewSyncProducer(brokers, config)
}

func (p *KafkaProcessor) Process(_ context.Context, batch []Record) error {
	msgs := make([]*sarama.ProducerMessage, 0, len(batch))
	for _, rec := range batch {
		body, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal audit record %s: %w", rec.OrderID, err)
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic:     p.topic,
			Key:       sarama.StringEncoder(rec.OrderID),
			Value:     sarama.ByteEncoder(body),
			Timestamp: rec.Timestamp,
		})
	}
	if err := p.producer.SendMessages(msgs); err != nil {
		return fmt.Errorf("kafka processor: %w", err)
	}
	return nil
}

func (p *KafkaProcessor) Close() error {
	return p.producer.Close()
}
