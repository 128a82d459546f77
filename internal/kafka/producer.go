package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// PurchaseEvent is published on every purchase lifecycle change. The
// notifications worker consumes these to send confirmation emails.
type PurchaseEvent struct {
	Type         string    `json:"type"`
	SessionID    string    `json:"session_id"`
	PurchaseHash string    `json:"purchase_hash"`
	Method       string    `json:"method"`
	TotalCost    float64   `json:"total_cost"`
	Emails       []string  `json:"emails"`
	OccurredAt   time.Time `json:"occurred_at"`
}

const (
	EventPurchaseCreated = "purchase_created"
	EventPaymentSuccess  = "payment_succeeded"
	EventPaymentFailed   = "payment_failed"
	EventPaymentTimeout  = "payment_timeout"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

// PurchasePublisher binds a producer to the purchase lifecycle topic.
type PurchasePublisher struct {
	producer *Producer
	topic    string
}

func NewPurchasePublisher(producer *Producer, topic string) *PurchasePublisher {
	return &PurchasePublisher{producer: producer, topic: topic}
}

func (p *PurchasePublisher) Publish(ctx context.Context, key string, event PurchaseEvent) error {
	return p.producer.Publish(ctx, p.topic, key, event)
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
