package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fjod/smartcart/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const EventOrderCompleted = "order.completed"

// OrderPublisher announces completed orders to the outside world.
type OrderPublisher interface {
	PublishOrder(ctx context.Context, order domain.Order) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	log    *zap.Logger
}

func NewKafkaPublisher(topic string, log *zap.Logger, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, log: log}
}

func (p *KafkaPublisher) PublishOrder(ctx context.Context, order domain.Order) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order %s: %w", order.ID, err)
	}

	msg := kafka.Message{
		Key:   []byte(order.ID), // order id for partitioning
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderCompleted)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish order %s: %w", order.ID, err)
	}

	p.log.Debug("order published", zap.String("order_id", order.ID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop discards every order. It is used when no brokers are configured.
type Nop struct{}

func (Nop) PublishOrder(context.Context, domain.Order) error { return nil }
func (Nop) Close() error                                      { return nil }
