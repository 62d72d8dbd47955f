package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher relays outbox messages to the events topic. Messages are keyed
// by aggregate id so events for one order stay on one partition.
type Publisher struct {
	writer messageWriter
}

func NewPublisher(w messageWriter) *Publisher {
	return &Publisher{writer: w}
}

func (p *Publisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	value, err := json.Marshal(Envelope{
		EventID:     msg.EventID,
		EventType:   msg.EventType,
		AggregateID: msg.AggregateID,
		OccurredAt:  msg.CreatedAt.UTC(),
		Payload:     msg.Payload,
	})
	if err != nil {
		return fmt.Errorf("encode event %s: %w", msg.EventID, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.AggregateID),
		Value: value,
		Time:  msg.CreatedAt.UTC(),
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(msg.EventType)},
			{Key: headerEventID, Value: []byte(msg.EventID)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish event %s: %w", msg.EventID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
