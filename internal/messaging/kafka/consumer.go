package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Inbox deduplicates handling per (consumer, message id).
type Inbox interface {
	Handle(ctx context.Context, consumer, messageID, messageType string, fn func(ctx context.Context) error) (bool, error)
}

type HandlerFunc func(ctx context.Context, payload []byte) error

// Consumer reads the events topic as one consumer group and dispatches the
// event types it has handlers for. Everything else is committed and skipped.
type Consumer struct {
	reader     messageReader
	inbox      Inbox
	name       string
	handlers   map[string]HandlerFunc
	retryDelay time.Duration
}

func NewConsumer(reader messageReader, inbox Inbox, name string) *Consumer {
	return &Consumer{
		reader:     reader,
		inbox:      inbox,
		name:       name,
		handlers:   map[string]HandlerFunc{},
		retryDelay: 2 * time.Second,
	}
}

func (c *Consumer) Handle(eventType string, fn HandlerFunc) {
	c.handlers[eventType] = fn
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error().Err(err).Str("consumer", c.name).Msg("kafka fetch failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}

		c.dispatch(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Str("consumer", c.name).Int64("offset", msg.Offset).Msg("kafka commit failed")
		}
	}
}

// dispatch never fails the loop: a handler error is logged and the message
// stays unrecorded in the inbox, so the owning job can re-drive it.
func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message) {
	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		log.Warn().Err(err).Str("consumer", c.name).Int64("offset", msg.Offset).Msg("undecodable event skipped")
		return
	}
	if env.EventType == "" {
		env.EventType = header(msg, headerEventType)
	}
	if env.EventID == "" {
		env.EventID = header(msg, headerEventID)
	}

	fn, ok := c.handlers[env.EventType]
	if !ok {
		return
	}
	if env.EventID == "" {
		log.Warn().Str("consumer", c.name).Str("eventType", env.EventType).Msg("event without id skipped")
		return
	}

	ran, err := c.inbox.Handle(ctx, c.name, env.EventID, env.EventType, func(ctx context.Context) error {
		return fn(ctx, env.Payload)
	})
	if err != nil {
		log.Error().Err(err).
			Str("consumer", c.name).
			Str("eventId", env.EventID).
			Str("eventType", env.EventType).
			Msg("event handling failed")
		return
	}
	if ran {
		log.Info().Str("consumer", c.name).Str("eventId", env.EventID).Str("eventType", env.EventType).Msg("event handled")
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
