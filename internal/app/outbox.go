package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/clock"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

const (
	defaultOutboxBatch      = 50
	defaultOutboxMaxRetries = 10
	maxLastErrorLen         = 2000
)

// enqueue writes an outbox row on the transaction carried by ctx.
func enqueue(ctx context.Context, repo OutboxRepository, eventType, aggregateID string, payload any, now time.Time) error {
	msg, err := newOutboxMessage(eventType, aggregateID, payload, now)
	if err != nil {
		return err
	}
	if err := repo.EnqueueOutbox(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s: %w", eventType, err)
	}
	return nil
}

// OutboxRelay publishes committed outbox rows. Rows are locked with SKIP
// LOCKED by the repository so several relays may run side by side.
type OutboxRelay struct {
	tx         Transactor
	repo       OutboxRepository
	publisher  EventPublisher
	clock      clock.Clock
	batchSize  int
	maxRetries int
}

type OutboxRelayOption func(*OutboxRelay)

func WithRelayBatchSize(n int) OutboxRelayOption {
	return func(r *OutboxRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithRelayMaxRetries(n int) OutboxRelayOption {
	return func(r *OutboxRelay) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

func NewOutboxRelay(tx Transactor, repo OutboxRepository, publisher EventPublisher, clk clock.Clock, opts ...OutboxRelayOption) *OutboxRelay {
	r := &OutboxRelay{
		tx:         tx,
		repo:       repo,
		publisher:  publisher,
		clock:      clk,
		batchSize:  defaultOutboxBatch,
		maxRetries: defaultOutboxMaxRetries,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RelayResult counts one relay pass.
type RelayResult struct {
	Published int
	Failed    int
}

// RelayOnce publishes one batch. Publish failures are recorded on the row
// and do not fail the pass.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (RelayResult, error) {
	var res RelayResult
	err := r.tx.WithTx(ctx, func(txCtx context.Context) error {
		msgs, err := r.repo.FetchPendingOutbox(txCtx, r.batchSize, r.maxRetries)
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			if pubErr := r.publisher.Publish(txCtx, msg); pubErr != nil {
				log.Warn().Err(pubErr).
					Str("eventId", msg.EventID).
					Str("eventType", msg.EventType).
					Int("retryCount", msg.RetryCount+1).
					Msg("outbox publish failed")
				if err := r.repo.MarkOutboxFailed(txCtx, msg.ID, truncate(pubErr.Error(), maxLastErrorLen)); err != nil {
					return err
				}
				res.Failed++
				continue
			}
			if err := r.repo.MarkOutboxProcessed(txCtx, msg.ID, r.clock.Now()); err != nil {
				return err
			}
			res.Published++
		}
		return nil
	})
	if err != nil {
		return RelayResult{}, err
	}
	return res, nil
}

// Run relays on every tick until ctx is done.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration, obs JobObserver) {
	runEvery(ctx, interval, JobOutboxRelay, obs, func(ctx context.Context) (int, error) {
		res, err := r.RelayOnce(ctx)
		if err == nil && (res.Published > 0 || res.Failed > 0) {
			log.Info().Int("published", res.Published).Int("failed", res.Failed).Msg("outbox relayed")
		}
		return res.Published, err
	})
}

// InboxProcessor gives a consumer at-most-once handling per message id.
type InboxProcessor struct {
	repo  InboxRepository
	clock clock.Clock
}

func NewInboxProcessor(repo InboxRepository, clk clock.Clock) *InboxProcessor {
	return &InboxProcessor{repo: repo, clock: clk}
}

// Handle runs fn unless (consumer, messageID) was already handled. A handler
// error leaves the message unrecorded so redelivery retries it. It reports
// whether fn ran.
func (p *InboxProcessor) Handle(ctx context.Context, consumer, messageID, messageType string, fn func(ctx context.Context) error) (bool, error) {
	seen, err := p.repo.InboxSeen(ctx, consumer, messageID)
	if err != nil {
		return false, err
	}
	if seen {
		log.Debug().Str("consumer", consumer).Str("messageId", messageID).Msg("duplicate message skipped")
		return false, nil
	}

	if err := fn(ctx); err != nil {
		return true, err
	}

	recorded, err := p.repo.RecordInbox(ctx, domain.InboxMessage{
		ConsumerName: consumer,
		MessageID:    messageID,
		MessageType:  messageType,
		ProcessedAt:  p.clock.Now(),
	})
	if err != nil {
		return true, err
	}
	if !recorded {
		log.Info().Str("consumer", consumer).Str("messageId", messageID).Msg("message recorded concurrently by another consumer")
	}
	return true, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// runEvery calls fn immediately and then on every tick until ctx is done.
// obs may be nil.
func runEvery(ctx context.Context, interval time.Duration, name string, obs JobObserver, fn func(ctx context.Context) (int, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := fn(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Error().Err(err).Str("job", name).Msg("job pass failed")
		}
		if obs != nil {
			obs.ObserveJob(name, n, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
