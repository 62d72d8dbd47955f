package app

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

func newUUID() string {
	return uuid.NewString()
}

// newOrderNumber returns ORD-YYYYMMDD-XXXXXXXX.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}

// defaultPaymentKey is used when the caller does not send an idempotency key.
func defaultPaymentKey(orderNumber string, userID int64, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", orderNumber, userID, now.UTC().Format("20060102150405"))
}

func refundKey(returnRequestID string) string {
	return fmt.Sprintf("refund:%s:%s", returnRequestID, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func newOutboxMessage(eventType, aggregateID string, payload any, now time.Time) (domain.OutboxMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return domain.OutboxMessage{
		EventID:     newUUID(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     body,
		CreatedAt:   now,
	}, nil
}
