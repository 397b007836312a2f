package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultLedgerTTL = 72 * time.Hour

// EventLedger records provider event ids that were fully reconciled so
// redeliveries can be acknowledged without repeating side effects.
type EventLedger struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewEventLedger(redisClient *redis.Client, ttl time.Duration) *EventLedger {
	if ttl <= 0 {
		ttl = DefaultLedgerTTL
	}
	return &EventLedger{redisClient: redisClient, ttl: ttl}
}

func ledgerKey(eventID string) string {
	return fmt.Sprintf("evt:processed:%s", eventID)
}

// Seen reports whether eventID was already marked processed.
func (l *EventLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := l.redisClient.Exists(ctx, ledgerKey(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("checking event ledger: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed stores eventID for the ledger TTL. Marking twice is harmless.
func (l *EventLedger) MarkProcessed(ctx context.Context, eventID string) error {
	err := l.redisClient.SetNX(ctx, ledgerKey(eventID), time.Now().Unix(), l.ttl).Err()
	if err != nil {
		return fmt.Errorf("marking event processed: %w", err)
	}
	return nil
}
