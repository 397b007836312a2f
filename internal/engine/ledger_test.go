package engine

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestLedger(t *testing.T, ttl time.Duration) (*EventLedger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewEventLedger(client, ttl), mr
}

func TestEventLedger_UnseenByDefault(t *testing.T) {
	ledger, _ := setupTestLedger(t, time.Hour)

	seen, err := ledger.Seen(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Error("new event id should not be seen")
	}
}

func TestEventLedger_MarkThenSeen(t *testing.T) {
	ledger, _ := setupTestLedger(t, time.Hour)
	ctx := context.Background()

	if err := ledger.MarkProcessed(ctx, "evt_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Marking again must not fail
	if err := ledger.MarkProcessed(ctx, "evt_1"); err != nil {
		t.Fatalf("second mark failed: %v", err)
	}

	seen, err := ledger.Seen(ctx, "evt_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen {
		t.Error("marked event should be seen")
	}

	other, _ := ledger.Seen(ctx, "evt_2")
	if other {
		t.Error("ledger entries must be per event id")
	}
}

func TestEventLedger_Expires(t *testing.T) {
	ledger, mr := setupTestLedger(t, time.Minute)
	ctx := context.Background()

	if err := ledger.MarkProcessed(ctx, "evt_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	seen, _ := ledger.Seen(ctx, "evt_1")
	if seen {
		t.Error("entry should expire after the TTL")
	}
}

func TestEventLedger_DefaultTTL(t *testing.T) {
	ledger, mr := setupTestLedger(t, 0)

	if err := ledger.MarkProcessed(context.Background(), "evt_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ttl := mr.TTL(ledgerKey("evt_1")); ttl != DefaultLedgerTTL {
		t.Errorf("expected TTL %v, got %v", DefaultLedgerTTL, ttl)
	}
}
