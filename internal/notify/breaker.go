package notify

import (
	"context"
	"errors"
)

var ErrCircuitOpen = errors.New("mail service circuit open")

// Breaker is the circuit breaker contract implemented by engine.CircuitBreaker.
type Breaker interface {
	AllowRequest(ctx context.Context, key string) (string, bool)
	RecordSuccess(ctx context.Context, key string)
	RecordFailure(ctx context.Context, key string)
}

// GuardedSender skips the mail service while its circuit is open.
type GuardedSender struct {
	next    Sender
	breaker Breaker
	key     string
}

func NewGuardedSender(next Sender, breaker Breaker, key string) *GuardedSender {
	return &GuardedSender{next: next, breaker: breaker, key: key}
}

func (g *GuardedSender) Send(ctx context.Context, msg Message) (string, error) {
	if _, ok := g.breaker.AllowRequest(ctx, g.key); !ok {
		return "", ErrCircuitOpen
	}

	id, err := g.next.Send(ctx, msg)
	if err != nil {
		g.breaker.RecordFailure(ctx, g.key)
		return "", err
	}
	g.breaker.RecordSuccess(ctx, g.key)
	return id, nil
}
