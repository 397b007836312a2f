package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Circuit breaker states
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// CircuitBreaker guards an outbound dependency (the mail service) with state
// kept in a Redis hash, so every server instance sees the same circuit.
// State transitions: closed → open → half-open → closed
//
// - Closed: calls go through and failures are counted.
// - Open: calls are rejected until the cooldown has elapsed.
// - Half-Open: a trial call is allowed. Success closes, failure re-opens.
type CircuitBreaker struct {
	redisClient      *redis.Client
	logger           *slog.Logger
	failureThreshold int
	cooldownPeriod   time.Duration
}

// CircuitBreakerState is the reported state of one dependency's circuit.
type CircuitBreakerState struct {
	State        string `json:"state"`
	Failures     int    `json:"failures"`
	LastFailedAt string `json:"last_failed_at,omitempty"`
}

func NewCircuitBreaker(redisClient *redis.Client, logger *slog.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		redisClient:      redisClient,
		logger:           logger,
		failureThreshold: 5,
		cooldownPeriod:   30 * time.Second,
	}
}

// WithThresholds overrides the failure threshold and cooldown.
func (cb *CircuitBreaker) WithThresholds(failures int, cooldown time.Duration) *CircuitBreaker {
	if failures > 0 {
		cb.failureThreshold = failures
	}
	if cooldown > 0 {
		cb.cooldownPeriod = cooldown
	}
	return cb
}

func cbKey(dependency string) string {
	return fmt.Sprintf("cb:%s", dependency)
}

// AllowRequest checks if a call to the dependency may proceed and returns
// the current state.
func (cb *CircuitBreaker) AllowRequest(ctx context.Context, dependency string) (string, bool) {
	key := cbKey(dependency)

	data, err := cb.redisClient.HGetAll(ctx, key).Result()
	if err != nil || len(data) == 0 {
		// No state yet, or Redis unavailable: treat as closed.
		return StateClosed, true
	}

	state := data["state"]
	lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)

	switch state {
	case StateOpen:
		if time.Now().Unix()-lastFailedAt >= int64(cb.cooldownPeriod.Seconds()) {
			cb.redisClient.HSet(ctx, key, "state", StateHalfOpen)
			cb.logger.Info("circuit breaker half-open",
				"dependency", dependency,
			)
			return StateHalfOpen, true
		}
		return StateOpen, false

	case StateHalfOpen:
		return StateHalfOpen, true

	default:
		return StateClosed, true
	}
}

// RecordSuccess resets the circuit to closed.
func (cb *CircuitBreaker) RecordSuccess(ctx context.Context, dependency string) {
	key := cbKey(dependency)

	state, _ := cb.redisClient.HGet(ctx, key, "state").Result()

	cb.redisClient.HSet(ctx, key,
		"state", StateClosed,
		"failures", 0,
	)

	if state == StateHalfOpen {
		cb.logger.Info("circuit breaker closed (recovered)",
			"dependency", dependency,
		)
	}
}

// RecordFailure counts a failed call and opens the circuit at the threshold.
func (cb *CircuitBreaker) RecordFailure(ctx context.Context, dependency string) {
	key := cbKey(dependency)

	// Increment failure count atomically
	failures, err := cb.redisClient.HIncrBy(ctx, key, "failures", 1).Result()
	if err != nil {
		cb.logger.Error("failed to record circuit breaker failure", "error", err)
		return
	}

	cb.redisClient.HSet(ctx, key, "last_failed_at", time.Now().Unix())

	state, _ := cb.redisClient.HGet(ctx, key, "state").Result()

	if state == StateHalfOpen {
		// Half-open test failed → back to open
		cb.redisClient.HSet(ctx, key, "state", StateOpen)
		cb.logger.Warn("circuit breaker re-opened (half-open test failed)",
			"dependency", dependency,
		)
	} else if failures >= int64(cb.failureThreshold) {
		// Threshold reached → open the circuit
		cb.redisClient.HSet(ctx, key, "state", StateOpen)
		cb.logger.Warn("circuit breaker opened",
			"dependency", dependency,
			"failures", failures,
			"threshold", cb.failureThreshold,
		)
	} else {
		// Ensure state is set to closed if not already set
		if state == "" {
			cb.redisClient.HSet(ctx, key, "state", StateClosed)
		}
	}
}

// GetState returns the current circuit breaker state for a dependency.
func (cb *CircuitBreaker) GetState(ctx context.Context, dependency string) CircuitBreakerState {
	key := cbKey(dependency)

	data, err := cb.redisClient.HGetAll(ctx, key).Result()
	if err != nil || len(data) == 0 {
		return CircuitBreakerState{State: StateClosed, Failures: 0}
	}

	failures, _ := strconv.Atoi(data["failures"])
	state := data["state"]
	if state == "" {
		state = StateClosed
	}

	// Check if open circuit should transition to half-open
	if state == StateOpen {
		lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
		if time.Now().Unix()-lastFailedAt >= int64(cb.cooldownPeriod.Seconds()) {
			state = StateHalfOpen
		}
	}

	result := CircuitBreakerState{
		State:    state,
		Failures: failures,
	}

	if ts, ok := data["last_failed_at"]; ok && ts != "" {
		lastFailed, _ := strconv.ParseInt(ts, 10, 64)
		if lastFailed > 0 {
			result.LastFailedAt = time.Unix(lastFailed, 0).Format(time.RFC3339)
		}
	}

	return result
}
