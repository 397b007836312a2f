package api

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Priya8975/signalcore-billing/internal/billing"
	"github.com/Priya8975/signalcore-billing/internal/metrics"
)

const (
	SignatureHeader = "Stripe-Signature"
	maxWebhookBody  = 1 << 20
)

// Reconciler applies a verified, classified event.
type Reconciler interface {
	Reconcile(ctx context.Context, ev billing.Event) (*billing.Outcome, error)
}

// Limiter is a per-client request limiter.
type Limiter interface {
	Allow(ctx context.Context, clientKey string, limit int) bool
}

// WebhookConfig is the part of the process configuration the webhook needs.
type WebhookConfig struct {
	Secret             string
	SignatureTolerance time.Duration
	RateLimit          int
}

// WebhookHandler receives payment-provider webhooks. Response codes follow
// webhook retry semantics: 2xx stops redelivery, anything else retries.
type WebhookHandler struct {
	cfg        WebhookConfig
	reconciler Reconciler
	limiter    Limiter
	logger     *slog.Logger
	now        func() time.Time
}

func NewWebhookHandler(cfg WebhookConfig, reconciler Reconciler, limiter Limiter, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		cfg:        cfg,
		reconciler: reconciler,
		limiter:    limiter,
		logger:     logger,
		now:        time.Now,
	}
}

type receivedResponse struct {
	Received bool `json:"received"`
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.cfg.Secret == "" {
		h.logger.Error("webhook signing secret is not configured")
		metrics.WebhooksRejected.WithLabelValues("misconfigured").Inc()
		respondError(w, http.StatusInternalServerError, "server configuration error")
		return
	}

	if h.limiter != nil && h.cfg.RateLimit > 0 && !h.limiter.Allow(r.Context(), clientKey(r), h.cfg.RateLimit) {
		metrics.WebhooksRejected.WithLabelValues("rate_limited").Inc()
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	// Signatures cover the exact bytes sent, so the body is read raw and
	// verified before any JSON decoding.
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(rawBody) > maxWebhookBody {
		metrics.WebhooksRejected.WithLabelValues("too_large").Inc()
		respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		metrics.WebhooksRejected.WithLabelValues("missing_signature").Inc()
		respondError(w, http.StatusBadRequest, "missing signature")
		return
	}

	if !billing.VerifySignature(rawBody, signature, h.cfg.Secret) {
		h.logger.Warn("invalid webhook signature", "remote_addr", r.RemoteAddr)
		metrics.WebhooksRejected.WithLabelValues("invalid_signature").Inc()
		respondError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	if h.cfg.SignatureTolerance > 0 && !h.withinTolerance(signature) {
		h.logger.Warn("webhook signature timestamp outside tolerance", "remote_addr", r.RemoteAddr)
		metrics.WebhooksRejected.WithLabelValues("stale_signature").Inc()
		respondError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	event, err := billing.ParseEvent(rawBody)
	if err != nil {
		h.logger.Warn("undecodable webhook payload", "error", err)
		metrics.WebhooksRejected.WithLabelValues("invalid_payload").Inc()
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	metrics.WebhooksReceived.WithLabelValues(event.EventType()).Inc()

	if u, ok := event.(billing.Unrecognized); ok {
		h.logger.Info("webhook acknowledged without reconciliation",
			"event_id", u.ID,
			"event_type", u.Type,
			"reason", u.Reason,
		)
	}

	start := time.Now()
	outcome, err := h.reconciler.Reconcile(r.Context(), event)
	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		h.logger.Error("webhook reconciliation failed",
			"error", err,
			"event_id", event.EventID(),
			"event_type", event.EventType(),
		)
		metrics.EventsReconciled.WithLabelValues(string(event.Kind()), "error").Inc()
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics.EventsReconciled.WithLabelValues(string(event.Kind()), outcomeLabel(outcome)).Inc()
	h.logger.Info("webhook processed",
		"event_id", outcome.EventID,
		"event_type", event.EventType(),
		"kind", outcome.Kind,
		"tier", outcome.Tier,
		"contractor_id", outcome.ContractorID,
		"created", outcome.Created,
		"duplicate", outcome.Duplicate,
	)

	respondJSON(w, http.StatusOK, receivedResponse{Received: true})
}

func (h *WebhookHandler) withinTolerance(signature string) bool {
	sh, err := billing.ParseSignatureHeader(signature)
	if err != nil {
		return false
	}
	ts, err := sh.Time()
	if err != nil {
		return false
	}
	skew := h.now().Sub(ts)
	if skew < 0 {
		skew = -skew
	}
	return skew <= h.cfg.SignatureTolerance
}

func outcomeLabel(o *billing.Outcome) string {
	switch {
	case o.Duplicate:
		return "duplicate"
	case o.NoOp:
		return "no_op"
	case o.Created:
		return "created"
	default:
		return "updated"
	}
}

// clientKey identifies the caller for rate limiting. RealIP middleware has
// already rewritten RemoteAddr when a proxy header is present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
