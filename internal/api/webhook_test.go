package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Priya8975/signalcore-billing/internal/billing"
	"github.com/Priya8975/signalcore-billing/internal/domain"
	"github.com/Priya8975/signalcore-billing/internal/metrics"
	"github.com/Priya8975/signalcore-billing/internal/store"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// countingStore records every call that reaches the data store.
type countingStore struct {
	*store.MemoryStore
	calls atomic.Int64
}

func (s *countingStore) UpsertContractor(ctx context.Context, up domain.ContractorUpsert) (*domain.UpsertResult, error) {
	s.calls.Add(1)
	return s.MemoryStore.UpsertContractor(ctx, up)
}

func (s *countingStore) MarkChurned(ctx context.Context, email string) (*domain.Contractor, error) {
	s.calls.Add(1)
	return s.MemoryStore.MarkChurned(ctx, email)
}

func (s *countingStore) InsertActivity(ctx context.Context, a domain.NewActivity) (*domain.Activity, error) {
	s.calls.Add(1)
	return s.MemoryStore.InsertActivity(ctx, a)
}

type errReconciler struct{}

func (errReconciler) Reconcile(ctx context.Context, ev billing.Event) (*billing.Outcome, error) {
	return nil, errors.New("upserting contractor a@b.com: connection refused")
}

type slowReconciler struct{ delay time.Duration }

func (r slowReconciler) Reconcile(ctx context.Context, ev billing.Event) (*billing.Outcome, error) {
	time.Sleep(r.delay)
	return &billing.Outcome{}, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, clientKey string, limit int) bool { return false }

func setupWebhook(t *testing.T, cfg WebhookConfig) (*WebhookHandler, *countingStore) {
	t.Helper()
	s := &countingStore{MemoryStore: store.NewMemoryStore()}
	r := billing.NewReconciler(s, s, billing.DefaultTierTable(), billing.ReconcilerConfig{}, testLogger())
	return NewWebhookHandler(cfg, r, nil, testLogger()), s
}

func signedRequest(t *testing.T, body string, ts time.Time) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(body))
	req.Header.Set(SignatureHeader, billing.SignPayload([]byte(body), testSecret, ts))
	return req
}

const checkoutBody = `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"customer_details":{"email":"a@b.com","name":"Acme HVAC"},"amount_total":450000}}}`

func TestWebhook_MethodNotAllowed(t *testing.T) {
	h, s := setupWebhook(t, WebhookConfig{Secret: testSecret})

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/api/webhooks/stripe", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
	}
	assert.Zero(t, s.calls.Load())
}

func TestWebhook_MissingSecret(t *testing.T) {
	h, s := setupWebhook(t, WebhookConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, checkoutBody, time.Now()))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Zero(t, s.calls.Load())
}

func TestWebhook_MissingSignature(t *testing.T) {
	h, s := setupWebhook(t, WebhookConfig{Secret: testSecret})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(checkoutBody)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, s.calls.Load())
}

func TestWebhook_InvalidSignatureTouchesNoStore(t *testing.T) {
	h, s := setupWebhook(t, WebhookConfig{Secret: testSecret})

	headers := []string{
		"t=1700000000,v1=deadbeef",
		"v1=abc",
		"t=1700000000",
		"garbage",
		billing.SignPayload([]byte(checkoutBody), "whsec_wrong", time.Now()),
	}
	for _, header := range headers {
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(checkoutBody))
		req.Header.Set(SignatureHeader, header)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, header)
	}

	// Tampered body under an otherwise valid signature.
	tampered := strings.Replace(checkoutBody, "450000", "450001", 1)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(tampered))
	req.Header.Set(SignatureHeader, billing.SignPayload([]byte(checkoutBody), testSecret, time.Now()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, s.calls.Load(), "rejected requests must not reach the store")
}

func TestWebhook_ValidCheckout(t *testing.T) {
	h, s := setupWebhook(t, WebhookConfig{Secret: testSecret})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, checkoutBody, time.Now()))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp["received"])

	c, err := s.GetContractorByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, billing.TierExecutive, c.Tier)
	assert.Equal(t, int64(5000), c.MonthlyFee)
	assert.Equal(t, domain.StatusActive, c.Status)
}

func TestWebhook_RedeliveryIsIdempotent(t *testing.T) {
	h, s := setupWebhook(t, WebhookConfig{Secret: testSecret})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, signedRequest(t, checkoutBody, time.Now()))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	all, err := s.ListContractors(context.Background(), domain.ContractorFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, billing.TierExecutive, all[0].Tier)
	assert.Equal(t, int64(5000), all[0].MonthlyFee)
}

func TestWebhook_UnrecognizedEventAcknowledged(t *testing.T) {
	h, s := setupWebhook(t, WebhookConfig{Secret: testSecret})

	body := `{"id":"evt_2","type":"customer.created","data":{"object":{}}}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, body, time.Now()))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	assert.Zero(t, s.calls.Load())
}

func TestWebhook_CancellationWithoutContractor(t *testing.T) {
	h, _ := setupWebhook(t, WebhookConfig{Secret: testSecret})

	body := `{"id":"evt_3","type":"customer.subscription.deleted","data":{"object":{"customer_email":"nobody@example.com"}}}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, body, time.Now()))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook_UndecodablePayload(t *testing.T) {
	h, s := setupWebhook(t, WebhookConfig{Secret: testSecret})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, `{"type":"invoice.paid"}`, time.Now()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, s.calls.Load())
}

func TestWebhook_ReconcileErrorIs500(t *testing.T) {
	h := NewWebhookHandler(WebhookConfig{Secret: testSecret}, errReconciler{}, nil, testLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, checkoutBody, time.Now()))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestWebhook_SignatureTolerance(t *testing.T) {
	h, s := setupWebhook(t, WebhookConfig{Secret: testSecret, SignatureTolerance: 5 * time.Minute})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, checkoutBody, now.Add(-10*time.Minute)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, s.calls.Load())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, checkoutBody, now.Add(-time.Minute)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook_OldTimestampAcceptedWithoutTolerance(t *testing.T) {
	h, _ := setupWebhook(t, WebhookConfig{Secret: testSecret})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, checkoutBody, time.Unix(1600000000, 0)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook_RateLimited(t *testing.T) {
	s := &countingStore{MemoryStore: store.NewMemoryStore()}
	r := billing.NewReconciler(s, s, nil, billing.ReconcilerConfig{}, testLogger())
	h := NewWebhookHandler(WebhookConfig{Secret: testSecret, RateLimit: 1}, r, denyLimiter{}, testLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, checkoutBody, time.Now()))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Zero(t, s.calls.Load())
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	h, _ := setupWebhook(t, WebhookConfig{Secret: testSecret})

	body := `{"id":"evt_big","pad":"` + strings.Repeat("x", maxWebhookBody) + `"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, body, time.Now()))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func reconcileHistogram(t *testing.T) (uint64, float64) {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.ReconcileDuration.Write(&m))
	return m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum()
}

func TestWebhook_ReconcileDurationInSeconds(t *testing.T) {
	h := NewWebhookHandler(WebhookConfig{Secret: testSecret}, slowReconciler{delay: 20 * time.Millisecond}, nil, testLogger())

	countBefore, sumBefore := reconcileHistogram(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, checkoutBody, time.Now()))
	require.Equal(t, http.StatusOK, rec.Code)

	countAfter, sumAfter := reconcileHistogram(t)
	assert.Equal(t, countBefore+1, countAfter)

	observed := sumAfter - sumBefore
	assert.GreaterOrEqual(t, observed, 0.02)
	assert.Less(t, observed, 5.0, "duration should be recorded in seconds")
}
