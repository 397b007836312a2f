package api

import (
	"context"
	"net/http"

	"github.com/Priya8975/signalcore-billing/internal/billing"
	"github.com/Priya8975/signalcore-billing/internal/domain"
	"github.com/Priya8975/signalcore-billing/internal/engine"
)

// CircuitStater reports the mail service circuit for the dashboard.
type CircuitStater interface {
	GetState(ctx context.Context, dependency string) engine.CircuitBreakerState
}

type DashboardHandler struct {
	store   DashboardStore
	tiers   *billing.TierTable
	cb      CircuitStater
	cbKey   string
	clients func() int
}

func NewDashboardHandler(s DashboardStore, tiers *billing.TierTable, cb CircuitStater, cbKey string, clients func() int) *DashboardHandler {
	return &DashboardHandler{store: s, tiers: tiers, cb: cb, cbKey: cbKey, clients: clients}
}

// Stats returns contractor and revenue figures for the dashboard.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.BillingStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	type statsResponse struct {
		domain.BillingStats
		MailCircuit      *engine.CircuitBreakerState `json:"mail_circuit,omitempty"`
		WebSocketClients int                         `json:"websocket_clients"`
	}

	resp := statsResponse{BillingStats: *stats}
	if h.cb != nil {
		state := h.cb.GetState(r.Context(), h.cbKey)
		resp.MailCircuit = &state
	}
	if h.clients != nil {
		resp.WebSocketClients = h.clients()
	}

	respondJSON(w, http.StatusOK, resp)
}

// Tiers returns the pricing table in use, highest tier first.
func (h *DashboardHandler) Tiers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.tiers.Tiers())
}
