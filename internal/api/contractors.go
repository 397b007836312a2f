package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Priya8975/signalcore-billing/internal/billing"
	"github.com/Priya8975/signalcore-billing/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// DashboardStore is the read side used by the dashboard API.
type DashboardStore interface {
	Ping(ctx context.Context) error
	ListContractors(ctx context.Context, f domain.ContractorFilter) ([]domain.Contractor, error)
	GetContractor(ctx context.Context, id string) (*domain.Contractor, error)
	GetContractorByEmail(ctx context.Context, email string) (*domain.Contractor, error)
	ListActivities(ctx context.Context, contractorID string, limit int) ([]domain.Activity, error)
	BillingStats(ctx context.Context) (*domain.BillingStats, error)
}

type ContractorHandler struct {
	store DashboardStore
	tiers *billing.TierTable
}

// NewContractorHandler builds the contractor endpoints. When tiers is set,
// the tier filter must name a tier from the table.
func NewContractorHandler(s DashboardStore, tiers *billing.TierTable) *ContractorHandler {
	return &ContractorHandler{store: s, tiers: tiers}
}

// List returns contractors. An email parameter is an exact lookup on the
// natural key and returns at most one contractor.
func (h *ContractorHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if email := q.Get("email"); email != "" {
		c, err := h.store.GetContractorByEmail(r.Context(), billing.NormalizeEmail(email))
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to get contractor")
			return
		}
		out := []domain.Contractor{}
		if c != nil {
			out = append(out, *c)
		}
		respondJSON(w, http.StatusOK, out)
		return
	}

	filter := domain.ContractorFilter{
		Status: q.Get("status"),
		Tier:   q.Get("tier"),
		Search: q.Get("search"),
		Limit:  parseLimit(q.Get("limit"), 100),
	}

	switch filter.Status {
	case "", domain.StatusProspect, domain.StatusActive, domain.StatusChurned:
	default:
		respondError(w, http.StatusBadRequest, "status must be prospect, active or churned")
		return
	}
	if filter.Tier != "" && h.tiers != nil {
		if _, ok := h.tiers.Lookup(filter.Tier); !ok {
			respondError(w, http.StatusBadRequest, "unknown tier")
			return
		}
	}

	contractors, err := h.store.ListContractors(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list contractors")
		return
	}

	respondJSON(w, http.StatusOK, contractors)
}

func (h *ContractorHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusNotFound, "contractor not found")
		return
	}

	c, err := h.store.GetContractor(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get contractor")
		return
	}
	if c == nil {
		respondError(w, http.StatusNotFound, "contractor not found")
		return
	}

	activities, err := h.store.ListActivities(r.Context(), id, 20)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get activities")
		return
	}

	type contractorDetail struct {
		domain.Contractor
		Activities []domain.Activity `json:"activities"`
	}

	respondJSON(w, http.StatusOK, contractorDetail{
		Contractor: *c,
		Activities: activities,
	})
}

func parseLimit(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > 500 {
		return 500
	}
	return n
}
