package api

import (
	"net/http"

	"github.com/google/uuid"
)

type ActivityHandler struct {
	store DashboardStore
}

func NewActivityHandler(s DashboardStore) *ActivityHandler {
	return &ActivityHandler{store: s}
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	contractorID := r.URL.Query().Get("contractor_id")
	limit := parseLimit(r.URL.Query().Get("limit"), 50)
	if contractorID != "" {
		if _, err := uuid.Parse(contractorID); err != nil {
			respondError(w, http.StatusBadRequest, "contractor_id must be a UUID")
			return
		}
	}

	activities, err := h.store.ListActivities(r.Context(), contractorID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list activities")
		return
	}

	respondJSON(w, http.StatusOK, activities)
}
