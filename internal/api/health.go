package api

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler returns the health check handler. A failing database ping
// reports 503 so load balancers stop routing webhooks here.
func HealthHandler(db pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "healthy",
			Version:  "1.0.0",
			Database: "ok",
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}

		respondJSON(w, http.StatusOK, resp)
	}
}
