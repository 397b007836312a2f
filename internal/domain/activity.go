package domain

import "time"

type Activity struct {
	ID           string    `json:"id"`
	ContractorID *string   `json:"contractor_id,omitempty"`
	Action       string    `json:"action"`
	Details      string    `json:"details"`
	CreatedAt    time.Time `json:"created_at"`
}

type NewActivity struct {
	ContractorID *string
	Action       string
	Details      string
}

// BillingStats holds aggregated contractor figures for the dashboard.
type BillingStats struct {
	TotalContractors int            `json:"total_contractors"`
	ByStatus         map[string]int `json:"by_status"`
	ByTier           map[string]int `json:"by_tier"`
	MonthlyRevenue   int64          `json:"monthly_recurring_revenue"`
	RecentActivities int            `json:"activities_last_24h"`
}
