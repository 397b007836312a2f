package store

import (
	"context"
	"fmt"

	"github.com/Priya8975/signalcore-billing/internal/domain"
)

// BillingStats returns aggregated contractor statistics from the database.
func (s *PostgresStore) BillingStats(ctx context.Context) (*domain.BillingStats, error) {
	stats := domain.BillingStats{
		ByStatus: map[string]int{},
		ByTier:   map[string]int{},
	}

	// Totals and recurring revenue from active contractors
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(monthly_fee) FILTER (WHERE status = 'active'), 0) AS mrr
		FROM contractors
	`).Scan(&stats.TotalContractors, &stats.MonthlyRevenue)
	if err != nil {
		return nil, fmt.Errorf("querying contractor totals: %w", err)
	}

	if err := s.countBy(ctx, "status", stats.ByStatus); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "tier", stats.ByTier); err != nil {
		return nil, err
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM activities WHERE created_at > NOW() - INTERVAL '24 hours'
	`).Scan(&stats.RecentActivities)
	if err != nil {
		return nil, fmt.Errorf("querying recent activities: %w", err)
	}

	return &stats, nil
}

// countBy groups contractors by a fixed column name.
func (s *PostgresStore) countBy(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %s, COUNT(*) FROM contractors GROUP BY %s`, column, column))
	if err != nil {
		return fmt.Errorf("counting contractors by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scanning %s count: %w", column, err)
		}
		into[key] = n
	}
	return rows.Err()
}
