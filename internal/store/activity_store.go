package store

import (
	"context"
	"fmt"

	"github.com/Priya8975/signalcore-billing/internal/domain"
)

// InsertActivity appends an audit record. Activities are never updated.
func (s *PostgresStore) InsertActivity(ctx context.Context, a domain.NewActivity) (*domain.Activity, error) {
	var act domain.Activity
	err := s.pool.QueryRow(ctx, `
		INSERT INTO activities (contractor_id, action, details)
		VALUES ($1, $2, $3)
		RETURNING id, contractor_id, action, details, created_at
	`, a.ContractorID, a.Action, a.Details).Scan(
		&act.ID, &act.ContractorID, &act.Action, &act.Details, &act.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting activity: %w", err)
	}
	return &act, nil
}

// ListActivities returns the newest activities first, optionally for one contractor.
func (s *PostgresStore) ListActivities(ctx context.Context, contractorID string, limit int) ([]domain.Activity, error) {
	query := `SELECT id, contractor_id, action, details, created_at FROM activities`
	args := []interface{}{}
	argIdx := 1

	if contractorID != "" {
		query += fmt.Sprintf(" WHERE contractor_id = $%d", argIdx)
		args = append(args, contractorID)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	var activities []domain.Activity
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.ContractorID, &a.Action, &a.Details, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activities: %w", err)
	}

	if activities == nil {
		activities = []domain.Activity{}
	}

	return activities, nil
}
