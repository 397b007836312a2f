package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Priya8975/signalcore-billing/internal/domain"
	"github.com/jackc/pgx/v5"
)

const contractorColumns = `id, company_name, contact_name, email, phone, tier, monthly_fee, status, auth_user_id, created_at, updated_at`

func scanContractor(row pgx.Row, c *domain.Contractor, extra ...any) error {
	dest := []any{
		&c.ID, &c.CompanyName, &c.ContactName, &c.Email, &c.Phone,
		&c.Tier, &c.MonthlyFee, &c.Status, &c.AuthUserID, &c.CreatedAt, &c.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

// UpsertContractor inserts or updates the contractor keyed by email in one
// statement. An existing auth_user_id is never replaced.
func (s *PostgresStore) UpsertContractor(ctx context.Context, up domain.ContractorUpsert) (*domain.UpsertResult, error) {
	var res domain.UpsertResult
	err := scanContractor(s.pool.QueryRow(ctx, `
		INSERT INTO contractors (company_name, contact_name, email, phone, tier, monthly_fee, status, auth_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, 'active', $7)
		ON CONFLICT (email) DO UPDATE SET
			tier = EXCLUDED.tier,
			monthly_fee = EXCLUDED.monthly_fee,
			status = 'active',
			auth_user_id = COALESCE(contractors.auth_user_id, EXCLUDED.auth_user_id),
			updated_at = NOW()
		RETURNING `+contractorColumns+`, (xmax = 0) AS inserted
	`, up.CompanyName, up.ContactName, up.Email, up.Phone, up.Tier, up.MonthlyFee, up.AuthUserID), &res.Contractor, &res.Created)
	if err != nil {
		return nil, fmt.Errorf("upserting contractor: %w", err)
	}
	return &res, nil
}

// MarkChurned sets the contractor with this email to churned. It returns
// nil when no contractor matches.
func (s *PostgresStore) MarkChurned(ctx context.Context, email string) (*domain.Contractor, error) {
	var c domain.Contractor
	err := scanContractor(s.pool.QueryRow(ctx, `
		UPDATE contractors SET status = 'churned', updated_at = NOW()
		WHERE email = $1
		RETURNING `+contractorColumns, email), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("churning contractor: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) GetContractor(ctx context.Context, id string) (*domain.Contractor, error) {
	var c domain.Contractor
	err := scanContractor(s.pool.QueryRow(ctx, `
		SELECT `+contractorColumns+` FROM contractors WHERE id = $1
	`, id), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying contractor: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) GetContractorByEmail(ctx context.Context, email string) (*domain.Contractor, error) {
	var c domain.Contractor
	err := scanContractor(s.pool.QueryRow(ctx, `
		SELECT `+contractorColumns+` FROM contractors WHERE email = $1
	`, email), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying contractor: %w", err)
	}
	return &c, nil
}

// ListContractors returns contractors with optional filtering.
func (s *PostgresStore) ListContractors(ctx context.Context, f domain.ContractorFilter) ([]domain.Contractor, error) {
	query := `SELECT ` + contractorColumns + ` FROM contractors`
	args := []interface{}{}
	argIdx := 1
	conditions := []string{}

	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, f.Status)
		argIdx++
	}
	if f.Tier != "" {
		conditions = append(conditions, fmt.Sprintf("tier = $%d", argIdx))
		args = append(args, f.Tier)
		argIdx++
	}
	if f.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(company_name ILIKE $%d OR contact_name ILIKE $%d OR email ILIKE $%d)", argIdx, argIdx, argIdx))
		args = append(args, "%"+f.Search+"%")
		argIdx++
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC"

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying contractors: %w", err)
	}
	defer rows.Close()

	var contractors []domain.Contractor
	for rows.Next() {
		var c domain.Contractor
		if err := scanContractor(rows, &c); err != nil {
			return nil, fmt.Errorf("scanning contractor: %w", err)
		}
		contractors = append(contractors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contractors: %w", err)
	}

	if contractors == nil {
		contractors = []domain.Contractor{}
	}

	return contractors, nil
}
