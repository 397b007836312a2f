package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Priya8975/signalcore-billing/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupPostgres connects to DATABASE_URL and applies the migrations. Rows
// created under the returned email are removed when the test ends.
func setupPostgres(t *testing.T) (*PostgresStore, string) {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := NewPostgres(ctx, url)
	require.NoError(t, err)
	require.NoError(t, s.RunMigrations(ctx, "../../migrations"))

	email := "pg-" + uuid.NewString() + "@example.com"
	t.Cleanup(func() {
		_, _ = s.pool.Exec(context.Background(), `DELETE FROM contractors WHERE email = $1`, email)
		s.Close()
	})
	return s, email
}

func TestPostgresStore_UpsertCreatesThenUpdates(t *testing.T) {
	s, email := setupPostgres(t)
	ctx := context.Background()

	first, err := s.UpsertContractor(ctx, domain.ContractorUpsert{
		Email:       email,
		CompanyName: "Acme",
		ContactName: "Acme",
		Tier:        "feed",
		MonthlyFee:  750,
	})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, domain.StatusActive, first.Contractor.Status)

	second, err := s.UpsertContractor(ctx, domain.ContractorUpsert{
		Email:       email,
		CompanyName: "Renamed",
		Tier:        "executive",
		MonthlyFee:  5000,
	})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Contractor.ID, second.Contractor.ID)
	assert.Equal(t, "executive", second.Contractor.Tier)
	assert.EqualValues(t, 5000, second.Contractor.MonthlyFee)
	assert.Equal(t, "Acme", second.Contractor.CompanyName)

	var rows int
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM contractors WHERE email = $1`, email).Scan(&rows))
	assert.Equal(t, 1, rows)

	got, err := s.GetContractorByEmail(ctx, email)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.Contractor.ID, got.ID)
}

func TestPostgresStore_UpsertKeepsAuthUserID(t *testing.T) {
	s, email := setupPostgres(t)
	ctx := context.Background()

	original := uuid.NewString()
	_, err := s.UpsertContractor(ctx, domain.ContractorUpsert{
		Email:      email,
		Tier:       "feed",
		MonthlyFee: 750,
		AuthUserID: &original,
	})
	require.NoError(t, err)

	other := uuid.NewString()
	res, err := s.UpsertContractor(ctx, domain.ContractorUpsert{
		Email:      email,
		Tier:       "priority",
		MonthlyFee: 2500,
		AuthUserID: &other,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Contractor.AuthUserID)
	assert.Equal(t, original, *res.Contractor.AuthUserID)

	res, err = s.UpsertContractor(ctx, domain.ContractorUpsert{
		Email:      email,
		Tier:       "priority",
		MonthlyFee: 2500,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Contractor.AuthUserID)
	assert.Equal(t, original, *res.Contractor.AuthUserID)
}

func TestPostgresStore_MarkChurned(t *testing.T) {
	s, email := setupPostgres(t)
	ctx := context.Background()

	c, err := s.MarkChurned(ctx, email)
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = s.UpsertContractor(ctx, domain.ContractorUpsert{Email: email, Tier: "feed", MonthlyFee: 750})
	require.NoError(t, err)

	c, err = s.MarkChurned(ctx, email)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, domain.StatusChurned, c.Status)

	missing, err := s.GetContractorByEmail(ctx, "nobody-"+email)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
