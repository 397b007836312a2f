package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Priya8975/signalcore-billing/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore is an in-process store with the same uniqueness rules as the
// Postgres schema. It backs local development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	contractors map[string]*domain.Contractor // keyed by email
	activities  []domain.Activity
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contractors: make(map[string]*domain.Contractor),
		now:         time.Now,
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) UpsertContractor(ctx context.Context, up domain.ContractorUpsert) (*domain.UpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if c, ok := s.contractors[up.Email]; ok {
		c.Tier = up.Tier
		c.MonthlyFee = up.MonthlyFee
		c.Status = domain.StatusActive
		if c.AuthUserID == nil && up.AuthUserID != nil {
			id := *up.AuthUserID
			c.AuthUserID = &id
		}
		c.UpdatedAt = now
		return &domain.UpsertResult{Contractor: copyContractor(c)}, nil
	}

	c := &domain.Contractor{
		ID:          uuid.NewString(),
		CompanyName: up.CompanyName,
		ContactName: up.ContactName,
		Email:       up.Email,
		Phone:       up.Phone,
		Tier:        up.Tier,
		MonthlyFee:  up.MonthlyFee,
		Status:      domain.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if up.AuthUserID != nil {
		id := *up.AuthUserID
		c.AuthUserID = &id
	}
	s.contractors[up.Email] = c
	return &domain.UpsertResult{Contractor: copyContractor(c), Created: true}, nil
}

func (s *MemoryStore) MarkChurned(ctx context.Context, email string) (*domain.Contractor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contractors[email]
	if !ok {
		return nil, nil
	}
	c.Status = domain.StatusChurned
	c.UpdatedAt = s.now()
	out := copyContractor(c)
	return &out, nil
}

func (s *MemoryStore) InsertActivity(ctx context.Context, a domain.NewActivity) (*domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	act := domain.Activity{
		ID:        uuid.NewString(),
		Action:    a.Action,
		Details:   a.Details,
		CreatedAt: s.now(),
	}
	if a.ContractorID != nil {
		id := *a.ContractorID
		act.ContractorID = &id
	}
	s.activities = append(s.activities, act)
	return &act, nil
}

func (s *MemoryStore) GetContractor(ctx context.Context, id string) (*domain.Contractor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.contractors {
		if c.ID == id {
			out := copyContractor(c)
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) GetContractorByEmail(ctx context.Context, email string) (*domain.Contractor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contractors[email]
	if !ok {
		return nil, nil
	}
	out := copyContractor(c)
	return &out, nil
}

func (s *MemoryStore) ListContractors(ctx context.Context, f domain.ContractorFilter) ([]domain.Contractor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(f.Search)
	out := []domain.Contractor{}
	for _, c := range s.contractors {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Tier != "" && c.Tier != f.Tier {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.CompanyName), search) &&
			!strings.Contains(strings.ToLower(c.ContactName), search) &&
			!strings.Contains(strings.ToLower(c.Email), search) {
			continue
		}
		out = append(out, copyContractor(c))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) ListActivities(ctx context.Context, contractorID string, limit int) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Activity{}
	for i := len(s.activities) - 1; i >= 0; i-- {
		a := s.activities[i]
		if contractorID != "" && (a.ContractorID == nil || *a.ContractorID != contractorID) {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) BillingStats(ctx context.Context) (*domain.BillingStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.BillingStats{
		TotalContractors: len(s.contractors),
		ByStatus:         map[string]int{},
		ByTier:           map[string]int{},
	}
	for _, c := range s.contractors {
		stats.ByStatus[c.Status]++
		stats.ByTier[c.Tier]++
		if c.Status == domain.StatusActive {
			stats.MonthlyRevenue += c.MonthlyFee
		}
	}

	cutoff := s.now().Add(-24 * time.Hour)
	for _, a := range s.activities {
		if a.CreatedAt.After(cutoff) {
			stats.RecentActivities++
		}
	}
	return &stats, nil
}

func copyContractor(c *domain.Contractor) domain.Contractor {
	out := *c
	if c.AuthUserID != nil {
		id := *c.AuthUserID
		out.AuthUserID = &id
	}
	return out
}
