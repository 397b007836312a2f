package billing

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Tier ids.
const (
	TierFeed      = "feed"
	TierPriority  = "priority"
	TierExecutive = "executive"
)

// Tier is one row of the pricing policy. MinAmount and MonthlyFee are in
// major currency units; MinAmount is an inclusive lower bound.
type Tier struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	MinAmount  int64  `yaml:"min_amount" json:"min_amount"`
	MonthlyFee int64  `yaml:"monthly_fee" json:"monthly_fee"`
}

// TierTable maps a paid amount to a tier. Tiers are kept highest-first.
type TierTable struct {
	tiers []Tier
}

type tierFile struct {
	Tiers []Tier `yaml:"tiers"`
}

// DefaultTierTable is the brokerage's standard pricing.
func DefaultTierTable() *TierTable {
	t, _ := NewTierTable([]Tier{
		{ID: TierExecutive, Name: "Executive Partner", MinAmount: 4500, MonthlyFee: 5000},
		{ID: TierPriority, Name: "Priority Intel", MinAmount: 2000, MonthlyFee: 2500},
		{ID: TierFeed, Name: "The Feed", MinAmount: 0, MonthlyFee: 750},
	})
	return t
}

// NewTierTable validates tiers and orders them by MinAmount, highest first.
func NewTierTable(tiers []Tier) (*TierTable, error) {
	if len(tiers) == 0 {
		return nil, errors.New("tier table must contain at least one tier")
	}

	seen := make(map[string]bool, len(tiers))
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	for _, t := range sorted {
		if t.ID == "" {
			return nil, errors.New("tier id is required")
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate tier %q", t.ID)
		}
		if t.MinAmount < 0 || t.MonthlyFee < 0 {
			return nil, fmt.Errorf("tier %q: amounts must not be negative", t.ID)
		}
		seen[t.ID] = true
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinAmount > sorted[j].MinAmount
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].MinAmount == sorted[i-1].MinAmount {
			return nil, fmt.Errorf("tiers %q and %q share threshold %d", sorted[i-1].ID, sorted[i].ID, sorted[i].MinAmount)
		}
	}

	return &TierTable{tiers: sorted}, nil
}

// LoadTierTable reads a YAML tier table:
//
//	tiers:
//	  - id: executive
//	    name: Executive Partner
//	    min_amount: 4500
//	    monthly_fee: 5000
func LoadTierTable(path string) (*TierTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tier table %s: %w", path, err)
	}

	var f tierFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing tier table %s: %w", path, err)
	}

	t, err := NewTierTable(f.Tiers)
	if err != nil {
		return nil, fmt.Errorf("validating tier table %s: %w", path, err)
	}
	return t, nil
}

// Resolve picks the tier for an amount in minor units (cents). A missing or
// zero amount resolves to the lowest tier.
func (t *TierTable) Resolve(amountCents *int64) Tier {
	lowest := t.Lowest()
	if amountCents == nil || *amountCents == 0 {
		return lowest
	}

	major := *amountCents / 100
	for _, tier := range t.tiers {
		if major >= tier.MinAmount {
			return tier
		}
	}
	return lowest
}

// Lowest returns the tier with the smallest threshold.
func (t *TierTable) Lowest() Tier {
	return t.tiers[len(t.tiers)-1]
}

// Lookup returns the tier with the given id.
func (t *TierTable) Lookup(id string) (Tier, bool) {
	for _, tier := range t.tiers {
		if tier.ID == id {
			return tier, true
		}
	}
	return Tier{}, false
}

// Tiers returns a copy of the table, highest first.
func (t *TierTable) Tiers() []Tier {
	out := make([]Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}
