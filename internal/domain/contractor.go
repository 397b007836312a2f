package domain

import (
	"time"
)

// Contractor statuses.
const (
	StatusProspect = "prospect"
	StatusActive   = "active"
	StatusChurned  = "churned"
)

type Contractor struct {
	ID          string    `json:"id"`
	CompanyName string    `json:"company_name"`
	ContactName string    `json:"contact_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Tier        string    `json:"tier"`
	MonthlyFee  int64     `json:"monthly_fee"`
	Status      string    `json:"status"`
	AuthUserID  *string   `json:"auth_user_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ContractorUpsert carries the fields written when a payment is reconciled.
// CompanyName, ContactName and Phone are only used when the row is created.
type ContractorUpsert struct {
	Email       string
	CompanyName string
	ContactName string
	Phone       string
	Tier        string
	MonthlyFee  int64
	AuthUserID  *string
}

// UpsertResult reports the stored row and whether the upsert inserted it.
type UpsertResult struct {
	Contractor Contractor
	Created    bool
}

type ContractorFilter struct {
	Status string
	Tier   string
	Search string
	Limit  int
}
