package model

import "time"

// Company represents a tenant in the `companies` table. Every company has
// exactly one owner, and the owner account must itself belong to the company
// (accounts.company_id points back at it). Ownership is the structural
// owner_id reference, never an email comparison, so email changes cannot
// orphan a company.
type Company struct {
	ID        uint64
	Name      string
	OwnerID   *uint64
	FeatureID *uint8
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Asset is an opaque company-owned resource from the `assets` table. The
// Token (a UUID) is the only identifier ever exposed outside the company.
type Asset struct {
	ID        uint64
	Token     string
	Name      string
	CompanyID uint64
	CreatedAt time.Time
}
