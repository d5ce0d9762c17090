// Package authz implements the permission and feature bitmask model. Roles
// grant permission bits to accounts; feature tiers grant feature bits to
// companies. Checks are conjunctive: every requested bit must be present.
package authz

import "github.com/avendal/tenant-identity/internal/model"

// Permission bits granted by roles. Values must match the seeded roles
// catalog in schema.sql.
const (
	PermView   uint64 = 1 << 0
	PermEdit   uint64 = 1 << 1
	PermInvite uint64 = 1 << 2
	PermAdmin  uint64 = 1 << 3
)

// Feature bits granted by subscription tiers. Values must match the seeded
// features catalog in schema.sql.
const (
	FeatureAssets  uint64 = 1 << 0
	FeatureInvites uint64 = 1 << 1
	FeatureReports uint64 = 1 << 2
)

// Can reports whether assigned contains every bit of want. A zero want is
// always satisfied; a zero assigned satisfies nothing else.
func Can(assigned, want uint64) bool {
	return assigned&want == want
}

// AccountCan evaluates an account's role mask against the requested
// permission bits. Accounts with no role can do nothing.
func AccountCan(role *model.Role, want uint64) bool {
	if role == nil {
		return false
	}
	return Can(role.Permissions, want)
}

// CompanyCan evaluates a company's feature tier against the requested
// feature bits. Companies with no tier have no features.
func CompanyCan(feature *model.Feature, want uint64) bool {
	if feature == nil {
		return false
	}
	return Can(feature.Features, want)
}

// IsOwner reports whether the account is the structural owner of the
// company (owner_id reference, not an email comparison).
func IsOwner(account *model.Account, company *model.Company) bool {
	if account == nil || company == nil || company.OwnerID == nil {
		return false
	}
	return *company.OwnerID == account.ID
}

// OwnsAsset reports whether the asset belongs to the account's company.
// The caller resolves the asset first; a missing asset is a lookup failure
// surfaced separately from a plain denial.
func OwnsAsset(account *model.Account, asset *model.Asset) bool {
	if account == nil || asset == nil || account.CompanyID == nil {
		return false
	}
	return asset.CompanyID == *account.CompanyID
}
