package model

// Role is a row in the fixed `roles` catalog. Permissions is a bitmask of
// authz.Permission values; an account holds at most one role.
type Role struct {
	ID          uint8
	Name        string
	IsDefault   bool
	Permissions uint64
}

// Feature is a row in the fixed `features` catalog describing a subscription
// tier. Features is a bitmask of authz.Feature values; a company holds at
// most one tier.
type Feature struct {
	ID        uint8
	Name      string
	IsDefault bool
	Features  uint64
}
