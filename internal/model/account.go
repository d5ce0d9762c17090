package model

import "time"

// Account represents a row in the `accounts` table. An account is created
// either by registration (username and password present from the start) or by
// invitation, in which case Username and PasswordHash stay NULL until the
// invite is redeemed and setup is completed.
//
// Fields:
//  ID           – primary key identifier of the account.
//  Email        – unique email address, stored as given (case preserved).
//  Username     – unique username; nil for pending invited accounts.
//  PasswordHash – bcrypt hash; nil until a password has been set.
//  Confirmed    – whether the email address was confirmed. One-way flag.
//  CompanyID    – owning tenant; nil only for rows mid-registration.
//  RoleID       – foreign key into the roles catalog.
//  AssetToken   – opaque per-account token (UUID), unique.
type Account struct {
	ID           uint64
	Email        string
	Username     *string
	PasswordHash *string
	Confirmed    bool
	CompanyID    *uint64
	RoleID       *uint8
	AssetToken   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether a credential has been set. Pending invited
// accounts have none until setup completes.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}
