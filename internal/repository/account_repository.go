package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/avendal/tenant-identity/internal/model"
)

const accountColumns = "id, email, username, password_hash, confirmed, company_id, role_id, asset_token, created_at, updated_at"

// AccountRepo encapsulates all queries against the accounts table.
type AccountRepo struct{ db *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

func scanAccount(row *sql.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Email, &a.Username, &a.PasswordHash, &a.Confirmed,
		&a.CompanyID, &a.RoleID, &a.AssetToken, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Create inserts an account and populates its ID. Duplicate email or
// username surfaces as ErrEmailExists / ErrUsernameExists.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	a.Email = strings.TrimSpace(a.Email)
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO accounts (email, username, password_hash, confirmed, company_id, role_id, asset_token) VALUES (?,?,?,?,?,?,?)",
		a.Email, a.Username, a.PasswordHash, a.Confirmed, a.CompanyID, a.RoleID, a.AssetToken)
	if err != nil {
		return dupKeyError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// GetByID fetches an account by primary key.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (*model.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id=? LIMIT 1", id))
}

// GetByEmail fetches an account by exact email. Emails are compared as
// stored; case folding is a product decision that has not been made.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1", strings.TrimSpace(email)))
}

// UpdatePasswordHash overwrites the stored credential. Callers hash first;
// the plaintext never reaches this layer.
func (r *AccountRepo) UpdatePasswordHash(ctx context.Context, id uint64, hash string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET password_hash=? WHERE id=?", hash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetConfirmed flips the one-way confirmed flag.
func (r *AccountRepo) SetConfirmed(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET confirmed=TRUE WHERE id=?", id)
	return err
}

// UpdateEmail overwrites the address. The unique key re-validates
// uniqueness at write time, closing the race where the address was claimed
// between issuance and redemption of a change-email token.
func (r *AccountRepo) UpdateEmail(ctx context.Context, id uint64, email string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET email=? WHERE id=?", strings.TrimSpace(email), id)
	if err != nil {
		return dupKeyError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteInvite fills in the username and credential of a pending invited
// account and confirms it in one statement. Only unconfirmed rows match, so
// a replayed completion affects nothing.
func (r *AccountRepo) CompleteInvite(ctx context.Context, id uint64, username, hash string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET username=?, password_hash=?, confirmed=TRUE WHERE id=? AND confirmed=FALSE",
		strings.TrimSpace(username), hash, id)
	if err != nil {
		return dupKeyError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// ListByCompany returns all member accounts of a company ordered by id.
func (r *AccountRepo) ListByCompany(ctx context.Context, companyID uint64) ([]*model.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE company_id=? ORDER BY id", companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.Email, &a.Username, &a.PasswordHash, &a.Confirmed,
			&a.CompanyID, &a.RoleID, &a.AssetToken, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// DeleteMember removes an account, but only from the given company and
// never the company owner. Returns ErrNotFound when no row matches and
// ErrConflict when the target is the owner.
func (r *AccountRepo) DeleteMember(ctx context.Context, id, companyID uint64) error {
	var ownerID sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		"SELECT owner_id FROM companies WHERE id=?", companyID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if ownerID.Valid && uint64(ownerID.Int64) == id {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM accounts WHERE id=? AND company_id=?", id, companyID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RoleOf resolves the account's role from the catalog, or nil when none is
// assigned.
func (r *AccountRepo) RoleOf(ctx context.Context, a *model.Account) (*model.Role, error) {
	if a.RoleID == nil {
		return nil, nil
	}
	var role model.Role
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, is_default, permissions FROM roles WHERE id=?", *a.RoleID).
		Scan(&role.ID, &role.Name, &role.IsDefault, &role.Permissions)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}
