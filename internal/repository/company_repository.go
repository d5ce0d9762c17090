package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/avendal/tenant-identity/internal/model"
)

// CompanyRepo encapsulates all queries against the companies table.
type CompanyRepo struct{ db *sql.DB }

func NewCompanyRepo(db *sql.DB) *CompanyRepo { return &CompanyRepo{db: db} }

// CreateWithOwner creates a company and its owning account in one
// transaction: insert company, insert account as a member, point owner_id
// back at the account. Registration pairs the two 1:1, and a failed account
// insert (duplicate email or username) must not leave an ownerless company
// behind.
func (r *CompanyRepo) CreateWithOwner(ctx context.Context, c *model.Company, owner *model.Account) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO companies (name, feature_id) VALUES (?,?)", c.Name, c.FeatureID)
	if err != nil {
		return err
	}
	cid, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(cid)

	companyID := c.ID
	owner.CompanyID = &companyID
	res, err = tx.ExecContext(ctx,
		"INSERT INTO accounts (email, username, password_hash, confirmed, company_id, role_id, asset_token) VALUES (?,?,?,?,?,?,?)",
		owner.Email, owner.Username, owner.PasswordHash, owner.Confirmed, owner.CompanyID, owner.RoleID, owner.AssetToken)
	if err != nil {
		err = dupKeyError(err)
		return err
	}
	uid, err := res.LastInsertId()
	if err != nil {
		return err
	}
	owner.ID = uint64(uid)

	if _, err = tx.ExecContext(ctx,
		"UPDATE companies SET owner_id=? WHERE id=?", owner.ID, c.ID); err != nil {
		return err
	}
	ownerID := owner.ID
	c.OwnerID = &ownerID

	err = tx.Commit()
	return err
}

// GetByID fetches a company by primary key.
func (r *CompanyRepo) GetByID(ctx context.Context, id uint64) (*model.Company, error) {
	var c model.Company
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, owner_id, feature_id, created_at, updated_at FROM companies WHERE id=? LIMIT 1", id).
		Scan(&c.ID, &c.Name, &c.OwnerID, &c.FeatureID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FeatureOf resolves the company's subscription tier from the catalog, or
// nil when none is assigned.
func (r *CompanyRepo) FeatureOf(ctx context.Context, c *model.Company) (*model.Feature, error) {
	if c.FeatureID == nil {
		return nil, nil
	}
	var f model.Feature
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, is_default, features FROM features WHERE id=?", *c.FeatureID).
		Scan(&f.ID, &f.Name, &f.IsDefault, &f.Features)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}
