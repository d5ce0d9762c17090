package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/avendal/tenant-identity/internal/model"
)

// AssetRepo encapsulates all queries against the assets table. Assets are
// only ever addressed by their opaque token; numeric ids stay internal.
type AssetRepo struct{ db *sql.DB }

func NewAssetRepo(db *sql.DB) *AssetRepo { return &AssetRepo{db: db} }

// Create inserts an asset owned by a company. The token must be unique;
// the caller generates it (a UUID) before insert.
func (r *AssetRepo) Create(ctx context.Context, a *model.Asset) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO assets (token, name, company_id) VALUES (?,?,?)",
		a.Token, a.Name, a.CompanyID)
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

// GetByToken resolves an asset by its opaque token. ErrNotFound when no
// such token exists; ownership is the caller's check.
func (r *AssetRepo) GetByToken(ctx context.Context, token string) (*model.Asset, error) {
	var a model.Asset
	err := r.db.QueryRowContext(ctx,
		"SELECT id, token, name, company_id, created_at FROM assets WHERE token=? LIMIT 1", token).
		Scan(&a.ID, &a.Token, &a.Name, &a.CompanyID, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListByCompany returns all assets a company owns ordered by id.
func (r *AssetRepo) ListByCompany(ctx context.Context, companyID uint64) ([]*model.Asset, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, token, name, company_id, created_at FROM assets WHERE company_id=? ORDER BY id", companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Asset
	for rows.Next() {
		var a model.Asset
		if err := rows.Scan(&a.ID, &a.Token, &a.Name, &a.CompanyID, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
