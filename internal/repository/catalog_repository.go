package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/avendal/tenant-identity/internal/model"
)

// CatalogRepo reads the small fixed roles and features catalogs. Both are
// seeded once by schema.sql and never written by the application.
type CatalogRepo struct{ db *sql.DB }

func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

// DefaultRole returns the catalog role flagged is_default, assigned to
// accounts created without an explicit role.
func (r *CatalogRepo) DefaultRole(ctx context.Context) (*model.Role, error) {
	return r.roleWhere(ctx, "is_default=TRUE")
}

// RoleByName looks up a role by its unique name.
func (r *CatalogRepo) RoleByName(ctx context.Context, name string) (*model.Role, error) {
	return r.roleWhere(ctx, "name=?", name)
}

func (r *CatalogRepo) roleWhere(ctx context.Context, cond string, args ...any) (*model.Role, error) {
	var role model.Role
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, is_default, permissions FROM roles WHERE "+cond+" LIMIT 1", args...).
		Scan(&role.ID, &role.Name, &role.IsDefault, &role.Permissions)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// DefaultFeature returns the tier flagged is_default, assigned to newly
// registered companies.
func (r *CatalogRepo) DefaultFeature(ctx context.Context) (*model.Feature, error) {
	var f model.Feature
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, is_default, features FROM features WHERE is_default=TRUE LIMIT 1").
		Scan(&f.ID, &f.Name, &f.IsDefault, &f.Features)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}
