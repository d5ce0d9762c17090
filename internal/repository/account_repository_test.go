package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avendal/tenant-identity/internal/model"
)

func newMock(t *testing.T) (*AccountRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewAccountRepo(db), mock
}

func accountRows(a *model.Account) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "username", "password_hash", "confirmed",
		"company_id", "role_id", "asset_token", "created_at", "updated_at"}).
		AddRow(a.ID, a.Email, a.Username, a.PasswordHash, a.Confirmed,
			a.CompanyID, a.RoleID, a.AssetToken, a.CreatedAt, a.UpdatedAt)
}

func dupEntry(key string) error {
	return &mysql.MySQLError{Number: 1062,
		Message: "Duplicate entry 'x' for key 'accounts." + key + "'"}
}

func TestGetByEmail(t *testing.T) {
	repo, mock := newMock(t)
	username := "jim"
	hash := "$2a$10$hash"
	cid := uint64(3)
	rid := uint8(1)
	want := &model.Account{
		ID: 7, Email: "jim@test.com", Username: &username, PasswordHash: &hash,
		Confirmed: true, CompanyID: &cid, RoleID: &rid, AssetToken: "tok",
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}

	mock.ExpectQuery("SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1").
		WithArgs("jim@test.com").
		WillReturnRows(accountRows(want))

	// Surrounding whitespace is trimmed before the lookup.
	got, err := repo.GetByEmail(context.Background(), "  jim@test.com ")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Email, got.Email)
	assert.Equal(t, "jim", *got.Username)
	assert.True(t, got.Confirmed)
	assert.Equal(t, cid, *got.CompanyID)
}

func TestGetByEmailNotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1").
		WithArgs("ghost@test.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@test.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateAssignsID(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec("INSERT INTO accounts (email, username, password_hash, confirmed, company_id, role_id, asset_token) VALUES (?,?,?,?,?,?,?)").
		WithArgs("new@test.com", nil, nil, false, nil, nil, "tok").
		WillReturnResult(sqlmock.NewResult(11, 1))

	a := &model.Account{Email: "new@test.com", AssetToken: "tok"}
	require.NoError(t, repo.Create(context.Background(), a))
	assert.Equal(t, uint64(11), a.ID)
}

func TestCreateDuplicateKeys(t *testing.T) {
	for key, want := range map[string]error{
		"uniq_email":    ErrEmailExists,
		"uniq_username": ErrUsernameExists,
	} {
		repo, mock := newMock(t)

		mock.ExpectExec("INSERT INTO accounts (email, username, password_hash, confirmed, company_id, role_id, asset_token) VALUES (?,?,?,?,?,?,?)").
			WillReturnError(dupEntry(key))

		err := repo.Create(context.Background(), &model.Account{Email: "dup@test.com"})
		assert.ErrorIs(t, err, want, "key %s", key)
	}
}

func TestUpdateEmail(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec("UPDATE accounts SET email=? WHERE id=?").
		WithArgs("new@test.com", uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.UpdateEmail(context.Background(), 7, "new@test.com"))
}

func TestUpdateEmailDuplicate(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec("UPDATE accounts SET email=? WHERE id=?").
		WithArgs("taken@test.com", uint64(7)).
		WillReturnError(dupEntry("uniq_email"))

	err := repo.UpdateEmail(context.Background(), 7, "taken@test.com")
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUpdatePasswordHashMissingAccount(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec("UPDATE accounts SET password_hash=? WHERE id=?").
		WithArgs("$2a$10$hash", uint64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePasswordHash(context.Background(), 99, "$2a$10$hash")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteInvite(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec("UPDATE accounts SET username=?, password_hash=?, confirmed=TRUE WHERE id=? AND confirmed=FALSE").
		WithArgs("newbie", "$2a$10$hash", uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.CompleteInvite(context.Background(), 5, "newbie", "$2a$10$hash"))
}

func TestCompleteInviteAlreadyConfirmed(t *testing.T) {
	repo, mock := newMock(t)

	// An already-confirmed row matches nothing; the guard in the WHERE
	// clause makes replayed completions a no-op conflict.
	mock.ExpectExec("UPDATE accounts SET username=?, password_hash=?, confirmed=TRUE WHERE id=? AND confirmed=FALSE").
		WithArgs("newbie", "$2a$10$hash", uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.CompleteInvite(context.Background(), 5, "newbie", "$2a$10$hash")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestDeleteMember(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT owner_id FROM companies WHERE id=?").
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow(int64(1)))
	mock.ExpectExec("DELETE FROM accounts WHERE id=? AND company_id=?").
		WithArgs(uint64(8), uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.DeleteMember(context.Background(), 8, 3))
}

func TestDeleteMemberRefusesOwner(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT owner_id FROM companies WHERE id=?").
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow(int64(8)))

	// No DELETE is ever issued for the owner row.
	err := repo.DeleteMember(context.Background(), 8, 3)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestDeleteMemberWrongCompany(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT owner_id FROM companies WHERE id=?").
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow(int64(1)))
	mock.ExpectExec("DELETE FROM accounts WHERE id=? AND company_id=?").
		WithArgs(uint64(8), uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteMember(context.Background(), 8, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDupKeyErrorClassifiesByKeyName(t *testing.T) {
	// The duplicated value is quoted before the key name and may itself
	// contain "username"; only the key name decides the sentinel.
	err := dupKeyError(&mysql.MySQLError{Number: 1062,
		Message: "Duplicate entry 'username@test.com' for key 'accounts.email'"})
	assert.ErrorIs(t, err, ErrEmailExists)

	err = dupKeyError(&mysql.MySQLError{Number: 1062,
		Message: "Duplicate entry 'email-fan' for key 'accounts.username'"})
	assert.ErrorIs(t, err, ErrUsernameExists)

	err = dupKeyError(&mysql.MySQLError{Number: 1062,
		Message: "Duplicate entry 'x' for key 'assets.token'"})
	assert.ErrorIs(t, err, ErrConflict)

	// No recognizable key name at all.
	err = dupKeyError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'x'"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestDupKeyErrorPassthrough(t *testing.T) {
	// Non-duplicate driver errors come back untranslated.
	orig := &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}
	assert.Equal(t, error(orig), dupKeyError(orig))
	assert.Equal(t, sql.ErrConnDone, dupKeyError(sql.ErrConnDone))
}
