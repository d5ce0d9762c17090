package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avendal/tenant-identity/internal/lifecycle"
	"github.com/avendal/tenant-identity/internal/model"
	"github.com/avendal/tenant-identity/internal/repository"
	"github.com/avendal/tenant-identity/internal/token"
	"github.com/avendal/tenant-identity/internal/utils"
)

// fakeDirectory is an in-memory Accounts implementation. It mimics the
// repository's sentinel errors, including unique-key conflicts.
type fakeDirectory struct {
	nextID   uint64
	accounts map[uint64]*model.Account
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{nextID: 1, accounts: map[uint64]*model.Account{}}
}

func (f *fakeDirectory) add(a *model.Account) *model.Account {
	a.ID = f.nextID
	f.nextID++
	f.accounts[a.ID] = a
	return a
}

func (f *fakeDirectory) GetByID(_ context.Context, id uint64) (*model.Account, error) {
	if a, ok := f.accounts[id]; ok {
		return a, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeDirectory) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	for _, a := range f.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeDirectory) Create(_ context.Context, a *model.Account) error {
	for _, existing := range f.accounts {
		if existing.Email == a.Email {
			return repository.ErrEmailExists
		}
	}
	f.add(a)
	return nil
}

func (f *fakeDirectory) UpdatePasswordHash(_ context.Context, id uint64, hash string) error {
	a, ok := f.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.PasswordHash = &hash
	return nil
}

func (f *fakeDirectory) SetConfirmed(_ context.Context, id uint64) error {
	a, ok := f.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Confirmed = true
	return nil
}

func (f *fakeDirectory) UpdateEmail(_ context.Context, id uint64, email string) error {
	for _, existing := range f.accounts {
		if existing.Email == email && existing.ID != id {
			return repository.ErrEmailExists
		}
	}
	a, ok := f.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Email = email
	return nil
}

func (f *fakeDirectory) CompleteInvite(_ context.Context, id uint64, username, hash string) error {
	a, ok := f.accounts[id]
	if !ok || a.Confirmed {
		return repository.ErrConflict
	}
	a.Username = &username
	a.PasswordHash = &hash
	a.Confirmed = true
	return nil
}

type fakeCatalog struct{}

func (fakeCatalog) DefaultRole(context.Context) (*model.Role, error) {
	return &model.Role{ID: 1, Name: "MEMBER", IsDefault: true, Permissions: 1}, nil
}

// sentMail records every dispatch so tests can pull issued tokens out.
type sentMail struct {
	To       string
	Subject  string
	Template string
	Data     map[string]string
}

type fakeMailer struct{ sent []sentMail }

func (m *fakeMailer) Send(_ context.Context, to, subject, template string, data map[string]string) error {
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Template: template, Data: data})
	return nil
}

func (m *fakeMailer) lastToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.sent)
	raw := m.sent[len(m.sent)-1].Data["token"]
	require.NotEmpty(t, raw)
	return raw
}

// fakeUsage enforces single-use in memory, mirroring the Redis store.
type fakeUsage struct{ used map[string]bool }

func newFakeUsage() *fakeUsage { return &fakeUsage{used: map[string]bool{}} }

func (f *fakeUsage) Consume(_ context.Context, raw string, _ time.Duration) bool {
	if f.used[raw] {
		return false
	}
	f.used[raw] = true
	return true
}

func (f *fakeUsage) Release(_ context.Context, raw string) { delete(f.used, raw) }

func newTestService(dir *fakeDirectory, mail *fakeMailer) *lifecycle.Service {
	return lifecycle.NewService(dir, fakeCatalog{}, token.NewCodec("test-secret"),
		newFakeUsage(), mail, lifecycle.Config{BcryptCost: 4})
}

func seedAccount(dir *fakeDirectory, email, password string) *model.Account {
	hash, _ := utils.HashPassword(password, 4)
	username := "user-" + email
	return dir.add(&model.Account{
		Email:        email,
		Username:     &username,
		PasswordHash: &hash,
		Confirmed:    false,
		AssetToken:   "at-" + email,
	})
}

func TestConfirmFlow(t *testing.T) {
	dir := newFakeDirectory()
	mail := &fakeMailer{}
	svc := newTestService(dir, mail)
	ctx := context.Background()

	acct := seedAccount(dir, "jim@test.com", "cat")
	require.NoError(t, svc.RequestConfirmation(ctx, acct))
	raw := mail.lastToken(t)
	assert.Equal(t, "jim@test.com", mail.sent[0].To)

	require.NoError(t, svc.Confirm(ctx, acct, raw))
	assert.True(t, acct.Confirmed)
	assert.True(t, dir.accounts[acct.ID].Confirmed)

	// Already confirmed: short-circuit success, even with a stale token.
	assert.NoError(t, svc.Confirm(ctx, acct, raw))
	assert.NoError(t, svc.Confirm(ctx, acct, "garbage"))
}

func TestConfirmRejectsBadTokens(t *testing.T) {
	dir := newFakeDirectory()
	mail := &fakeMailer{}
	svc := newTestService(dir, mail)
	ctx := context.Background()

	acct := seedAccount(dir, "a@test.com", "cat")
	other := seedAccount(dir, "b@test.com", "cat")

	require.NoError(t, svc.RequestConfirmation(ctx, acct))
	raw := mail.lastToken(t)

	// Subject mismatch: a token for one account must not confirm another.
	assert.ErrorIs(t, svc.Confirm(ctx, other, raw), lifecycle.ErrTokenInvalid)
	assert.False(t, other.Confirmed)

	assert.ErrorIs(t, svc.Confirm(ctx, acct, "not-a-token"), lifecycle.ErrTokenInvalid)
	assert.False(t, acct.Confirmed)
}

func TestRequestConfirmationIssuesFreshTokens(t *testing.T) {
	dir := newFakeDirectory()
	mail := &fakeMailer{}
	svc := newTestService(dir, mail)
	ctx := context.Background()

	acct := seedAccount(dir, "jim@test.com", "cat")
	require.NoError(t, svc.RequestConfirmation(ctx, acct))
	time.Sleep(1100 * time.Millisecond) // distinct iat second
	require.NoError(t, svc.RequestConfirmation(ctx, acct))

	require.Len(t, mail.sent, 2)
	assert.NotEqual(t, mail.sent[0].Data["token"], mail.sent[1].Data["token"])
	assert.False(t, acct.Confirmed) // state untouched until redemption
}

func TestPasswordResetFlow(t *testing.T) {
	dir := newFakeDirectory()
	mail := &fakeMailer{}
	svc := newTestService(dir, mail)
	ctx := context.Background()

	acct := seedAccount(dir, "jim@test.com", "cat")
	require.NoError(t, svc.RequestPasswordReset(ctx, "jim@test.com"))
	raw := mail.lastToken(t)

	require.NoError(t, svc.ResetPassword(ctx, "jim@test.com", raw, "horse"))
	assert.True(t, utils.VerifyPassword(*acct.PasswordHash, "horse"))
	assert.False(t, utils.VerifyPassword(*acct.PasswordHash, "cat"))
}

func TestPasswordResetEnumerationResistance(t *testing.T) {
	dir := newFakeDirectory()
	mail := &fakeMailer{}
	svc := newTestService(dir, mail)
	ctx := context.Background()

	// Unknown address: same outward success signal, but nothing sent.
	assert.NoError(t, svc.RequestPasswordReset(ctx, "nobody@test.com"))
	assert.Empty(t, mail.sent)

	// Redemption against an unknown address reads as a bad token.
	assert.ErrorIs(t, svc.ResetPassword(ctx, "nobody@test.com", "whatever", "pw"),
		lifecycle.ErrTokenInvalid)
}

func TestPurposeIsolation(t *testing.T) {
	dir := newFakeDirectory()
	mail := &fakeMailer{}
	svc := newTestService(dir, mail)
	ctx := context.Background()

	acct := seedAccount(dir, "jim@test.com", "cat")

	// A confirm-purpose token must be rejected by the reset flow even
	// though it decodes cleanly.
	require.NoError(t, svc.RequestConfirmation(ctx, acct))
	confirmTok := mail.lastToken(t)
	assert.ErrorIs(t, svc.ResetPassword(ctx, "jim@test.com", confirmTok, "pw"),
		lifecycle.ErrTokenInvalid)
	assert.True(t, utils.VerifyPassword(*acct.PasswordHash, "cat"))

	// And a reset token must not confirm the account.
	require.NoError(t, svc.RequestPasswordReset(ctx, "jim@test.com"))
	resetTok := mail.lastToken(t)
	assert.ErrorIs(t, svc.Confirm(ctx, acct, resetTok), lifecycle.ErrTokenInvalid)
	assert.False(t, acct.Confirmed)
}

func TestEmailChangeFlow(t *testing.T) {
	dir := newFakeDirectory()
	mail := &fakeMailer{}
	svc := newTestService(dir, mail)
	ctx := context.Background()

	acct := seedAccount(dir, "old@test.com", "cat")

	// Re-authentication gate.
	assert.ErrorIs(t, svc.RequestEmailChange(ctx, acct, "new@test.com", "wrong"),
		lifecycle.ErrBadCredentials)
	assert.Empty(t, mail.sent)

	require.NoError(t, svc.RequestEmailChange(ctx, acct, "new@test.com", "cat"))
	// The token goes to the new address, not the old one.
	assert.Equal(t, "new@test.com", mail.sent[0].To)
	raw := mail.lastToken(t)

	require.NoError(t, svc.ApplyEmailChange(ctx, acct, raw))
	assert.Equal(t, "new@test.com", acct.Email)

	// Single use: a successful change burns the token.
	assert.ErrorIs(t, svc.ApplyEmailChange(ctx, acct, raw), lifecycle.ErrTokenInvalid)
}

func TestEmailChangeUniquenessAtRedemption(t *testing.T) {
	dir := newFakeDirectory()
	mail := &fakeMailer{}
	svc := newTestService(dir, mail)
	ctx := context.Background()

	acct := seedAccount(dir, "old@test.com", "cat")
	require.NoError(t, svc.RequestEmailChange(ctx, acct, "new@test.com", "cat"))
	raw := mail.lastToken(t)

	// The address gets claimed between issuance and redemption.
	squatter := seedAccount(dir, "new@test.com", "dog")

	assert.ErrorIs(t, svc.ApplyEmailChange(ctx, acct, raw), repository.ErrEmailExists)
	assert.Equal(t, "old@test.com", acct.Email)

	// The conflict must not burn the still-valid token: once the address
	// frees up, the same link works.
	delete(dir.accounts, squatter.ID)
	require.NoError(t, svc.ApplyEmailChange(ctx, acct, raw))
	assert.Equal(t, "new@test.com", acct.Email)
}

func TestResetTokenSingleUse(t *testing.T) {
	dir := newFakeDirectory()
	mail := &fakeMailer{}
	svc := newTestService(dir, mail)
	ctx := context.Background()

	acct := seedAccount(dir, "jim@test.com", "cat")
	require.NoError(t, svc.RequestPasswordReset(ctx, "jim@test.com"))
	raw := mail.lastToken(t)

	require.NoError(t, svc.ResetPassword(ctx, "jim@test.com", raw, "horse"))
	assert.ErrorIs(t, svc.ResetPassword(ctx, "jim@test.com", raw, "mouse"),
		lifecycle.ErrTokenInvalid)
	assert.True(t, utils.VerifyPassword(*acct.PasswordHash, "horse"))
}

func TestInviteFlow(t *testing.T) {
	dir := newFakeDirectory()
	mail := &fakeMailer{}
	svc := newTestService(dir, mail)
	ctx := context.Background()

	company := &model.Company{ID: 3, Name: "Acme"}

	pending, err := svc.Invite(ctx, company, "new@x.com")
	require.NoError(t, err)
	assert.False(t, pending.Confirmed)
	assert.Nil(t, pending.Username)
	assert.Nil(t, pending.PasswordHash)
	require.NotNil(t, pending.CompanyID)
	assert.Equal(t, uint64(3), *pending.CompanyID)
	assert.Equal(t, "new@x.com", mail.sent[0].To)
	raw := mail.lastToken(t)

	// Redeeming before completion hands back the pending account.
	got, err := svc.RedeemInvite(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, got.ID)
	assert.False(t, got.Confirmed)

	done, err := svc.CompleteInvite(ctx, raw, "newbie", "s3cret")
	require.NoError(t, err)
	assert.True(t, done.Confirmed)
	require.NotNil(t, done.Username)
	assert.Equal(t, "newbie", *done.Username)
	assert.True(t, utils.VerifyPassword(*done.PasswordHash, "s3cret"))

	// A completed invite reads as already activated, not invalid.
	_, err = svc.RedeemInvite(ctx, raw)
	assert.ErrorIs(t, err, lifecycle.ErrAlreadyActivated)
	_, err = svc.CompleteInvite(ctx, raw, "newbie2", "pw2")
	assert.ErrorIs(t, err, lifecycle.ErrAlreadyActivated)
}

func TestInviteRejectsExistingEmail(t *testing.T) {
	dir := newFakeDirectory()
	mail := &fakeMailer{}
	svc := newTestService(dir, mail)
	ctx := context.Background()

	// Emails are unique across every company, not per tenant.
	seedAccount(dir, "taken@x.com", "cat")
	_, err := svc.Invite(ctx, &model.Company{ID: 9}, "taken@x.com")
	assert.ErrorIs(t, err, repository.ErrEmailExists)
	assert.Empty(t, mail.sent)
}

func TestRedeemInviteRejectsOtherPurposes(t *testing.T) {
	dir := newFakeDirectory()
	mail := &fakeMailer{}
	svc := newTestService(dir, mail)
	ctx := context.Background()

	acct := seedAccount(dir, "jim@test.com", "cat")
	require.NoError(t, svc.RequestConfirmation(ctx, acct))
	confirmTok := mail.lastToken(t)

	_, err := svc.RedeemInvite(ctx, confirmTok)
	assert.ErrorIs(t, err, lifecycle.ErrTokenInvalid)

	_, err = svc.RedeemInvite(ctx, "garbage")
	assert.ErrorIs(t, err, lifecycle.ErrTokenInvalid)
}
