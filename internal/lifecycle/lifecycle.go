// Package lifecycle drives the token-based account flows: email
// confirmation, password reset, email change and invitation. Every
// operation takes the acting account or company explicitly; nothing here
// reads ambient session state, so the package is testable without a request
// context.
//
// Failure semantics: every redemption failure surfaces as ErrTokenInvalid.
// Wrong purpose, wrong subject, expiry, replay and corruption are never
// distinguished to the caller.
package lifecycle

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/avendal/tenant-identity/internal/mailer"
	"github.com/avendal/tenant-identity/internal/metrics"
	"github.com/avendal/tenant-identity/internal/model"
	"github.com/avendal/tenant-identity/internal/repository"
	"github.com/avendal/tenant-identity/internal/token"
	"github.com/avendal/tenant-identity/internal/utils"
)

// ErrTokenInvalid is the single outward signal for any failed redemption.
var ErrTokenInvalid = errors.New("invalid or expired token")

// ErrBadCredentials is returned when a re-authentication check fails, with
// identical wording regardless of what was wrong.
var ErrBadCredentials = errors.New("invalid email or password")

// ErrAlreadyActivated distinguishes a consumed invite from an invalid one:
// the account behind the token has already completed setup.
var ErrAlreadyActivated = errors.New("account already activated")

// Accounts is the slice of the directory the lifecycle needs. Implemented
// by repository.AccountRepo; tests substitute an in-memory fake.
type Accounts interface {
	GetByID(ctx context.Context, id uint64) (*model.Account, error)
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	Create(ctx context.Context, a *model.Account) error
	UpdatePasswordHash(ctx context.Context, id uint64, hash string) error
	SetConfirmed(ctx context.Context, id uint64) error
	UpdateEmail(ctx context.Context, id uint64, email string) error
	CompleteInvite(ctx context.Context, id uint64, username, hash string) error
}

// Catalog resolves the default role for invited accounts.
type Catalog interface {
	DefaultRole(ctx context.Context) (*model.Role, error)
}

// TokenUsage tracks single-use redemption of lifecycle tokens. Implemented
// by token.ConsumedStore; tests substitute an in-memory fake.
type TokenUsage interface {
	Consume(ctx context.Context, raw string, ttl time.Duration) bool
	Release(ctx context.Context, raw string)
}

// Config carries the knobs the service needs; zero TTLs get defaults.
type Config struct {
	BcryptCost int
	ConfirmTTL time.Duration
	ResetTTL   time.Duration
	ChangeTTL  time.Duration
	InviteTTL  time.Duration
	BaseURL    string
}

// Service implements the account lifecycle state machine.
type Service struct {
	accounts Accounts
	catalog  Catalog
	codec    *token.Codec
	used     TokenUsage
	mail     mailer.Mailer
	cfg      Config
}

func NewService(accounts Accounts, catalog Catalog, codec *token.Codec, used TokenUsage, mail mailer.Mailer, cfg Config) *Service {
	if cfg.ConfirmTTL <= 0 {
		cfg.ConfirmTTL = 24 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if cfg.ChangeTTL <= 0 {
		cfg.ChangeTTL = time.Hour
	}
	if cfg.InviteTTL <= 0 {
		cfg.InviteTTL = 7 * 24 * time.Hour
	}
	return &Service{accounts: accounts, catalog: catalog, codec: codec, used: used, mail: mail, cfg: cfg}
}

// dispatch issues a purpose token for the account and emails it. Mailer
// failures are logged, not propagated: the core does not observe delivery.
func (s *Service) dispatch(ctx context.Context, purpose token.Purpose, accountID uint64, extra, to, subject, template string, ttl time.Duration) error {
	raw, err := s.codec.Issue(purpose, accountID, extra, ttl)
	if err != nil {
		return err
	}
	metrics.TokenIssued(string(purpose))
	data := map[string]string{"token": raw}
	if s.cfg.BaseURL != "" {
		data["link"] = s.cfg.BaseURL + "?token=" + raw
	}
	if err := s.mail.Send(ctx, to, subject, template, data); err != nil {
		log.Printf("lifecycle: email dispatch failed (to=%s template=%s): %v", to, template, err)
	}
	return nil
}

// redeem decodes raw and checks purpose, subject and single-use in one
// place. Every failure collapses to ErrTokenInvalid.
func (s *Service) redeem(ctx context.Context, raw string, purpose token.Purpose, subject uint64, ttl time.Duration) (token.Payload, error) {
	p, err := s.codec.Redeem(raw)
	if err != nil || p.Purpose != purpose || (subject != 0 && p.AccountID != subject) {
		metrics.TokenRedeemed(string(purpose), "invalid")
		return token.Payload{}, ErrTokenInvalid
	}
	if !s.used.Consume(ctx, raw, ttl) {
		metrics.TokenRedeemed(string(purpose), "replayed")
		return token.Payload{}, ErrTokenInvalid
	}
	metrics.TokenRedeemed(string(purpose), "ok")
	return p, nil
}

// RequestConfirmation issues a fresh confirm token for the account and
// dispatches it. Safe to call repeatedly; account state is untouched until
// redemption.
func (s *Service) RequestConfirmation(ctx context.Context, acct *model.Account) error {
	return s.dispatch(ctx, token.PurposeConfirm, acct.ID, "", acct.Email,
		"Confirm Your Account", "auth/confirm", s.cfg.ConfirmTTL)
}

// Confirm redeems a confirm token for the account and flips the confirmed
// flag. Already-confirmed accounts short-circuit to success without
// consuming the token.
func (s *Service) Confirm(ctx context.Context, acct *model.Account, raw string) error {
	if acct.Confirmed {
		return nil
	}
	if _, err := s.redeem(ctx, raw, token.PurposeConfirm, acct.ID, s.cfg.ConfirmTTL); err != nil {
		return err
	}
	if err := s.accounts.SetConfirmed(ctx, acct.ID); err != nil {
		return err
	}
	acct.Confirmed = true
	return nil
}

// RequestPasswordReset looks the account up by email and dispatches a reset
// token. A missing account still reports success to the caller and sends
// nothing, so the endpoint cannot be used to enumerate addresses.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.dispatch(ctx, token.PurposeReset, acct.ID, "", acct.Email,
		"Reset Your Password", "auth/reset", s.cfg.ResetTTL)
}

// ResetPassword redeems a reset token for the account behind email and
// overwrites the stored credential. A missing account is reported exactly
// like a bad token.
func (s *Service) ResetPassword(ctx context.Context, email, raw, newPlain string) error {
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTokenInvalid
		}
		return err
	}
	if _, err := s.redeem(ctx, raw, token.PurposeReset, acct.ID, s.cfg.ResetTTL); err != nil {
		return err
	}
	hash, err := utils.HashPassword(newPlain, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	return s.accounts.UpdatePasswordHash(ctx, acct.ID, hash)
}

// RequestEmailChange re-verifies the current password, then dispatches a
// change-email token carrying the new address to that address (not the old
// one). The re-auth step defends against a hijacked session changing the
// account's recovery path.
func (s *Service) RequestEmailChange(ctx context.Context, acct *model.Account, newEmail, currentPassword string) error {
	if acct.PasswordHash == nil || !utils.VerifyPassword(*acct.PasswordHash, currentPassword) {
		return ErrBadCredentials
	}
	return s.dispatch(ctx, token.PurposeChangeEmail, acct.ID, newEmail, newEmail,
		"Confirm Your New Email Address", "auth/change_email", s.cfg.ChangeTTL)
}

// ApplyEmailChange redeems a change-email token and overwrites the address.
// Uniqueness is re-validated at redemption time by the accounts unique key,
// closing the race where the address was claimed after issuance. When that
// write fails the token is handed back, so the user can retry with the same
// link once the conflict clears instead of restarting the flow.
func (s *Service) ApplyEmailChange(ctx context.Context, acct *model.Account, raw string) error {
	p, err := s.redeem(ctx, raw, token.PurposeChangeEmail, acct.ID, s.cfg.ChangeTTL)
	if err != nil {
		return err
	}
	if p.Extra == "" {
		return ErrTokenInvalid
	}
	if err := s.accounts.UpdateEmail(ctx, acct.ID, p.Extra); err != nil {
		s.used.Release(ctx, raw)
		return err
	}
	acct.Email = p.Extra
	return nil
}

// Invite creates a pending member account (email only, unconfirmed, no
// password) in the company and dispatches an invite token. Emails are
// unique across all companies; an address already registered anywhere is
// rejected.
func (s *Service) Invite(ctx context.Context, company *model.Company, email string) (*model.Account, error) {
	role, err := s.catalog.DefaultRole(ctx)
	if err != nil {
		return nil, err
	}
	companyID := company.ID
	roleID := role.ID
	acct := &model.Account{
		Email:      email,
		Confirmed:  false,
		CompanyID:  &companyID,
		RoleID:     &roleID,
		AssetToken: uuid.NewString(),
	}
	// The unique key decides the race; a prior read would not.
	if err := s.accounts.Create(ctx, acct); err != nil {
		return nil, err
	}
	if err := s.dispatch(ctx, token.PurposeInvite, acct.ID, "", acct.Email,
		"You Have Been Invited", "auth/invite", s.cfg.InviteTTL); err != nil {
		return nil, err
	}
	return acct, nil
}

// RedeemInvite decodes an invite token and returns the pending account so
// the caller can collect a username and password. A token whose account has
// already completed setup signals ErrAlreadyActivated rather than invalid.
// The token is not consumed here; CompleteInvite consumes it.
func (s *Service) RedeemInvite(ctx context.Context, raw string) (*model.Account, error) {
	p, err := s.codec.Redeem(raw)
	if err != nil || p.Purpose != token.PurposeInvite {
		metrics.TokenRedeemed(string(token.PurposeInvite), "invalid")
		return nil, ErrTokenInvalid
	}
	acct, err := s.accounts.GetByID(ctx, p.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if acct.Confirmed {
		return nil, ErrAlreadyActivated
	}
	return acct, nil
}

// CompleteInvite finishes setup for a pending invited account: it consumes
// the invite token, sets the chosen username and password and confirms the
// account.
func (s *Service) CompleteInvite(ctx context.Context, raw, username, password string) (*model.Account, error) {
	acct, err := s.RedeemInvite(ctx, raw)
	if err != nil {
		return nil, err
	}
	if !s.used.Consume(ctx, raw, s.cfg.InviteTTL) {
		return nil, ErrTokenInvalid
	}
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.CompleteInvite(ctx, acct.ID, username, hash); err != nil {
		return nil, err
	}
	acct.Confirmed = true
	acct.Username = &username
	acct.PasswordHash = &hash
	return acct, nil
}
