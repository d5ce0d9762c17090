package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/avendal/tenant-identity/internal/config"
	"github.com/avendal/tenant-identity/internal/lifecycle"
	"github.com/avendal/tenant-identity/internal/metrics"
	"github.com/avendal/tenant-identity/internal/model"
	"github.com/avendal/tenant-identity/internal/repository"
	"github.com/avendal/tenant-identity/internal/utils"
)

const dbTimeout = 5 * time.Second

// AuthHandler bundles dependencies for session endpoints.
type AuthHandler struct {
	Cfg       config.Config
	Accounts  *repository.AccountRepo
	Companies *repository.CompanyRepo
	Catalog   *repository.CatalogRepo
	Sessions  *repository.SessionRepo
	Lifecycle *lifecycle.Service
}

func NewAuthHandler(cfg config.Config, accounts *repository.AccountRepo, companies *repository.CompanyRepo, catalog *repository.CatalogRepo, sessions *repository.SessionRepo, lc *lifecycle.Service) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Accounts: accounts, Companies: companies, Catalog: catalog, Sessions: sessions, Lifecycle: lc}
}

// ----- DTOs -----

type registerReq struct {
	CompanyName     string `json:"company_name"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (r registerReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CompanyName, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.Username, validation.Required, validation.Length(2, 64)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 128)),
		validation.Field(&r.PasswordConfirm, validation.Required),
	)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type accountPart struct {
	ID        uint64  `json:"id"`
	Email     string  `json:"email"`
	Username  *string `json:"username"`
	Confirmed bool    `json:"confirmed"`
	CompanyID *uint64 `json:"company_id"`
}

type authResp struct {
	Account accountPart `json:"account"`
	Access  tokenPart   `json:"access"`
	Refresh tokenPart   `json:"refresh"`
}

func toAccountPart(a *model.Account) accountPart {
	return accountPart{ID: a.ID, Email: a.Email, Username: a.Username, Confirmed: a.Confirmed, CompanyID: a.CompanyID}
}

// sessionClaims resolves the bitmasks baked into the access token so that
// the permission and feature guards never need a database round trip.
func (h *AuthHandler) sessionClaims(ctx context.Context, a *model.Account) (utils.SessionClaims, error) {
	sc := utils.SessionClaims{AccountID: a.ID, Confirmed: a.Confirmed}
	role, err := h.Accounts.RoleOf(ctx, a)
	if err != nil {
		return sc, err
	}
	if role != nil {
		sc.Permissions = role.Permissions
	}
	if a.CompanyID != nil {
		sc.CompanyID = *a.CompanyID
		company, err := h.Companies.GetByID(ctx, *a.CompanyID)
		if err != nil {
			return sc, err
		}
		feature, err := h.Companies.FeatureOf(ctx, company)
		if err != nil {
			return sc, err
		}
		if feature != nil {
			sc.Features = feature.Features
		}
	}
	return sc, nil
}

// issueSession mints an access/refresh pair and persists the refresh hash.
func (h *AuthHandler) issueSession(ctx context.Context, a *model.Account) (*authResp, error) {
	sc, err := h.sessionClaims(ctx, a)
	if err != nil {
		return nil, err
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, sc, h.Cfg.AccessTTLMin)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return nil, err
	}
	if err := h.Sessions.StoreRefresh(ctx, a.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, err
	}
	return &authResp{
		Account: toAccountPart(a),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client once
	}, nil
}

// Register creates a company and its owning account in one step, sends the
// confirmation email and returns a session pair. The new account holds the
// admin role of its company; the company starts on the default tier.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if req.Password != req.PasswordConfirm {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "passwords must match"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	adminRole, err := h.Catalog.RoleByName(ctx, "ADMIN")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "role catalog unavailable"})
	}
	tier, err := h.Catalog.DefaultFeature(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "feature catalog unavailable"})
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create account failed"})
	}

	roleID := adminRole.ID
	featureID := tier.ID
	owner := &model.Account{
		Email:        req.Email,
		Username:     &req.Username,
		PasswordHash: &hash,
		Confirmed:    false,
		RoleID:       &roleID,
		AssetToken:   uuid.NewString(),
	}
	company := &model.Company{Name: req.CompanyName, FeatureID: &featureID}

	if err := h.Companies.CreateWithOwner(ctx, company, owner); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		case errors.Is(err, repository.ErrUsernameExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create account failed"})
	}

	if err := h.Lifecycle.RequestConfirmation(ctx, owner); err != nil {
		c.Logger().Errorf("request confirmation: %v", err)
	}

	resp, err := h.issueSession(ctx, owner)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue session failed"})
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a new session pair. The failure
// message never distinguishes a wrong email from a wrong password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	a, err := h.Accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.Login("failure")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !a.HasPassword() || !utils.VerifyPassword(*a.PasswordHash, req.Password) {
		metrics.Login("failure")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
	}

	resp, err := h.issueSession(ctx, a)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue session failed"})
	}
	metrics.Login("success")
	return c.JSON(http.StatusOK, resp)
}

// Refresh validates a refresh token by hash, revokes it and issues a new
// pair (rotation).
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	accountID, err := h.Sessions.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	_ = h.Sessions.RevokeByHash(ctx, hash)

	a, err := h.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}
	resp, err := h.issueSession(ctx, a)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue session failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes the presented refresh token, ending that session.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Sessions.ValidateRefresh(ctx, hash); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	if err := h.Sessions.RevokeByHash(ctx, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	a, err := h.Accounts.GetByID(ctx, accountID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}
	return c.JSON(http.StatusOK, toAccountPart(a))
}
