package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"

	"github.com/avendal/tenant-identity/internal/lifecycle"
	"github.com/avendal/tenant-identity/internal/model"
	"github.com/avendal/tenant-identity/internal/repository"
)

// AccountHandler exposes the token-based lifecycle flows: confirmation,
// password reset, email change and invite acceptance. Token failures are
// always answered with the same generic wording.
type AccountHandler struct {
	Accounts  *repository.AccountRepo
	Lifecycle *lifecycle.Service
}

func NewAccountHandler(accounts *repository.AccountRepo, lc *lifecycle.Service) *AccountHandler {
	return &AccountHandler{Accounts: accounts, Lifecycle: lc}
}

const msgTokenInvalid = "invalid or expired token"

// current loads the authenticated account from the directory.
func (h *AccountHandler) current(ctx context.Context, c echo.Context) (*model.Account, error) {
	return h.Accounts.GetByID(ctx, accountID(c))
}

type tokenReq struct {
	Token string `json:"token"`
}

type forgotReq struct {
	Email string `json:"email"`
}

type resetReq struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r resetReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 128)),
	)
}

type changeEmailReq struct {
	NewEmail string `json:"new_email"`
	Password string `json:"password"`
}

func (r changeEmailReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.NewEmail, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type acceptInviteReq struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r acceptInviteReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Username, validation.Required, validation.Length(2, 64)),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 128)),
	)
}

// RequestConfirmation re-sends the confirmation email with a fresh token.
func (h *AccountHandler) RequestConfirmation(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	a, err := h.current(ctx, c)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}
	if a.Confirmed {
		return c.JSON(http.StatusOK, echo.Map{"status": "already confirmed"})
	}
	if err := h.Lifecycle.RequestConfirmation(ctx, a); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "request failed"})
	}
	return c.JSON(http.StatusAccepted, echo.Map{"status": "confirmation sent"})
}

// Confirm redeems a confirmation token for the current account.
func (h *AccountHandler) Confirm(c echo.Context) error {
	var req tokenReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	a, err := h.current(ctx, c)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}
	if err := h.Lifecycle.Confirm(ctx, a, strings.TrimSpace(req.Token)); err != nil {
		if errors.Is(err, lifecycle.ErrTokenInvalid) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": msgTokenInvalid})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "confirm failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "confirmed"})
}

// ForgotPassword always answers 202 with identical wording whether or not
// the address exists, so the endpoint cannot enumerate accounts.
func (h *AccountHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Lifecycle.RequestPasswordReset(ctx, strings.TrimSpace(req.Email)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "request failed"})
	}
	return c.JSON(http.StatusAccepted, echo.Map{"status": "if the address exists, a reset email was sent"})
}

// ResetPassword redeems a reset token and replaces the credential.
func (h *AccountHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	err := h.Lifecycle.ResetPassword(ctx, strings.TrimSpace(req.Email), strings.TrimSpace(req.Token), req.Password)
	if err != nil {
		if errors.Is(err, lifecycle.ErrTokenInvalid) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": msgTokenInvalid})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "password updated"})
}

// RequestEmailChange re-verifies the password and emails a change token to
// the new address.
func (h *AccountHandler) RequestEmailChange(c echo.Context) error {
	var req changeEmailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	a, err := h.current(ctx, c)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}
	err = h.Lifecycle.RequestEmailChange(ctx, a, strings.TrimSpace(req.NewEmail), req.Password)
	if err != nil {
		if errors.Is(err, lifecycle.ErrBadCredentials) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "request failed"})
	}
	return c.JSON(http.StatusAccepted, echo.Map{"status": "confirmation sent to new address"})
}

// ApplyEmailChange redeems a change-email token and overwrites the address.
func (h *AccountHandler) ApplyEmailChange(c echo.Context) error {
	var req tokenReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	a, err := h.current(ctx, c)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}
	if err := h.Lifecycle.ApplyEmailChange(ctx, a, strings.TrimSpace(req.Token)); err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrTokenInvalid):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": msgTokenInvalid})
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "email change failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "email updated", "email": a.Email})
}

// AcceptInvite completes a pending invited account: the caller presents the
// invite token plus a chosen username and password. A token whose account
// already finished setup gets a distinct "already activated" answer.
func (h *AccountHandler) AcceptInvite(c echo.Context) error {
	var req acceptInviteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	a, err := h.Lifecycle.CompleteInvite(ctx, strings.TrimSpace(req.Token), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrAlreadyActivated):
			return c.JSON(http.StatusConflict, echo.Map{"error": "account already activated"})
		case errors.Is(err, lifecycle.ErrTokenInvalid):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": msgTokenInvalid})
		case errors.Is(err, repository.ErrUsernameExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "accept invite failed"})
	}
	return c.JSON(http.StatusOK, toAccountPart(a))
}
