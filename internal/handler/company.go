package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"

	"github.com/avendal/tenant-identity/internal/lifecycle"
	"github.com/avendal/tenant-identity/internal/model"
	"github.com/avendal/tenant-identity/internal/repository"
)

// CompanyHandler exposes the tenant surface: company details, member
// listing and removal, and member invitations.
type CompanyHandler struct {
	Companies *repository.CompanyRepo
	Accounts  *repository.AccountRepo
	Lifecycle *lifecycle.Service
}

func NewCompanyHandler(companies *repository.CompanyRepo, accounts *repository.AccountRepo, lc *lifecycle.Service) *CompanyHandler {
	return &CompanyHandler{Companies: companies, Accounts: accounts, Lifecycle: lc}
}

type companyPart struct {
	ID      uint64  `json:"id"`
	Name    string  `json:"name"`
	OwnerID *uint64 `json:"owner_id"`
	Tier    string  `json:"tier,omitempty"`
}

type inviteReq struct {
	Email string `json:"email"`
}

func (r inviteReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// company loads the caller's tenant from the session context.
func (h *CompanyHandler) company(ctx context.Context, c echo.Context) (*model.Company, error) {
	cid := companyID(c)
	if cid == 0 {
		return nil, repository.ErrNotFound
	}
	return h.Companies.GetByID(ctx, cid)
}

// Get returns the caller's company and its subscription tier.
func (h *CompanyHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	company, err := h.company(ctx, c)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load company failed"})
	}
	part := companyPart{ID: company.ID, Name: company.Name, OwnerID: company.OwnerID}
	if feature, err := h.Companies.FeatureOf(ctx, company); err == nil && feature != nil {
		part.Tier = feature.Name
	}
	return c.JSON(http.StatusOK, part)
}

// ListMembers returns all accounts in the caller's company.
func (h *CompanyHandler) ListMembers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	members, err := h.Accounts.ListByCompany(ctx, companyID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list members failed"})
	}
	out := make([]accountPart, 0, len(members))
	for _, m := range members {
		out = append(out, toAccountPart(m))
	}
	return c.JSON(http.StatusOK, out)
}

// RemoveMember deletes an account from the caller's company. The owner
// cannot be removed; members of other companies read as not found.
func (h *CompanyHandler) RemoveMember(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid member id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Accounts.DeleteMember(ctx, id, companyID(c)); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "cannot remove company owner"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "remove member failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Invite creates a pending account in the caller's company and emails an
// invitation token. Addresses already registered anywhere are rejected.
func (h *CompanyHandler) Invite(c echo.Context) error {
	var req inviteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	company, err := h.company(ctx, c)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load company failed"})
	}
	pending, err := h.Lifecycle.Invite(ctx, company, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "invite failed"})
	}
	return c.JSON(http.StatusCreated, toAccountPart(pending))
}
