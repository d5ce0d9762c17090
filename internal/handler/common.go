package handler // handler defines the HTTP handlers of the API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avendal/tenant-identity/internal/middleware"
	"github.com/avendal/tenant-identity/internal/model"
)

// accountID extracts the authenticated account id placed in the context by
// the JWT middleware.
func accountID(c echo.Context) uint64 { return middleware.AccountID(c) }

// companyID extracts the authenticated account's company id.
func companyID(c echo.Context) uint64 { return middleware.CompanyID(c) }

// viewer models the authenticated session as an account for ownership
// checks without a database read; id and company come from the token.
func viewer(c echo.Context) *model.Account {
	a := &model.Account{ID: accountID(c)}
	if cid := companyID(c); cid != 0 {
		a.CompanyID = &cid
	}
	return a
}

// Health is a simple health-check endpoint for load balancers and
// monitoring systems.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
