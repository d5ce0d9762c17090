package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avendal/tenant-identity/internal/authz"
)

// RequirePermission short-circuits to 403 unless the session's role grants
// every requested permission bit. Assumes JWTAuth ran earlier and stored
// the permission mask in the context.
func RequirePermission(want uint64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !authz.Can(ctxUint(c, CtxPermissions), want) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// RequireFeature short-circuits to 403 unless the session's company tier
// grants every requested feature bit.
func RequireFeature(want uint64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !authz.Can(ctxUint(c, CtxFeatures), want) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// RequireConfirmed gates routes on a confirmed email address. Unconfirmed
// accounts may only reach unauthenticated or confirmation-only routes, so
// everything else behind a session also goes behind this guard.
func RequireConfirmed() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if ok, _ := c.Get(CtxConfirmed).(bool); !ok {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "account not confirmed"})
			}
			return next(c)
		}
	}
}
