package middleware // middleware contains reusable HTTP middleware for the API

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth for downstream guards and handlers.
const (
	CtxAccountID   = "account_id"
	CtxCompanyID   = "company_id"
	CtxPermissions = "permissions"
	CtxFeatures    = "features"
	CtxConfirmed   = "confirmed"
)

// JWTAuth validates a Bearer access token and injects the session claims
// into the request context: account id, company id, permission and feature
// bitmasks and the confirmed flag. The secret must match the one used when
// issuing tokens. Wrap every protected route with this middleware.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			c.Set(CtxAccountID, claimUint(claims, "sub"))
			c.Set(CtxCompanyID, claimUint(claims, "cid"))
			c.Set(CtxPermissions, claimUint(claims, "prm"))
			c.Set(CtxFeatures, claimUint(claims, "ftr"))
			confirmed, _ := claims["cnf"].(bool)
			c.Set(CtxConfirmed, confirmed)
			return next(c)
		}
	}
}

// claimUint reads a numeric claim. JSON numbers decode as float64.
func claimUint(claims jwt.MapClaims, key string) uint64 {
	if f, ok := claims[key].(float64); ok && f >= 0 {
		return uint64(f)
	}
	return 0
}

// AccountID returns the authenticated account id from the context, or 0
// when the request is unauthenticated.
func AccountID(c echo.Context) uint64 { return ctxUint(c, CtxAccountID) }

// CompanyID returns the authenticated account's company id, or 0.
func CompanyID(c echo.Context) uint64 { return ctxUint(c, CtxCompanyID) }

func ctxUint(c echo.Context, key string) uint64 {
	if v, ok := c.Get(key).(uint64); ok {
		return v
	}
	return 0
}
