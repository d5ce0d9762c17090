// Package router wires the HTTP surface of the service.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/avendal/tenant-identity/internal/authz"
	"github.com/avendal/tenant-identity/internal/config"
	"github.com/avendal/tenant-identity/internal/handler"
	"github.com/avendal/tenant-identity/internal/metrics"
	"github.com/avendal/tenant-identity/internal/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth    *handler.AuthHandler
	Account *handler.AccountHandler
	Company *handler.CompanyHandler
	Asset   *handler.AssetHandler
}

// Register mounts all routes. Three zones:
//
//   - public: health, metrics and the unauthenticated auth flows;
//   - session: routes needing a valid access token but not a confirmed
//     email (the confirmation flow itself, and /me);
//   - confirmed: everything else, additionally behind the confirmed gate
//     and, where marked, permission/feature guards.
func Register(e *echo.Echo, cfg config.Config, rlCfg config.RateLimitConfig, rdb *redis.Client, h Handlers) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	limited := middleware.RateLimit(rlCfg, rdb)

	pub := e.Group("/v1/auth")
	pub.POST("/register", h.Auth.Register, limited)
	pub.POST("/login", h.Auth.Login, limited)
	pub.POST("/refresh", h.Auth.Refresh)
	pub.POST("/logout", h.Auth.Logout)
	pub.POST("/password/forgot", h.Account.ForgotPassword, limited)
	pub.POST("/password/reset", h.Account.ResetPassword, limited)
	pub.POST("/invite/accept", h.Account.AcceptInvite)

	// Valid session required; unconfirmed accounts allowed. This is the
	// only authenticated surface reachable before confirmation.
	sess := e.Group("/v1")
	sess.Use(middleware.JWTAuth(cfg.JWTSecret))
	sess.GET("/me", h.Auth.Me)
	sess.POST("/auth/confirm/request", h.Account.RequestConfirmation)
	sess.POST("/auth/confirm", h.Account.Confirm)

	// Confirmed accounts only.
	conf := e.Group("/v1")
	conf.Use(middleware.JWTAuth(cfg.JWTSecret))
	conf.Use(middleware.RequireConfirmed())
	conf.POST("/auth/email/change", h.Account.RequestEmailChange)
	conf.POST("/auth/email/confirm", h.Account.ApplyEmailChange)

	conf.GET("/company", h.Company.Get)
	conf.GET("/company/members", h.Company.ListMembers)
	conf.DELETE("/company/members/:id", h.Company.RemoveMember,
		middleware.RequirePermission(authz.PermAdmin))
	conf.POST("/invites", h.Company.Invite,
		middleware.RequirePermission(authz.PermInvite), middleware.RequireFeature(authz.FeatureInvites))

	conf.POST("/assets", h.Asset.Create, middleware.RequireFeature(authz.FeatureAssets))
	conf.GET("/assets", h.Asset.List)
	conf.GET("/assets/:token", h.Asset.Get)
}
