package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/avendal/tenant-identity/internal/config"
	"github.com/avendal/tenant-identity/internal/database"
	"github.com/avendal/tenant-identity/internal/handler"
	"github.com/avendal/tenant-identity/internal/lifecycle"
	"github.com/avendal/tenant-identity/internal/mailer"
	"github.com/avendal/tenant-identity/internal/metrics"
	"github.com/avendal/tenant-identity/internal/queue"
	"github.com/avendal/tenant-identity/internal/repository"
	"github.com/avendal/tenant-identity/internal/router"
	"github.com/avendal/tenant-identity/internal/token"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()
	metrics.Init()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; tokens are single-use by state transition only and rate limiting is off")
	}

	accounts := repository.NewAccountRepo(db)
	companies := repository.NewCompanyRepo(db)
	assets := repository.NewAssetRepo(db)
	catalog := repository.NewCatalogRepo(db)
	sessions := repository.NewSessionRepo(db)

	codec := token.NewCodec(cfg.JWTSecret)
	used := token.NewConsumedStore(rdb)
	mail := mailer.NewAMQPMailer()

	lc := lifecycle.NewService(accounts, catalog, codec, used, mail, lifecycle.Config{
		BcryptCost: cfg.BcryptCost,
		ConfirmTTL: cfg.ConfirmTTL,
		ResetTTL:   cfg.ResetTTL,
		ChangeTTL:  cfg.ChangeTTL,
		InviteTTL:  cfg.InviteTTL,
		BaseURL:    cfg.BaseURL,
	})

	// Drain outbound email requests in the background; the loop reconnects
	// on broker failures and never stops the server.
	go func() {
		if err := queue.StartEmailConsumer(); err != nil {
			log.Printf("email consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.Register(e, cfg, config.LoadRateLimitConfig(), rdb, router.Handlers{
		Auth:    handler.NewAuthHandler(cfg, accounts, companies, catalog, sessions, lc),
		Account: handler.NewAccountHandler(accounts, lc),
		Company: handler.NewCompanyHandler(companies, accounts, lc),
		Asset:   handler.NewAssetHandler(assets),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
