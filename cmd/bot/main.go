package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/bot"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/config"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/dialog"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/award"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/disposals"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/pricing"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/submission"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/users"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/infra/db"
	httpx "github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/infra/http"
	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/infra/logger"
)

func main() {
	cfgPath := flag.String("config", "config/example.yaml", "path to the YAML config")
	migrationsDir := flag.String("migrations", "migrations", "goose migrations directory")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	if err := db.Migrate(cfg.Postgres.DSN, *migrationsDir); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	table, err := pricing.NewTable(cfg.PricingSpecs())
	if err != nil {
		log.Error("pricing table invalid", "err", err)
		return
	}
	loc, _ := cfg.Location()
	calc := award.NewCalculator(table)
	ledger := disposals.NewRepo(pool)
	coord := submission.New(ledger, calc, log, cfg.Postgres.TxTimeout)
	log.Info("pricing loaded", "materials", table.Len(), "categories", len(table.Categories()))

	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled, pool, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.Error("telegram init failed", "err", err)
		return
	}
	api.Debug = cfg.App.Env == "dev"
	log.Info("bot authorized", "username", api.Self.UserName)

	b := bot.New(api, log, bot.Deps{
		Users:     users.NewRepo(pool),
		States:    dialog.NewRepo(pool),
		Ledger:    ledger,
		Pricing:   table,
		Calc:      calc,
		Submitter: coord,
		Location:  loc,
	})
	if err := b.Run(ctx, cfg.Telegram.PollTimeout); err != nil && ctx.Err() == nil {
		log.Error("bot stopped", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
