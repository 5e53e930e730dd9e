package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/eardogger/internal/config"
	"github.com/Skotchmaster/eardogger/internal/httpserver"
	"github.com/Skotchmaster/eardogger/internal/logging"
	"github.com/Skotchmaster/eardogger/internal/metric"
	"github.com/Skotchmaster/eardogger/internal/repo"
)

const sessionSweepInterval = time.Hour

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	config.MustNonEmptyBytes(cfg.CookieSecret, "COOKIE_SECRET")

	log := logging.New(cfg.LogLevel, cfg.Dev)

	store, err := repo.Open(cfg.DatabaseFile)
	if err != nil {
		log.Error("can't open database", "file", cfg.DatabaseFile, "error", err)
		os.Exit(1)
	}
	if err := store.Migrate(); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	httpserver.Register(e, &httpserver.Deps{Repo: store, Cfg: cfg, Log: log})

	rootCtx, stop := signal.NotifyContext(logging.IntoContext(context.Background(), log), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepSessions(rootCtx, store)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.ServerPort)
		log.Info("listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown was not clean", "error", err)
	}
	// Close drains the pending background writes before releasing the db.
	if err := store.Close(); err != nil {
		log.Warn("closing database", "error", err)
	}
}

// sweepSessions clears out expired session rows every hour. Expired sessions
// are already invisible to authentication; this just keeps the table from
// growing forever.
func sweepSessions(ctx context.Context, store *repo.Repo) {
	log := logging.FromContext(ctx)
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := store.DeleteExpiredSessions(ctx)
			if err != nil {
				log.Warn("session sweep failed", "error", err)
				continue
			}
			if swept > 0 {
				metric.ExpiredSessionsSwept.Add(float64(swept))
				log.Info("swept expired sessions", "count", swept)
			}
		}
	}
}
