package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpapi "github.com/lancehub/lancehub/internal/api/http"
	"github.com/lancehub/lancehub/internal/application/auth"
	"github.com/lancehub/lancehub/internal/application/dispatch"
	"github.com/lancehub/lancehub/internal/application/negotiation"
	appProject "github.com/lancehub/lancehub/internal/application/project"
	"github.com/lancehub/lancehub/internal/config"
	"github.com/lancehub/lancehub/internal/infrastructure/postgres"
	"github.com/lancehub/lancehub/internal/infrastructure/sse"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	// repositories
	bidRepo := postgres.NewBidRepository(pool)
	projectRepo := postgres.NewProjectRepository(pool)
	accountRepo := postgres.NewAccountRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	filterRepo := postgres.NewFilterRepository(pool)

	// infrastructure
	sseHub := sse.NewHub()
	dispatcher := dispatch.New(sseHub, filterRepo, cfg.EventBuffer, logger)
	go dispatcher.Run(ctx)

	// services
	negotiationSvc := negotiation.NewService(bidRepo, projectRepo, dispatcher, logger)
	projectSvc := appProject.NewService(projectRepo, logger)
	authSvc := auth.NewService(accountRepo, sessionRepo, cfg.SessionTTL, logger)

	// API server
	apiServer := httpapi.NewServer(negotiationSvc, projectSvc, authSvc, filterRepo, sseHub, cfg.SessionCookieName, cfg.SessionCookieSecure)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// background loops
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := authSvc.PruneSessions(context.Background()); err != nil {
					logger.Warn().Err(err).Msg("session prune failed")
				} else if n > 0 {
					logger.Info().Int64("pruned", n).Msg("expired sessions removed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// start server
	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
	sseHub.Stop()
}
