package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trustmesh/ssi-bridge/internal/auth"
	"github.com/trustmesh/ssi-bridge/internal/config"
	"github.com/trustmesh/ssi-bridge/internal/credential"
	"github.com/trustmesh/ssi-bridge/internal/identity"
	"github.com/trustmesh/ssi-bridge/internal/ledger"
	"github.com/trustmesh/ssi-bridge/internal/revocation"
	"github.com/trustmesh/ssi-bridge/internal/server"
	"github.com/trustmesh/ssi-bridge/internal/storage"
	"github.com/trustmesh/ssi-bridge/internal/trust"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// Service objects are constructed once here and passed by reference to
	// all dependents; there is no hidden process-wide singleton.
	// TODO: swap the in-memory ledger for the network client once the node
	// endpoints in cfg.Ledger are wired to a real deployment.
	ledgerClient := ledger.NewMemory()
	store := storage.NewMemory()
	trustStore := trust.NewMemory()

	registry := identity.NewRegistry(ledgerClient, logger)
	bitmaps := revocation.NewManager(registry, cfg.BitmapTag, logger)
	trusted := trust.NewRegistry(trustStore)
	issuer := credential.NewIssuer(registry, bitmaps, logger)
	verifier := credential.NewVerifier(registry, bitmaps, trusted, logger)
	authService := auth.NewService(store, store, registry, cfg.ServerSecret, cfg.SessionTTL, logger)

	handler := server.New(cfg, server.Services{
		Registry: registry,
		Bitmaps:  bitmaps,
		Issuer:   issuer,
		Verifier: verifier,
		Trusted:  trusted,
		Auth:     authService,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddress,
		Handler:           server.NewMetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	go func() {
		logger.Info("ssibridged starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	} else {
		logger.Info("shutdown complete")
	}
}
