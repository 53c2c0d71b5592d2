package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/heist-sync/internal/config"
	"github.com/DoyleJ11/heist-sync/internal/engine"
	"github.com/DoyleJ11/heist-sync/internal/httpapi"
	"github.com/DoyleJ11/heist-sync/internal/hub"
	"github.com/DoyleJ11/heist-sync/internal/logging"
)

func main() {
	dotenvErr := config.LoadDotenv()
	cfg := config.LoadServer()

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	if dotenvErr != nil {
		log.Debug("no .env loaded", zap.Error(dotenvErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rules := engine.DefaultRules()
	rules.MinPlayers = cfg.MinPlayers
	rules.WinThreshold = cfg.WinThreshold

	// Tables stop with ctx.
	h := hub.NewHub(ctx, hub.WithLogger(log))

	// Build the router *with* the hub injected
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(h, httpapi.Options{
			Logger:         log,
			Rules:          rules,
			OriginPatterns: cfg.AllowedOrigins,
		}),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server stopped")
}
