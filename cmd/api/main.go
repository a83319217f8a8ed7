package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/siva27neelam/story-telling/api/controllers"
	"github.com/siva27neelam/story-telling/api/routes"
	"github.com/siva27neelam/story-telling/internal/app"
	"github.com/siva27neelam/story-telling/pkg/instance"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, logg, err := app.LoadConfig("api")
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap api", err)
		os.Exit(1)
	}
	defer a.Close()

	readiness := map[string]controllers.Pinger{"db": a.DB}
	if a.Redis != nil {
		readiness["redis"] = a.Redis
	}
	if a.GCS != nil {
		readiness["storage"] = a.GCS
	}

	params := routes.Params{
		Config:    cfg,
		Logger:    logg,
		Pipeline:  a.Pipeline,
		Readiness: readiness,
		Gatherer:  a.Registry,
	}
	if a.Redis != nil {
		params.RateLimiter = a.Redis
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(params),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
