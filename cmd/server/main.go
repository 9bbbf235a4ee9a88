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

	"caixa/internal/config"
	"caixa/internal/infra"
	"caixa/internal/router"
	"caixa/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	if cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	var db *gorm.DB
	if cfg.DatabaseDriver != infra.DriverMemory {
		db, err = infra.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to open database")
		}
	} else {
		log.Warn().Msg("DATABASE_DRIVER=memory: payments are lost on restart")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := router.Wire(cfg, db, rdb, reg, ctx.Done())

	// Background exports need the Redis queue.
	if rdb != nil {
		pool := worker.NewPool(rdb, &worker.WorkerHandlers{Export: app.Exports}, app.Metrics)
		pool.Start(ctx, cfg.WorkerPoolSize)
		worker.StartExportSweeper(ctx, worker.SweeperConfig{
			Days:       app.Ledger,
			Dispatcher: app.Dispatcher,
			Exports:    app.Exports,
		})
	} else {
		log.Info().Msg("REDIS_URL not set: report cache and background exports disabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      app.Engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("caixa listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("server exited")
}
