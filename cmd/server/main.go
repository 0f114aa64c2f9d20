package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shareit/internal/api"
	"shareit/internal/config"
	"shareit/internal/database"
	"shareit/internal/events"
	"shareit/internal/logging"
	"shareit/internal/metrics"
	"shareit/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()
	eventBus := newEventBus(&logger)
	services := buildServices(db, eventBus, &logger)

	backupLogger := logger.With().Str("component", "backup").Logger()
	backup := database.NewBackupService(db, cfg.Database.Path, cfg.Backup, &backupLogger)
	go backup.Start(ctx)

	startMetrics(ctx, cfg, &logger)

	httpLogger := logger.With().Str("component", "http").Logger()
	httpServer := api.NewHTTPServer(cfg, services, db, &httpLogger)

	return serve(ctx, httpServer, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "server-main").Logger()

	return cfg, logger, closer, nil
}

// newEventBus wires booking lifecycle events to metrics and the log.
func newEventBus(logger *zerolog.Logger) *events.EventBus {
	bus := events.NewEventBus()
	eventLogger := logger.With().Str("component", "events").Logger()

	bus.OnError(func(event *events.Event, err error) {
		eventLogger.Error().Err(err).Str("type", event.Type).Msg("event handler failed")
	})

	for _, eventType := range events.BookingEventTypes {
		bus.Subscribe(eventType, func(event *events.Event) error {
			metrics.IncBookingEvent(event.Type)
			return nil
		})
		bus.Subscribe(eventType, func(event *events.Event) error {
			payload, err := event.DecodeBookingPayload()
			if err != nil {
				return err
			}
			eventLogger.Info().
				Str("type", event.Type).
				Int64("booking_id", payload.BookingID).
				Int64("item_id", payload.ItemID).
				Int64("booker_id", payload.BookerID).
				Str("status", payload.Status).
				Msg("booking event")
			return nil
		})
	}

	return bus
}

func buildServices(db *database.DB, bus *events.EventBus, logger *zerolog.Logger) api.Services {
	serviceLogger := logger.With().Str("component", "service").Logger()

	bookings := service.NewBookingService(db, db, db, bus, &serviceLogger)
	return api.Services{
		Users:    service.NewUserService(db, &serviceLogger),
		Items:    service.NewItemService(db, db, db, db, db, bookings, &serviceLogger),
		Bookings: bookings,
		Requests: service.NewRequestService(db, db, db, &serviceLogger),
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}

	logger.Info().Msg("server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
