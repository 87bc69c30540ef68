// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/openclub/courtbook/internal/booking"
	"github.com/openclub/courtbook/internal/config"
	"github.com/openclub/courtbook/internal/db"
	"github.com/openclub/courtbook/internal/scheduler"
)

type Config struct {
	Port            string
	Environment     string
	DatabasePath    string
	HoldTTL         time.Duration
	SweepCron       string
	MaxAdvanceDays  int
	ShutdownTimeout time.Duration
}

func loadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found")
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		DatabasePath:    getEnv("DATABASE_PATH", "data/courtbook.db"),
		HoldTTL:         time.Duration(getEnvAsInt("HOLD_TTL_MINUTES", 10)) * time.Minute,
		SweepCron:       getEnv("SWEEP_CRON", "* * * * *"),
		MaxAdvanceDays:  getEnvAsInt("MAX_ADVANCE_DAYS", 60),
		ShutdownTimeout: time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 30)) * time.Second,
	}

	// A YAML config file takes precedence over individual env vars.
	if path := getEnv("CONFIG_PATH", ""); path != "" {
		fileCfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		cfg.Port = strconv.Itoa(fileCfg.App.Port)
		cfg.Environment = fileCfg.App.Environment
		cfg.DatabasePath = fileCfg.Database.Filename
		cfg.HoldTTL = fileCfg.Booking.HoldTTL
		cfg.SweepCron = fileCfg.Booking.SweepCron
		cfg.MaxAdvanceDays = fileCfg.Booking.MaxAdvanceDays
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	config, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(config.Environment)

	database, err := db.New(config.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	clock := clockwork.NewRealClock()
	svc := booking.NewService(database, clock,
		booking.WithHoldTTL(config.HoldTTL),
		booking.WithMaxAdvanceDays(config.MaxAdvanceDays),
	)
	ingestor := booking.NewPaymentIngestor(database, clock, svc)

	sched, err := scheduler.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	if err := sched.RegisterSweepJob(svc, config.SweepCron); err != nil {
		log.Fatal().Err(err).Msg("Failed to register sweep job")
	}
	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop scheduler")
		}
	}()

	// Create server instance
	server := newServer(config, svc, ingestor)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Run server
	g.Go(func() error {
		log.Info().Str("port", config.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Wait for interrupt signal
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}
