package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"kombatmoto/backend/internal/cache"
	"kombatmoto/backend/internal/clock"
	"kombatmoto/backend/internal/config"
	"kombatmoto/backend/internal/httpapi"
	"kombatmoto/backend/internal/logger"
	"kombatmoto/backend/internal/service"
	"kombatmoto/backend/internal/store"
	"kombatmoto/backend/internal/store/memory"
	pgstore "kombatmoto/backend/internal/store/postgres"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "read .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Setup(cfg.LoggerConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "logger setup: %v\n", err)
		os.Exit(1)
	}
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}

	clk, err := clock.NewSystem(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("tz", cfg.Timezone).Msg("unknown timezone")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("schema migration failed")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info().Msg("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Info().Msg("repository: in-memory")
	}

	dashboardCache := cache.DashboardCache(cache.NoopDashboardCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisDashboardCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using noop cache")
		} else {
			dashboardCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info().Msg("cache: redis")
		}
	} else {
		log.Info().Msg("cache: noop")
	}

	svc := service.New(repo, service.Options{
		Clock:               clk,
		ShopName:            cfg.ShopName,
		Cache:               dashboardCache,
		CacheTTL:            cfg.DashboardTTL(),
		DefaultDueDays:      cfg.DefaultDueDays,
		DefaultFineRate:     &cfg.DefaultFineRate,
		DefaultInterestRate: &cfg.DefaultInterestRate,
		RevisionIntervalKm:  cfg.RevisionIntervalKm,
		RevisionWindowKm:    cfg.RevisionWindowKm,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.TokenTTL(), cfg.ManagerPIN, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Str("shop", cfg.ShopName).Msg("backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return errors.New("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return errors.New("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

var weakPINs = []string{"123456", "654321", "000000", "111111", "121212", "112233", "123123", "102030"}

// validatePINStrength rejects non-numeric, repeated, sequential and well-known PINs.
func validatePINStrength(pin string) error {
	if strings.Trim(pin, "0123456789") != "" {
		return errors.New("PIN must contain digits only")
	}
	if slices.Contains(weakPINs, pin) {
		return errors.New("common PIN not allowed")
	}
	if strings.Count(pin, pin[:1]) == len(pin) {
		return errors.New("all-same-digit PIN not allowed")
	}
	step := int(pin[1]) - int(pin[0])
	if step == 1 || step == -1 {
		sequential := true
		for i := 2; i < len(pin); i++ {
			if int(pin[i])-int(pin[i-1]) != step {
				sequential = false
				break
			}
		}
		if sequential {
			return errors.New("sequential PIN not allowed")
		}
	}
	return nil
}
