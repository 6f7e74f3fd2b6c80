package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"kombatmoto/backend/internal/logger"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	DashboardTTLSeconds   int
	AuthSecret            string
	AccessTokenTTLMinutes int
	ManagerPIN            string

	ShopName            string
	Timezone            string
	DefaultDueDays      int
	DefaultFineRate     decimal.Decimal
	DefaultInterestRate decimal.Decimal
	RevisionIntervalKm  int
	RevisionWindowKm    int

	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadDotEnv reads a .env file into the environment when one exists.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func Load() (Config, error) {
	var errs []error

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               intEnv("REDIS_DB", 0, 0, &errs),
		DashboardTTLSeconds:   intEnv("DASHBOARD_TTL_SECONDS", 20, 1, &errs),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: intEnv("ACCESS_TOKEN_TTL_MINUTES", 480, 1, &errs),
		ManagerPIN:            strings.TrimSpace(os.Getenv("MANAGER_PIN")),

		ShopName:            getEnv("SHOP_NAME", "Kombat Moto Peças"),
		Timezone:            getEnv("TZ_LOCATION", "America/Sao_Paulo"),
		DefaultDueDays:      intEnv("DEFAULT_DUE_DAYS", 30, 1, &errs),
		DefaultFineRate:     rateEnv("DEFAULT_FINE_RATE", "2", &errs),
		DefaultInterestRate: rateEnv("DEFAULT_INTEREST_RATE", "1", &errs),
		RevisionIntervalKm:  intEnv("REVISION_INTERVAL_KM", 3000, 1, &errs),
		RevisionWindowKm:    intEnv("REVISION_WINDOW_KM", 2500, 0, &errs),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		LogOutput: getEnv("LOG_OUTPUT", "stdout"),
	}

	if cfg.RevisionWindowKm >= cfg.RevisionIntervalKm {
		errs = append(errs, fmt.Errorf("REVISION_WINDOW_KM must be below REVISION_INTERVAL_KM"))
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TZ_LOCATION: %w", err))
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) LoggerConfig() logger.LogConfig {
	lc := logger.DefaultConfig()
	if c.LogLevel != "" {
		lc.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		lc.Format = c.LogFormat
	}
	if c.LogOutput != "" {
		lc.Output = c.LogOutput
	}
	return lc
}

func (c Config) DashboardTTL() time.Duration {
	return time.Duration(c.DashboardTTLSeconds) * time.Second
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func intEnv(key string, fallback int, min int, errs *[]error) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, raw))
		return fallback
	}
	if val < min {
		*errs = append(*errs, fmt.Errorf("%s must be at least %d", key, min))
		return fallback
	}
	return val
}

func rateEnv(key string, fallback string, errs *[]error) decimal.Decimal {
	raw := strings.ReplaceAll(getEnv(key, fallback), ",", ".")
	val, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a decimal", key, raw))
		return decimal.RequireFromString(fallback)
	}
	if val.IsNegative() {
		*errs = append(*errs, fmt.Errorf("%s must not be negative", key))
		return decimal.RequireFromString(fallback)
	}
	return val
}
