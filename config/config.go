package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int
	LogLevel     string
	AutoMigrate  bool

	CORSAllowedOrigins []string

	R2AccountID       string
	R2Endpoint        string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	// Параметры генерации сетки.
	ShuffleParticipants    bool
	TimePerRound           time.Duration
	MinMatchLeadTime       time.Duration
	IntegritySweepInterval time.Duration
}

// StorageEnabled reports whether proof uploads can be configured.
func (c *Config) StorageEnabled() bool {
	return c.R2BucketName != ""
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a variable lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	dbURL := getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intVar(getenv, "SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	cfg := &Config{
		DatabaseURL:        dbURL,
		JWTSecretKey:       jwtKey,
		ServerPort:         port,
		LogLevel:           stringVar(getenv, "LOG_LEVEL", "info"),
		CORSAllowedOrigins: listVar(getenv, "CORS_ALLOWED_ORIGINS", []string{"*"}),
		R2AccountID:        getenv("R2_ACCOUNT_ID"),
		R2Endpoint:         getenv("R2_ENDPOINT"),
		R2AccessKeyID:      getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:  getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:       getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:    getenv("R2_PUBLIC_BASE_URL"),
	}

	if cfg.AutoMigrate, err = boolVar(getenv, "AUTO_MIGRATE", false); err != nil {
		return nil, err
	}
	if cfg.ShuffleParticipants, err = boolVar(getenv, "BRACKET_SHUFFLE", true); err != nil {
		return nil, err
	}
	if cfg.TimePerRound, err = durationVar(getenv, "BRACKET_TIME_PER_ROUND", 0); err != nil {
		return nil, err
	}
	if cfg.MinMatchLeadTime, err = durationVar(getenv, "MATCH_MIN_LEAD_TIME", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.IntegritySweepInterval, err = durationVar(getenv, "INTEGRITY_SWEEP_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.TimePerRound < 0 || cfg.MinMatchLeadTime < 0 {
		return nil, fmt.Errorf("BRACKET_TIME_PER_ROUND and MATCH_MIN_LEAD_TIME must not be negative")
	}
	if cfg.IntegritySweepInterval <= 0 {
		return nil, fmt.Errorf("INTEGRITY_SWEEP_INTERVAL must be positive, got %s", cfg.IntegritySweepInterval)
	}

	return cfg, nil
}

func stringVar(getenv func(string) string, name, def string) string {
	if v := strings.TrimSpace(getenv(name)); v != "" {
		return v
	}
	return def
}

func intVar(getenv func(string) string, name string, def int) (int, error) {
	raw := strings.TrimSpace(getenv(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return v, nil
}

func boolVar(getenv func(string) string, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(getenv(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return v, nil
}

func durationVar(getenv func(string) string, name string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(getenv(name))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return v, nil
}

func listVar(getenv func(string) string, name string, def []string) []string {
	raw := strings.TrimSpace(getenv(name))
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
