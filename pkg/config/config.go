package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wadjakorntonsri/tinylinks/pkg/core/services"
)

type Config struct {
	Port               string
	DatabaseURL        string
	AppEnv             string
	BaseURL            string
	LogLevel           string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	JWTSecret          string
	FrontendURL        string
	AllowedEmails      []string
	StaffEmails        []string

	SlugLength       int
	CheckInterval    time.Duration
	CheckPeriod      time.Duration
	CheckConcurrency int
	CheckRate        float64
	SchedulerEnabled bool
	ValidatorTimeout time.Duration
	ValidatorRetries int
}

func Load() *Config {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", "file:db.sqlite"),
		AppEnv:             getEnv("APP_ENV", "local"),
		BaseURL:            strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
		JWTSecret:          getEnv("JWT_SECRET", "secret"),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:8080/api/v1/links"),
		AllowedEmails:      getList("ALLOWED_EMAILS"),
		StaffEmails:        getList("STAFF_EMAILS"),

		SlugLength:       getInt("TINYLINK_LENGTH", 6),
		CheckInterval:    time.Duration(getInt("TINYLINK_CHECK_INTERVAL", 10)) * time.Minute,
		CheckPeriod:      time.Duration(getInt("TINYLINK_CHECK_PERIOD", 1440)) * time.Minute,
		CheckConcurrency: getInt("TINYLINK_CHECK_CONCURRENCY", 1),
		CheckRate:        getFloat("TINYLINK_CHECK_RATE", 0),
		SchedulerEnabled: getBool("TINYLINK_SCHEDULER_ENABLED", false),
		ValidatorTimeout: getDuration("TINYLINK_VALIDATOR_TIMEOUT", 8*time.Second),
		ValidatorRetries: getInt("TINYLINK_VALIDATOR_RETRIES", 2),
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.SlugLength < 1 || c.SlugLength > 32 {
		errs = append(errs, fmt.Errorf("TINYLINK_LENGTH must be between 1 and 32, got %d", c.SlugLength))
	}
	if c.CheckInterval <= 0 {
		errs = append(errs, errors.New("TINYLINK_CHECK_INTERVAL must be positive"))
	}
	if c.CheckPeriod <= 0 {
		errs = append(errs, errors.New("TINYLINK_CHECK_PERIOD must be positive"))
	}
	if c.CheckConcurrency < 1 {
		errs = append(errs, errors.New("TINYLINK_CHECK_CONCURRENCY must be at least 1"))
	}
	if c.CheckRate < 0 {
		errs = append(errs, errors.New("TINYLINK_CHECK_RATE must not be negative"))
	}
	if c.ValidatorTimeout <= 0 {
		errs = append(errs, errors.New("TINYLINK_VALIDATOR_TIMEOUT must be positive"))
	}
	if c.ValidatorRetries < 0 {
		errs = append(errs, errors.New("TINYLINK_VALIDATOR_RETRIES must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// IsStaff reports whether email is listed in STAFF_EMAILS.
func (c *Config) IsStaff(email string) bool {
	return contains(c.StaffEmails, email)
}

// IsAllowed reports whether email may log in. An empty ALLOWED_EMAILS allows everybody.
func (c *Config) IsAllowed(email string) bool {
	return len(c.AllowedEmails) == 0 || contains(c.AllowedEmails, email)
}

func (c *Config) SlugConfig() services.SlugConfig {
	cfg := services.DefaultSlugConfig()
	cfg.Length = c.SlugLength
	return cfg
}

func (c *Config) ValidatorConfig() services.ValidatorConfig {
	cfg := services.DefaultValidatorConfig()
	cfg.Timeout = c.ValidatorTimeout
	cfg.Retries = c.ValidatorRetries
	return cfg
}

func (c *Config) CheckerConfig() services.CheckerConfig {
	return services.CheckerConfig{
		Interval:    c.CheckInterval,
		Period:      c.CheckPeriod,
		Concurrency: c.CheckConcurrency,
		Rate:        c.CheckRate,
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// Malformed numbers fall back to the default; Validate catches out of range values.
func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

// getDuration accepts Go durations ("8s") or plain seconds ("8").
func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, strings.ToLower(item))
		}
	}
	return out
}

func contains(list []string, email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, item := range list {
		if item == email {
			return true
		}
	}
	return false
}
