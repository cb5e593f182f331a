package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 6, cfg.SlugLength)
	assert.Equal(t, 10*time.Minute, cfg.CheckInterval)
	assert.Equal(t, 24*time.Hour, cfg.CheckPeriod)
	assert.Equal(t, 8*time.Second, cfg.ValidatorTimeout)
	assert.Equal(t, 2, cfg.ValidatorRetries)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BASE_URL", "https://tiny.example/")
	t.Setenv("TINYLINK_LENGTH", "8")
	t.Setenv("TINYLINK_CHECK_INTERVAL", "5")
	t.Setenv("TINYLINK_CHECK_PERIOD", "60")
	t.Setenv("TINYLINK_CHECK_CONCURRENCY", "4")
	t.Setenv("TINYLINK_CHECK_RATE", "2.5")
	t.Setenv("TINYLINK_SCHEDULER_ENABLED", "true")
	t.Setenv("TINYLINK_VALIDATOR_TIMEOUT", "3")
	t.Setenv("TINYLINK_VALIDATOR_RETRIES", "0")
	t.Setenv("STAFF_EMAILS", " Admin@Example.com , ops@example.com,")
	t.Setenv("ALLOWED_EMAILS", "alice@example.com")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://tiny.example", cfg.BaseURL)
	assert.Equal(t, 8, cfg.SlugConfig().Length)
	assert.Equal(t, 5*time.Minute, cfg.CheckInterval)
	assert.Equal(t, time.Hour, cfg.CheckPeriod)
	assert.True(t, cfg.SchedulerEnabled)
	assert.Equal(t, []string{"admin@example.com", "ops@example.com"}, cfg.StaffEmails)

	checker := cfg.CheckerConfig()
	assert.Equal(t, 4, checker.Concurrency)
	assert.Equal(t, 2.5, checker.Rate)

	validator := cfg.ValidatorConfig()
	assert.Equal(t, 3*time.Second, validator.Timeout)
	assert.Zero(t, validator.Retries)
	assert.NotEmpty(t, validator.UserAgent)
}

func TestGetDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "1500ms")
	assert.Equal(t, 1500*time.Millisecond, getDuration("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "nonsense")
	assert.Equal(t, time.Second, getDuration("TEST_DURATION", time.Second))
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.SlugLength = 40
	cfg.CheckInterval = 0
	cfg.CheckConcurrency = 0
	cfg.ValidatorRetries = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "TINYLINK_LENGTH")
	assert.ErrorContains(t, err, "TINYLINK_CHECK_INTERVAL")
	assert.ErrorContains(t, err, "TINYLINK_CHECK_CONCURRENCY")
	assert.ErrorContains(t, err, "TINYLINK_VALIDATOR_RETRIES")
}

func TestEmailLists(t *testing.T) {
	cfg := &Config{StaffEmails: []string{"admin@example.com"}}
	assert.True(t, cfg.IsStaff("Admin@Example.com"))
	assert.False(t, cfg.IsStaff("alice@example.com"))
	assert.True(t, cfg.IsAllowed("anyone@example.com"))

	cfg.AllowedEmails = []string{"alice@example.com"}
	assert.True(t, cfg.IsAllowed("alice@example.com"))
	assert.False(t, cfg.IsAllowed("bob@example.com"))
}
