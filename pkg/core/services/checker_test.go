package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/tinylinks/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/tinylinks/pkg/core/domain"
)

func TestBatchSize(t *testing.T) {
	tests := []struct {
		name     string
		total    int64
		interval time.Duration
		period   time.Duration
		want     int
	}{
		{name: "spread over period", total: 100, interval: 10 * time.Minute, period: 300 * time.Minute, want: 3},
		{name: "empty store", total: 0, interval: 10 * time.Minute, period: 24 * time.Hour, want: 1},
		{name: "fewer links than runs", total: 5, interval: 10 * time.Minute, period: 24 * time.Hour, want: 1},
		{name: "ten runs", total: 1000, interval: 10 * time.Minute, period: 100 * time.Minute, want: 100},
		{name: "zero interval", total: 42, interval: 0, period: time.Hour, want: 42},
		{name: "period shorter than interval", total: 42, interval: time.Hour, period: time.Minute, want: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BatchSize(tt.total, tt.interval, tt.period))
		})
	}
}

func seedLinks(t *testing.T, repo *memory.MemoryRepository, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		seedLink(t, repo, "alice", fmt.Sprintf("https://example.com/%d", i), fmt.Sprintf("s%d", i))
	}
}

func TestRunValidationBatch(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemoryRepository()
	seedLinks(t, repo, 100)
	clk := newClock()
	validator := &stubValidator{repo: repo, now: clk.Now}

	checker := NewChecker(repo, validator, CheckerConfig{Interval: 10 * time.Minute, Period: 300 * time.Minute}, WithCheckerClock(clk.Now))

	report, err := checker.RunValidationBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, &domain.BatchReport{Total: 100, BatchSize: 3, Checked: 3}, report)
	assert.Equal(t, []string{"s1", "s2", "s3"}, validator.Calls())

	for id := int64(1); id <= 3; id++ {
		link, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, clk.Now(), link.LastChecked)
	}

	// the next run moves on to the links that were never checked
	report, err = checker.RunValidationBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, []string{"s1", "s2", "s3", "s4", "s5", "s6"}, validator.Calls())
}

func TestRunValidationBatchSkipsCooldown(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemoryRepository()
	seedLinks(t, repo, 2)
	clk := newClock()
	validator := &stubValidator{repo: repo, now: clk.Now}

	for id := int64(1); id <= 2; id++ {
		link, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		link.LastChecked = clk.Now().Add(-10 * time.Minute)
		require.NoError(t, repo.Update(ctx, link))
	}

	checker := NewChecker(repo, validator, CheckerConfig{Interval: time.Hour, Period: time.Hour}, WithCheckerClock(clk.Now))

	report, err := checker.RunValidationBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Skipped)
	assert.Zero(t, report.Checked)
	assert.Empty(t, validator.Calls())

	clk.Advance(domain.ValidationCooldown)
	report, err = checker.RunValidationBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Zero(t, report.Skipped)
}

func TestRunValidationBatchIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemoryRepository()
	seedLinks(t, repo, 3)
	clk := newClock()
	validator := &stubValidator{
		repo:   repo,
		now:    clk.Now,
		broken: true,
		fail:   map[string]error{"s2": errors.New("database is locked")},
	}

	checker := NewChecker(repo, validator, CheckerConfig{Interval: time.Hour, Period: time.Hour}, WithCheckerClock(clk.Now))

	report, err := checker.RunValidationBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 2, report.Broken)
	assert.Len(t, validator.Calls(), 3)

	untouched, err := repo.GetByShortURL(ctx, "s2")
	require.NoError(t, err)
	assert.True(t, untouched.LastChecked.IsZero())
}

func TestRunValidationBatchConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemoryRepository()
	seedLinks(t, repo, 20)
	clk := newClock()
	validator := &stubValidator{repo: repo, now: clk.Now}

	checker := NewChecker(repo, validator, CheckerConfig{
		Interval:    time.Hour,
		Period:      time.Hour,
		Concurrency: 4,
		Rate:        1000,
	}, WithCheckerClock(clk.Now))

	report, err := checker.RunValidationBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, report.Checked)
	assert.ElementsMatch(t, func() []string {
		var want []string
		for i := 1; i <= 20; i++ {
			want = append(want, fmt.Sprintf("s%d", i))
		}
		return want
	}(), validator.Calls())
}

func TestRunValidationBatchCancelled(t *testing.T) {
	repo := memory.NewMemoryRepository()
	seedLinks(t, repo, 5)
	clk := newClock()
	validator := &stubValidator{repo: repo, now: clk.Now}
	checker := NewChecker(repo, validator, CheckerConfig{Interval: time.Hour, Period: time.Hour, Rate: 1}, WithCheckerClock(clk.Now))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := checker.RunValidationBatch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, validator.Calls())
}
