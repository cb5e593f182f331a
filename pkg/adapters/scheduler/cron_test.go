package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/tinylinks/pkg/core/domain"
)

type countingChecker struct {
	runs atomic.Int32
}

func (c *countingChecker) RunValidationBatch(ctx context.Context) (*domain.BatchReport, error) {
	c.runs.Add(1)
	return &domain.BatchReport{}, ctx.Err()
}

// blockingChecker holds every run until its context is cancelled.
type blockingChecker struct {
	started chan struct{}
}

func (c *blockingChecker) RunValidationBatch(ctx context.Context) (*domain.BatchReport, error) {
	select {
	case c.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSchedulerRunsChecker(t *testing.T) {
	checker := &countingChecker{}
	s, err := New(checker, time.Second, zerolog.Nop())
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return checker.runs.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
}

func TestSchedulerStopCancelsRun(t *testing.T) {
	checker := &blockingChecker{started: make(chan struct{}, 1)}
	s, err := New(checker, time.Second, zerolog.Nop())
	require.NoError(t, err)

	s.Start()
	select {
	case <-checker.started:
	case <-time.After(5 * time.Second):
		t.Fatal("checker never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestNewRejectsInvalidInterval(t *testing.T) {
	_, err := New(&countingChecker{}, 0, zerolog.Nop())
	assert.Error(t, err)
}
