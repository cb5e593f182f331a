package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/tinylinks/pkg/ports"
)

// Scheduler triggers the periodic checker in process.
type Scheduler struct {
	cron    *cron.Cron
	checker ports.Checker
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New runs checker every interval. A run still in progress makes the next one skip.
func New(checker ports.Checker, interval time.Duration, log zerolog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid check interval %s", interval)
	}

	log = log.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		checker: checker,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}

	if _, err := s.cron.AddFunc("@every "+interval.String(), s.run); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to schedule checker: %w", err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.log.Info().Msg("scheduler started")
	s.cron.Start()
}

// Stop cancels a running batch and waits for it until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run() {
	report, err := s.checker.RunValidationBatch(s.ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("validation batch failed")
		return
	}
	s.log.Debug().Int("checked", report.Checked).Int("broken", report.Broken).Msg("validation batch done")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
