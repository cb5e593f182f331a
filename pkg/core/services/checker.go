package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wadjakorntonsri/tinylinks/pkg/core/domain"
	"github.com/wadjakorntonsri/tinylinks/pkg/ports"
)

// CheckerConfig spreads validation of all links over Period in runs every Interval.
type CheckerConfig struct {
	Interval time.Duration
	Period   time.Duration
	// Concurrency is the number of links validated at the same time.
	Concurrency int
	// Rate caps validations started per second. Zero means unlimited.
	Rate float64
}

func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{
		Interval:    10 * time.Minute,
		Period:      24 * time.Hour,
		Concurrency: 1,
	}
}

// BatchSize is max(1, total / (period / interval)).
func BatchSize(total int64, interval, period time.Duration) int {
	runs := int64(1)
	if interval > 0 {
		runs = int64(period / interval)
	}
	if runs < 1 {
		runs = 1
	}
	size := total / runs
	if size < 1 {
		size = 1
	}
	return int(size)
}

type CheckerOption func(c *Checker)

func WithCheckerLogger(log zerolog.Logger) CheckerOption {
	return func(c *Checker) {
		c.log = log
	}
}

func WithCheckerClock(now func() time.Time) CheckerOption {
	return func(c *Checker) {
		c.now = now
	}
}

// Checker revalidates the links that were checked least recently.
type Checker struct {
	repo      ports.LinkRepository
	validator ports.LinkValidator
	cfg       CheckerConfig
	limiter   *rate.Limiter
	now       func() time.Time
	log       zerolog.Logger
}

func NewChecker(repo ports.LinkRepository, validator ports.LinkValidator, cfg CheckerConfig, opts ...CheckerOption) *Checker {
	def := DefaultCheckerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Period <= 0 {
		cfg.Period = def.Period
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}

	c := &Checker{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	if cfg.Rate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunValidationBatch validates one batch of links, oldest last_checked first.
// Links still inside their cooldown are skipped. A failing link is counted and
// never stops the rest of the batch.
func (c *Checker) RunValidationBatch(ctx context.Context) (*domain.BatchReport, error) {
	total, err := c.repo.Count(ctx, ports.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to count links: %w", err)
	}

	size := BatchSize(total, c.cfg.Interval, c.cfg.Period)
	links, err := c.repo.ListLeastRecentlyChecked(ctx, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list links to check: %w", err)
	}

	report := &domain.BatchReport{Total: total, BatchSize: size}
	now := c.now()

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)

	for i := range links {
		link := &links[i]
		if !link.CanBeValidated(now) {
			report.Skipped++
			continue
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				break
			}
		}

		g.Go(func() error {
			err := c.validator.Validate(ctx, link)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				c.log.Error().Err(err).Str("short_url", link.ShortURL).Msg("failed to validate link")
				return nil
			}
			report.Checked++
			if link.IsBroken {
				report.Broken++
			}
			return nil
		})
	}
	_ = g.Wait()

	c.log.Info().
		Int64("total", report.Total).
		Int("batch_size", report.BatchSize).
		Int("checked", report.Checked).
		Int("skipped", report.Skipped).
		Int("broken", report.Broken).
		Int("failed", report.Failed).
		Msg("validation batch finished")

	return report, ctx.Err()
}
