package services

import (
	"context"
	"sync"
	"time"

	"github.com/wadjakorntonsri/tinylinks/pkg/core/domain"
	"github.com/wadjakorntonsri/tinylinks/pkg/ports"
)

// stubValidator marks every link healthy (or broken) without network access.
type stubValidator struct {
	repo   ports.LinkRepository
	now    func() time.Time
	broken bool
	fail   map[string]error

	mu    sync.Mutex
	calls []string
}

func (v *stubValidator) Validate(ctx context.Context, link *domain.Link) error {
	v.mu.Lock()
	v.calls = append(v.calls, link.ShortURL)
	err := v.fail[link.ShortURL]
	v.mu.Unlock()
	if err != nil {
		return err
	}

	if v.broken {
		link.MarkBroken(msgNotAccessible)
	} else {
		link.MarkHealthy()
	}
	link.LastChecked = v.now()
	if v.repo == nil {
		return nil
	}
	return v.repo.Update(ctx, link)
}

func (v *stubValidator) Calls() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.calls...)
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyCreateRepo rejects the first n creates as if another request had taken the slug.
type flakyCreateRepo struct {
	ports.LinkRepository
	failures int
	creates  int
}

func (r *flakyCreateRepo) Create(ctx context.Context, link *domain.Link) error {
	r.creates++
	if r.creates <= r.failures {
		return domain.ErrSlugTaken
	}
	return r.LinkRepository.Create(ctx, link)
}
