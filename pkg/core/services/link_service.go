package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/tinylinks/pkg/core/domain"
	"github.com/wadjakorntonsri/tinylinks/pkg/ports"
)

// createAttempts bounds retries when a generated slug loses a race against a concurrent insert.
const createAttempts = 3

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// PageBounds returns the page and page size ListLinks actually uses.
func PageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

type LinkServiceOption func(s *LinkService)

func WithServiceLogger(log zerolog.Logger) LinkServiceOption {
	return func(s *LinkService) {
		s.log = log
	}
}

func WithServiceClock(now func() time.Time) LinkServiceOption {
	return func(s *LinkService) {
		s.now = now
	}
}

type LinkService struct {
	repo      ports.LinkRepository
	slugs     *SlugGenerator
	validator ports.LinkValidator
	now       func() time.Time
	log       zerolog.Logger
}

func NewLinkService(repo ports.LinkRepository, slugs *SlugGenerator, validator ports.LinkValidator, opts ...LinkServiceOption) *LinkService {
	s := &LinkService{
		repo:      repo,
		slugs:     slugs,
		validator: validator,
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Shorten creates a link for longURL owned by p and validates it once.
// created is false when an existing brother or twin link is returned instead.
func (s *LinkService) Shorten(ctx context.Context, p domain.Principal, longURL, shortURL string) (*domain.Link, bool, error) {
	if p.ID == "" {
		return nil, false, domain.ErrUnauthorized
	}
	longURL, err := ValidateLongURL(longURL)
	if err != nil {
		return nil, false, err
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		a, err := s.slugs.Assign(ctx, p.ID, longURL, shortURL, nil)
		if err != nil {
			return nil, false, err
		}
		if a.Reused() {
			return a.Existing, false, nil
		}

		now := s.now()
		link := &domain.Link{
			Owner:     p.ID,
			LongURL:   longURL,
			ShortURL:  a.ShortURL,
			CreatedAt: now,
			UpdatedAt: now,
		}

		err = s.repo.Create(ctx, link)
		if errors.Is(err, domain.ErrSlugTaken) && shortURL == "" {
			s.log.Debug().Str("short_url", a.ShortURL).Msg("generated short url collided, retrying")
			continue
		}
		if err != nil {
			return nil, false, err
		}

		s.validate(ctx, link)
		return link, true, nil
	}
	return nil, false, domain.ErrSlugExhausted
}

// Resolve returns the long url for shortURL and counts the view.
func (s *LinkService) Resolve(ctx context.Context, shortURL string) (string, error) {
	link, err := s.repo.GetByShortURL(ctx, shortURL)
	if err != nil {
		return "", err
	}

	if err := s.repo.IncrementViews(ctx, link.ID); err != nil {
		s.log.Error().Err(err).Str("short_url", shortURL).Msg("failed to count view")
	}
	return link.LongURL, nil
}

// GetLink returns the link if p may manage it. Links of other owners are reported as not found.
func (s *LinkService) GetLink(ctx context.Context, p domain.Principal, id int64) (*domain.Link, error) {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanManage(link) {
		return nil, domain.ErrNotFound
	}
	return link, nil
}

// UpdateLink changes the long url and/or the short url. Empty values keep the current one.
// A new long url resets the validation state and is validated right away.
func (s *LinkService) UpdateLink(ctx context.Context, p domain.Principal, id int64, longURL, shortURL string) (*domain.Link, error) {
	link, err := s.GetLink(ctx, p, id)
	if err != nil {
		return nil, err
	}

	newLong := link.LongURL
	if longURL != "" {
		if newLong, err = ValidateLongURL(longURL); err != nil {
			return nil, err
		}
	}

	a, err := s.slugs.Assign(ctx, link.Owner, newLong, shortURL, link)
	if err != nil {
		return nil, err
	}

	targetChanged := newLong != link.LongURL
	link.LongURL = newLong
	link.ShortURL = a.ShortURL
	link.UpdatedAt = s.now()
	if targetChanged {
		link.ResetValidation()
	}

	if err := s.repo.Update(ctx, link); err != nil {
		return nil, err
	}
	if targetChanged {
		s.validate(ctx, link)
	}
	return link, nil
}

func (s *LinkService) DeleteLink(ctx context.Context, p domain.Principal, id int64) error {
	link, err := s.GetLink(ctx, p, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, link.ID)
}

// ListLinks pages through the links visible to p, newest first.
func (s *LinkService) ListLinks(ctx context.Context, p domain.Principal, page, limit int, search string) ([]domain.Link, int64, error) {
	page, limit = PageBounds(page, limit)
	offset := (page - 1) * limit

	filter := ports.ListFilter{Search: strings.TrimSpace(search)}
	if !p.Staff {
		if p.ID == "" {
			return nil, 0, domain.ErrUnauthorized
		}
		filter.Owner = p.ID
	}

	links, err := s.repo.List(ctx, limit, offset, filter)
	if err != nil {
		return nil, 0, err
	}

	count, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return links, count, nil
}

// Revalidate runs a validation pass on demand, at most once per cooldown window.
func (s *LinkService) Revalidate(ctx context.Context, p domain.Principal, id int64) (*domain.Link, error) {
	link, err := s.GetLink(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !link.CanBeValidated(s.now()) {
		return nil, domain.ErrCooldown
	}
	if err := s.validator.Validate(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to validate link: %w", err)
	}
	return link, nil
}

// Statistics is restricted to staff.
func (s *LinkService) Statistics(ctx context.Context, p domain.Principal, limit int) (*domain.LinkStats, error) {
	if !p.Staff {
		return nil, domain.ErrForbidden
	}
	if limit < 1 {
		limit = 10
	}
	return s.repo.Stats(ctx, limit)
}

// Export returns every stored link.
func (s *LinkService) Export(ctx context.Context) ([]domain.Link, error) {
	return s.repo.Dump(ctx)
}

// Import stores links from an export. Links whose short url is already taken are skipped,
// as are rows with an empty, over-long or reserved short url or an invalid long url.
// The short url charset is not enforced so older exports still load.
func (s *LinkService) Import(ctx context.Context, links []domain.Link) (imported, skipped int, err error) {
	for _, l := range links {
		if reason := importProblem(&l); reason != "" {
			s.log.Warn().Str("short_url", l.ShortURL).Str("long_url", l.LongURL).Str("reason", reason).Msg("skipping invalid link")
			skipped++
			continue
		}

		exists, err := s.repo.ShortURLExists(ctx, l.ShortURL)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check short url %q: %w", l.ShortURL, err)
		}
		if exists {
			s.log.Info().Str("short_url", l.ShortURL).Msg("skipping existing short url")
			skipped++
			continue
		}

		l.ID = 0
		if l.CreatedAt.IsZero() {
			l.CreatedAt = s.now()
		}
		if l.UpdatedAt.IsZero() {
			l.UpdatedAt = l.CreatedAt
		}

		err = s.repo.Create(ctx, &l)
		if errors.Is(err, domain.ErrSlugTaken) {
			skipped++
			continue
		}
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to import %q: %w", l.ShortURL, err)
		}
		imported++
	}
	return imported, skipped, nil
}

// importProblem checks an imported row and normalizes its long url.
func importProblem(l *domain.Link) string {
	if l.ShortURL == "" || len(l.ShortURL) > domain.MaxShortURLLength {
		return "invalid short url"
	}
	if _, reserved := reservedSlugs[l.ShortURL]; reserved {
		return "reserved short url"
	}
	longURL, err := ValidateLongURL(l.LongURL)
	if err != nil {
		return err.Error()
	}
	l.LongURL = longURL
	return ""
}

// validate runs the post-write validation pass. Its outcome is stored on link;
// only storage failures surface here and they do not undo the write.
func (s *LinkService) validate(ctx context.Context, link *domain.Link) {
	if err := s.validator.Validate(ctx, link); err != nil {
		s.log.Error().Err(err).Str("short_url", link.ShortURL).Msg("failed to validate link")
	}
}

// ValidateLongURL checks a submitted target and returns it trimmed.
func ValidateLongURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > domain.MaxLongURLLength {
		return "", domain.ErrInvalidURL
	}
	if !utf8.ValidString(raw) {
		return "", domain.ErrUnicodeURL
	}

	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return "", domain.ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", domain.ErrInvalidURL
	}
	if u.Hostname() == "" {
		return "", domain.ErrInvalidURL
	}
	if _, err := encodeURL(raw); err != nil {
		return "", err
	}
	return raw, nil
}
