package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"

	"github.com/wadjakorntonsri/tinylinks/pkg/core/domain"
	"github.com/wadjakorntonsri/tinylinks/pkg/ports"
)

// Lower-case letters and digits without the look-alikes l, o, 0 and 1.
const slugCharset = "abcdefghijkmnpqrstuvwxyz23456789"

var slugPattern = regexp.MustCompile(`^[a-z0-9]+$`)

// reservedSlugs collide with routes served next to the redirect endpoint.
var reservedSlugs = map[string]struct{}{
	"api":        {},
	"auth":       {},
	"healthz":    {},
	"404":        {},
	"statistics": {},
	"admin":      {},
	"login":      {},
	"logout":     {},
	"static":     {},
	"favicon":    {},
}

// SlugConfig controls random slug generation.
type SlugConfig struct {
	Length      int
	MaxAttempts int
}

func DefaultSlugConfig() SlugConfig {
	return SlugConfig{Length: 6, MaxAttempts: 10}
}

// Assignment is the outcome of SlugGenerator.Assign.
// Existing is set when a brother or twin link must be reused instead of creating a new one.
type Assignment struct {
	ShortURL string
	Existing *domain.Link
}

// Reused reports whether the caller must reuse Existing.
func (a Assignment) Reused() bool {
	return a.Existing != nil
}

type SlugGenerator struct {
	repo ports.LinkRepository
	cfg  SlugConfig
}

func NewSlugGenerator(repo ports.LinkRepository, cfg SlugConfig) *SlugGenerator {
	if cfg.Length < 1 {
		cfg.Length = DefaultSlugConfig().Length
	}
	if cfg.Length > domain.MaxShortURLLength {
		cfg.Length = domain.MaxShortURLLength
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultSlugConfig().MaxAttempts
	}
	return &SlugGenerator{repo: repo, cfg: cfg}
}

// ValidateSlug checks a user supplied short url.
func ValidateSlug(slug string) error {
	if len(slug) > domain.MaxShortURLLength || !slugPattern.MatchString(slug) {
		return domain.ErrInvalidSlug
	}
	if _, ok := reservedSlugs[slug]; ok {
		return domain.ErrReservedSlug
	}
	return nil
}

// Assign picks the short url for owner's longURL.
//
// When self is nil a new link is being created: a requested slug held by any other
// link is rejected, unless that link is a twin (same owner, same long url), which is
// reused. Without a requested slug the first brother (same owner, same long url) is
// reused, and only when there is none a random slug is generated.
//
// When self is not nil the link is being updated and its own slug never conflicts.
func (g *SlugGenerator) Assign(ctx context.Context, owner, longURL, requested string, self *domain.Link) (Assignment, error) {
	if self != nil {
		return g.assignExisting(ctx, requested, self)
	}

	if requested != "" {
		if err := ValidateSlug(requested); err != nil {
			return Assignment{}, err
		}

		taken, err := g.repo.GetByShortURL(ctx, requested)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return Assignment{ShortURL: requested}, nil
		case err != nil:
			return Assignment{}, fmt.Errorf("failed to look up short url: %w", err)
		case taken.Owner == owner && taken.LongURL == longURL:
			return Assignment{ShortURL: taken.ShortURL, Existing: taken}, nil
		default:
			return Assignment{}, domain.ErrSlugTaken
		}
	}

	brothers, err := g.repo.FindBrothers(ctx, owner, longURL)
	if err != nil {
		return Assignment{}, fmt.Errorf("failed to look up brother links: %w", err)
	}
	if len(brothers) > 0 {
		brother := brothers[0]
		return Assignment{ShortURL: brother.ShortURL, Existing: &brother}, nil
	}

	slug, err := g.Generate(ctx)
	if err != nil {
		return Assignment{}, err
	}
	return Assignment{ShortURL: slug}, nil
}

func (g *SlugGenerator) assignExisting(ctx context.Context, requested string, self *domain.Link) (Assignment, error) {
	if requested == "" || requested == self.ShortURL {
		return Assignment{ShortURL: self.ShortURL}, nil
	}
	if err := ValidateSlug(requested); err != nil {
		return Assignment{}, err
	}

	exists, err := g.repo.ShortURLExists(ctx, requested)
	if err != nil {
		return Assignment{}, fmt.Errorf("failed to look up short url: %w", err)
	}
	if exists {
		return Assignment{}, domain.ErrSlugTaken
	}
	return Assignment{ShortURL: requested}, nil
}

// Generate returns a random slug that is not stored yet.
// Storage still enforces uniqueness; callers retry on domain.ErrSlugTaken.
func (g *SlugGenerator) Generate(ctx context.Context) (string, error) {
	for i := 0; i < g.cfg.MaxAttempts; i++ {
		slug, err := randomSlug(g.cfg.Length)
		if err != nil {
			return "", err
		}

		exists, err := g.repo.ShortURLExists(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("failed to check short url: %w", err)
		}
		if !exists {
			return slug, nil
		}
	}
	return "", domain.ErrSlugExhausted
}

func randomSlug(length int) (string, error) {
	b := make([]byte, length)
	n := big.NewInt(int64(len(slugCharset)))
	for i := range b {
		num, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		b[i] = slugCharset[num.Int64()]
	}
	return string(b), nil
}
