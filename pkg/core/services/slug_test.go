package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/tinylinks/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/tinylinks/pkg/core/domain"
)

func seedLink(t *testing.T, repo *memory.MemoryRepository, owner, longURL, shortURL string) *domain.Link {
	t.Helper()
	link := &domain.Link{Owner: owner, LongURL: longURL, ShortURL: shortURL, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), link))
	return link
}

func TestValidateSlug(t *testing.T) {
	tests := []struct {
		name string
		slug string
		want error
	}{
		{name: "letters and digits", slug: "abc123"},
		{name: "max length", slug: strings.Repeat("a", 32)},
		{name: "too long", slug: strings.Repeat("a", 33), want: domain.ErrInvalidSlug},
		{name: "empty", slug: "", want: domain.ErrInvalidSlug},
		{name: "upper case", slug: "ABC", want: domain.ErrInvalidSlug},
		{name: "dash", slug: "a-b", want: domain.ErrInvalidSlug},
		{name: "unicode", slug: "café", want: domain.ErrInvalidSlug},
		{name: "reserved route", slug: "api", want: domain.ErrReservedSlug},
		{name: "reserved not found page", slug: "404", want: domain.ErrReservedSlug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlug(tt.slug)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGenerate(t *testing.T) {
	repo := memory.NewMemoryRepository()
	g := NewSlugGenerator(repo, SlugConfig{Length: 5})

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		slug, err := g.Generate(context.Background())
		require.NoError(t, err)
		assert.Len(t, slug, 5)
		assert.NoError(t, ValidateSlug(slug))
		for _, c := range slug {
			assert.Contains(t, slugCharset, string(c))
		}
		seen[slug] = true
	}
	assert.Greater(t, len(seen), 40)
}

func TestGenerateExhausted(t *testing.T) {
	repo := memory.NewMemoryRepository()
	for _, c := range slugCharset {
		seedLink(t, repo, "alice", "https://example.com/"+string(c), string(c))
	}

	g := NewSlugGenerator(repo, SlugConfig{Length: 1, MaxAttempts: 5})
	_, err := g.Generate(context.Background())
	assert.ErrorIs(t, err, domain.ErrSlugExhausted)
}

func TestNewSlugGeneratorClampsLength(t *testing.T) {
	repo := memory.NewMemoryRepository()

	g := NewSlugGenerator(repo, SlugConfig{Length: 100})
	slug, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Len(t, slug, domain.MaxShortURLLength)

	g = NewSlugGenerator(repo, SlugConfig{})
	slug, err = g.Generate(context.Background())
	require.NoError(t, err)
	assert.Len(t, slug, DefaultSlugConfig().Length)
}

func TestAssign(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemoryRepository()
	first := seedLink(t, repo, "alice", "https://example.com/a", "first")
	seedLink(t, repo, "alice", "https://example.com/a", "second")
	seedLink(t, repo, "bob", "https://example.com/b", "bobs")
	g := NewSlugGenerator(repo, DefaultSlugConfig())

	t.Run("requested slug is free", func(t *testing.T) {
		a, err := g.Assign(ctx, "alice", "https://example.com/new", "fresh", nil)
		require.NoError(t, err)
		assert.Equal(t, "fresh", a.ShortURL)
		assert.False(t, a.Reused())
	})

	t.Run("requested slug owned by someone else", func(t *testing.T) {
		_, err := g.Assign(ctx, "alice", "https://example.com/b", "bobs", nil)
		assert.ErrorIs(t, err, domain.ErrSlugTaken)
	})

	t.Run("requested slug held by own link with another target", func(t *testing.T) {
		_, err := g.Assign(ctx, "alice", "https://example.com/other", "first", nil)
		assert.ErrorIs(t, err, domain.ErrSlugTaken)
	})

	t.Run("twin is reused", func(t *testing.T) {
		a, err := g.Assign(ctx, "alice", "https://example.com/a", "second", nil)
		require.NoError(t, err)
		require.True(t, a.Reused())
		assert.Equal(t, "second", a.ShortURL)
		assert.Equal(t, "second", a.Existing.ShortURL)
	})

	t.Run("first brother is reused", func(t *testing.T) {
		a, err := g.Assign(ctx, "alice", "https://example.com/a", "", nil)
		require.NoError(t, err)
		require.True(t, a.Reused())
		assert.Equal(t, first.ShortURL, a.ShortURL)
		assert.Equal(t, first.ID, a.Existing.ID)
	})

	t.Run("brothers are per owner", func(t *testing.T) {
		a, err := g.Assign(ctx, "bob", "https://example.com/a", "", nil)
		require.NoError(t, err)
		assert.False(t, a.Reused())
		assert.Len(t, a.ShortURL, DefaultSlugConfig().Length)
	})

	t.Run("invalid requested slug", func(t *testing.T) {
		_, err := g.Assign(ctx, "alice", "https://example.com/a", "Not_Valid", nil)
		assert.ErrorIs(t, err, domain.ErrInvalidSlug)
	})
}

func TestAssignExisting(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemoryRepository()
	self := seedLink(t, repo, "alice", "https://example.com/a", "mine")
	seedLink(t, repo, "bob", "https://example.com/b", "taken")
	g := NewSlugGenerator(repo, DefaultSlugConfig())

	a, err := g.Assign(ctx, "alice", "https://example.com/changed", "", self)
	require.NoError(t, err)
	assert.Equal(t, "mine", a.ShortURL)

	a, err = g.Assign(ctx, "alice", self.LongURL, "mine", self)
	require.NoError(t, err)
	assert.Equal(t, "mine", a.ShortURL)

	a, err = g.Assign(ctx, "alice", self.LongURL, "renamed", self)
	require.NoError(t, err)
	assert.Equal(t, "renamed", a.ShortURL)
	assert.False(t, a.Reused())

	_, err = g.Assign(ctx, "alice", self.LongURL, "taken", self)
	assert.ErrorIs(t, err, domain.ErrSlugTaken)

	_, err = g.Assign(ctx, "alice", self.LongURL, "auth", self)
	assert.ErrorIs(t, err, domain.ErrReservedSlug)
}
