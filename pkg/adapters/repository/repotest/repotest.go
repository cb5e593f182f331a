// Package repotest holds the behaviour every ports.LinkRepository must share.
package repotest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/tinylinks/pkg/core/domain"
	"github.com/wadjakorntonsri/tinylinks/pkg/ports"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Run exercises repo-independent behaviour. newRepo must return an empty store.
func Run(t *testing.T, newRepo func(t *testing.T) ports.LinkRepository) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newRepo(t)) })
	t.Run("UniqueShortURL", func(t *testing.T) { testUniqueShortURL(t, newRepo(t)) })
	t.Run("UpdateKeepsViews", func(t *testing.T) { testUpdateKeepsViews(t, newRepo(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newRepo(t)) })
	t.Run("ListAndCount", func(t *testing.T) { testListAndCount(t, newRepo(t)) })
	t.Run("SearchIsLiteral", func(t *testing.T) { testSearchIsLiteral(t, newRepo(t)) })
	t.Run("FindBrothers", func(t *testing.T) { testFindBrothers(t, newRepo(t)) })
	t.Run("LeastRecentlyChecked", func(t *testing.T) { testLeastRecentlyChecked(t, newRepo(t)) })
	t.Run("Stats", func(t *testing.T) { testStats(t, newRepo(t)) })
}

func create(t *testing.T, repo ports.LinkRepository, owner, longURL, shortURL string, age time.Duration) *domain.Link {
	t.Helper()
	link := &domain.Link{
		Owner:     owner,
		LongURL:   longURL,
		ShortURL:  shortURL,
		CreatedAt: base.Add(-age),
		UpdatedAt: base.Add(-age),
	}
	require.NoError(t, repo.Create(context.Background(), link))
	require.NotZero(t, link.ID)
	return link
}

func shortURLs(links []domain.Link) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.ShortURL)
	}
	return out
}

func testCreateAndGet(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	link := create(t, repo, "alice", "https://example.com/a", "abc", 0)

	byShort, err := repo.GetByShortURL(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, link.ID, byShort.ID)
	assert.Equal(t, "alice", byShort.Owner)
	assert.Equal(t, "https://example.com/a", byShort.LongURL)
	assert.False(t, byShort.IsBroken)
	assert.True(t, byShort.LastChecked.IsZero())
	assert.True(t, base.Equal(byShort.CreatedAt))

	byID, err := repo.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc", byID.ShortURL)

	_, err = repo.GetByShortURL(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.GetByID(ctx, link.ID+100)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	exists, err := repo.ShortURLExists(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.ShortURLExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Ping(ctx))
}

func testUniqueShortURL(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	create(t, repo, "alice", "https://example.com/a", "abc", 0)
	other := create(t, repo, "bob", "https://example.com/b", "def", 0)

	err := repo.Create(ctx, &domain.Link{Owner: "bob", LongURL: "https://example.com/b", ShortURL: "abc", CreatedAt: base, UpdatedAt: base})
	assert.ErrorIs(t, err, domain.ErrSlugTaken)

	other.ShortURL = "abc"
	assert.ErrorIs(t, repo.Update(ctx, other), domain.ErrSlugTaken)

	count, err := repo.Count(ctx, ports.ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func testUpdateKeepsViews(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	link := create(t, repo, "alice", "https://example.com/a", "abc", 0)

	require.NoError(t, repo.IncrementViews(ctx, link.ID))
	require.NoError(t, repo.IncrementViews(ctx, link.ID))

	checked := base.Add(time.Hour)
	link.MarkBroken("Not found.")
	link.RedirectLocation = "https://example.com/b"
	link.LastChecked = checked
	link.ShortURL = "xyz"
	link.ViewCount = 0
	require.NoError(t, repo.Update(ctx, link))

	stored, err := repo.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stored.ViewCount)
	assert.True(t, stored.IsBroken)
	assert.Equal(t, "Not found.", stored.ValidationError)
	assert.Equal(t, "https://example.com/b", stored.RedirectLocation)
	assert.True(t, checked.Equal(stored.LastChecked), "last_checked %v", stored.LastChecked)
	assert.Equal(t, "xyz", stored.ShortURL)

	_, err = repo.GetByShortURL(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, repo.Update(ctx, &domain.Link{ID: link.ID + 100, ShortURL: "nope"}), domain.ErrNotFound)
	assert.ErrorIs(t, repo.IncrementViews(ctx, link.ID+100), domain.ErrNotFound)
}

func testDelete(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	link := create(t, repo, "alice", "https://example.com/a", "abc", 0)

	require.NoError(t, repo.Delete(ctx, link.ID))
	assert.ErrorIs(t, repo.Delete(ctx, link.ID), domain.ErrNotFound)

	_, err := repo.GetByID(ctx, link.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	create(t, repo, "bob", "https://example.com/b", "abc", 0)
}

func testListAndCount(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		create(t, repo, "alice", fmt.Sprintf("https://example.com/%d", i), fmt.Sprintf("a%d", i), time.Duration(5-i)*time.Minute)
	}
	create(t, repo, "bob", "https://golang.org/", "golang", 0)

	links, err := repo.List(ctx, 2, 0, ports.ListFilter{Owner: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a4", "a3"}, shortURLs(links))

	links, err = repo.List(ctx, 2, 4, ports.ListFilter{Owner: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a0"}, shortURLs(links))

	count, err := repo.Count(ctx, ports.ListFilter{Owner: "alice"})
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)

	links, err = repo.List(ctx, 10, 0, ports.ListFilter{Search: "golang"})
	require.NoError(t, err)
	assert.Equal(t, []string{"golang"}, shortURLs(links))

	count, err = repo.Count(ctx, ports.ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 6, count)

	dump, err := repo.Dump(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a0", "a1", "a2", "a3", "a4", "golang"}, shortURLs(dump))
}

func testSearchIsLiteral(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	create(t, repo, "alice", "https://Golang.org/doc", "gl", 0)
	create(t, repo, "alice", "https://example.com/a_b", "ab", 0)
	create(t, repo, "alice", "https://example.com/?q=100%", "pct", 0)

	tests := []struct {
		search string
		want   []string
	}{
		{search: "golang", want: []string{"gl"}},
		{search: "GOLANG.ORG", want: []string{"gl"}},
		{search: "_", want: []string{"ab"}},
		{search: "A_B", want: []string{"ab"}},
		{search: "%", want: []string{"pct"}},
		{search: `\`, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			filter := ports.ListFilter{Search: tt.search}
			links, err := repo.List(ctx, 10, 0, filter)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, shortURLs(links))

			count, err := repo.Count(ctx, filter)
			require.NoError(t, err)
			assert.EqualValues(t, len(tt.want), count)
		})
	}
}

func testFindBrothers(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	create(t, repo, "alice", "https://example.com/a", "first", 0)
	create(t, repo, "bob", "https://example.com/a", "bobs", 0)
	create(t, repo, "alice", "https://example.com/a", "second", 0)
	create(t, repo, "alice", "https://example.com/b", "other", 0)

	brothers, err := repo.FindBrothers(ctx, "alice", "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, shortURLs(brothers))

	brothers, err = repo.FindBrothers(ctx, "carol", "https://example.com/a")
	require.NoError(t, err)
	assert.Empty(t, brothers)
}

func testLeastRecentlyChecked(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	checked := map[string]time.Duration{"recent": time.Minute, "old": time.Hour, "never": -1, "older": 2 * time.Hour}
	for _, slug := range []string{"recent", "old", "never", "older"} {
		link := create(t, repo, "alice", "https://example.com/"+slug, slug, 0)
		if age := checked[slug]; age >= 0 {
			link.LastChecked = base.Add(-age)
			require.NoError(t, repo.Update(ctx, link))
		}
	}

	links, err := repo.ListLeastRecentlyChecked(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"never", "older", "old"}, shortURLs(links))
}

func testStats(t *testing.T, repo ports.LinkRepository) {
	ctx := context.Background()
	popular := create(t, repo, "alice", "https://example.com/a", "popular", 0)
	broken := create(t, repo, "bob", "https://example.com/b", "broken", 0)
	create(t, repo, "bob", "https://example.com/c", "quiet", 0)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.IncrementViews(ctx, popular.ID))
	}
	require.NoError(t, repo.IncrementViews(ctx, broken.ID))
	broken.MarkBroken("URL not accessible.")
	require.NoError(t, repo.Update(ctx, broken))

	stats, err := repo.Stats(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalLinks)
	assert.EqualValues(t, 4, stats.TotalViews)
	assert.EqualValues(t, 1, stats.BrokenLinks)
	assert.Equal(t, []string{"popular", "broken"}, shortURLs(stats.TopLinks))
}
