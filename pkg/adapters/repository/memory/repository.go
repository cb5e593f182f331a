package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/wadjakorntonsri/tinylinks/pkg/core/domain"
	"github.com/wadjakorntonsri/tinylinks/pkg/ports"
)

// MemoryRepository keeps links in process memory. Callers always get copies.
type MemoryRepository struct {
	mu      sync.RWMutex
	links   map[int64]domain.Link // ID -> Link
	byShort map[string]int64      // short url -> ID
	nextID  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		links:   make(map[int64]domain.Link),
		byShort: make(map[string]int64),
		nextID:  1,
	}
}

func (r *MemoryRepository) Create(_ context.Context, link *domain.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byShort[link.ShortURL]; taken {
		return domain.ErrSlugTaken
	}

	link.ID = r.nextID
	r.nextID++
	r.links[link.ID] = *link
	r.byShort[link.ShortURL] = link.ID
	return nil
}

func (r *MemoryRepository) GetByShortURL(_ context.Context, shortURL string) (*domain.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byShort[shortURL]
	if !ok {
		return nil, domain.ErrNotFound
	}
	link := r.links[id]
	return &link, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id int64) (*domain.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.links[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &link, nil
}

// Update writes everything but view_count, which only IncrementViews changes.
func (r *MemoryRepository) Update(_ context.Context, link *domain.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.links[link.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if id, taken := r.byShort[link.ShortURL]; taken && id != link.ID {
		return domain.ErrSlugTaken
	}

	delete(r.byShort, stored.ShortURL)
	updated := *link
	updated.ViewCount = stored.ViewCount
	updated.Owner = stored.Owner
	updated.CreatedAt = stored.CreatedAt
	r.links[link.ID] = updated
	r.byShort[updated.ShortURL] = link.ID
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.byShort, link.ShortURL)
	delete(r.links, id)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, limit, offset int, filter ports.ListFilter) ([]domain.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	links := r.filter(filter)
	sort.Slice(links, func(i, j int) bool {
		if !links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].CreatedAt.After(links[j].CreatedAt)
		}
		return links[i].ID > links[j].ID
	})
	return page(links, limit, offset), nil
}

func (r *MemoryRepository) Count(_ context.Context, filter ports.ListFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.filter(filter))), nil
}

func (r *MemoryRepository) Dump(_ context.Context) ([]domain.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	links := r.filter(ports.ListFilter{})
	sortByID(links)
	return links, nil
}

func (r *MemoryRepository) ShortURLExists(_ context.Context, shortURL string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byShort[shortURL]
	return ok, nil
}

func (r *MemoryRepository) FindBrothers(_ context.Context, owner, longURL string) ([]domain.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var brothers []domain.Link
	for _, l := range r.links {
		if l.Owner == owner && l.LongURL == longURL {
			brothers = append(brothers, l)
		}
	}
	sortByID(brothers)
	return brothers, nil
}

func (r *MemoryRepository) IncrementViews(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[id]
	if !ok {
		return domain.ErrNotFound
	}
	link.ViewCount++
	r.links[id] = link
	return nil
}

func (r *MemoryRepository) ListLeastRecentlyChecked(_ context.Context, limit int) ([]domain.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	links := r.filter(ports.ListFilter{})
	sort.Slice(links, func(i, j int) bool {
		a, b := links[i].LastChecked, links[j].LastChecked
		if !a.Equal(b) {
			return a.Before(b)
		}
		return links[i].ID < links[j].ID
	})
	return page(links, limit, 0), nil
}

func (r *MemoryRepository) Stats(_ context.Context, limit int) (*domain.LinkStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	links := r.filter(ports.ListFilter{})
	stats := &domain.LinkStats{TotalLinks: int64(len(links)), TopLinks: []domain.Link{}}
	for _, l := range links {
		stats.TotalViews += l.ViewCount
		if l.IsBroken {
			stats.BrokenLinks++
		}
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].ViewCount != links[j].ViewCount {
			return links[i].ViewCount > links[j].ViewCount
		}
		return links[i].ID < links[j].ID
	})
	stats.TopLinks = append(stats.TopLinks, page(links, limit, 0)...)
	return stats, nil
}

func (r *MemoryRepository) Ping(context.Context) error {
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}

// filter must be called with the lock held.
func (r *MemoryRepository) filter(f ports.ListFilter) []domain.Link {
	search := strings.ToLower(f.Search)
	links := make([]domain.Link, 0, len(r.links))
	for _, l := range r.links {
		if f.Owner != "" && l.Owner != f.Owner {
			continue
		}
		if search != "" && !containsFold(l.LongURL, search) && !containsFold(l.ShortURL, search) {
			continue
		}
		links = append(links, l)
	}
	return links
}

// containsFold reports whether s contains substr, which must be lower case.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

func sortByID(links []domain.Link) {
	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
}

func page(links []domain.Link, limit, offset int) []domain.Link {
	if offset >= len(links) {
		return nil
	}
	links = links[offset:]
	if limit >= 0 && limit < len(links) {
		links = links[:limit]
	}
	return links
}

var _ ports.LinkRepository = (*MemoryRepository)(nil)
