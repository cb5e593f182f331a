package ports

import (
	"context"

	"github.com/wadjakorntonsri/tinylinks/pkg/core/domain"
)

// ListFilter narrows List and Count. An empty Owner means every owner.
type ListFilter struct {
	Owner  string
	Search string
}

// LinkRepository defines storage operations for links.
// Create and Update return domain.ErrSlugTaken when the short url is already stored.
// Lookups return domain.ErrNotFound for unknown links.
type LinkRepository interface {
	Create(ctx context.Context, link *domain.Link) error
	GetByShortURL(ctx context.Context, shortURL string) (*domain.Link, error)
	GetByID(ctx context.Context, id int64) (*domain.Link, error)
	Update(ctx context.Context, link *domain.Link) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int, filter ListFilter) ([]domain.Link, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	Dump(ctx context.Context) ([]domain.Link, error) // For migration

	// ShortURLExists is the uniqueness probe used while generating slugs.
	ShortURLExists(ctx context.Context, shortURL string) (bool, error)
	// FindBrothers returns links of owner sharing longURL, oldest first.
	FindBrothers(ctx context.Context, owner, longURL string) ([]domain.Link, error)
	// IncrementViews bumps view_count by one.
	IncrementViews(ctx context.Context, id int64) error
	// ListLeastRecentlyChecked returns up to limit links ordered by last_checked ascending.
	ListLeastRecentlyChecked(ctx context.Context, limit int) ([]domain.Link, error)
	// Stats returns totals and the most viewed links.
	Stats(ctx context.Context, limit int) (*domain.LinkStats, error)

	Ping(ctx context.Context) error
	Close() error
}

// LinkValidator runs one validation pass and persists the outcome.
type LinkValidator interface {
	Validate(ctx context.Context, link *domain.Link) error
}

// Checker revalidates a rotating batch of stored links.
type Checker interface {
	RunValidationBatch(ctx context.Context) (*domain.BatchReport, error)
}

// LinkService defines the business logic operations
type LinkService interface {
	Shorten(ctx context.Context, p domain.Principal, longURL, shortURL string) (*domain.Link, bool, error)
	Resolve(ctx context.Context, shortURL string) (string, error)
	GetLink(ctx context.Context, p domain.Principal, id int64) (*domain.Link, error)
	UpdateLink(ctx context.Context, p domain.Principal, id int64, longURL, shortURL string) (*domain.Link, error)
	DeleteLink(ctx context.Context, p domain.Principal, id int64) error
	ListLinks(ctx context.Context, p domain.Principal, page, limit int, search string) ([]domain.Link, int64, error)
	Revalidate(ctx context.Context, p domain.Principal, id int64) (*domain.Link, error)
	Statistics(ctx context.Context, p domain.Principal, limit int) (*domain.LinkStats, error)
}
