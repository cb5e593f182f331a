package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/wadjakorntonsri/tinylinks/pkg/adapters/repository/migrate"
	"github.com/wadjakorntonsri/tinylinks/pkg/core/domain"
	"github.com/wadjakorntonsri/tinylinks/pkg/ports"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	linkColumns = `id, owner, long_url, short_url, is_broken, validation_error, redirect_location,
	last_checked, view_count, created_at, updated_at`

	uniqueViolation = "23505"
	connectAttempts = 3
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// Connect opens a pool with a few retries, pings it and applies pending migrations.
func Connect(ctx context.Context, dbURL string, log zerolog.Logger) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres url: %w", err)
	}

	var pool *pgxpool.Pool
	backoff := retry.WithMaxRetries(connectAttempts-1, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return retry.RetryableError(err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			log.Warn().Err(err).Msg("postgres not reachable yet")
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	// The bridge shares the pool's connections and must not be closed.
	db := stdlib.OpenDBFromPool(pool)
	if err := migrate.Up(ctx, db, migrations, "migrations", "postgres", log); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresRepository{pool: pool}, nil
}

// IsPostgresURL reports whether dbURL should be opened with Connect.
func IsPostgresURL(dbURL string) bool {
	return strings.HasPrefix(dbURL, "postgres://") || strings.HasPrefix(dbURL, "postgresql://")
}

func (r *PostgresRepository) Create(ctx context.Context, link *domain.Link) error {
	query := `INSERT INTO links (owner, long_url, short_url, is_broken, validation_error, redirect_location,
			  last_checked, view_count, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`

	err := r.pool.QueryRow(ctx, query,
		link.Owner, link.LongURL, link.ShortURL, link.IsBroken, link.ValidationError, link.RedirectLocation,
		nullTime(link.LastChecked), link.ViewCount, link.CreatedAt, link.UpdatedAt,
	).Scan(&link.ID)
	return translate(err)
}

func (r *PostgresRepository) GetByShortURL(ctx context.Context, shortURL string) (*domain.Link, error) {
	return r.getOne(ctx, `SELECT `+linkColumns+` FROM links WHERE short_url = $1`, shortURL)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.Link, error) {
	return r.getOne(ctx, `SELECT `+linkColumns+` FROM links WHERE id = $1`, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*domain.Link, error) {
	link, err := scanLink(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return link, nil
}

// Update writes everything but view_count, which only IncrementViews changes.
func (r *PostgresRepository) Update(ctx context.Context, link *domain.Link) error {
	query := `UPDATE links SET long_url = $1, short_url = $2, is_broken = $3, validation_error = $4,
			  redirect_location = $5, last_checked = $6, updated_at = $7 WHERE id = $8`

	tag, err := r.pool.Exec(ctx, query,
		link.LongURL, link.ShortURL, link.IsBroken, link.ValidationError,
		link.RedirectLocation, nullTime(link.LastChecked), link.UpdatedAt, link.ID,
	)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, limit, offset int, filter ports.ListFilter) ([]domain.Link, error) {
	where, args := whereClause(filter)
	n := len(args)
	query := `SELECT ` + linkColumns + ` FROM links` + where +
		` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, offset)
	return r.query(ctx, query, args...)
}

func (r *PostgresRepository) Count(ctx context.Context, filter ports.ListFilter) (int64, error) {
	where, args := whereClause(filter)
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM links`+where, args...).Scan(&count)
	return count, err
}

func (r *PostgresRepository) Dump(ctx context.Context) ([]domain.Link, error) {
	return r.query(ctx, `SELECT `+linkColumns+` FROM links ORDER BY id`)
}

func (r *PostgresRepository) ShortURLExists(ctx context.Context, shortURL string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM links WHERE short_url = $1)`, shortURL).Scan(&exists)
	return exists, err
}

func (r *PostgresRepository) FindBrothers(ctx context.Context, owner, longURL string) ([]domain.Link, error) {
	return r.query(ctx, `SELECT `+linkColumns+` FROM links WHERE owner = $1 AND long_url = $2 ORDER BY id`, owner, longURL)
}

func (r *PostgresRepository) IncrementViews(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE links SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListLeastRecentlyChecked(ctx context.Context, limit int) ([]domain.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links ORDER BY last_checked ASC NULLS FIRST, id ASC LIMIT $1`
	return r.query(ctx, query, limit)
}

func (r *PostgresRepository) Stats(ctx context.Context, limit int) (*domain.LinkStats, error) {
	stats := &domain.LinkStats{TopLinks: []domain.Link{}}

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(view_count), 0)::BIGINT, COUNT(*) FILTER (WHERE is_broken) FROM links`,
	).Scan(&stats.TotalLinks, &stats.TotalViews, &stats.BrokenLinks)
	if err != nil {
		return nil, err
	}

	top, err := r.query(ctx, `SELECT `+linkColumns+` FROM links ORDER BY view_count DESC, id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	stats.TopLinks = append(stats.TopLinks, top...)
	return stats, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]domain.Link, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

func whereClause(filter ports.ListFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.Owner != "" {
		args = append(args, filter.Owner)
		conds = append(conds, "owner = $"+strconv.Itoa(len(args)))
	}
	if filter.Search != "" {
		args = append(args, containsPattern(filter.Search))
		n := strconv.Itoa(len(args))
		conds = append(conds, "(long_url ILIKE $"+n+` ESCAPE '\' OR short_url ILIKE $`+n+` ESCAPE '\')`)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern matches search literally.
func containsPattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}

func scanLink(row pgx.Row) (*domain.Link, error) {
	var l domain.Link
	var lastChecked *time.Time
	err := row.Scan(
		&l.ID, &l.Owner, &l.LongURL, &l.ShortURL, &l.IsBroken, &l.ValidationError, &l.RedirectLocation,
		&lastChecked, &l.ViewCount, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastChecked != nil {
		l.LastChecked = *lastChecked
	}
	return &l, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrSlugTaken
	}
	return err
}

var _ ports.LinkRepository = (*PostgresRepository)(nil)
