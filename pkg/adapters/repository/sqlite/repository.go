package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	msqlite "modernc.org/sqlite"                         // Local SQLite driver
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/wadjakorntonsri/tinylinks/pkg/adapters/repository/migrate"
	"github.com/wadjakorntonsri/tinylinks/pkg/core/domain"
	"github.com/wadjakorntonsri/tinylinks/pkg/ports"
)

//go:embed migrations/*.sql
var migrations embed.FS

const linkColumns = `id, owner, long_url, short_url, is_broken, validation_error, redirect_location,
	last_checked, view_count, created_at, updated_at`

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens dbURL with the local driver, or with libsql for Turso URLs,
// and applies pending migrations.
func NewSQLiteRepository(ctx context.Context, dbURL string, log zerolog.Logger) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if IsRemoteURL(dbURL) {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driverName, err)
	}
	if driverName == "sqlite" {
		// A single writer avoids SQLITE_BUSY and keeps in-memory databases on one connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate.Up(ctx, db, migrations, "migrations", "sqlite3", log); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

// IsRemoteURL reports whether dbURL points at a libsql server.
func IsRemoteURL(dbURL string) bool {
	return strings.HasPrefix(dbURL, "libsql://") || strings.HasPrefix(dbURL, "wss://") ||
		strings.HasPrefix(dbURL, "ws://")
}

func (r *SQLiteRepository) Create(ctx context.Context, link *domain.Link) error {
	query := `INSERT INTO links (owner, long_url, short_url, is_broken, validation_error, redirect_location,
			  last_checked, view_count, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query,
		link.Owner, link.LongURL, link.ShortURL, link.IsBroken, link.ValidationError, link.RedirectLocation,
		nullTime(link.LastChecked), link.ViewCount, link.CreatedAt.UTC(), link.UpdatedAt.UTC(),
	)
	if err != nil {
		return translate(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	link.ID = id
	return nil
}

func (r *SQLiteRepository) GetByShortURL(ctx context.Context, shortURL string) (*domain.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_url = ?`
	return r.getOne(ctx, query, shortURL)
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*domain.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE id = ?`
	return r.getOne(ctx, query, id)
}

func (r *SQLiteRepository) getOne(ctx context.Context, query string, arg any) (*domain.Link, error) {
	link, err := scanLink(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return link, nil
}

// Update writes everything but view_count, which only IncrementViews changes.
func (r *SQLiteRepository) Update(ctx context.Context, link *domain.Link) error {
	query := `UPDATE links SET long_url = ?, short_url = ?, is_broken = ?, validation_error = ?,
			  redirect_location = ?, last_checked = ?, updated_at = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query,
		link.LongURL, link.ShortURL, link.IsBroken, link.ValidationError,
		link.RedirectLocation, nullTime(link.LastChecked), link.UpdatedAt.UTC(), link.ID,
	)
	if err != nil {
		return translate(err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *SQLiteRepository) List(ctx context.Context, limit, offset int, filter ports.ListFilter) ([]domain.Link, error) {
	where, args := whereClause(filter)
	query := `SELECT ` + linkColumns + ` FROM links` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	return r.query(ctx, query, args...)
}

func (r *SQLiteRepository) Count(ctx context.Context, filter ports.ListFilter) (int64, error) {
	where, args := whereClause(filter)
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM links`+where, args...).Scan(&count)
	return count, err
}

func (r *SQLiteRepository) Dump(ctx context.Context) ([]domain.Link, error) {
	return r.query(ctx, `SELECT `+linkColumns+` FROM links ORDER BY id`)
}

func (r *SQLiteRepository) ShortURLExists(ctx context.Context, shortURL string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM links WHERE short_url = ?)`, shortURL).Scan(&exists)
	return exists, err
}

func (r *SQLiteRepository) FindBrothers(ctx context.Context, owner, longURL string) ([]domain.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE owner = ? AND long_url = ? ORDER BY id`
	return r.query(ctx, query, owner, longURL)
}

func (r *SQLiteRepository) IncrementViews(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE links SET view_count = view_count + 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *SQLiteRepository) ListLeastRecentlyChecked(ctx context.Context, limit int) ([]domain.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links ORDER BY last_checked ASC NULLS FIRST, id ASC LIMIT ?`
	return r.query(ctx, query, limit)
}

func (r *SQLiteRepository) Stats(ctx context.Context, limit int) (*domain.LinkStats, error) {
	stats := &domain.LinkStats{TopLinks: []domain.Link{}}

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(view_count), 0), COALESCE(SUM(CASE WHEN is_broken THEN 1 ELSE 0 END), 0) FROM links`,
	).Scan(&stats.TotalLinks, &stats.TotalViews, &stats.BrokenLinks)
	if err != nil {
		return nil, err
	}

	top, err := r.query(ctx, `SELECT `+linkColumns+` FROM links ORDER BY view_count DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	stats.TopLinks = append(stats.TopLinks, top...)
	return stats, nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]domain.Link, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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
		conds = append(conds, "owner = ?")
		args = append(args, filter.Owner)
	}
	if filter.Search != "" {
		conds = append(conds, `(long_url LIKE ? ESCAPE '\' OR short_url LIKE ? ESCAPE '\')`)
		pattern := containsPattern(filter.Search)
		args = append(args, pattern, pattern)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern matches search literally. SQLite LIKE ignores ASCII case.
func containsPattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLink(row scanner) (*domain.Link, error) {
	var l domain.Link
	var lastChecked sql.NullTime
	err := row.Scan(
		&l.ID, &l.Owner, &l.LongURL, &l.ShortURL, &l.IsBroken, &l.ValidationError, &l.RedirectLocation,
		&lastChecked, &l.ViewCount, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastChecked.Valid {
		l.LastChecked = lastChecked.Time
	}
	return &l, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// translate maps unique constraint violations to domain.ErrSlugTaken.
// libsql only reports them in the message.
func translate(err error) error {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return domain.ErrSlugTaken
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return domain.ErrSlugTaken
	}
	return err
}

var _ ports.LinkRepository = (*SQLiteRepository)(nil)
