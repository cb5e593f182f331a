// Package migrate applies embedded goose migrations for the SQL repositories.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

// goose keeps its settings in package globals.
var mu sync.Mutex

// Up applies every pending migration found in dir of migrations.
func Up(ctx context.Context, db *sql.DB, migrations fs.FS, dir, dialect string, log zerolog.Logger) error {
	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(&gooseLogger{log: log.With().Str("component", "migrate").Logger()})

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

type gooseLogger struct {
	log zerolog.Logger
}

func (g *gooseLogger) Printf(format string, args ...any) {
	g.log.Debug().Msgf(format, args...)
}

// Fatalf does not exit; goose returns the error to Up.
func (g *gooseLogger) Fatalf(format string, args ...any) {
	g.log.Error().Msgf(format, args...)
}
