// Package repository opens the link store selected by DATABASE_URL.
package repository

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/tinylinks/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/tinylinks/pkg/adapters/repository/postgres"
	"github.com/wadjakorntonsri/tinylinks/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/tinylinks/pkg/ports"
)

// Open picks the adapter from the URL scheme:
// memory:// keeps links in process, postgres:// and postgresql:// use pgx,
// anything else is handed to SQLite (libsql:// and wss:// go to Turso).
func Open(ctx context.Context, dbURL string, log zerolog.Logger) (ports.LinkRepository, error) {
	switch {
	case strings.HasPrefix(dbURL, "memory://"):
		log.Info().Msg("using in-memory link store")
		return memory.NewMemoryRepository(), nil
	case postgres.IsPostgresURL(dbURL):
		log.Info().Msg("using postgres link store")
		repo, err := postgres.Connect(ctx, dbURL, log)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		log.Info().Bool("remote", sqlite.IsRemoteURL(dbURL)).Msg("using sqlite link store")
		repo, err := sqlite.NewSQLiteRepository(ctx, dbURL, log)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
}
