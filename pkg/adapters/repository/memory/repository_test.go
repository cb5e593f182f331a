package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/tinylinks/pkg/adapters/repository/repotest"
	"github.com/wadjakorntonsri/tinylinks/pkg/core/domain"
	"github.com/wadjakorntonsri/tinylinks/pkg/ports"
)

func TestMemoryRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) ports.LinkRepository {
		return NewMemoryRepository()
	})
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	link := &domain.Link{Owner: "alice", LongURL: "https://example.com/a", ShortURL: "abc"}
	require.NoError(t, repo.Create(ctx, link))

	got, err := repo.GetByID(ctx, link.ID)
	require.NoError(t, err)
	got.LongURL = "https://evil.example/"
	link.LongURL = "https://evil.example/"

	stored, err := repo.GetByShortURL(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", stored.LongURL)
}
