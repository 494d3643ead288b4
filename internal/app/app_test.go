package app

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/tilawa/internal/database"
	"github.com/varoOP/tilawa/internal/domain"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	db, err := database.NewDB(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	return &App{
		log:       zerolog.Nop(),
		db:        db,
		CacheRepo: database.NewCacheRepo(zerolog.Nop(), db),
	}
}

func TestApp_Invalidate(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)

	key := domain.AyahKey("1", 2, 255)
	require.NoError(t, a.CacheRepo.Upsert(ctx, &domain.CacheEntry{
		Key:              key,
		ContentReference: "ref",
		Captions:         map[string]string{"ru": "аят"},
	}))

	deleted, err := a.Invalidate(ctx, key)
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err := a.CacheRepo.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err = a.Invalidate(ctx, key)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestApp_CloseWithoutSession(t *testing.T) {
	a := newTestApp(t)
	assert.NoError(t, a.Close())
}
