package toml

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/truck-load-watch/internal/adapters/store/storetest"
	"github.com/bnema/truck-load-watch/internal/domain"
	"github.com/bnema/truck-load-watch/internal/ports"
)

func TestStoreBehaviour(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(t *testing.T) ports.Store {
		store, err := New(filepath.Join(t.TempDir(), "watch.toml"))
		require.NoError(t, err)
		return store
	})
}

func TestStoreWritesVersionedFileWithPrivateMode(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "watch.toml")
	store, err := New(path)
	require.NoError(t, err)

	require.NoError(t, store.SaveSettings(context.Background(), domain.DefaultWatcherSettings(2)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version = 1")
	assert.Contains(t, string(data), "daily_threshold = 2")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasSuffix(entry.Name(), ".tmp"), "temp file left behind: %s", entry.Name())
	}
}

func TestStoreRejectsNewerSchemaVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "watch.toml")
	require.NoError(t, os.WriteFile(path, []byte("version = 99\n"), 0o600))

	store, err := New(path)
	require.NoError(t, err)

	_, err = store.GetSettings(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported watch file schema version 99")
}

func TestStoreConcurrentSavesShareFileLock(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "watch.toml")
	first, err := New(path)
	require.NoError(t, err)
	second, err := New(path)
	require.NoError(t, err)

	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		store := first
		if i%2 == 1 {
			store = second
		}
		wg.Add(1)
		go func(store *Store, id string) {
			defer wg.Done()
			assert.NoError(t, store.SaveAccepted(context.Background(), []domain.AcceptedLoad{storetest.Load(id, 100, at)}))
		}(store, "load-"+string(rune('a'+i)))
	}
	wg.Wait()

	count, err := first.CountAcceptedSince(context.Background(), at.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 20, count)
}

func TestStoreContextCancelled(t *testing.T) {
	t.Parallel()

	store, err := New(filepath.Join(t.TempDir(), "watch.toml"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, store.SaveSettings(ctx, domain.DefaultWatcherSettings(1)), context.Canceled)
	_, err = store.GetSession(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
