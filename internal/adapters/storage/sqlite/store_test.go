package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-chat/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/farum-chat/internal/docstore"
	"github.com/PabloGalante/farum-chat/internal/domain"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.Open(sqlite.MemoryPath, docstore.DefaultOptions)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Write(ctx, map[string]any{
		"alice:t1":           map[string]any{"userId": "alice", "threadId": "t1"},
		"thread-index:alice": `{"threads":[]}`,
	}))

	got, err := s.Read(ctx, []string{"alice:t1", "thread-index:alice", "bob:t1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"userId":"alice","threadId":"t1"}`, string(got["alice:t1"].([]byte)))

	// Upsert replaces the whole document.
	require.NoError(t, s.Write(ctx, map[string]any{"alice:t1": `{"userId":"alice"}`}))
	got, err = s.Read(ctx, []string{"alice:t1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":"alice"}`, string(got["alice:t1"].([]byte)))

	keys, err := s.Keys(ctx, "thread-index:")
	require.NoError(t, err)
	assert.Equal(t, []string{"thread-index:alice"}, keys)

	require.NoError(t, s.Delete(ctx, []string{"alice:t1", "thread-index:alice"}))
	got, err = s.Read(ctx, []string{"alice:t1", "thread-index:alice"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStorePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "farum.db")

	s, err := sqlite.Open(path, docstore.DefaultOptions)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, map[string]any{"k": []byte(`{"v":1}`)}))
	require.NoError(t, s.Close())

	s, err = sqlite.Open(path, docstore.DefaultOptions)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.Read(ctx, []string{"k"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(got["k"].([]byte)))
}

func TestStoreClosedDatabaseIsUnavailable(t *testing.T) {
	s, err := sqlite.Open(sqlite.MemoryPath, docstore.DefaultOptions)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Read(context.Background(), []string{"k"})
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := sqlite.Open("  ", docstore.DefaultOptions)
	assert.Error(t, err)
}
