package firestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-chat/internal/docstore"
)

func TestDocIDEscapesSlashes(t *testing.T) {
	for _, key := range []string{"alice:t1", "thread-index:alice", "chat-history-1/2", "a b"} {
		id := docID(key)
		assert.NotContains(t, id, "/")
		assert.Equal(t, key, keyFromID(id))
	}
}

func TestNewStoreRequiresProject(t *testing.T) {
	_, err := NewStore(context.Background(), Options{}, docstore.DefaultOptions)
	require.Error(t, err)
}
