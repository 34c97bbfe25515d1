package history_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/docqa/config"
	"github.com/fabfab/docqa/history"
)

func exerciseStore(t *testing.T, store history.Store) {
	t.Helper()
	ctx := context.Background()
	docA := "doc-" + uuid.NewString()
	docB := "doc-" + uuid.NewString()

	empty, err := store.Get(ctx, docA)
	require.NoError(t, err)
	assert.Empty(t, empty)

	ts := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	transcript := []history.Message{
		{ID: "1", Role: history.RoleUser, Content: "What is this paper about?", Timestamp: ts, DocumentID: docA},
		{ID: "2", Role: history.RoleAssistant, Content: "Attention.", Timestamp: ts.Add(time.Second), DocumentID: docA},
	}
	require.NoError(t, store.Put(ctx, docA, transcript))
	require.NoError(t, store.Put(ctx, docB, transcript[:1]))

	got, err := store.Get(ctx, docA)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "What is this paper about?", got[0].Content)
	assert.Equal(t, history.RoleAssistant, got[1].Role)
	assert.True(t, ts.Equal(got[0].Timestamp))

	require.NoError(t, store.Put(ctx, docA, transcript[:1]))
	got, err = store.Get(ctx, docA)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, store.Clear(ctx, docA))
	got, err = store.Get(ctx, docA)
	require.NoError(t, err)
	assert.Empty(t, got)

	other, err := store.Get(ctx, docB)
	require.NoError(t, err)
	assert.Len(t, other, 1, "clearing one document keeps the others")
	require.NoError(t, store.Clear(ctx, docB))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "chat_history_abc", history.Key("abc"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, history.NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := history.NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
	assert.FileExists(t, path)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := history.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "doc", []history.Message{{ID: "1", Role: history.RoleUser, Content: "hi", DocumentID: "doc"}}))
	require.NoError(t, store.Close())

	reopened, err := history.NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Content)
}

func TestRedisStore(t *testing.T) {
	if os.Getenv("RUN_REDIS_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_REDIS_INTEGRATION_TESTS=1 to run redis checks")
	}

	cfg, err := config.Load("")
	require.NoError(t, err)

	client, err := history.DialRedis(context.Background(), cfg.History.RedisAddr, cfg.History.RedisPassword, cfg.History.RedisDB)
	require.NoError(t, err)
	defer client.Close()

	exerciseStore(t, history.NewRedisStore(client))
}
