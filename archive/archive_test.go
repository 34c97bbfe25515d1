package archive_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/docqa/archive"
	"github.com/fabfab/docqa/config"
)

func TestNewWithoutEndpointIsNop(t *testing.T) {
	store, err := archive.New(context.Background(), config.ArchiveConfig{Bucket: "b"}, nil)
	require.NoError(t, err)
	assert.IsType(t, archive.Nop{}, store)
	assert.NoError(t, store.Put(context.Background(), "doc", "a.pdf", "application/pdf", []byte("x")))
	assert.NoError(t, store.Clear(context.Background()))
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{filename: "paper.pdf", want: "doc-1/paper.pdf"},
		{filename: "../../etc/passwd", want: "doc-1/passwd"},
		{filename: `C:\Users\me\paper.pdf`, want: "doc-1/paper.pdf"},
		{filename: "", want: "doc-1/upload"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, archive.ObjectKey("doc-1", tt.filename), tt.filename)
	}
}

func TestMinioStoreRoundTrip(t *testing.T) {
	if os.Getenv("RUN_MINIO_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_MINIO_INTEGRATION_TESTS=1 to run object storage checks")
	}

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Archive.Endpoint, "ARCHIVE_ENDPOINT must be set")

	ctx := context.Background()
	cfg.Archive.Bucket = "docqa-test-" + uuid.NewString()[:8]

	store, err := archive.New(ctx, cfg.Archive, nil)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, uuid.NewString(), "paper.pdf", "application/pdf", []byte("%PDF-1.4")))
	require.NoError(t, store.Clear(ctx))
}
