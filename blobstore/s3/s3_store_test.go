package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/hupe1980/respack/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real bucket when S3_BUCKET is set.
func TestIntegration_S3Store(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("S3_BUCKET not set")
	}

	ctx := context.Background()
	store, err := New(ctx, bucket, WithPrefix(fmt.Sprintf("respack-it-%d/", time.Now().UnixNano())))
	require.NoError(t, err)

	pak := bytes.Repeat([]byte("0123456789abcdef"), 64<<10)

	w, err := store.Create(ctx, "core/level1.rpak")
	require.NoError(t, err)
	_, err = w.Write(pak)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, store.Put(ctx, "core/level1.rpak.rdesc", []byte("descriptor")))
	t.Cleanup(func() {
		_ = store.Delete(ctx, "core/level1.rpak")
		_ = store.Delete(ctx, "core/level1.rpak.rdesc")
	})

	names, err := store.List(ctx, "core/")
	require.NoError(t, err)
	assert.Equal(t, []string{"core/level1.rpak", "core/level1.rpak.rdesc"}, names)

	b, err := store.Open(ctx, "core/level1.rpak")
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, int64(len(pak)), b.Size())

	got, err := blobstore.ReadRange(ctx, b, 4096, 100)
	require.NoError(t, err)
	assert.Equal(t, pak[4096:4196], got)

	rc, err := b.ReadRange(ctx, int64(len(pak))-16, 16)
	require.NoError(t, err)
	tail, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "0123456789abcdef", string(tail))

	_, err = store.Open(ctx, "core/missing.rpak")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
