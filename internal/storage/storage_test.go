package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"case-console/internal/model"
)

func TestLocalStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	written, err := store.Put(ctx, "cases/abc.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	require.Equal(t, int64(len("png-bytes")), written)

	reader, info, err := store.Open(ctx, "cases/abc.png")
	require.NoError(t, err)
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	require.Equal(t, "png-bytes", string(content))
	require.Equal(t, "image/png", info.ContentType)
	require.Equal(t, int64(9), info.Size)

	entries, err := os.ReadDir(filepath.Join(store.RootAbs(), "cases"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary upload files must not be left behind")

	require.NoError(t, store.Delete(ctx, "cases/abc.png"))
	_, _, err = store.Open(ctx, "cases/abc.png")
	require.ErrorIs(t, err, model.ErrImageNotFound)

	require.NoError(t, store.Delete(ctx, "cases/abc.png"), "deleting a missing object is not an error")
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../escape.png", "image/png", strings.NewReader("x"))
	require.Error(t, err)
}
