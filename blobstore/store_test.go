package blobstore

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]BlobStore {
	t.Helper()
	return map[string]BlobStore{
		"memory": NewMemoryStore(),
		"local":  NewLocalStore(t.TempDir()),
	}
}

func put(t *testing.T, store BlobStore, name string, data []byte) {
	t.Helper()
	ctx := context.Background()
	wb, err := store.Create(ctx, name)
	require.NoError(t, err)
	_, err = wb.Write(data)
	require.NoError(t, err)
	require.NoError(t, wb.Close())
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			data := []byte("archived track table bytes")
			put(t, store, "run-0001/bigtracks.trk", data)

			b, err := store.Open(ctx, "run-0001/bigtracks.trk")
			require.NoError(t, err)
			defer b.Close()

			assert.Equal(t, int64(len(data)), b.Size())

			got := make([]byte, len(data))
			n, err := b.ReadAt(ctx, got, 0)
			require.NoError(t, err)
			assert.Equal(t, len(data), n)
			assert.Equal(t, data, got)

			// Partial read from an offset.
			tail := make([]byte, 5)
			n, err = b.ReadAt(ctx, tail, int64(len(data)-5))
			if err != nil {
				require.ErrorIs(t, err, io.EOF)
			}
			assert.Equal(t, 5, n)
			assert.Equal(t, data[len(data)-5:], tail)
		})
	}
}

func TestStoreOpenMissing(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Open(context.Background(), "missing.trk")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			put(t, store, "doomed.trk", []byte("x"))

			require.NoError(t, store.Delete(ctx, "doomed.trk"))
			_, err := store.Open(ctx, "doomed.trk")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting an absent blob is not an error.
			assert.NoError(t, store.Delete(ctx, "doomed.trk"))
		})
	}
}

func TestStoreList(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			put(t, store, "run-0002/bigtracks.trk", []byte("b"))
			put(t, store, "run-0001/bigtracks.trk", []byte("a"))
			put(t, store, "calibration/flat.trk", []byte("c"))

			names, err := store.List(ctx, "run-")
			require.NoError(t, err)
			assert.Equal(t, []string{"run-0001/bigtracks.trk", "run-0002/bigtracks.trk"}, names)

			all, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestStoreAbort(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			wb, err := store.Create(ctx, "partial.trk")
			require.NoError(t, err)
			_, err = wb.Write([]byte("half an arch"))
			require.NoError(t, err)
			require.NoError(t, wb.Abort())

			// An aborted blob is never visible.
			_, err = store.Open(ctx, "partial.trk")
			assert.True(t, errors.Is(err, ErrNotFound))

			names, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, names)
		})
	}
}

func TestStoreOverwrite(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			put(t, store, "a.trk", []byte("first version"))
			put(t, store, "a.trk", []byte("second"))

			b, err := store.Open(ctx, "a.trk")
			require.NoError(t, err)
			defer b.Close()
			assert.Equal(t, int64(6), b.Size())
		})
	}
}
