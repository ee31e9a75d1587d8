package lds

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldops/fieldsync/internal/errors"
)

// backends returns every Backend implementation under test. The memory
// store must behave identically to the durable one.
func backends(t *testing.T) map[string]Backend {
	t.Helper()

	sqlite, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Backend{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func TestBackendPutGet(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := store.Get(ctx, PartitionStores, "missing")
			require.NoError(t, err)
			require.False(t, ok)

			doc := Document{Key: "s-1", Payload: []byte(`{"id":"s-1","name":"north"}`)}
			require.NoError(t, store.Put(ctx, PartitionStores, doc))

			got, ok, err := store.Get(ctx, PartitionStores, "s-1")
			require.NoError(t, err)
			require.True(t, ok)
			require.JSONEq(t, string(doc.Payload), string(got.Payload))

			// Put with the same key replaces.
			require.NoError(t, store.Put(ctx, PartitionStores, Document{Key: "s-1", Payload: []byte(`{"id":"s-1","name":"south"}`)}))
			got, _, err = store.Get(ctx, PartitionStores, "s-1")
			require.NoError(t, err)
			require.Contains(t, string(got.Payload), "south")
		})
	}
}

func TestBackendPartitionIsolation(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Put(ctx, PartitionStores, Document{Key: "1", Payload: []byte(`{"kind":"store"}`)}))
			require.NoError(t, store.Put(ctx, PartitionProducts, Document{Key: "1", Payload: []byte(`{"kind":"product"}`)}))

			got, ok, err := store.Get(ctx, PartitionProducts, "1")
			require.NoError(t, err)
			require.True(t, ok)
			require.Contains(t, string(got.Payload), "product")

			require.NoError(t, store.Clear(ctx, PartitionProducts))

			_, ok, err = store.Get(ctx, PartitionProducts, "1")
			require.NoError(t, err)
			require.False(t, ok)

			// The other partition is untouched.
			_, ok, err = store.Get(ctx, PartitionStores, "1")
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}

func TestBackendGetAll(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			docs, err := store.GetAll(ctx, PartitionProducts)
			require.NoError(t, err)
			require.Empty(t, docs)

			require.NoError(t, store.Put(ctx, PartitionProducts, Document{Key: "a", Payload: []byte(`{}`)}))
			require.NoError(t, store.Put(ctx, PartitionProducts, Document{Key: "b", Payload: []byte(`{}`)}))

			docs, err = store.GetAll(ctx, PartitionProducts)
			require.NoError(t, err)
			require.Len(t, docs, 2)
		})
	}
}

func TestBackendGetByIndex(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Put(ctx, PartitionPendingOrders, Document{Key: "1", Payload: []byte(`{"localId":1,"status":"pending"}`)}))
			require.NoError(t, store.Put(ctx, PartitionPendingOrders, Document{Key: "2", Payload: []byte(`{"localId":2,"status":"error"}`)}))
			require.NoError(t, store.Put(ctx, PartitionPendingOrders, Document{Key: "3", Payload: []byte(`{"localId":3,"status":"pending"}`)}))

			docs, err := store.GetByIndex(ctx, PartitionPendingOrders, "status", "pending")
			require.NoError(t, err)
			require.Len(t, docs, 2)

			docs, err = store.GetByIndex(ctx, PartitionPendingOrders, "status", "synced")
			require.NoError(t, err)
			require.Empty(t, docs)
		})
	}
}

func TestBackendDelete(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Put(ctx, PartitionStores, Document{Key: "x", Payload: []byte(`{}`)}))
			require.NoError(t, store.Delete(ctx, PartitionStores, "x"))

			_, ok, err := store.Get(ctx, PartitionStores, "x")
			require.NoError(t, err)
			require.False(t, ok)

			// Deleting a missing key is not an error.
			require.NoError(t, store.Delete(ctx, PartitionStores, "x"))
		})
	}
}

func TestBackendNextSequence(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, err := store.NextSequence(ctx, PartitionPendingOrders)
			require.NoError(t, err)
			require.Equal(t, int64(1), first)

			second, err := store.NextSequence(ctx, PartitionPendingOrders)
			require.NoError(t, err)
			require.Equal(t, int64(2), second)

			// Sequences are per partition.
			other, err := store.NextSequence(ctx, PartitionPendingImages)
			require.NoError(t, err)
			require.Equal(t, int64(1), other)
		})
	}
}

func TestBackendUnknownPartition(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			err := store.Put(ctx, "bogus", Document{Key: "k", Payload: []byte(`{}`)})
			require.Error(t, err)
			require.True(t, errors.Is(err, errors.ErrPartitionUnknown))

			_, _, err = store.Get(ctx, "bogus", "k")
			require.True(t, errors.Is(err, errors.ErrPartitionUnknown))

			_, err = store.GetAll(ctx, "bogus")
			require.True(t, errors.Is(err, errors.ErrPartitionUnknown))

			_, err = store.NextSequence(ctx, "bogus")
			require.True(t, errors.Is(err, errors.ErrPartitionUnknown))
		})
	}
}

// TestSQLitePersistence verifies documents and sequences survive reopening
// the store, which is the whole point of the durable backend.
func TestSQLitePersistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, PartitionStores, Document{Key: "s-1", Payload: []byte(`{"id":"s-1"}`)}))
	seq, err := store.NextSequence(ctx, PartitionPendingOrders)
	require.NoError(t, err)
	require.Equal(t, int64(1), seq)
	require.NoError(t, store.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	_, ok, err := reopened.Get(ctx, PartitionStores, "s-1")
	require.NoError(t, err)
	require.True(t, ok)

	seq, err = reopened.NextSequence(ctx, PartitionPendingOrders)
	require.NoError(t, err)
	require.Equal(t, int64(2), seq)
}
