// Package lds implements the local durable store: a versioned, partitioned
// key-value store that survives restarts and carries both cached reference
// data and the outbound work queues.
package lds

import (
	"context"

	"github.com/fieldops/fieldsync/internal/errors"
)

// Partition names. Each partition is keyed by its own primary key and is
// written independently; no cross-partition transactions exist.
const (
	PartitionStores        = "stores"
	PartitionProducts      = "products"
	PartitionEmployee      = "employee"
	PartitionPendingOrders = "pendingOrders"
	PartitionPendingImages = "pendingImages"
)

var knownPartitions = map[string]bool{
	PartitionStores:        true,
	PartitionProducts:      true,
	PartitionEmployee:      true,
	PartitionPendingOrders: true,
	PartitionPendingImages: true,
}

// Document is one stored record: an opaque JSON payload under a
// partition-scoped primary key.
type Document struct {
	Key     string
	Payload []byte
}

// Backend is the storage contract shared by the SQLite store and the
// memory-only fallback used when persistent storage is denied.
//
// GetAll returns records in unspecified order; callers sort. GetByIndex
// matches a top-level field of the JSON payload (used to filter pending
// orders by status). Delete is a no-op for absent keys.
type Backend interface {
	Put(ctx context.Context, partition string, doc Document) error
	Get(ctx context.Context, partition, key string) (Document, bool, error)
	GetAll(ctx context.Context, partition string) ([]Document, error)
	GetByIndex(ctx context.Context, partition, field, value string) ([]Document, error)
	Delete(ctx context.Context, partition, key string) error
	Clear(ctx context.Context, partition string) error

	// NextSequence returns the next value of the partition's durable
	// auto-increment. Values are monotonic and never reused, even across
	// restarts.
	NextSequence(ctx context.Context, partition string) (int64, error)

	Close() error
}

// checkPartition guards against typo'd partition names; the schema only
// provisions the named partitions.
func checkPartition(partition string) error {
	if !knownPartitions[partition] {
		return errors.New(errors.ErrPartitionUnknown, "unknown partition "+partition)
	}
	return nil
}
