// Package cache provides the reference data cache: stores, products and the
// employee profile mirrored into the local durable store so read paths work
// identically online and offline.
//
// Collections use replace semantics. A refresh swaps the full authoritative
// set, so entries that disappeared remotely (a store reassigned away from
// this courier) disappear locally too, without tombstone tracking.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/fieldops/fieldsync/internal/lds"
	"github.com/fieldops/fieldsync/internal/logging"
	"github.com/fieldops/fieldsync/internal/models"
)

// Cache serves offline-capable reads over the LDS reference partitions.
type Cache struct {
	store lds.Backend
}

// New creates a Cache over the given store.
func New(store lds.Backend) *Cache {
	return &Cache{store: store}
}

// ReplaceStores swaps the cached store collection for the given records.
// records must be the complete authoritative set, not a delta.
func (c *Cache) ReplaceStores(ctx context.Context, records []models.Store) error {
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return err
		}
	}

	if err := c.store.Clear(ctx, lds.PartitionStores); err != nil {
		return err
	}

	now := time.Now().Unix()
	for i := range records {
		records[i].LastUpdate = now
		payload, err := json.Marshal(&records[i])
		if err != nil {
			return fmt.Errorf("marshal store %s: %w", records[i].ID, err)
		}
		doc := lds.Document{Key: records[i].ID, Payload: payload}
		if err := c.store.Put(ctx, lds.PartitionStores, doc); err != nil {
			return err
		}
	}

	logging.Info("Store cache refreshed", map[string]interface{}{"count": len(records)})
	return nil
}

// Stores returns the cached stores, sorted by id for stable iteration.
// Freshness is the caller's responsibility; no network call happens here.
func (c *Cache) Stores(ctx context.Context) ([]models.Store, error) {
	docs, err := c.store.GetAll(ctx, lds.PartitionStores)
	if err != nil {
		return nil, err
	}

	records := make([]models.Store, 0, len(docs))
	for _, doc := range docs {
		var s models.Store
		if err := json.Unmarshal(doc.Payload, &s); err != nil {
			return nil, fmt.Errorf("unmarshal store %s: %w", doc.Key, err)
		}
		records = append(records, s)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// ReplaceProducts swaps the cached product collection for the given records.
func (c *Cache) ReplaceProducts(ctx context.Context, records []models.Product) error {
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return err
		}
	}

	if err := c.store.Clear(ctx, lds.PartitionProducts); err != nil {
		return err
	}

	now := time.Now().Unix()
	for i := range records {
		records[i].LastUpdate = now
		payload, err := json.Marshal(&records[i])
		if err != nil {
			return fmt.Errorf("marshal product %s: %w", records[i].ID, err)
		}
		doc := lds.Document{Key: records[i].ID, Payload: payload}
		if err := c.store.Put(ctx, lds.PartitionProducts, doc); err != nil {
			return err
		}
	}

	logging.Info("Product cache refreshed", map[string]interface{}{"count": len(records)})
	return nil
}

// Products returns the cached products, sorted by id.
func (c *Cache) Products(ctx context.Context) ([]models.Product, error) {
	docs, err := c.store.GetAll(ctx, lds.PartitionProducts)
	if err != nil {
		return nil, err
	}

	records := make([]models.Product, 0, len(docs))
	for _, doc := range docs {
		var p models.Product
		if err := json.Unmarshal(doc.Payload, &p); err != nil {
			return nil, fmt.Errorf("unmarshal product %s: %w", doc.Key, err)
		}
		records = append(records, p)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// SetEmployee caches the signed-in courier's profile. The partition holds a
// single record; a new profile replaces any previous one.
func (c *Cache) SetEmployee(ctx context.Context, profile models.EmployeeProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	if err := c.store.Clear(ctx, lds.PartitionEmployee); err != nil {
		return err
	}

	profile.LastUpdate = time.Now().Unix()
	payload, err := json.Marshal(&profile)
	if err != nil {
		return fmt.Errorf("marshal employee %s: %w", profile.ID, err)
	}
	return c.store.Put(ctx, lds.PartitionEmployee, lds.Document{Key: profile.ID, Payload: payload})
}

// Employee returns the cached profile; the boolean reports presence.
func (c *Cache) Employee(ctx context.Context) (models.EmployeeProfile, bool, error) {
	docs, err := c.store.GetAll(ctx, lds.PartitionEmployee)
	if err != nil {
		return models.EmployeeProfile{}, false, err
	}
	if len(docs) == 0 {
		return models.EmployeeProfile{}, false, nil
	}

	var profile models.EmployeeProfile
	if err := json.Unmarshal(docs[0].Payload, &profile); err != nil {
		return models.EmployeeProfile{}, false, fmt.Errorf("unmarshal employee: %w", err)
	}
	return profile, true, nil
}

// ClearStores empties the store partition, used when a refresh legitimately
// returns zero active records.
func (c *Cache) ClearStores(ctx context.Context) error {
	return c.store.Clear(ctx, lds.PartitionStores)
}

// ClearProducts empties the product partition.
func (c *Cache) ClearProducts(ctx context.Context) error {
	return c.store.Clear(ctx, lds.PartitionProducts)
}
