// Package queue provides the pending operation queue: visits recorded
// locally the instant the user commits them, independent of network state,
// together with their shelf photo attachments.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/fieldops/fieldsync/internal/errors"
	"github.com/fieldops/fieldsync/internal/lds"
	"github.com/fieldops/fieldsync/internal/logging"
	"github.com/fieldops/fieldsync/internal/models"
	"github.com/fieldops/fieldsync/internal/notify"
	"github.com/fieldops/fieldsync/internal/uuid"
)

// DefaultMaxRetries bounds automatic re-promotion of error items. Beyond
// it, items stay in error until RetryAll resets them.
const DefaultMaxRetries = 5

// Queue persists pending orders and their attachments via the LDS.
type Queue struct {
	store      lds.Backend
	notifier   notify.Notifier
	maxRetries int
}

// New creates a Queue. maxRetries <= 0 selects DefaultMaxRetries.
func New(store lds.Backend, notifier notify.Notifier, maxRetries int) *Queue {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Queue{store: store, notifier: notifier, maxRetries: maxRetries}
}

// Enqueue durably records a completed visit and returns its local id.
// The id comes from the LDS sequence: monotonic, durable, never reused.
func (q *Queue) Enqueue(ctx context.Context, visit models.VisitPayload) (int64, error) {
	if err := visit.Validate(); err != nil {
		return 0, err
	}

	localID, err := q.store.NextSequence(ctx, lds.PartitionPendingOrders)
	if err != nil {
		return 0, err
	}

	order := models.PendingOrder{
		LocalID:   localID,
		RequestID: uuid.New(),
		Visit:     visit,
		Status:    models.OrderStatusPending,
		Timestamp: time.Now().UnixMilli(),
		Attempts:  0,
	}

	if err := q.putOrder(ctx, &order); err != nil {
		return 0, err
	}

	logging.Info("Visit queued for sync",
		map[string]interface{}{"local_id": localID, "store_id": visit.StoreID})
	q.notifier.Notify("Visit saved. It will be sent when a connection is available", notify.LevelInfo)

	return localID, nil
}

// AttachBinary persists the shelf photo for a pending order. It may run
// before or after the parent syncs; the image survives until its upload
// succeeds.
func (q *Queue) AttachBinary(ctx context.Context, localID int64, data []byte) error {
	if len(data) == 0 {
		return errors.New(errors.ErrInvalid, "attachment is empty")
	}

	image := models.PendingImage{
		LocalOrderID: localID,
		Data:         data,
		CreatedAt:    time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(&image)
	if err != nil {
		return fmt.Errorf("marshal image %d: %w", localID, err)
	}

	if err := q.store.Put(ctx, lds.PartitionPendingImages, lds.Document{Key: image.Key(), Payload: payload}); err != nil {
		return err
	}

	logging.Info("Attachment stored for pending visit",
		map[string]interface{}{"local_id": localID, "bytes": len(data)})
	return nil
}

// Get returns a pending order by local id; the boolean reports presence.
func (q *Queue) Get(ctx context.Context, localID int64) (models.PendingOrder, bool, error) {
	doc, ok, err := q.store.Get(ctx, lds.PartitionPendingOrders, strconv.FormatInt(localID, 10))
	if err != nil || !ok {
		return models.PendingOrder{}, false, err
	}

	var order models.PendingOrder
	if err := json.Unmarshal(doc.Payload, &order); err != nil {
		return models.PendingOrder{}, false, fmt.Errorf("unmarshal order %d: %w", localID, err)
	}
	return order, true, nil
}

// ListPending returns orders with status pending, in creation order
// (timestamp ascending, local id as tiebreak). Submission order must match
// creation order to preserve server-side causality.
func (q *Queue) ListPending(ctx context.Context) ([]models.PendingOrder, error) {
	docs, err := q.store.GetByIndex(ctx, lds.PartitionPendingOrders, "status", string(models.OrderStatusPending))
	if err != nil {
		return nil, err
	}

	orders := make([]models.PendingOrder, 0, len(docs))
	for _, doc := range docs {
		var order models.PendingOrder
		if err := json.Unmarshal(doc.Payload, &order); err != nil {
			return nil, fmt.Errorf("unmarshal order %s: %w", doc.Key, err)
		}
		orders = append(orders, order)
	}

	sort.Slice(orders, func(i, j int) bool {
		if orders[i].Timestamp != orders[j].Timestamp {
			return orders[i].Timestamp < orders[j].Timestamp
		}
		return orders[i].LocalID < orders[j].LocalID
	})
	return orders, nil
}

// MarkStatus transitions an order's status. Entering syncing counts as a
// submission attempt; entering error records the reason and schedules the
// retry backoff.
func (q *Queue) MarkStatus(ctx context.Context, localID int64, status models.OrderStatus, reason string) error {
	order, ok, err := q.Get(ctx, localID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.ErrNotFound, fmt.Sprintf("pending order %d not found", localID))
	}

	if !order.Status.CanTransition(status) {
		return errors.New(errors.ErrInvalid,
			fmt.Sprintf("pending order %d cannot move from %s to %s", localID, order.Status, status))
	}

	switch status {
	case models.OrderStatusSyncing:
		order.Attempts++
	case models.OrderStatusError:
		order.LastError = reason
		order.NextRetryAt = time.Now().Unix() + retryBackoff(order.Attempts)
	case models.OrderStatusSynced:
		order.LastError = ""
		order.NextRetryAt = 0
	}
	order.Status = status

	return q.putOrder(ctx, &order)
}

// retryBackoff returns the delay in seconds before an error item becomes
// eligible again: 2^attempts minutes, capped at one hour.
func retryBackoff(attempts int) int64 {
	backoff := (int64(1) << uint(attempts)) * 60

	const maxBackoff = int64(3600)
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

// PromoteRetryable moves error items whose backoff has expired back to
// pending, so the next drain picks them up. Items past the retry budget are
// left alone. Returns the number promoted.
func (q *Queue) PromoteRetryable(ctx context.Context, now time.Time) (int, error) {
	docs, err := q.store.GetByIndex(ctx, lds.PartitionPendingOrders, "status", string(models.OrderStatusError))
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, doc := range docs {
		var order models.PendingOrder
		if err := json.Unmarshal(doc.Payload, &order); err != nil {
			return promoted, fmt.Errorf("unmarshal order %s: %w", doc.Key, err)
		}
		if order.Attempts >= q.maxRetries || order.NextRetryAt > now.Unix() {
			continue
		}

		order.Status = models.OrderStatusPending
		if err := q.putOrder(ctx, &order); err != nil {
			return promoted, err
		}
		promoted++
	}

	if promoted > 0 {
		logging.Info("Error items promoted for retry", map[string]interface{}{"count": promoted})
	}
	return promoted, nil
}

// RetryAll resets every error item to pending with a fresh attempt budget.
// This is the manual-intervention path for items that exhausted automatic
// retries.
func (q *Queue) RetryAll(ctx context.Context) (int, error) {
	docs, err := q.store.GetByIndex(ctx, lds.PartitionPendingOrders, "status", string(models.OrderStatusError))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, doc := range docs {
		var order models.PendingOrder
		if err := json.Unmarshal(doc.Payload, &order); err != nil {
			return count, fmt.Errorf("unmarshal order %s: %w", doc.Key, err)
		}

		order.Status = models.OrderStatusPending
		order.Attempts = 0
		order.NextRetryAt = 0
		order.LastError = ""
		if err := q.putOrder(ctx, &order); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// PurgeSynced deletes all synced orders. Idempotent.
func (q *Queue) PurgeSynced(ctx context.Context) error {
	docs, err := q.store.GetByIndex(ctx, lds.PartitionPendingOrders, "status", string(models.OrderStatusSynced))
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if err := q.store.Delete(ctx, lds.PartitionPendingOrders, doc.Key); err != nil {
			return err
		}
	}

	if len(docs) > 0 {
		logging.Debug("Synced orders purged", map[string]interface{}{"count": len(docs)})
	}
	return nil
}

// ImageFor returns the pending image attached to an order, if any.
func (q *Queue) ImageFor(ctx context.Context, localID int64) (models.PendingImage, bool, error) {
	doc, ok, err := q.store.Get(ctx, lds.PartitionPendingImages, strconv.FormatInt(localID, 10))
	if err != nil || !ok {
		return models.PendingImage{}, false, err
	}

	var image models.PendingImage
	if err := json.Unmarshal(doc.Payload, &image); err != nil {
		return models.PendingImage{}, false, fmt.Errorf("unmarshal image %d: %w", localID, err)
	}
	return image, true, nil
}

// SetImageRemoteID records the remote order id on an image whose parent
// synced but whose own upload failed, so a later drain can retry the upload
// without touching the parent.
func (q *Queue) SetImageRemoteID(ctx context.Context, localID int64, remoteID string) error {
	image, ok, err := q.ImageFor(ctx, localID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.ErrNotFound, fmt.Sprintf("pending image %d not found", localID))
	}

	image.RemoteOrderID = remoteID
	payload, err := json.Marshal(&image)
	if err != nil {
		return fmt.Errorf("marshal image %d: %w", localID, err)
	}
	return q.store.Put(ctx, lds.PartitionPendingImages, lds.Document{Key: image.Key(), Payload: payload})
}

// DeleteImage removes an image after a successful upload.
func (q *Queue) DeleteImage(ctx context.Context, localID int64) error {
	return q.store.Delete(ctx, lds.PartitionPendingImages, strconv.FormatInt(localID, 10))
}

// OrphanImages returns images that already carry a remote order id: their
// parent was acknowledged but the upload itself never succeeded.
func (q *Queue) OrphanImages(ctx context.Context) ([]models.PendingImage, error) {
	docs, err := q.store.GetAll(ctx, lds.PartitionPendingImages)
	if err != nil {
		return nil, err
	}

	images := []models.PendingImage{}
	for _, doc := range docs {
		var image models.PendingImage
		if err := json.Unmarshal(doc.Payload, &image); err != nil {
			return nil, fmt.Errorf("unmarshal image %s: %w", doc.Key, err)
		}
		if image.RemoteOrderID != "" {
			images = append(images, image)
		}
	}

	sort.Slice(images, func(i, j int) bool { return images[i].LocalOrderID < images[j].LocalOrderID })
	return images, nil
}

// Stats returns queue counts by status.
func (q *Queue) Stats(ctx context.Context) (map[models.OrderStatus]int, error) {
	docs, err := q.store.GetAll(ctx, lds.PartitionPendingOrders)
	if err != nil {
		return nil, err
	}

	stats := map[models.OrderStatus]int{}
	for _, doc := range docs {
		var order models.PendingOrder
		if err := json.Unmarshal(doc.Payload, &order); err != nil {
			return nil, fmt.Errorf("unmarshal order %s: %w", doc.Key, err)
		}
		stats[order.Status]++
	}
	return stats, nil
}

func (q *Queue) putOrder(ctx context.Context, order *models.PendingOrder) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order %d: %w", order.LocalID, err)
	}
	return q.store.Put(ctx, lds.PartitionPendingOrders, lds.Document{Key: order.Key(), Payload: payload})
}
