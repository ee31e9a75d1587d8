// Package sync implements the drain protocol: reconciling locally queued
// visits and their photo attachments against the remote API once
// connectivity allows.
package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/fieldops/fieldsync/internal/logging"
	"github.com/fieldops/fieldsync/internal/models"
	"github.com/fieldops/fieldsync/internal/notify"
	"github.com/fieldops/fieldsync/internal/queue"
	"github.com/fieldops/fieldsync/internal/uuid"
)

// Submitter is the remote surface the engine drains against. The API
// client implements it.
type Submitter interface {
	CreateOrder(ctx context.Context, visit models.VisitPayload, requestID string) (string, error)
	UploadOrderPhoto(ctx context.Context, remoteOrderID string, image []byte) error
}

// Result summarizes one drain pass.
type Result struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Promoted int
	Synced   int
	Failed   int
	Uploaded int
}

// Engine drains the pending operation queue. A single in-progress flag is
// the only mutual exclusion in the system: drains never overlap, and items
// are processed strictly sequentially to preserve creation order and the
// parent-before-attachment dependency.
type Engine struct {
	queue    *queue.Queue
	remote   Submitter
	notifier notify.Notifier
	isOnline func() bool

	mu         stdsync.Mutex
	inProgress bool
	lastResult *Result
}

// NewEngine creates an Engine. isOnline gates every drain; the connectivity
// monitor's IsOnline is the expected implementation.
func NewEngine(q *queue.Queue, remote Submitter, notifier notify.Notifier, isOnline func() bool) *Engine {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if isOnline == nil {
		isOnline = func() bool { return true }
	}
	return &Engine{
		queue:    q,
		remote:   remote,
		notifier: notifier,
		isOnline: isOnline,
	}
}

// Drain runs one complete pass over the pending queue. It is a no-op (nil
// result, nil error) when offline or when another drain is in progress;
// re-running after completion is safe because synced items are excluded by
// the pending-status filter and then purged.
func (e *Engine) Drain(ctx context.Context) (*Result, error) {
	if !e.isOnline() {
		logging.Debug("Drain skipped: offline", nil)
		return nil, nil
	}

	e.mu.Lock()
	if e.inProgress {
		e.mu.Unlock()
		logging.Debug("Drain skipped: already in progress", nil)
		return nil, nil
	}
	e.inProgress = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inProgress = false
		e.mu.Unlock()
	}()

	result := &Result{
		RunID:   uuid.New(),
		Started: time.Now(),
	}

	promoted, err := e.queue.PromoteRetryable(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	result.Promoted = promoted

	pending, err := e.queue.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	if len(pending) == 0 {
		if err := e.retryOrphanImages(ctx, result); err != nil {
			return nil, err
		}
		result.Finished = time.Now()
		e.storeResult(result)
		return result, nil
	}

	logging.Info("Drain started",
		map[string]interface{}{"run_id": result.RunID, "pending": len(pending)})
	e.notifier.Notify(fmt.Sprintf("Syncing %d pending visit(s)...", len(pending)), notify.LevelInfo)

	for _, order := range pending {
		select {
		case <-ctx.Done():
			result.Finished = time.Now()
			e.storeResult(result)
			return result, ctx.Err()
		default:
		}

		e.drainOne(ctx, order, result)
	}

	if err := e.retryOrphanImages(ctx, result); err != nil {
		logging.Error("Orphan attachment pass failed", err, nil)
	}

	if err := e.queue.PurgeSynced(ctx); err != nil {
		logging.Error("Failed to purge synced orders", err, nil)
	}

	result.Finished = time.Now()
	e.storeResult(result)

	level := notify.LevelSuccess
	if result.Failed > 0 {
		level = notify.LevelWarning
	}
	e.notifier.Notify(
		fmt.Sprintf("Sync finished: %d synced, %d failed", result.Synced, result.Failed), level)

	logging.Info("Drain finished", map[string]interface{}{
		"run_id":   result.RunID,
		"synced":   result.Synced,
		"failed":   result.Failed,
		"uploaded": result.Uploaded,
	})

	return result, nil
}

// drainOne submits a single order and, on success, its attachment. A
// failure here is recorded on the item and never aborts the pass: one bad
// item must not block the rest of the queue.
func (e *Engine) drainOne(ctx context.Context, order models.PendingOrder, result *Result) {
	if err := e.queue.MarkStatus(ctx, order.LocalID, models.OrderStatusSyncing, ""); err != nil {
		logging.Error("Failed to mark order syncing", err,
			map[string]interface{}{"local_id": order.LocalID})
		result.Failed++
		return
	}

	remoteID, err := e.remote.CreateOrder(ctx, order.Visit, order.RequestID)
	if err != nil {
		logging.Error("Order submission failed", err,
			map[string]interface{}{"local_id": order.LocalID})
		if markErr := e.queue.MarkStatus(ctx, order.LocalID, models.OrderStatusError, err.Error()); markErr != nil {
			logging.Error("Failed to mark order error", markErr,
				map[string]interface{}{"local_id": order.LocalID})
		}
		result.Failed++
		return
	}

	logging.Info("Order acknowledged by remote",
		map[string]interface{}{"local_id": order.LocalID, "remote_id": remoteID})

	// The attachment can only be uploaded once the remote id exists. An
	// upload failure does not revert the parent: the record already
	// exists remotely, so the image is kept with the remote id for a
	// later retry pass instead.
	image, ok, err := e.queue.ImageFor(ctx, order.LocalID)
	if err != nil {
		logging.Error("Failed to load attachment", err,
			map[string]interface{}{"local_id": order.LocalID})
	} else if ok {
		if err := e.uploadImage(ctx, order.LocalID, remoteID, image.Data); err == nil {
			result.Uploaded++
		}
	}

	if err := e.queue.MarkStatus(ctx, order.LocalID, models.OrderStatusSynced, ""); err != nil {
		logging.Error("Failed to mark order synced", err,
			map[string]interface{}{"local_id": order.LocalID})
		result.Failed++
		return
	}
	result.Synced++
}

// uploadImage uploads one attachment; on failure the remote id is recorded
// on the image so the next drain can retry without the parent.
func (e *Engine) uploadImage(ctx context.Context, localID int64, remoteID string, data []byte) error {
	if err := e.remote.UploadOrderPhoto(ctx, remoteID, data); err != nil {
		logging.Error("Attachment upload failed", err,
			map[string]interface{}{"local_id": localID, "remote_id": remoteID})
		if setErr := e.queue.SetImageRemoteID(ctx, localID, remoteID); setErr != nil {
			logging.Error("Failed to record remote id on attachment", setErr,
				map[string]interface{}{"local_id": localID})
		}
		return err
	}
	return e.queue.DeleteImage(ctx, localID)
}

// retryOrphanImages retries uploads for attachments whose parent was
// acknowledged in an earlier pass but whose own upload failed.
func (e *Engine) retryOrphanImages(ctx context.Context, result *Result) error {
	orphans, err := e.queue.OrphanImages(ctx)
	if err != nil {
		return err
	}

	for _, image := range orphans {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := e.remote.UploadOrderPhoto(ctx, image.RemoteOrderID, image.Data); err != nil {
			logging.Error("Orphan attachment upload failed", err,
				map[string]interface{}{"local_id": image.LocalOrderID, "remote_id": image.RemoteOrderID})
			continue
		}
		if err := e.queue.DeleteImage(ctx, image.LocalOrderID); err != nil {
			return err
		}
		result.Uploaded++
		logging.Info("Orphan attachment uploaded",
			map[string]interface{}{"local_id": image.LocalOrderID, "remote_id": image.RemoteOrderID})
	}
	return nil
}

// InProgress reports whether a drain is currently running.
func (e *Engine) InProgress() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inProgress
}

// LastResult returns the most recent completed drain result, nil if none.
func (e *Engine) LastResult() *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastResult
}

func (e *Engine) storeResult(result *Result) {
	e.mu.Lock()
	e.lastResult = result
	e.mu.Unlock()
}
