// Package offline wires the durable store, connectivity monitor, reference
// cache, pending queue, and sync engine into a single facade that an
// application embeds.
package offline

import (
	"context"

	"github.com/fieldops/fieldsync/internal/api"
	"github.com/fieldops/fieldsync/internal/cache"
	"github.com/fieldops/fieldsync/internal/config"
	"github.com/fieldops/fieldsync/internal/connectivity"
	"github.com/fieldops/fieldsync/internal/errors"
	"github.com/fieldops/fieldsync/internal/lds"
	"github.com/fieldops/fieldsync/internal/logging"
	"github.com/fieldops/fieldsync/internal/models"
	"github.com/fieldops/fieldsync/internal/notify"
	"github.com/fieldops/fieldsync/internal/queue"
	"github.com/fieldops/fieldsync/internal/sync"
)

// Manager owns the full offline stack. Construct with New, call
// Initialize once, and Close when done.
type Manager struct {
	cfg      *config.Config
	client   *api.Client
	store    lds.Backend
	cache    *cache.Cache
	queue    *queue.Queue
	monitor  *connectivity.Monitor
	engine   *sync.Engine
	notifier notify.Notifier

	degraded bool
}

// New creates an uninitialized Manager. A nil notifier discards
// notifications.
func New(cfg *config.Config, notifier notify.Notifier) *Manager {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Manager{cfg: cfg, notifier: notifier}
}

// Initialize opens the durable store, starts the connectivity monitor, and
// registers the drain trigger. If durable storage cannot be opened the
// manager degrades to an in-memory store so reads and writes keep working
// for the session, at the cost of durability across restarts.
func (m *Manager) Initialize(ctx context.Context) error {
	store, err := lds.Open(m.cfg.DataDir)
	if err != nil {
		if !errors.Is(err, errors.ErrStorageUnavailable) {
			return err
		}
		logging.Error("Durable storage unavailable, falling back to in-memory store", err,
			map[string]interface{}{"data_dir": m.cfg.DataDir})
		m.notifier.Notify(
			"Local storage is unavailable. Changes will be lost when the app closes.",
			notify.LevelWarning)
		m.store = lds.NewMemoryStore()
		m.degraded = true
	} else {
		m.store = store
	}

	m.client = api.NewClient(api.Config{
		BaseURL:        m.cfg.API.BaseURL,
		RequestTimeout: m.cfg.API.RequestTimeout.Std(),
	}, api.StaticToken(m.cfg.Token()))

	m.cache = cache.New(m.store)
	m.queue = queue.New(m.store, m.notifier, m.cfg.Sync.MaxRetries)

	session := connectivity.NewSessionStore(m.cfg.DataDir)
	m.monitor = connectivity.NewMonitor(m.client, session, connectivity.Options{
		HeartbeatInterval: m.cfg.Connectivity.HeartbeatInterval.Std(),
		ProbeTimeout:      m.cfg.Connectivity.ProbeTimeout.Std(),
	})

	m.engine = sync.NewEngine(m.queue, m.client, m.notifier, m.monitor.IsOnline)

	// Each offline-to-online transition triggers exactly one drain.
	m.monitor.OnChange(func(state connectivity.State) {
		if state == connectivity.StateOnline {
			go func() {
				if _, err := m.engine.Drain(context.Background()); err != nil {
					logging.Error("Drain after reconnect failed", err, nil)
				}
			}()
		}
	})

	m.monitor.Start(ctx)
	logging.Info("Offline manager initialized",
		map[string]interface{}{"degraded": m.degraded, "data_dir": m.cfg.DataDir})
	return nil
}

// Degraded reports whether the manager fell back to in-memory storage.
func (m *Manager) Degraded() bool {
	return m.degraded
}

// IsOnline reports the current connectivity state.
func (m *Manager) IsOnline() bool {
	return m.monitor.IsOnline()
}

// OnConnectivityChange registers a listener for connectivity transitions.
func (m *Manager) OnConnectivityChange(listener connectivity.Listener) {
	m.monitor.OnChange(listener)
}

// CheckConnectivity forces an immediate probe outside the heartbeat.
func (m *Manager) CheckConnectivity(ctx context.Context) bool {
	return m.monitor.Check(ctx) == connectivity.StateOnline
}

// RefreshReferenceData fetches stores, products, and the employee profile
// from the remote and replaces the local caches. Each dataset is refreshed
// independently so one failed fetch does not wipe the others.
func (m *Manager) RefreshReferenceData(ctx context.Context, userID string) error {
	var firstErr error

	stores, err := m.client.FetchCourierStores(ctx)
	if err != nil {
		logging.Error("Failed to refresh store list", err, nil)
		firstErr = err
	} else if err := m.cache.ReplaceStores(ctx, stores); err != nil {
		firstErr = err
	}

	products, err := m.client.FetchActiveProducts(ctx)
	if err != nil {
		logging.Error("Failed to refresh product list", err, nil)
		if firstErr == nil {
			firstErr = err
		}
	} else if err := m.cache.ReplaceProducts(ctx, products); err != nil && firstErr == nil {
		firstErr = err
	}

	if userID != "" {
		profile, err := m.client.FetchEmployee(ctx, userID)
		if err != nil {
			logging.Error("Failed to refresh employee profile", err,
				map[string]interface{}{"user_id": userID})
			if firstErr == nil {
				firstErr = err
			}
		} else if err := m.cache.SetEmployee(ctx, profile); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// CachedStores returns the locally cached store list.
func (m *Manager) CachedStores(ctx context.Context) ([]models.Store, error) {
	return m.cache.Stores(ctx)
}

// CachedProducts returns the locally cached product list.
func (m *Manager) CachedProducts(ctx context.Context) ([]models.Product, error) {
	return m.cache.Products(ctx)
}

// CachedEmployee returns the locally cached employee profile.
func (m *Manager) CachedEmployee(ctx context.Context) (models.EmployeeProfile, bool, error) {
	return m.cache.Employee(ctx)
}

// EnqueueVisit records a visit locally, optionally with a shelf photo, and
// opportunistically drains the queue when a connection is available. The
// visit is durable before any network activity happens.
func (m *Manager) EnqueueVisit(ctx context.Context, visit models.VisitPayload, photo []byte) (int64, error) {
	localID, err := m.queue.Enqueue(ctx, visit)
	if err != nil {
		return 0, err
	}

	if len(photo) > 0 {
		if err := m.queue.AttachBinary(ctx, localID, photo); err != nil {
			return localID, err
		}
	}

	if m.monitor.IsOnline() {
		go func() {
			if _, err := m.engine.Drain(context.Background()); err != nil {
				logging.Error("Opportunistic drain failed", err, nil)
			}
		}()
	}

	return localID, nil
}

// SyncNow runs a drain pass immediately. Returns nil when offline or when
// a drain is already running.
func (m *Manager) SyncNow(ctx context.Context) (*sync.Result, error) {
	return m.engine.Drain(ctx)
}

// RetryFailed resets failed visits for immediate resubmission and drains.
func (m *Manager) RetryFailed(ctx context.Context) (*sync.Result, error) {
	if _, err := m.queue.RetryAll(ctx); err != nil {
		return nil, err
	}
	return m.engine.Drain(ctx)
}

// Status is a point-in-time snapshot of the offline stack.
type Status struct {
	Online       bool
	Degraded     bool
	SyncRunning  bool
	QueueByState map[models.OrderStatus]int
	Connectivity connectivity.Stats
}

// Status reports connectivity, storage mode, and queue depth.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	stats, err := m.queue.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Online:       m.monitor.IsOnline(),
		Degraded:     m.degraded,
		SyncRunning:  m.engine.InProgress(),
		QueueByState: stats,
		Connectivity: m.monitor.Stats(),
	}, nil
}

// Close stops the monitor and closes the store.
func (m *Manager) Close() error {
	if m.monitor != nil {
		m.monitor.Stop()
	}
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}
