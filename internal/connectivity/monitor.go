// Package connectivity determines real reachability of the remote service.
// The platform's link-state signal only reflects the local interface; the
// monitor trusts nothing short of an answered probe.
package connectivity

import (
	"context"
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"

	"github.com/fieldops/fieldsync/internal/logging"
)

// State is the connectivity state.
type State string

const (
	StateOnline  State = "online"
	StateOffline State = "offline"
)

// Prober confirms reachability of the remote service. The API client
// implements it.
type Prober interface {
	Probe(ctx context.Context) error
}

// Listener is invoked on every state transition, never on repeats.
type Listener func(State)

// Options configures the Monitor.
type Options struct {
	// HeartbeatInterval is the fixed probe cadence (default 5s).
	HeartbeatInterval time.Duration
	// ProbeTimeout bounds each reachability probe (default 5s). A timed
	// out probe means offline, not indeterminate.
	ProbeTimeout time.Duration
}

// Monitor tracks the connectivity state machine: an optimistic initial
// Online (unless the session shadow says otherwise), a heartbeat that
// probes on a fixed cadence, and fast-path offline on link-down signals.
type Monitor struct {
	prober   Prober
	session  *SessionStore
	interval time.Duration
	timeout  time.Duration

	mu        sync.Mutex
	state     State
	listeners []Listener
	running   bool
	stopCh    chan struct{}
	wg        sync.WaitGroup

	// probe stats
	latency       *movingaverage.MovingAverage
	probeCount    int
	probeFailures int
}

// NewMonitor creates a Monitor. session may be nil (no persisted shadow).
func NewMonitor(prober Prober, session *SessionStore, opts Options) *Monitor {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 5 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}

	state := StateOnline
	if session != nil && session.WasOffline() {
		state = StateOffline
	}

	return &Monitor{
		prober:   prober,
		session:  session,
		interval: opts.HeartbeatInterval,
		timeout:  opts.ProbeTimeout,
		state:    state,
		latency:  movingaverage.New(20),
	}
}

// Start launches the heartbeat loop. Idempotent.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	m.wg.Add(1)
	go m.heartbeatLoop(ctx)

	logging.Info("Connectivity heartbeat started",
		map[string]interface{}{"interval_ms": m.interval.Milliseconds()})
}

// Stop halts the heartbeat loop and waits for it to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Monitor) heartbeatLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check performs one reachability probe and folds the outcome into the
// state machine. Concurrent checks are harmless: each one is a complete
// probe-then-set, and setState is idempotent for repeated outcomes.
func (m *Monitor) Check(ctx context.Context) State {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	started := time.Now()
	err := m.prober.Probe(probeCtx)
	elapsed := time.Since(started)

	m.mu.Lock()
	m.probeCount++
	if err != nil {
		m.probeFailures++
	} else {
		m.latency.Add(float64(elapsed.Microseconds()) / 1000.0)
	}
	m.mu.Unlock()

	if err != nil {
		// DNS failures, timeouts and aborts all mean the same thing
		// here: unreachable.
		logging.Debug("Reachability probe failed", map[string]interface{}{"error": err.Error()})
		m.setState(StateOffline)
		return StateOffline
	}

	m.setState(StateOnline)
	return StateOnline
}

// NoteLinkDown forces Offline immediately. The link being down is the one
// platform signal that needs no verification.
func (m *Monitor) NoteLinkDown() {
	m.setState(StateOffline)
}

// NoteLinkUp handles the platform's link-up signal, which is known to fire
// even when the gateway or server is unreachable, so it only triggers a
// probe.
func (m *Monitor) NoteLinkUp(ctx context.Context) State {
	return m.Check(ctx)
}

// Wake handles focus/visibility-style signals with an immediate probe.
func (m *Monitor) Wake(ctx context.Context) State {
	return m.Check(ctx)
}

// IsOnline reports the current state without probing.
func (m *Monitor) IsOnline() bool {
	return m.State() == StateOnline
}

// State returns the current state without probing.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnChange registers a transition listener. Listeners run sequentially on
// the goroutine that detected the transition.
func (m *Monitor) OnChange(listener Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

// setState applies a state change, persists the session shadow, and
// notifies listeners exactly once per transition.
func (m *Monitor) setState(next State) {
	m.mu.Lock()
	if m.state == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	if m.session != nil {
		m.session.SetOffline(next == StateOffline)
	}

	logging.Info("Connectivity state changed", map[string]interface{}{"state": string(next)})

	for _, l := range listeners {
		l(next)
	}
}

// Stats is a snapshot of probe bookkeeping.
type Stats struct {
	State        State
	Probes       int
	Failures     int
	AvgLatencyMs float64
}

// Stats returns probe statistics. Latency covers successful probes only.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		State:        m.state,
		Probes:       m.probeCount,
		Failures:     m.probeFailures,
		AvgLatencyMs: m.latency.Avg(),
	}
}
