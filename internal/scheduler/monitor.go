package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/doridoridoriand/nodeboard/internal/config"
	"github.com/doridoridoriand/nodeboard/internal/log"
	"github.com/doridoridoriand/nodeboard/internal/state"
	"go.uber.org/zap"
)

const defaultInitialDelay = 2 * time.Second

// ConfigSource yields the configuration for the next cycle. It is called
// once per cycle so file edits apply without a restart.
type ConfigSource interface {
	Snapshot() (config.Snapshot, error)
}

// CycleObserver is notified about cycle outcomes.
type CycleObserver interface {
	CycleCompleted(stats CycleStats)
	CycleFailed()
	ForceCheckRejected()
}

// Options tunes a Monitor. Zero values pick defaults.
type Options struct {
	InitialDelay time.Duration
	Observer     CycleObserver
}

// Monitor runs check cycles on a timer and on demand. At most one cycle
// runs at a time; the periodic tick and ForceCheck share the same guard.
type Monitor struct {
	source       ConfigSource
	batcher      *Batcher
	store        state.Store
	logger       *log.Logger
	observer     CycleObserver
	initialDelay time.Duration

	inProgress atomic.Bool

	mu          sync.Mutex
	cancel      context.CancelFunc
	runCtx      context.Context
	draining    bool
	forced      sync.WaitGroup
	settings    config.Settings
	lastStats   CycleStats
	lastCycleAt time.Time
}

// NewMonitor constructs a monitor. Call Run to start the schedule.
func NewMonitor(source ConfigSource, batcher *Batcher, store state.Store, logger *log.Logger, opts Options) *Monitor {
	if logger == nil {
		logger = log.Nop()
	}
	delay := opts.InitialDelay
	if delay <= 0 {
		delay = defaultInitialDelay
	}
	return &Monitor{
		source:       source,
		batcher:      batcher,
		store:        store,
		logger:       logger,
		observer:     opts.Observer,
		initialDelay: delay,
		settings:     config.DefaultSettings(),
	}
}

// Run performs one check after the initial delay and then one check per
// health_check_interval, measured from the end of the previous cycle. It
// blocks until ctx is cancelled or Stop is called, then waits for any
// forced cycle to finish.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return fmt.Errorf("monitor already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.runCtx = runCtx
	m.mu.Unlock()

	defer m.shutdown()

	m.logger.Info(log.CategoryNetwork, "connection monitor started",
		zap.Duration("initial_delay", m.initialDelay),
		zap.Duration("interval", m.interval()))

	delay := m.initialDelay
	for {
		timer := time.NewTimer(delay)
		select {
		case <-runCtx.Done():
			timer.Stop()
			m.logger.Info(log.CategoryNetwork, "connection monitor stopped")
			return runCtx.Err()
		case <-timer.C:
		}

		if !m.RunCycle(runCtx) {
			m.logger.Debug(log.CategoryNetwork, "check already in progress, skipping scheduled cycle")
		}
		delay = m.interval()
	}
}

// Stop ends Run. Probes still in flight are cancelled and their results dropped.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ForceCheck starts a cycle in the background. It returns false without
// doing anything when a cycle is already running.
func (m *Monitor) ForceCheck() bool {
	if !m.inProgress.CompareAndSwap(false, true) {
		m.logger.Info(log.CategoryNetwork, "force check rejected, cycle already running")
		if m.observer != nil {
			m.observer.ForceCheckRejected()
		}
		return false
	}

	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		m.inProgress.Store(false)
		return false
	}
	ctx := m.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	m.forced.Add(1)
	m.mu.Unlock()

	m.logger.Info(log.CategoryNetwork, "force check started")
	go func() {
		defer m.forced.Done()
		defer m.inProgress.Store(false)
		m.cycle(ctx)
	}()
	return true
}

// RunCycle runs one cycle synchronously. It returns false when another
// cycle was already running.
func (m *Monitor) RunCycle(ctx context.Context) bool {
	if !m.inProgress.CompareAndSwap(false, true) {
		return false
	}
	defer m.inProgress.Store(false)
	m.cycle(ctx)
	return true
}

// CheckInProgress reports whether a cycle is running.
func (m *Monitor) CheckInProgress() bool {
	return m.inProgress.Load()
}

// HealthData returns a snapshot of every node's last known record.
func (m *Monitor) HealthData() map[string]state.HealthRecord {
	return m.store.ReadAll()
}

// Settings returns the settings loaded by the most recent cycle.
func (m *Monitor) Settings() config.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// LastCycle returns stats and completion time of the most recent finished cycle.
func (m *Monitor) LastCycle() (CycleStats, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastStats, m.lastCycleAt
}

func (m *Monitor) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(log.CategoryError, "check cycle panicked", zap.Any("panic", r))
			if m.observer != nil {
				m.observer.CycleFailed()
			}
		}
	}()

	snap, err := m.source.Snapshot()
	if err != nil {
		m.logger.Error(log.CategoryError, "check cycle failed to load configuration", zap.Error(err))
		if m.observer != nil {
			m.observer.CycleFailed()
		}
		return
	}

	m.mu.Lock()
	m.settings = snap.Settings
	m.mu.Unlock()

	if len(snap.Nodes) == 0 {
		m.logger.Info(log.CategoryNetwork, "no nodes configured, nothing to check")
		return
	}

	stats := m.batcher.RunChecks(ctx, snap.Nodes, snap.Settings.MaxConcurrentChecks, snap.Settings.Timeout())
	if ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	m.lastStats = stats
	m.lastCycleAt = time.Now()
	m.mu.Unlock()

	m.logger.Info(log.CategoryNetwork, "check cycle completed",
		zap.Int("nodes", stats.Nodes),
		zap.Int("batches", stats.Batches),
		zap.Int("healthy", stats.Healthy),
		zap.Int("unhealthy", stats.Unhealthy),
		zap.Int("errors", stats.Errored),
		zap.Duration("duration", stats.Duration))
	if m.observer != nil {
		m.observer.CycleCompleted(stats)
	}
}

func (m *Monitor) interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	interval := m.settings.Interval()
	if interval <= 0 {
		interval = config.DefaultSettings().Interval()
	}
	return interval
}

func (m *Monitor) shutdown() {
	m.mu.Lock()
	m.draining = true
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.forced.Wait()

	m.mu.Lock()
	m.cancel = nil
	m.runCtx = nil
	m.draining = false
	m.mu.Unlock()
}
