package processor

import (
	"context"
	"sync"
	"time"

	appconfig "arbflow/config"
	"arbflow/logger"
	"arbflow/models"
)

// ResultSink receives each completed scan result from the monitor loop.
type ResultSink interface {
	Publish(ctx context.Context, result models.ScanResult) error
}

// Monitor repeats the scan pipeline at a fixed interval and hands every
// result to the sink. Start and Stop are idempotent; at most one loop runs
// at a time and Stop blocks until the loop has actually quiesced.
type Monitor struct {
	scanner  *Scanner
	sink     ResultSink
	interval time.Duration
	log      *logger.Log

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewMonitor(cfg *appconfig.Config, scanner *Scanner, sink ResultSink) *Monitor {
	return &Monitor{
		scanner:  scanner,
		sink:     sink,
		interval: cfg.Monitor.Interval.Std(),
		log:      logger.GetLogger(),
	}
}

// Start launches the background loop. Calling Start while running is a
// no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.log.WithComponent("monitor").Debug("start requested while already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})

	m.log.WithComponent("monitor").WithFields(logger.Fields{
		"interval": m.interval.String(),
	}).Info("starting monitor loop")

	go m.loop(ctx, m.done)
}

// Stop signals the loop and waits for it to exit. Cancellation is observed
// between iterations only; a poll in progress always completes first. The
// lock is held through the join, so a concurrent Start cannot launch a new
// loop until the old one has fully quiesced. Calling Stop while not running
// is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	m.cancel()

	<-m.done
	m.log.WithComponent("monitor").Info("monitor loop stopped")
}

// IsRunning reports whether the background loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Interval returns the configured poll interval.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.runOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runOnce()
		}
	}
}

// runOnce executes a single iteration. Any fault inside the iteration is
// reported and absorbed so the next scheduled execution still occurs.
func (m *Monitor) runOnce() {
	log := m.log.WithComponent("monitor")

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logger.Fields{"panic": r}).Error("monitor iteration failed")
		}
	}()

	// The poll itself is never cancelled mid-flight; Stop takes effect at
	// the next loop iteration.
	result, err := m.scanner.Scan(context.Background())
	if err != nil {
		log.WithError(err).Error("scan failed")
		return
	}

	if m.sink != nil {
		if err := m.sink.Publish(context.Background(), result); err != nil {
			log.WithError(err).Warn("failed to publish scan result")
		}
	}
}
