package processor

import (
	"context"
	"sync"
	"testing"
	"time"

	"arbflow/models"
)

// channelSink forwards every published result onto a channel.
type channelSink struct {
	results chan models.ScanResult
}

func newChannelSink() *channelSink {
	return &channelSink{results: make(chan models.ScanResult, 16)}
}

func (s *channelSink) Publish(_ context.Context, result models.ScanResult) error {
	s.results <- result
	return nil
}

func newTestMonitor(t *testing.T, sink ResultSink) *Monitor {
	t.Helper()
	cfg := testConfig()
	source := &stubSource{snapshot: liveSnapshot()}
	return NewMonitor(cfg, NewScanner(cfg, source, nil), sink)
}

func waitForResult(t *testing.T, sink *channelSink) models.ScanResult {
	t.Helper()
	select {
	case result := <-sink.results:
		return result
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a published scan result")
		return models.ScanResult{}
	}
}

func TestMonitorPublishesResults(t *testing.T) {
	sink := newChannelSink()
	monitor := newTestMonitor(t, sink)

	monitor.Start()
	defer monitor.Stop()

	if !monitor.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	// The first poll fires immediately, the second after one interval.
	first := waitForResult(t, sink)
	if first.Count == 0 {
		t.Errorf("first result has no opportunities: %+v", first)
	}
	second := waitForResult(t, sink)
	if second.ScanID == first.ScanID {
		t.Error("consecutive polls must produce distinct scan IDs")
	}
}

func TestMonitorStartIsIdempotent(t *testing.T) {
	sink := newChannelSink()
	monitor := newTestMonitor(t, sink)

	monitor.Start()
	monitor.Start()
	defer monitor.Stop()

	// Drain the immediate poll, then verify only one loop is ticking: within
	// roughly one interval at most one further result may arrive.
	waitForResult(t, sink)
	time.Sleep(monitor.Interval() + monitor.Interval()/2)

	got := len(sink.results)
	if got > 2 {
		t.Errorf("received %d buffered results, double Start appears to have spawned a second loop", got)
	}
}

func TestMonitorStopJoinsLoop(t *testing.T) {
	sink := newChannelSink()
	monitor := newTestMonitor(t, sink)

	monitor.Start()
	waitForResult(t, sink)
	monitor.Stop()

	if monitor.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}

	// No further results may arrive once Stop has returned.
	drained := len(sink.results)
	time.Sleep(3 * monitor.Interval())
	if len(sink.results) != drained {
		t.Error("monitor kept publishing after Stop returned")
	}
}

func TestMonitorStopWithoutStart(t *testing.T) {
	monitor := newTestMonitor(t, newChannelSink())

	// Must not panic or block.
	monitor.Stop()
	if monitor.IsRunning() {
		t.Error("IsRunning() = true without Start")
	}
}

func TestMonitorRestartsAfterStop(t *testing.T) {
	sink := newChannelSink()
	monitor := newTestMonitor(t, sink)

	monitor.Start()
	waitForResult(t, sink)
	monitor.Stop()

	monitor.Start()
	defer monitor.Stop()

	if !monitor.IsRunning() {
		t.Fatal("IsRunning() = false after restart")
	}
	waitForResult(t, sink)
}

// gatedSource blocks each fetch until released and tracks how many fetches
// ever ran at the same time.
type gatedSource struct {
	gate    chan struct{}
	started chan struct{}

	mu      sync.Mutex
	active  int
	maxSeen int
}

func (s *gatedSource) FetchSnapshot(context.Context) models.TickerSnapshot {
	s.mu.Lock()
	s.active++
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	s.mu.Unlock()

	select {
	case s.started <- struct{}{}:
	default:
	}
	<-s.gate

	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	return liveSnapshot()
}

func (s *gatedSource) maxConcurrent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxSeen
}

func TestMonitorStopStartRaceRunsOneLoop(t *testing.T) {
	source := &gatedSource{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	cfg := testConfig()
	monitor := NewMonitor(cfg, NewScanner(cfg, source, nil), nil)

	monitor.Start()
	select {
	case <-source.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the first poll to begin")
	}

	// Stop must join the in-flight poll; a Start racing with that join may
	// only take effect once the old loop has fully quiesced.
	stopDone := make(chan struct{})
	go func() {
		monitor.Stop()
		close(stopDone)
	}()
	startDone := make(chan struct{})
	go func() {
		monitor.Start()
		close(startDone)
	}()

	time.Sleep(50 * time.Millisecond)
	close(source.gate)

	for _, ch := range []chan struct{}{stopDone, startDone} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("Stop/Start did not return; possible deadlock")
		}
	}

	if got := source.maxConcurrent(); got > 1 {
		t.Errorf("max concurrent polls = %d, want 1", got)
	}
	monitor.Stop()
}

// panicSink simulates a faulty downstream consumer.
type panicSink struct {
	calls chan struct{}
}

func (s *panicSink) Publish(context.Context, models.ScanResult) error {
	s.calls <- struct{}{}
	panic("sink exploded")
}

func TestMonitorAbsorbsIterationPanic(t *testing.T) {
	sink := &panicSink{calls: make(chan struct{}, 16)}
	monitor := newTestMonitor(t, sink)

	monitor.Start()
	defer monitor.Stop()

	// Two deliveries prove the loop survived the first panic.
	for i := 0; i < 2; i++ {
		select {
		case <-sink.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for sink call %d; loop may have died", i+1)
		}
	}
}
