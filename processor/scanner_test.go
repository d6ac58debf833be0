package processor

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"arbflow/logger"
	"arbflow/models"
)

// stubSource returns the same snapshot on every call.
type stubSource struct {
	snapshot models.TickerSnapshot
	calls    int
}

func (s *stubSource) FetchSnapshot(context.Context) models.TickerSnapshot {
	s.calls++
	return s.snapshot
}

// recordingArchiver captures every archived snapshot.
type recordingArchiver struct {
	scanIDs []string
}

func (a *recordingArchiver) Archive(_ context.Context, scanID string, _ models.TickerSnapshot) error {
	a.scanIDs = append(a.scanIDs, scanID)
	return nil
}

func liveSnapshot() models.TickerSnapshot {
	return models.TickerSnapshot{
		Tickers: []models.RawTicker{
			{Symbol: "BTCUSDT", LastPrice: "45000", Volume24h: "5000"},
			{Symbol: "BTCEUR", LastPrice: "41500", Volume24h: "5000"},
			{Symbol: "ETHUSDT", LastPrice: "2500", Volume24h: "5000"},
			{Symbol: "ETHEUR", LastPrice: "2210", Volume24h: "5000"},
		},
		Source:    models.SnapshotSourceLive,
		FetchedAt: time.Now().UTC(),
	}
}

func TestScanProducesRankedOpportunities(t *testing.T) {
	source := &stubSource{snapshot: liveSnapshot()}
	scanner := NewScanner(testConfig(), source, nil)

	result, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if result.ScanID == "" {
		t.Error("ScanID must not be empty")
	}
	if result.Source != models.SnapshotSourceLive {
		t.Errorf("Source = %q, want live", result.Source)
	}
	if result.Count != len(result.Opportunities) {
		t.Errorf("Count = %d, but %d opportunities present", result.Count, len(result.Opportunities))
	}
	if result.Count == 0 {
		t.Fatal("expected at least one opportunity from the fixture snapshot")
	}
	for i := 1; i < len(result.Opportunities); i++ {
		if result.Opportunities[i].SpreadPercent > result.Opportunities[i-1].SpreadPercent {
			t.Errorf("opportunities not sorted descending at index %d", i)
		}
	}
}

func TestScanIdempotentForIdenticalSnapshot(t *testing.T) {
	source := &stubSource{snapshot: liveSnapshot()}
	scanner := NewScanner(testConfig(), source, nil)

	first, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("first Scan() error = %v", err)
	}
	second, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("second Scan() error = %v", err)
	}

	if first.ScanID == second.ScanID {
		t.Error("scan IDs must be unique per execution")
	}
	if len(first.Opportunities) != len(second.Opportunities) {
		t.Fatalf("opportunity counts differ: %d vs %d", len(first.Opportunities), len(second.Opportunities))
	}
	for i := range first.Opportunities {
		a, b := first.Opportunities[i], second.Opportunities[i]
		// Timestamps track wall-clock time and may differ across runs.
		a.Timestamp, b.Timestamp = "", ""
		if a != b {
			t.Errorf("opportunity %d differs between identical snapshots: %v vs %v", i, a, b)
		}
	}
}

func TestScanEmptySnapshot(t *testing.T) {
	source := &stubSource{snapshot: models.TickerSnapshot{
		Source:    models.SnapshotSourceEmpty,
		FetchedAt: time.Now().UTC(),
	}}
	scanner := NewScanner(testConfig(), source, nil)

	result, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if result.Count != 0 {
		t.Errorf("Count = %d, want 0 for empty snapshot", result.Count)
	}
	if result.Source != models.SnapshotSourceEmpty {
		t.Errorf("Source = %q, want empty", result.Source)
	}
}

func TestScanArchivesSnapshot(t *testing.T) {
	source := &stubSource{snapshot: liveSnapshot()}
	archiver := &recordingArchiver{}
	scanner := NewScanner(testConfig(), source, archiver)

	result, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(archiver.scanIDs) != 1 {
		t.Fatalf("expected 1 archived snapshot, got %d", len(archiver.scanIDs))
	}
	if archiver.scanIDs[0] != result.ScanID {
		t.Errorf("archived scan ID %q does not match result %q", archiver.scanIDs[0], result.ScanID)
	}
}

func TestScanEmitsOpportunityMetric(t *testing.T) {
	log := logger.GetLogger()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	scanner := NewScanner(testConfig(), &stubSource{snapshot: liveSnapshot()}, nil)
	if _, err := scanner.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"metric":"opportunities_found"`) {
		t.Errorf("scan did not emit the opportunities_found metric entry:\n%s", out)
	}
	if !strings.Contains(out, `"metric_type":"counter"`) {
		t.Errorf("metric entry missing counter type:\n%s", out)
	}
}

func TestScanSkipsArchivingEmptySnapshot(t *testing.T) {
	source := &stubSource{snapshot: models.TickerSnapshot{Source: models.SnapshotSourceEmpty}}
	archiver := &recordingArchiver{}
	scanner := NewScanner(testConfig(), source, archiver)

	if _, err := scanner.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(archiver.scanIDs) != 0 {
		t.Errorf("empty snapshot should not be archived, got %d archives", len(archiver.scanIDs))
	}
}
