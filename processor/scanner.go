// Package processor contains the arbitrage detection pipeline: symbol
// grouping and price bridging, pairwise spread detection, ranking, and the
// scheduler that repeats the whole scan.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	appconfig "arbflow/config"
	"arbflow/logger"
	"arbflow/models"
)

// TickerSource provides one snapshot of raw tickers per call. It never
// fails; degraded feeds surface as fallback or empty snapshots.
type TickerSource interface {
	FetchSnapshot(ctx context.Context) models.TickerSnapshot
}

// SnapshotArchiver stores a scan's raw snapshot for later inspection.
type SnapshotArchiver interface {
	Archive(ctx context.Context, scanID string, snapshot models.TickerSnapshot) error
}

// Scanner runs the full pipeline once per call: fetch, normalize, detect,
// rank. It is safe for concurrent use; the stages share only immutable
// configuration and the ticker source serializes its own rate limit.
type Scanner struct {
	source     TickerSource
	normalizer *Normalizer
	detector   *Detector
	ranker     *Ranker
	archiver   SnapshotArchiver
	log        *logger.Log
}

// NewScanner wires the pipeline stages. archiver may be nil when snapshot
// archival is disabled.
func NewScanner(cfg *appconfig.Config, source TickerSource, archiver SnapshotArchiver) *Scanner {
	return &Scanner{
		source:     source,
		normalizer: NewNormalizer(cfg),
		detector:   NewDetector(cfg),
		ranker:     NewRanker(cfg),
		archiver:   archiver,
		log:        logger.GetLogger(),
	}
}

// Scan executes one pipeline pass. Feed and data-quality failures are
// absorbed into smaller or empty result sets; the returned error is non-nil
// only for a genuinely unexpected internal fault.
func (s *Scanner) Scan(ctx context.Context) (result models.ScanResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal scan failure: %v", r)
		}
	}()

	log := s.log.WithComponent("scanner")
	start := time.Now()
	scanID := uuid.New().String()

	snapshot := s.source.FetchSnapshot(ctx)

	if s.archiver != nil && len(snapshot.Tickers) > 0 {
		if archiveErr := s.archiver.Archive(ctx, scanID, snapshot); archiveErr != nil {
			log.WithError(archiveErr).WithFields(logger.Fields{"scan_id": scanID}).Warn("failed to archive snapshot")
		}
	}

	bridged := s.normalizer.Normalize(snapshot.Tickers)
	opportunities := s.detector.Detect(bridged, start)
	ranked := s.ranker.Rank(opportunities)

	result = models.ScanResult{
		ScanID:        scanID,
		Opportunities: ranked,
		Count:         len(ranked),
		Timestamp:     start.Format(models.TimestampLayout),
		Source:        snapshot.Source,
	}

	logger.IncrementScan()
	logger.AddOpportunitiesFound(len(ranked))

	duration := time.Since(start)
	log.WithFields(logger.Fields{
		"scan_id":       scanID,
		"source":        string(snapshot.Source),
		"tickers":       len(snapshot.Tickers),
		"bases_bridged": len(bridged),
		"opportunities": len(ranked),
		"duration_ms":   duration.Milliseconds(),
	}).Info("scan completed")
	logger.LogPerformanceEntry(log, "scanner", "scan", duration, logger.Fields{"scan_id": scanID})
	s.log.LogMetric("scanner", "opportunities_found", len(ranked), "counter", logger.Fields{"source": string(snapshot.Source)})

	return result, nil
}
