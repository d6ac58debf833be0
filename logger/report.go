package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var (
	scansCompleted     int64
	feedRequests       int64
	feedRetries        int64
	feedFallbacks      int64
	feedEmpty          int64
	opportunitiesFound int64
	resultsPublished   int64

	warnCounts  sync.Map // map[string]*int64, keyed by component
	errorCounts sync.Map
)

func recordWarn(component string) {
	v, _ := warnCounts.LoadOrStore(component, new(int64))
	atomic.AddInt64(v.(*int64), 1)
}

func recordError(component string) {
	v, _ := errorCounts.LoadOrStore(component, new(int64))
	atomic.AddInt64(v.(*int64), 1)
}

func IncrementScan() {
	atomic.AddInt64(&scansCompleted, 1)
}

func IncrementFeedRequest() {
	atomic.AddInt64(&feedRequests, 1)
}

func IncrementFeedRetry() {
	atomic.AddInt64(&feedRetries, 1)
}

func IncrementFeedFallback() {
	atomic.AddInt64(&feedFallbacks, 1)
}

func IncrementFeedEmpty() {
	atomic.AddInt64(&feedEmpty, 1)
}

func AddOpportunitiesFound(n int) {
	atomic.AddInt64(&opportunitiesFound, int64(n))
}

func IncrementResultPublished() {
	atomic.AddInt64(&resultsPublished, 1)
}

// StartReport begins periodic logging of runtime and pipeline statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// LogDailyReport emits the cumulative counters once, intended for a daily
// cron job.
func LogDailyReport(log *Log) {
	logReport(context.Background(), log)
}

func logReport(ctx context.Context, log *Log) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	warnData := map[string]int64{}
	warnCounts.Range(func(k, v any) bool {
		warnData[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})
	errorData := map[string]int64{}
	errorCounts.Range(func(k, v any) bool {
		errorData[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})

	fields := Fields{
		"scans_completed":     atomic.LoadInt64(&scansCompleted),
		"feed_requests":       atomic.LoadInt64(&feedRequests),
		"feed_retries":        atomic.LoadInt64(&feedRetries),
		"feed_fallbacks":      atomic.LoadInt64(&feedFallbacks),
		"feed_empty":          atomic.LoadInt64(&feedEmpty),
		"opportunities_found": atomic.LoadInt64(&opportunitiesFound),
		"results_published":   atomic.LoadInt64(&resultsPublished),
		"goroutines":          runtime.NumGoroutine(),
		"heap_mb":             int64(memStats.HeapAlloc) / 1024 / 1024,
		"warns":               warnData,
		"errors":              errorData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("ScansCompleted"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&scansCompleted)))},
		{MetricName: aws.String("FeedRequests"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&feedRequests)))},
		{MetricName: aws.String("FeedRetries"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&feedRetries)))},
		{MetricName: aws.String("FeedFallbacks"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&feedFallbacks)))},
		{MetricName: aws.String("FeedEmpty"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&feedEmpty)))},
		{MetricName: aws.String("OpportunitiesFound"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&opportunitiesFound)))},
		{MetricName: aws.String("ResultsPublished"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&resultsPublished)))},
		{MetricName: aws.String("Goroutines"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(runtime.NumGoroutine()))},
		{MetricName: aws.String("HeapMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.HeapAlloc) / 1024 / 1024)},
	}

	publishMetrics(ctx, data)
}
