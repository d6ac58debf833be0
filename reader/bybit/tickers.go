// Package bybit polls the venue's spot ticker endpoint and shields the
// pipeline from feed failures: rate limiting, retry with backoff and a
// static fallback snapshot.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/time/rate"

	appconfig "arbflow/config"
	"arbflow/logger"
	"arbflow/models"
)

const userAgent = "Arbflow/1.0"

type fetchOutcome int

const (
	fetchOK fetchOutcome = iota
	// fetchTransient covers connection errors and non-2xx statuses,
	// including 403: the venue may be reachable again on the next attempt.
	fetchTransient
	// fetchHard covers an unparseable body or an application-level error
	// code: the venue is reachable but reporting bad state, so retrying
	// within this poll is pointless.
	fetchHard
)

// TickerReader fetches spot ticker snapshots from Bybit. FetchSnapshot never
// returns an error; feed failures degrade to the fallback snapshot or an
// empty one per the outcome taxonomy above.
type TickerReader struct {
	config  *appconfig.Config
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Log
}

// NewTickerReader creates a ticker reader with the configured connection
// pool, per-attempt timeout and minimum request spacing.
func NewTickerReader(cfg *appconfig.Config) *TickerReader {
	log := logger.GetLogger()

	transport := &http.Transport{
		MaxIdleConns:        cfg.Market.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Market.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     cfg.Market.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     cfg.Market.ConnectionPool.IdleConnTimeout.Std(),
	}

	httpClient := &http.Client{Transport: transport, Timeout: cfg.Market.Timeout.Std()}

	// The limiter enforces minimum spacing between outbound requests. It is
	// safe for concurrent use, so the on-demand scan path and the monitor
	// loop share the same spacing guarantee.
	minInterval := cfg.Market.MinRequestInterval.Std()
	limiter := rate.NewLimiter(rate.Every(minInterval), 1)

	r := &TickerReader{
		config:  cfg,
		client:  httpClient,
		limiter: limiter,
		log:     log,
	}

	log.WithComponent("bybit_reader").WithFields(logger.Fields{
		"timeout":              cfg.Market.Timeout.Std().String(),
		"min_request_interval": minInterval.String(),
	}).Info("bybit ticker reader initialized")

	return r
}

// FetchSnapshot retrieves the current spot ticker snapshot. On exhausted
// retries it returns the static fallback snapshot; on a hard failure it
// returns an empty snapshot. The caller always receives usable data.
func (r *TickerReader) FetchSnapshot(ctx context.Context) models.TickerSnapshot {
	log := r.log.WithComponent("bybit_reader").WithFields(logger.Fields{"operation": "fetch_snapshot"})

	retryCfg := r.config.Market.Retry
	b := &backoff.Backoff{
		Min:    retryCfg.BaseDelay.Std(),
		Max:    retryCfg.MaxDelay.Std(),
		Factor: 2,
		Jitter: false,
	}

	for attempt := 1; attempt <= retryCfg.MaxAttempts; attempt++ {
		// Every outbound request honors the minimum spacing, retries
		// included; the backoff sleep stacks on top of it.
		if err := r.limiter.Wait(ctx); err != nil {
			log.WithError(err).Warn("rate limiter wait aborted")
			if attempt == 1 {
				logger.IncrementFeedEmpty()
				return models.TickerSnapshot{Source: models.SnapshotSourceEmpty, FetchedAt: time.Now().UTC()}
			}
			logger.IncrementFeedFallback()
			return fallbackSnapshot()
		}

		r.sleepJitter()
		logger.IncrementFeedRequest()

		tickers, outcome, err := r.fetchOnce(ctx)
		switch outcome {
		case fetchOK:
			log.WithFields(logger.Fields{"tickers": len(tickers), "attempt": attempt}).Info("ticker snapshot fetched")
			return models.TickerSnapshot{
				Tickers:   tickers,
				Source:    models.SnapshotSourceLive,
				FetchedAt: time.Now().UTC(),
			}
		case fetchHard:
			log.WithError(err).Warn("venue reported bad state, returning empty snapshot")
			logger.IncrementFeedEmpty()
			return models.TickerSnapshot{Source: models.SnapshotSourceEmpty, FetchedAt: time.Now().UTC()}
		case fetchTransient:
			if attempt < retryCfg.MaxAttempts {
				delay := b.Duration()
				log.WithError(err).WithFields(logger.Fields{
					"attempt":  attempt,
					"backoff":  delay.String(),
					"attempts": retryCfg.MaxAttempts,
				}).Warn("transient feed failure, backing off")
				logger.IncrementFeedRetry()
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					logger.IncrementFeedFallback()
					return fallbackSnapshot()
				}
			} else {
				log.WithError(err).Warn("retries exhausted, serving fallback snapshot")
			}
		}
	}

	logger.IncrementFeedFallback()
	return fallbackSnapshot()
}

// sleepJitter delays the dispatch by a small random amount so the request
// cadence is not perfectly regular.
func (r *TickerReader) sleepJitter() {
	max := r.config.Market.JitterMax.Std()
	if max <= 0 {
		return
	}
	time.Sleep(time.Duration(rand.Int63n(int64(max))))
}

func (r *TickerReader) fetchOnce(ctx context.Context) ([]models.RawTicker, fetchOutcome, error) {
	reqURL := fmt.Sprintf("%s%s?%s", r.config.Market.BaseURL, r.config.Market.TickersPath,
		url.Values{"category": []string{r.config.Market.Category}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fetchHard, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fetchTransient, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, fetchTransient, fmt.Errorf("venue returned forbidden: %s", resp.Status)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fetchTransient, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	var envelope struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List []models.RawTicker `json:"list"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fetchHard, fmt.Errorf("failed to decode ticker response: %w", err)
	}
	if envelope.RetCode != 0 {
		return nil, fetchHard, fmt.Errorf("venue error %d: %s", envelope.RetCode, envelope.RetMsg)
	}

	return envelope.Result.List, fetchOK, nil
}
