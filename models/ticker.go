package models

import "time"

// RawTicker is a single spot ticker as reported by the venue. Prices and
// volumes arrive string-encoded and are parsed during normalization.
type RawTicker struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
	Volume24h string `json:"volume24h"`
}

// SnapshotSource records how a snapshot was obtained.
type SnapshotSource string

const (
	SnapshotSourceLive     SnapshotSource = "live"
	SnapshotSourceFallback SnapshotSource = "fallback"
	SnapshotSourceEmpty    SnapshotSource = "empty"
)

// TickerSnapshot is one complete poll's worth of raw ticker data. It is
// processed atomically by the pipeline and discarded on the next poll.
type TickerSnapshot struct {
	Tickers   []RawTicker    `json:"tickers"`
	Source    SnapshotSource `json:"source"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// MarketQuote is a parsed, liquidity-filtered ticker for one (base, quote)
// market. Price and volume are already numeric.
type MarketQuote struct {
	Price  float64
	Volume float64
	Symbol string
}

// GroupedQuotes maps base asset -> quote currency -> market quote for a
// single snapshot. A (base, quote) pair appears at most once; duplicates in
// the feed resolve last-write-wins.
type GroupedQuotes map[string]map[string]MarketQuote

// BridgedPrices maps base asset -> quote currency -> price expressed in the
// bridge unit. Every value is strictly positive; bases with fewer than two
// bridged quotes are excluded entirely.
type BridgedPrices map[string]map[string]float64
