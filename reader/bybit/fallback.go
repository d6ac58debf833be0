package bybit

import (
	"time"

	"arbflow/models"
)

// fallbackTickers is the static snapshot served when the feed stays
// unreachable through all retries. Stale but deterministic, it keeps the
// downstream pipeline exercised instead of starved.
var fallbackTickers = []models.RawTicker{
	{Symbol: "BTCUSDT", LastPrice: "45000", Volume24h: "125000"},
	{Symbol: "BTCEUR", LastPrice: "39400", Volume24h: "18000"},
	{Symbol: "BTCUSDC", LastPrice: "45010", Volume24h: "36000"},
	{Symbol: "ETHUSDT", LastPrice: "2500", Volume24h: "310000"},
	{Symbol: "ETHBTC", LastPrice: "0.0555", Volume24h: "42000"},
	{Symbol: "ETHEUR", LastPrice: "2190", Volume24h: "9500"},
	{Symbol: "SOLUSDT", LastPrice: "150", Volume24h: "540000"},
	{Symbol: "SOLUSDC", LastPrice: "150.2", Volume24h: "120000"},
	{Symbol: "EURUSDT", LastPrice: "1.14", Volume24h: "800000"},
	{Symbol: "USDCUSDT", LastPrice: "1.0", Volume24h: "2500000"},
}

// FallbackTickers exposes a copy of the static snapshot, mainly for tests
// and operator tooling.
func FallbackTickers() []models.RawTicker {
	out := make([]models.RawTicker, len(fallbackTickers))
	copy(out, fallbackTickers)
	return out
}

func fallbackSnapshot() models.TickerSnapshot {
	return models.TickerSnapshot{
		Tickers:   FallbackTickers(),
		Source:    models.SnapshotSourceFallback,
		FetchedAt: time.Now().UTC(),
	}
}
