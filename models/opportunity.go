package models

import (
	"fmt"
	"math"
	"time"
)

// TimestampLayout is the wall-clock time-of-day format used on outbound
// records.
const TimestampLayout = "15:04:05"

// Opportunity is a single cross-quote arbitrage opportunity: buy the base
// asset in the cheaper quote denomination, sell it in the costlier one.
// Instances are created once per scan and never mutated.
type Opportunity struct {
	BaseCurrency    string  `json:"base_currency"`
	SpreadPercent   float64 `json:"spread_percent"`
	BuyPair         string  `json:"buy_pair"`
	SellPair        string  `json:"sell_pair"`
	BuyPrice        float64 `json:"buy_price"`
	SellPrice       float64 `json:"sell_price"`
	PotentialProfit float64 `json:"potential_profit"`
	Timestamp       string  `json:"timestamp"`
}

// NewOpportunity builds an Opportunity from two bridged prices for the same
// base asset. buyPrice must be the lower of the two.
func NewOpportunity(base, buyQuote, sellQuote string, buyPrice, sellPrice float64, now time.Time) Opportunity {
	spread := Round2((sellPrice - buyPrice) / buyPrice * 100)
	return Opportunity{
		BaseCurrency:    base,
		SpreadPercent:   spread,
		BuyPair:         fmt.Sprintf("%s/%s", base, buyQuote),
		SellPair:        fmt.Sprintf("%s/%s", base, sellQuote),
		BuyPrice:        Round6(buyPrice),
		SellPrice:       Round6(sellPrice),
		PotentialProfit: spread,
		Timestamp:       now.Format(TimestampLayout),
	}
}

// ScanResult is the outcome of one pipeline execution, handed to sinks and
// returned by the on-demand scan endpoint.
type ScanResult struct {
	ScanID        string         `json:"scan_id"`
	Opportunities []Opportunity  `json:"opportunities"`
	Count         int            `json:"count"`
	Timestamp     string         `json:"timestamp"`
	Source        SnapshotSource `json:"source"`
}

// Round2 rounds to 2 decimal places (spread percentages).
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round6 rounds to 6 decimal places (prices).
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
