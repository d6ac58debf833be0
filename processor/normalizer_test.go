package processor

import (
	"testing"
	"time"

	appconfig "arbflow/config"
	"arbflow/models"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		Scanner: appconfig.ScannerConfig{
			BridgeCurrency:   "USDT",
			QuoteCurrencies:  []string{"USDT", "EUR", "BTC", "ETH", "USDC"},
			ConversionRates:  map[string]float64{"EUR": 1.14, "USDC": 1.0},
			MinSpreadPercent: 1.0,
			LiquidityFloor:   1000,
			ResultLimit:      20,
		},
		Monitor: appconfig.MonitorConfig{Interval: appconfig.Duration(40 * time.Millisecond)},
	}
}

func TestNormalizeBridgesViaStaticRate(t *testing.T) {
	n := NewNormalizer(testConfig())

	bridged := n.Normalize([]models.RawTicker{
		{Symbol: "BTCUSDT", LastPrice: "45000", Volume24h: "5000"},
		{Symbol: "BTCEUR", LastPrice: "41500", Volume24h: "5000"},
	})

	prices, ok := bridged["BTC"]
	if !ok {
		t.Fatalf("expected BTC in bridged prices, got %v", bridged)
	}
	if got := prices["USDT"]; got != 45000 {
		t.Errorf("USDT price = %v, want 45000", got)
	}
	want := 41500 * 1.14
	if got := prices["EUR"]; got != want {
		t.Errorf("EUR price = %v, want %v", got, want)
	}
}

func TestNormalizePrefersDirectBridgeMarket(t *testing.T) {
	cfg := testConfig()
	// Give USDC a static rate that disagrees with the live market so the
	// test can tell which path was taken.
	cfg.Scanner.ConversionRates["USDC"] = 2.0
	n := NewNormalizer(cfg)

	bridged := n.Normalize([]models.RawTicker{
		{Symbol: "SOLUSDT", LastPrice: "150", Volume24h: "5000"},
		{Symbol: "SOLUSDC", LastPrice: "149", Volume24h: "5000"},
		{Symbol: "USDCUSDT", LastPrice: "1.01", Volume24h: "5000"},
	})

	prices, ok := bridged["SOL"]
	if !ok {
		t.Fatalf("expected SOL in bridged prices, got %v", bridged)
	}
	want := 149 * 1.01
	if got := prices["USDC"]; got != want {
		t.Errorf("USDC price = %v, want %v (direct market, not static rate)", got, want)
	}
}

func TestNormalizeLiquidityFloor(t *testing.T) {
	n := NewNormalizer(testConfig())

	bridged := n.Normalize([]models.RawTicker{
		{Symbol: "BTCUSDT", LastPrice: "45000", Volume24h: "5000"},
		{Symbol: "BTCEUR", LastPrice: "41500", Volume24h: "999"},
	})

	if _, ok := bridged["BTC"]; ok {
		t.Errorf("BTC should be excluded when only one quote survives the liquidity floor, got %v", bridged)
	}
}

func TestNormalizeDropsMalformedTickers(t *testing.T) {
	n := NewNormalizer(testConfig())

	bridged := n.Normalize([]models.RawTicker{
		{Symbol: "BTCUSDT", LastPrice: "not-a-number", Volume24h: "5000"},
		{Symbol: "BTCEUR", LastPrice: "41500", Volume24h: ""},
		{Symbol: "BTCETH", LastPrice: "0", Volume24h: "5000"},
		{Symbol: "UNKNOWNPAIR", LastPrice: "10", Volume24h: "5000"},
	})

	if len(bridged) != 0 {
		t.Errorf("expected no bridged prices from malformed input, got %v", bridged)
	}
}

func TestNormalizeDropsUnresolvableQuote(t *testing.T) {
	cfg := testConfig()
	cfg.Scanner.QuoteCurrencies = append(cfg.Scanner.QuoteCurrencies, "DAI")
	n := NewNormalizer(cfg)

	// DAI has no direct bridge market in the snapshot and no static rate, so
	// the BTC/DAI price must be dropped while the others survive.
	bridged := n.Normalize([]models.RawTicker{
		{Symbol: "BTCUSDT", LastPrice: "45000", Volume24h: "5000"},
		{Symbol: "BTCEUR", LastPrice: "41500", Volume24h: "5000"},
		{Symbol: "BTCDAI", LastPrice: "44900", Volume24h: "5000"},
	})

	prices, ok := bridged["BTC"]
	if !ok {
		t.Fatalf("expected BTC in bridged prices, got %v", bridged)
	}
	if _, ok := prices["DAI"]; ok {
		t.Errorf("DAI should have been dropped, got %v", prices)
	}
	if len(prices) != 2 {
		t.Errorf("expected 2 bridged quotes, got %v", prices)
	}
}

func TestNormalizeDuplicateSymbolLastWriteWins(t *testing.T) {
	n := NewNormalizer(testConfig())

	bridged := n.Normalize([]models.RawTicker{
		{Symbol: "BTCUSDT", LastPrice: "44000", Volume24h: "5000"},
		{Symbol: "BTCUSDT", LastPrice: "45000", Volume24h: "5000"},
		{Symbol: "BTCEUR", LastPrice: "41500", Volume24h: "5000"},
	})

	if got := bridged["BTC"]["USDT"]; got != 45000 {
		t.Errorf("USDT price = %v, want 45000 (last duplicate wins)", got)
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	n := NewNormalizer(testConfig())

	if bridged := n.Normalize(nil); len(bridged) != 0 {
		t.Errorf("Normalize(nil) = %v, want empty", bridged)
	}
}
