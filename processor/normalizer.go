package processor

import (
	"strconv"

	appconfig "arbflow/config"
	"arbflow/logger"
	"arbflow/models"
	"arbflow/symbols"
)

// Normalizer groups raw tickers by base asset and converts every
// quote-denominated price onto the bridge currency so prices become
// comparable across quote markets.
type Normalizer struct {
	parser *symbols.Parser
	bridge string
	rates  map[string]float64
	floor  float64
	log    *logger.Log
}

func NewNormalizer(cfg *appconfig.Config) *Normalizer {
	rates := make(map[string]float64, len(cfg.Scanner.ConversionRates))
	for currency, rate := range cfg.Scanner.ConversionRates {
		rates[currency] = rate
	}

	return &Normalizer{
		parser: symbols.NewParser(cfg.Scanner.QuoteCurrencies),
		bridge: cfg.Scanner.BridgeCurrency,
		rates:  rates,
		floor:  cfg.Scanner.LiquidityFloor,
		log:    logger.GetLogger(),
	}
}

// Normalize runs both pipeline steps: grouping and bridging. Malformed
// tickers are dropped individually; they never abort the snapshot.
func (n *Normalizer) Normalize(tickers []models.RawTicker) models.BridgedPrices {
	return n.bridgePrices(n.group(tickers))
}

func (n *Normalizer) group(tickers []models.RawTicker) models.GroupedQuotes {
	grouped := make(models.GroupedQuotes)
	dropped := 0

	for _, ticker := range tickers {
		base, quote := n.parser.Parse(ticker.Symbol)
		if base == "" || quote == "" {
			dropped++
			continue
		}

		price, err := strconv.ParseFloat(ticker.LastPrice, 64)
		if err != nil || price <= 0 {
			dropped++
			continue
		}
		volume, err := strconv.ParseFloat(ticker.Volume24h, 64)
		if err != nil {
			dropped++
			continue
		}
		if volume < n.floor {
			continue
		}

		if _, ok := grouped[base]; !ok {
			grouped[base] = make(map[string]models.MarketQuote)
		}
		// Last write wins on duplicate (base, quote) pairs.
		grouped[base][quote] = models.MarketQuote{
			Price:  price,
			Volume: volume,
			Symbol: ticker.Symbol,
		}
	}

	if dropped > 0 {
		n.log.WithComponent("normalizer").WithFields(logger.Fields{
			"dropped": dropped,
			"total":   len(tickers),
		}).Debug("dropped malformed tickers")
	}

	return grouped
}

// bridgePrices resolves each grouped price into the bridge unit. Resolution
// order: the price is already bridge-denominated, a direct bridge market for
// the quote currency exists in the same snapshot, or a static conversion
// rate is configured. Quote currencies matching none of these are dropped
// silently. Base assets ending up with fewer than two bridged prices are
// excluded since no pairwise comparison is possible.
func (n *Normalizer) bridgePrices(grouped models.GroupedQuotes) models.BridgedPrices {
	bridged := make(models.BridgedPrices)

	for base, quotes := range grouped {
		resolved := make(map[string]float64, len(quotes))

		for quote, market := range quotes {
			var price float64
			switch {
			case quote == n.bridge:
				price = market.Price
			default:
				if bridgeMarket, ok := grouped[quote][n.bridge]; ok {
					price = market.Price * bridgeMarket.Price
				} else if rate, ok := n.rates[quote]; ok {
					price = market.Price * rate
				} else {
					continue
				}
			}
			if price <= 0 {
				continue
			}
			resolved[quote] = price
		}

		if len(resolved) >= 2 {
			bridged[base] = resolved
		}
	}

	return bridged
}
