package processor

import (
	"sort"
	"time"

	appconfig "arbflow/config"
	"arbflow/logger"
	"arbflow/models"
)

// Detector produces all pairwise cross-quote spreads per base asset and
// keeps those at or above the configured minimum. O(k²) per base asset,
// with k bounded by the quote vocabulary size.
type Detector struct {
	minSpreadPercent float64
	log              *logger.Log
}

func NewDetector(cfg *appconfig.Config) *Detector {
	return &Detector{
		minSpreadPercent: cfg.Scanner.MinSpreadPercent,
		log:              logger.GetLogger(),
	}
}

// Detect walks bases and quote pairs in sorted order so identical snapshots
// yield identically ordered opportunity lists.
func (d *Detector) Detect(bridged models.BridgedPrices, now time.Time) []models.Opportunity {
	opportunities := make([]models.Opportunity, 0)

	bases := make([]string, 0, len(bridged))
	for base := range bridged {
		bases = append(bases, base)
	}
	sort.Strings(bases)

	for _, base := range bases {
		prices := bridged[base]
		quotes := make([]string, 0, len(prices))
		for quote := range prices {
			quotes = append(quotes, quote)
		}
		sort.Strings(quotes)

		for i := 0; i < len(quotes); i++ {
			for j := i + 1; j < len(quotes); j++ {
				quoteA, quoteB := quotes[i], quotes[j]
				priceA, priceB := prices[quoteA], prices[quoteB]

				buyQuote, sellQuote := quoteA, quoteB
				buyPrice, sellPrice := priceA, priceB
				if priceB < priceA {
					buyQuote, sellQuote = quoteB, quoteA
					buyPrice, sellPrice = priceB, priceA
				}

				// Equal prices never form an opportunity, even with a zero
				// threshold: the buy side must be strictly cheaper.
				spread := (sellPrice - buyPrice) / buyPrice
				if spread <= 0 || spread*100 < d.minSpreadPercent {
					continue
				}

				opportunities = append(opportunities,
					models.NewOpportunity(base, buyQuote, sellQuote, buyPrice, sellPrice, now))
			}
		}
	}

	return opportunities
}
