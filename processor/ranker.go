package processor

import (
	"sort"

	appconfig "arbflow/config"
	"arbflow/models"
)

// Ranker orders opportunities by spread descending and bounds the result
// size. Stable for equal spreads, so detector insertion order is preserved.
type Ranker struct {
	limit int
}

func NewRanker(cfg *appconfig.Config) *Ranker {
	return &Ranker{limit: cfg.Scanner.ResultLimit}
}

func (r *Ranker) Rank(opportunities []models.Opportunity) []models.Opportunity {
	ranked := make([]models.Opportunity, len(opportunities))
	copy(ranked, opportunities)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].SpreadPercent > ranked[j].SpreadPercent
	})

	if len(ranked) > r.limit {
		ranked = ranked[:r.limit]
	}
	return ranked
}
