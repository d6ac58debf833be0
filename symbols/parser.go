// Package symbols splits venue trading symbols into base and quote
// currencies using a known quote vocabulary.
package symbols

import (
	"sort"
	"strings"
)

// Parser resolves a raw trading symbol such as "BTCUSDT" into its base and
// quote components. The vocabulary is matched longest-first so that a longer
// code ("USDT") wins over a shorter one ("USD") when both are suffixes.
type Parser struct {
	vocabulary []string
}

// NewParser builds a parser from the configured quote vocabulary. The input
// order is preserved for equal-length entries.
func NewParser(quoteCurrencies []string) *Parser {
	vocab := make([]string, len(quoteCurrencies))
	copy(vocab, quoteCurrencies)
	sort.SliceStable(vocab, func(i, j int) bool {
		return len(vocab[i]) > len(vocab[j])
	})
	return &Parser{vocabulary: vocab}
}

// Parse returns (base, quote) for the symbol, or ("", "") when no vocabulary
// entry is a suffix or the remaining base would be empty.
func (p *Parser) Parse(symbol string) (string, string) {
	for _, quote := range p.vocabulary {
		if strings.HasSuffix(symbol, quote) {
			base := symbol[:len(symbol)-len(quote)]
			if base == "" {
				return "", ""
			}
			return base, quote
		}
	}
	return "", ""
}

// Vocabulary returns the parser's quote currencies, longest first.
func (p *Parser) Vocabulary() []string {
	out := make([]string, len(p.vocabulary))
	copy(out, p.vocabulary)
	return out
}
