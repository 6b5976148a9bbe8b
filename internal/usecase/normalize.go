package usecase

import (
	"regexp"
	"strings"

	"github.com/AvnerAdda/shekelsync-sub010/internal/domain"
)

// NormalizerConfig holds the language-specific noise the scraper leaves
// in merchant names. Injected so detection can be tested against
// synthetic prefixes.
type NormalizerConfig struct {
	// Prefixes are lowercase leading tokens stripped from names,
	// e.g. "payment to " and its Hebrew equivalents.
	Prefixes []string
}

// DefaultNormalizerConfig returns the prefixes the scrapers are known
// to emit, in English and Hebrew.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		Prefixes: []string{
			"payment to ",
			"purchase at ",
			"תשלום ל",
			"קנייה ב",
			"רכישה ב",
		},
	}
}

var (
	trailingDateRe   = regexp.MustCompile(`\s+\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}$`)
	trailingNumberRe = regexp.MustCompile(`\s+\d+$`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

// MerchantNormalizer collapses scraper variants of the same payee into
// one merchant pattern.
type MerchantNormalizer struct {
	cfg NormalizerConfig
}

// NewMerchantNormalizer creates a normalizer with the given config.
func NewMerchantNormalizer(cfg NormalizerConfig) *MerchantNormalizer {
	return &MerchantNormalizer{cfg: cfg}
}

// Normalize lower-cases the name, strips known leading prefixes,
// trailing date tokens and trailing bare numbers, and collapses
// internal whitespace. Stripping repeats to a fixpoint so the function
// is idempotent. If the result would be empty the original name is
// returned unchanged.
func (n *MerchantNormalizer) Normalize(name string) string {
	s := whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), " ")
	for {
		next := n.stripOnce(s)
		if next == s {
			break
		}
		s = next
	}
	if s == "" {
		return name
	}
	return s
}

func (n *MerchantNormalizer) stripOnce(s string) string {
	for _, p := range n.cfg.Prefixes {
		if strings.HasPrefix(s, p) {
			s = strings.TrimSpace(strings.TrimPrefix(s, p))
			break
		}
	}
	s = trailingDateRe.ReplaceAllString(s, "")
	s = trailingNumberRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// GroupTransactions groups transactions by the given key function,
// preserving transaction order within each group.
func GroupTransactions(txs []domain.Transaction, key func(domain.Transaction) string) map[string][]domain.Transaction {
	groups := make(map[string][]domain.Transaction)
	for _, tx := range txs {
		k := key(tx)
		groups[k] = append(groups[k], tx)
	}
	return groups
}

// GroupByMerchant groups transactions by their normalized name.
func (n *MerchantNormalizer) GroupByMerchant(txs []domain.Transaction) map[string][]domain.Transaction {
	return GroupTransactions(txs, func(tx domain.Transaction) string {
		return n.Normalize(tx.Name)
	})
}
