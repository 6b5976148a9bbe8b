package usecase

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/AvnerAdda/shekelsync-sub010/internal/domain"
)

// FrequencyRange classifies an average inter-transaction interval into
// a cadence bucket. Bounds are inclusive.
type FrequencyRange struct {
	Frequency     domain.Frequency
	MinDays       float64
	MaxDays       float64
	ExpectedDays  float64
	ToleranceDays float64
}

// RecurringConfig holds the classification table, keyword data and
// scoring weights for recurring-pattern detection.
type RecurringConfig struct {
	Ranges []FrequencyRange

	// SubscriptionKeywords mark a merchant as a subscription provider
	// regardless of confidence.
	SubscriptionKeywords []string
	// UtilityCategories trigger the compare-providers suggestion.
	UtilityCategories []string

	IntervalWeight         float64
	AmountWeight           float64
	SubscriptionConfidence float64

	// Suggestion economics.
	AnnualPlanSavingsRate float64
	ProviderSavingsRate   float64
	LowValueThreshold     float64
	NegotiateThreshold    float64

	// SimpleVariance strategy knobs.
	SimpleVarianceMaxStdDev      float64
	SimpleVarianceMinOccurrences int
}

// DefaultRecurringConfig returns the production classification table
// and keyword lists.
func DefaultRecurringConfig() RecurringConfig {
	return RecurringConfig{
		Ranges: []FrequencyRange{
			{Frequency: domain.FrequencyWeekly, MinDays: 6, MaxDays: 8, ExpectedDays: 7, ToleranceDays: 2},
			{Frequency: domain.FrequencyMonthly, MinDays: 25, MaxDays: 35, ExpectedDays: 30, ToleranceDays: 5},
			{Frequency: domain.FrequencyQuarterly, MinDays: 85, MaxDays: 95, ExpectedDays: 90, ToleranceDays: 7},
			{Frequency: domain.FrequencyYearly, MinDays: 355, MaxDays: 375, ExpectedDays: 365, ToleranceDays: 10},
		},
		SubscriptionKeywords: []string{
			"netflix", "spotify", "apple", "google", "microsoft", "amazon",
			"youtube", "disney", "hbo", "prime", "icloud", "office",
			"dropbox", "adobe", "github", "linkedin", "מנוי", "חבילה",
		},
		UtilityCategories: []string{
			"Utilities", "Telecom", "חשמל", "מים", "תקשורת", "סלולר",
		},

		IntervalWeight:         0.7,
		AmountWeight:           0.3,
		SubscriptionConfidence: 0.8,

		AnnualPlanSavingsRate: 0.15,
		ProviderSavingsRate:   0.10,
		LowValueThreshold:     100,
		NegotiateThreshold:    200,

		SimpleVarianceMaxStdDev:      10,
		SimpleVarianceMinOccurrences: 2,
	}
}

// RecurringOptions are the per-call knobs.
type RecurringOptions struct {
	// MinOccurrences is the minimum group size. Zero means 3.
	MinOccurrences int
	// MinConfidence drops weaker patterns. Zero means 0.5.
	MinConfidence float64
	// Strategy selects the analysis variant. Nil means interval
	// classification.
	Strategy RecurringStrategy
}

const (
	defaultRecurringMinOccurrences = 3
	defaultRecurringMinConfidence  = 0.5
)

// RecurringStrategy analyzes one sorted merchant group and reports the
// pattern found, if any. The detector fills in everything derived from
// the pattern afterwards (subscription flag, monthly equivalent,
// suggestions, user status).
type RecurringStrategy interface {
	Analyze(group []domain.Transaction, cfg RecurringConfig) (frequency domain.Frequency, expectedDays float64, confidence float64, ok bool)
}

// IntervalClassificationStrategy is the canonical variant: classify the
// average inter-transaction interval into a frequency bucket, then
// score interval and amount consistency.
type IntervalClassificationStrategy struct{}

// Analyze implements RecurringStrategy.
func (IntervalClassificationStrategy) Analyze(group []domain.Transaction, cfg RecurringConfig) (domain.Frequency, float64, float64, bool) {
	intervals := dayIntervals(group)
	if len(intervals) == 0 {
		return "", 0, 0, false
	}
	avgInterval := mean(intervals)

	var bucket *FrequencyRange
	for i := range cfg.Ranges {
		r := &cfg.Ranges[i]
		if avgInterval >= r.MinDays && avgInterval <= r.MaxDays {
			bucket = r
			break
		}
	}
	if bucket == nil {
		return "", 0, 0, false
	}

	consistent := 0
	for _, interval := range intervals {
		if math.Abs(interval-bucket.ExpectedDays) <= bucket.ToleranceDays {
			consistent++
		}
	}
	consistencyScore := float64(consistent) / float64(len(intervals))

	amounts := absAmounts(group)
	amountConsistency := 1 - math.Min(1, safeRatio(stdDev(amounts), mean(amounts)))

	confidence := consistencyScore*cfg.IntervalWeight + amountConsistency*cfg.AmountWeight
	return bucket.Frequency, bucket.ExpectedDays, confidence, true
}

// SimpleVarianceStrategy is the legacy variant: any merchant charged a
// near-constant amount at least twice counts as a monthly recurring
// charge, with no interval classification.
type SimpleVarianceStrategy struct{}

// Analyze implements RecurringStrategy.
func (SimpleVarianceStrategy) Analyze(group []domain.Transaction, cfg RecurringConfig) (domain.Frequency, float64, float64, bool) {
	if len(group) < cfg.SimpleVarianceMinOccurrences {
		return "", 0, 0, false
	}
	amounts := absAmounts(group)
	if stdDev(amounts) >= cfg.SimpleVarianceMaxStdDev {
		return "", 0, 0, false
	}
	confidence := 1 - math.Min(1, safeRatio(stdDev(amounts), mean(amounts)))
	return domain.FrequencyMonthly, 30, confidence, true
}

// RecurringDetector finds recurring charges per normalized merchant.
type RecurringDetector struct {
	cfg  RecurringConfig
	norm *MerchantNormalizer
	log  zerolog.Logger
}

// NewRecurringDetector creates a detector with the given config and
// merchant normalizer.
func NewRecurringDetector(cfg RecurringConfig, norm *MerchantNormalizer, log zerolog.Logger) *RecurringDetector {
	return &RecurringDetector{cfg: cfg, norm: norm, log: log}
}

// Detect groups expenses by normalized merchant and returns the
// patterns passing the confidence floor, sorted by descending monthly
// equivalent. status may be nil.
func (d *RecurringDetector) Detect(txs []domain.Transaction, opts RecurringOptions, status RecurringStatusLookup) []domain.RecurringPattern {
	if opts.MinOccurrences == 0 {
		opts.MinOccurrences = defaultRecurringMinOccurrences
	}
	if opts.MinConfidence == 0 {
		opts.MinConfidence = defaultRecurringMinConfidence
	}
	strategy := opts.Strategy
	if strategy == nil {
		strategy = IntervalClassificationStrategy{}
	}

	expenses := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.IsExpense() {
			expenses = append(expenses, tx)
		}
	}
	groups := d.norm.GroupByMerchant(expenses)

	merchants := make([]string, 0, len(groups))
	for m := range groups {
		merchants = append(merchants, m)
	}
	sort.Strings(merchants)

	var patterns []domain.RecurringPattern
	for _, merchant := range merchants {
		group := groups[merchant]
		if len(group) < opts.MinOccurrences {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Date.Before(group[j].Date)
		})

		frequency, expectedDays, confidence, ok := strategy.Analyze(group, d.cfg)
		if !ok {
			continue
		}
		confidence = round3(confidence)
		if confidence < opts.MinConfidence {
			continue
		}

		avgAmount := mean(absAmounts(group))
		pattern := domain.RecurringPattern{
			MerchantPattern:   merchant,
			Frequency:         frequency,
			AverageAmount:     round2(avgAmount),
			Confidence:        confidence,
			MonthlyEquivalent: round2(monthlyEquivalent(frequency, avgAmount)),
			NextExpectedDate:  group[len(group)-1].Date.AddDate(0, 0, int(expectedDays)),
			Occurrences:       len(group),
			Category:          firstCategory(group),
		}
		pattern.IsSubscription = d.isSubscription(pattern)
		if status != nil {
			pattern.UserStatus = status(pattern.MerchantPattern, pattern.Frequency)
		}
		pattern.Suggestions = d.buildSuggestions(pattern)
		patterns = append(patterns, pattern)
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		if patterns[i].MonthlyEquivalent != patterns[j].MonthlyEquivalent {
			return patterns[i].MonthlyEquivalent > patterns[j].MonthlyEquivalent
		}
		return patterns[i].MerchantPattern < patterns[j].MerchantPattern
	})
	return patterns
}

func (d *RecurringDetector) isSubscription(p domain.RecurringPattern) bool {
	name := strings.ToLower(p.MerchantPattern)
	for _, kw := range d.cfg.SubscriptionKeywords {
		if strings.Contains(name, strings.ToLower(kw)) {
			return true
		}
	}
	if p.Frequency == domain.FrequencyMonthly || p.Frequency == domain.FrequencyYearly {
		return p.Confidence >= d.cfg.SubscriptionConfidence
	}
	return false
}

// buildSuggestions derives optimization suggestions from pattern fields
// alone, so the same pattern always yields the same suggestions.
func (d *RecurringDetector) buildSuggestions(p domain.RecurringPattern) []domain.Suggestion {
	var suggestions []domain.Suggestion

	if p.Frequency == domain.FrequencyMonthly && p.IsSubscription {
		suggestions = append(suggestions, domain.Suggestion{
			Type:             domain.SuggestionAnnualPlan,
			Action:           fmt.Sprintf("Switch %s to an annual plan", p.MerchantPattern),
			PotentialSavings: round2(p.AverageAmount * 12 * d.cfg.AnnualPlanSavingsRate),
		})
	}
	if p.MonthlyEquivalent < d.cfg.LowValueThreshold {
		suggestions = append(suggestions, domain.Suggestion{
			Type:             domain.SuggestionReviewLowValue,
			Action:           fmt.Sprintf("Review whether %s is still used", p.MerchantPattern),
			PotentialSavings: round2(p.MonthlyEquivalent * 12),
		})
	}
	if d.isUtilityCategory(p.Category) {
		suggestions = append(suggestions, domain.Suggestion{
			Type:             domain.SuggestionCompareProviders,
			Action:           fmt.Sprintf("Compare %s against competing providers", p.MerchantPattern),
			PotentialSavings: round2(p.MonthlyEquivalent * 12 * d.cfg.ProviderSavingsRate),
		})
	}
	if p.MonthlyEquivalent > d.cfg.NegotiateThreshold {
		suggestions = append(suggestions, domain.Suggestion{
			Type:             domain.SuggestionNegotiate,
			Action:           fmt.Sprintf("Negotiate the %s rate or downgrade the plan", p.MerchantPattern),
			PotentialSavings: round2(p.MonthlyEquivalent * 12 * d.cfg.ProviderSavingsRate),
		})
	}
	return suggestions
}

func (d *RecurringDetector) isUtilityCategory(category string) bool {
	for _, c := range d.cfg.UtilityCategories {
		if strings.EqualFold(category, c) {
			return true
		}
	}
	return false
}

// monthlyEquivalent normalizes a recurring amount to an average monthly
// cost. The weekly factor is 52/12.
func monthlyEquivalent(frequency domain.Frequency, avgAmount float64) float64 {
	switch frequency {
	case domain.FrequencyWeekly:
		return avgAmount * 4.33
	case domain.FrequencyQuarterly:
		return avgAmount / 3
	case domain.FrequencyYearly:
		return avgAmount / 12
	default:
		return avgAmount
	}
}

func dayIntervals(group []domain.Transaction) []float64 {
	if len(group) < 2 {
		return nil
	}
	intervals := make([]float64, 0, len(group)-1)
	for i := 1; i < len(group); i++ {
		intervals = append(intervals, float64(domain.DaysBetween(group[i-1].Date, group[i].Date)))
	}
	return intervals
}

func absAmounts(group []domain.Transaction) []float64 {
	amounts := make([]float64, 0, len(group))
	for _, tx := range group {
		amounts = append(amounts, math.Abs(tx.Amount))
	}
	return amounts
}

func firstCategory(group []domain.Transaction) string {
	for _, tx := range group {
		if key := tx.CategoryKey(); key != "" {
			return key
		}
	}
	return ""
}
