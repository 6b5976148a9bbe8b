package usecase

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/AvnerAdda/shekelsync-sub010/internal/domain"
)

// AnomalyConfig holds the thresholds for the three anomaly
// sub-detectors.
type AnomalyConfig struct {
	ExcludedCategories []string

	// Unusual-amount scoring.
	MinGroupSize int
	ZScoreFlag   float64
	ZScoreMedium float64
	ZScoreHigh   float64

	// Category spikes.
	SpikeLookbackMonths int
	MinSpikeMonths      int
	SpikePct            float64
	SpikeHighPct        float64

	// Overdue recurring payments.
	OverdueHighDays int
}

// DefaultAnomalyConfig returns the production thresholds.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		ExcludedCategories:  []string{domain.CategoryBank, domain.CategoryIncome},
		MinGroupSize:        5,
		ZScoreFlag:          2,
		ZScoreMedium:        2.5,
		ZScoreHigh:          3,
		SpikeLookbackMonths: 6,
		MinSpikeMonths:      3,
		SpikePct:            30,
		SpikeHighPct:        50,
		OverdueHighDays:     7,
	}
}

// AnomalyDetector flags irregular spending. The three sub-detectors run
// independently and their outputs are concatenated; a failure in one
// group never aborts the others.
type AnomalyDetector struct {
	cfg AnomalyConfig
	log zerolog.Logger
}

// NewAnomalyDetector creates a detector with the given config.
func NewAnomalyDetector(cfg AnomalyConfig, log zerolog.Logger) *AnomalyDetector {
	return &AnomalyDetector{cfg: cfg, log: log}
}

// Detect scores the trailing one month of activity ending at now.
// existing holds transaction keys already flagged in earlier runs;
// recurring supplies the persisted recurring-payment records checked
// for overdue charges. The second return value lists category groups
// that could not be scored and were left out of the results.
func (d *AnomalyDetector) Detect(txs []domain.Transaction, existing map[string]struct{}, recurring []domain.RecurringRecord, now time.Time) ([]domain.AnomalyCandidate, []string) {
	recentStart := now.AddDate(0, -1, 0)

	anomalies, skipped := d.detectUnusualAmounts(txs, existing, recentStart, now)
	anomalies = append(anomalies, d.detectCategorySpikes(txs, recentStart, now)...)
	anomalies = append(anomalies, d.detectMissingRecurring(recurring, recentStart, now)...)
	return anomalies, skipped
}

// detectUnusualAmounts flags recent expenses whose z-score against the
// category baseline exceeds the threshold. The baseline is built from
// transactions older than the trailing month so a fresh outlier cannot
// mask itself. Zero-variance groups cannot be scored; they are reported
// as skipped instead of producing NaN scores.
func (d *AnomalyDetector) detectUnusualAmounts(txs []domain.Transaction, existing map[string]struct{}, recentStart, now time.Time) ([]domain.AnomalyCandidate, []string) {
	expenses := d.filterExpenses(txs)
	groups := GroupTransactions(expenses, func(tx domain.Transaction) string {
		return tx.CategoryKey()
	})

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var anomalies []domain.AnomalyCandidate
	var skipped []string
	for _, category := range keys {
		group := groups[category]

		var baseline []float64
		var recent []domain.Transaction
		for _, tx := range group {
			if tx.Date.Before(recentStart) {
				baseline = append(baseline, math.Abs(tx.Amount))
			} else if !tx.Date.After(now) {
				recent = append(recent, tx)
			}
		}
		if len(baseline) < d.cfg.MinGroupSize {
			continue
		}
		m := mean(baseline)
		sd := stdDev(baseline)
		if sd == 0 {
			d.log.Debug().Str("category", category).Msg("skipping zero-variance category group")
			skipped = append(skipped, category)
			continue
		}

		for _, tx := range recent {
			if _, ok := existing[tx.Key()]; ok {
				continue
			}
			z := zScore(math.Abs(tx.Amount), m, sd)
			if math.Abs(z) <= d.cfg.ZScoreFlag {
				continue
			}
			tx := tx
			anomalies = append(anomalies, domain.AnomalyCandidate{
				Type:                domain.AnomalyUnusualAmount,
				Severity:            d.zScoreSeverity(z),
				DeviationPercentage: round2(safeRatio(math.Abs(tx.Amount)-m, m) * 100),
				Transaction:         &tx,
				Category:            category,
				ZScore:              round2(z),
				Description: fmt.Sprintf("%s charge of %.2f deviates from the %s average of %.2f",
					tx.Name, math.Abs(tx.Amount), category, m),
			})
		}
	}
	return anomalies, skipped
}

func (d *AnomalyDetector) zScoreSeverity(z float64) domain.Severity {
	abs := math.Abs(z)
	switch {
	case abs > d.cfg.ZScoreHigh:
		return domain.SeverityHigh
	case abs > d.cfg.ZScoreMedium:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// detectCategorySpikes compares each recent month's per-category spend
// against the trailing six-month average.
func (d *AnomalyDetector) detectCategorySpikes(txs []domain.Transaction, recentStart, now time.Time) []domain.AnomalyCandidate {
	lookbackStart := now.AddDate(0, -d.cfg.SpikeLookbackMonths, 0)

	totals := make(map[string]map[string]float64)
	for _, tx := range d.filterExpenses(txs) {
		if tx.Date.Before(lookbackStart) || tx.Date.After(now) {
			continue
		}
		category := tx.CategoryKey()
		if totals[category] == nil {
			totals[category] = make(map[string]float64)
		}
		totals[category][tx.MonthKey()] += math.Abs(tx.Amount)
	}

	categories := make([]string, 0, len(totals))
	for c := range totals {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var anomalies []domain.AnomalyCandidate
	for _, category := range categories {
		months := totals[category]
		if len(months) < d.cfg.MinSpikeMonths {
			continue
		}
		var sum float64
		for _, total := range months {
			sum += total
		}
		avgMonthly := sum / float64(len(months))
		if avgMonthly == 0 {
			continue
		}

		monthKeys := make([]string, 0, len(months))
		for m := range months {
			monthKeys = append(monthKeys, m)
		}
		sort.Strings(monthKeys)

		for _, monthKey := range monthKeys {
			if !monthOverlapsWindow(monthKey, recentStart, now) {
				continue
			}
			total := months[monthKey]
			deviation := (total - avgMonthly) / avgMonthly * 100
			if deviation <= d.cfg.SpikePct {
				continue
			}
			severity := domain.SeverityMedium
			if deviation > d.cfg.SpikeHighPct {
				severity = domain.SeverityHigh
			}
			anomalies = append(anomalies, domain.AnomalyCandidate{
				Type:                domain.AnomalyCategorySpike,
				Severity:            severity,
				DeviationPercentage: round2(deviation),
				Category:            category,
				Month:               monthKey,
				MonthTotal:          round2(total),
				AverageMonthly:      round2(avgMonthly),
				Description: fmt.Sprintf("%s spend of %.2f in %s exceeds the monthly average of %.2f",
					category, total, monthKey, avgMonthly),
			})
		}
	}
	return anomalies
}

// detectMissingRecurring emits an anomaly for every active recurring
// payment whose expected date has passed within the trailing month.
func (d *AnomalyDetector) detectMissingRecurring(recurring []domain.RecurringRecord, recentStart, now time.Time) []domain.AnomalyCandidate {
	var anomalies []domain.AnomalyCandidate
	for _, rec := range recurring {
		if rec.Status != domain.StatusActive {
			continue
		}
		daysOverdue := domain.DaysBetween(rec.NextExpectedDate, now)
		if daysOverdue <= 0 {
			continue
		}
		if rec.NextExpectedDate.Before(recentStart) {
			continue
		}
		severity := domain.SeverityMedium
		if daysOverdue > d.cfg.OverdueHighDays {
			severity = domain.SeverityHigh
		}
		anomalies = append(anomalies, domain.AnomalyCandidate{
			Type:            domain.AnomalyMissingRecurring,
			Severity:        severity,
			MerchantPattern: rec.MerchantPattern,
			DaysOverdue:     daysOverdue,
			Description: fmt.Sprintf("%s payment of %.2f is %d days overdue",
				rec.MerchantPattern, rec.AverageAmount, daysOverdue),
		})
	}
	return anomalies
}

func (d *AnomalyDetector) filterExpenses(txs []domain.Transaction) []domain.Transaction {
	var out []domain.Transaction
	for _, tx := range txs {
		if !tx.IsExpense() || tx.CategoryKey() == "" {
			continue
		}
		if d.isExcluded(tx) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func (d *AnomalyDetector) isExcluded(tx domain.Transaction) bool {
	for _, c := range d.cfg.ExcludedCategories {
		if tx.Category == c || tx.ParentCategory == c {
			return true
		}
	}
	return false
}

// monthOverlapsWindow reports whether any day of the month bucket falls
// inside [start, end].
func monthOverlapsWindow(monthKey string, start, end time.Time) bool {
	monthStart, err := time.Parse("2006-01", monthKey)
	if err != nil {
		return false
	}
	monthEnd := monthStart.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return !monthEnd.Before(start) && !monthStart.After(end)
}
