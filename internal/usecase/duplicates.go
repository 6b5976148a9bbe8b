package usecase

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/AvnerAdda/shekelsync-sub010/internal/domain"
)

// DuplicateConfig holds the tunable thresholds and keyword data for
// duplicate detection. Defaults mirror the production heuristics; tests
// inject synthetic vendor and keyword sets.
type DuplicateConfig struct {
	// CardVendors maps a known credit-card vendor to the keywords that
	// identify it inside a bank repayment description.
	CardVendors map[string][]string
	// ExcludedCategories are never treated as card charges.
	ExcludedCategories []string
	// BankCategory marks transactions coming from a bank account.
	BankCategory string

	// Card-repayment matching (rule A).
	MinMonthlyTotal   float64
	TotalTolerancePct float64
	MinTolerance      float64

	// Similar-amount matching (rule B).
	LargeAmountFloor float64
	PairWindowDays   int
	PairTolerancePct float64
	MinPairTolerance float64
	// TypeKeywords classify a pair by substring match on either name.
	TypeKeywords map[domain.DuplicateType][]string
}

// DefaultDuplicateConfig returns the production vendor map and
// thresholds. Vendor keywords cover the Israeli card issuers in both
// spellings.
func DefaultDuplicateConfig() DuplicateConfig {
	return DuplicateConfig{
		CardVendors: map[string][]string{
			"max":      {"מקס", "max"},
			"visaCal":  {"כ.א.ל", "cal", "ויזה כאל", "visa cal"},
			"isracard": {"ישראכרט", "isracard"},
			"amex":     {"אמקס", "אמריקן אקספרס", "amex", "american express"},
			"leumi":    {"לאומי כרט", "leumi card"},
		},
		ExcludedCategories: []string{domain.CategoryBank, domain.CategoryIncome},
		BankCategory:       domain.CategoryBank,

		MinMonthlyTotal:   100,
		TotalTolerancePct: 0.02,
		MinTolerance:      10,

		LargeAmountFloor: 500,
		PairWindowDays:   7,
		PairTolerancePct: 0.05,
		MinPairTolerance: 20,
		TypeKeywords: map[domain.DuplicateType][]string{
			domain.DuplicateRent:       {"שכירות", "שכר דירה", "דירה", "rent"},
			domain.DuplicateInvestment: {"השקעה", "חיסכון", "פיקדון", "investment"},
			domain.DuplicateLoan:       {"הלוואה", "משכנתא", "loan"},
			domain.DuplicateTransfer:   {"העברה", "העברת", "transfer"},
		},
	}
}

// DuplicateOptions are the per-call knobs.
type DuplicateOptions struct {
	// Start and End bound the detection window. Rule A looks one
	// calendar month past End for the matching bank repayment.
	Start time.Time
	End   time.Time
	// MinConfidence drops weaker candidates. Zero means the default 0.7.
	MinConfidence float64
	// MatchType, when set, keeps only candidates of that type.
	MatchType domain.DuplicateType
}

const defaultDuplicateMinConfidence = 0.7

// DuplicateDetector proposes probable duplicate transactions. It never
// re-proposes a pair present in the caller-supplied confirmed set.
type DuplicateDetector struct {
	cfg DuplicateConfig
	log zerolog.Logger
}

// NewDuplicateDetector creates a detector with the given config.
func NewDuplicateDetector(cfg DuplicateConfig, log zerolog.Logger) *DuplicateDetector {
	return &DuplicateDetector{cfg: cfg, log: log}
}

// Detect runs both matching rules over the transaction list and returns
// candidates sorted by descending confidence. Pure with respect to its
// inputs.
func (d *DuplicateDetector) Detect(txs []domain.Transaction, confirmed map[string]struct{}, opts DuplicateOptions) []domain.DuplicateCandidate {
	if opts.MinConfidence == 0 {
		opts.MinConfidence = defaultDuplicateMinConfidence
	}

	candidates := d.matchCardRepayments(txs, confirmed, opts)
	candidates = append(candidates, d.matchSimilarAmounts(txs, confirmed, opts)...)

	if opts.MatchType != "" {
		filtered := candidates[:0]
		for _, c := range candidates {
			if c.Type == opts.MatchType {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		di, dj := candidates[i].Transactions[0].Date, candidates[j].Transactions[0].Date
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return candidates[i].Key() < candidates[j].Key()
	})
	return candidates
}

// matchCardRepayments implements rule A: a bank debit in the calendar
// month following a card's billing month, within tolerance of that
// month's total card spend.
func (d *DuplicateDetector) matchCardRepayments(txs []domain.Transaction, confirmed map[string]struct{}, opts DuplicateOptions) []domain.DuplicateCandidate {
	cardTxs := make([]domain.Transaction, 0)
	for _, tx := range txs {
		if !tx.IsExpense() || !d.isCardVendor(tx.Vendor) || d.isExcludedCategory(tx) {
			continue
		}
		if !withinWindow(tx.Date, opts.Start, opts.End) {
			continue
		}
		cardTxs = append(cardTxs, tx)
	}

	groups := GroupTransactions(cardTxs, func(tx domain.Transaction) string {
		return tx.MonthKey() + "|" + tx.Vendor + "|" + tx.AccountNumber
	})

	groupKeys := make([]string, 0, len(groups))
	for k := range groups {
		groupKeys = append(groupKeys, k)
	}
	sort.Strings(groupKeys)

	var candidates []domain.DuplicateCandidate
	for _, key := range groupKeys {
		group := groups[key]
		monthKey := group[0].MonthKey()

		var monthlyTotal float64
		for _, tx := range group {
			monthlyTotal += math.Abs(tx.Amount)
		}
		if monthlyTotal <= d.cfg.MinMonthlyTotal {
			continue
		}
		tolerance := math.Max(monthlyTotal*d.cfg.TotalTolerancePct, d.cfg.MinTolerance)

		month, err := time.Parse("2006-01", monthKey)
		if err != nil {
			d.log.Warn().Str("group", key).Msg("skipping card group with unparseable month")
			continue
		}
		repaymentMonth := month.AddDate(0, 1, 0).Format("2006-01")

		cardGroup := &domain.CardGroup{
			Month:         monthKey,
			Vendor:        group[0].Vendor,
			AccountNumber: group[0].AccountNumber,
			Total:         round2(monthlyTotal),
			Transactions:  group,
		}

		for _, bankTx := range txs {
			if bankTx.Category != d.cfg.BankCategory || !bankTx.IsExpense() {
				continue
			}
			if bankTx.MonthKey() != repaymentMonth {
				continue
			}
			amountDiff := math.Abs(math.Abs(bankTx.Amount) - monthlyTotal)
			if amountDiff > tolerance {
				continue
			}
			confidence := math.Max(0, 1-safeRatio(amountDiff, monthlyTotal))
			if confidence < opts.MinConfidence {
				continue
			}

			candidate := domain.DuplicateCandidate{
				Type:             domain.DuplicateCreditCardPayment,
				Confidence:       round3(confidence),
				Transactions:     []domain.Transaction{bankTx},
				CardGroup:        cardGroup,
				AmountDifference: round2(amountDiff),
				VendorNameMatch:  d.nameMatchesVendor(bankTx, cardGroup),
				Description: fmt.Sprintf("Bank debit of %.2f matches %s card total of %.2f for %s",
					math.Abs(bankTx.Amount), cardGroup.Vendor, monthlyTotal, monthKey),
			}
			if _, ok := confirmed[candidate.Key()]; ok {
				continue
			}
			candidates = append(candidates, candidate)
		}
	}
	return candidates
}

// matchSimilarAmounts implements rule B: pairs of large debits with
// near-identical amounts within a short date window. Transactions are
// scanned sorted by date with an early break once the window is
// exceeded, so the scan stays near-linear.
func (d *DuplicateDetector) matchSimilarAmounts(txs []domain.Transaction, confirmed map[string]struct{}, opts DuplicateOptions) []domain.DuplicateCandidate {
	large := make([]domain.Transaction, 0)
	for _, tx := range txs {
		if tx.IsExpense() && math.Abs(tx.Amount) > d.cfg.LargeAmountFloor && withinWindow(tx.Date, opts.Start, opts.End) {
			large = append(large, tx)
		}
	}
	sort.SliceStable(large, func(i, j int) bool {
		if !large[i].Date.Equal(large[j].Date) {
			return large[i].Date.Before(large[j].Date)
		}
		return large[i].Key() < large[j].Key()
	})

	window := d.cfg.PairWindowDays
	var candidates []domain.DuplicateCandidate
	for i := 0; i < len(large); i++ {
		for j := i + 1; j < len(large); j++ {
			daysApart := domain.DaysBetween(large[i].Date, large[j].Date)
			if daysApart > window {
				break
			}
			if large[i].Key() == large[j].Key() {
				continue
			}

			amountI := math.Abs(large[i].Amount)
			amountJ := math.Abs(large[j].Amount)
			threshold := math.Max(amountI*d.cfg.PairTolerancePct, d.cfg.MinPairTolerance)
			amountDiff := math.Abs(amountI - amountJ)
			if amountDiff >= threshold {
				continue
			}

			amountSimilarity := 1 - safeRatio(amountDiff, amountI)
			timeProximity := 1 - float64(daysApart)/float64(window)
			confidence := amountSimilarity*0.7 + timeProximity*0.3
			if confidence < opts.MinConfidence {
				continue
			}
			if _, ok := confirmed[domain.PairKey(large[i], large[j])]; ok {
				continue
			}

			candidates = append(candidates, domain.DuplicateCandidate{
				Type:             d.inferPairType(large[i].Name, large[j].Name),
				Confidence:       round3(confidence),
				Transactions:     []domain.Transaction{large[i], large[j]},
				AmountDifference: round2(amountDiff),
				DaysApart:        daysApart,
				Description: fmt.Sprintf("Similar amounts %.2f and %.2f charged %d days apart",
					amountI, amountJ, daysApart),
			})
		}
	}
	return candidates
}

// inferPairType matches both names against the configured keyword sets.
// Best effort: the first matching set wins, "manual" otherwise.
func (d *DuplicateDetector) inferPairType(nameA, nameB string) domain.DuplicateType {
	combined := strings.ToLower(nameA + " " + nameB)
	ordered := []domain.DuplicateType{
		domain.DuplicateRent,
		domain.DuplicateInvestment,
		domain.DuplicateLoan,
		domain.DuplicateTransfer,
	}
	for _, typ := range ordered {
		for _, kw := range d.cfg.TypeKeywords[typ] {
			if strings.Contains(combined, strings.ToLower(kw)) {
				return typ
			}
		}
	}
	return domain.DuplicateManual
}

func (d *DuplicateDetector) isCardVendor(vendor string) bool {
	_, ok := d.cfg.CardVendors[vendor]
	return ok
}

func (d *DuplicateDetector) isExcludedCategory(tx domain.Transaction) bool {
	for _, c := range d.cfg.ExcludedCategories {
		if tx.Category == c || tx.ParentCategory == c {
			return true
		}
	}
	return false
}

// nameMatchesVendor annotates candidates whose bank description carries
// the card vendor's keywords or the card account's last four digits.
func (d *DuplicateDetector) nameMatchesVendor(bankTx domain.Transaction, group *domain.CardGroup) bool {
	name := strings.ToLower(bankTx.Name)
	if last4 := accountLast4(group.AccountNumber); last4 != "" && strings.Contains(name, last4) {
		return true
	}
	for _, kw := range d.cfg.CardVendors[group.Vendor] {
		if strings.Contains(name, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func accountLast4(accountNumber string) string {
	if len(accountNumber) < 4 {
		return ""
	}
	return accountNumber[len(accountNumber)-4:]
}

func withinWindow(date, start, end time.Time) bool {
	if !start.IsZero() && date.Before(start) {
		return false
	}
	if !end.IsZero() && date.After(end) {
		return false
	}
	return true
}
