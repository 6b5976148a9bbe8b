package domain

import "time"

// Well-known category names from the scraper taxonomy.
const (
	CategoryBank   = "Bank"
	CategoryIncome = "Income"
)

// Transaction represents a single scraped bank or credit-card row.
// Amount is signed: negative values are expenses, positive are income.
type Transaction struct {
	Identifier     string    `json:"identifier"`
	Vendor         string    `json:"vendor"`
	Date           time.Time `json:"date"`
	Amount         float64   `json:"amount"`
	Name           string    `json:"name"`
	Category       string    `json:"category,omitempty"`
	ParentCategory string    `json:"parentCategory,omitempty"`
	AccountNumber  string    `json:"accountNumber,omitempty"`
}

// Key returns the unique identity of a transaction across scrapes.
// identifier alone is not unique because different vendors reuse IDs.
func (t Transaction) Key() string {
	return t.Identifier + "|" + t.Vendor
}

// IsExpense reports whether the transaction is a debit.
func (t Transaction) IsExpense() bool {
	return t.Amount < 0
}

// CategoryKey is the grouping key used for statistics: the parent
// category when present, otherwise the subcategory.
func (t Transaction) CategoryKey() string {
	if t.ParentCategory != "" {
		return t.ParentCategory
	}
	return t.Category
}

// MonthKey buckets the transaction into its calendar month, e.g. "2025-06".
func (t Transaction) MonthKey() string {
	return t.Date.Format("2006-01")
}

// PairKey builds an order-independent key for a pair of transactions.
// Confirmed-duplicate sets are keyed this way, so it must not depend on
// which side of the pair was stored first.
func PairKey(a, b Transaction) string {
	ka, kb := a.Key(), b.Key()
	if kb < ka {
		ka, kb = kb, ka
	}
	return ka + "::" + kb
}

// DaysBetween returns the number of calendar days from a to b,
// ignoring the time-of-day component. Negative when b precedes a.
func DaysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}
