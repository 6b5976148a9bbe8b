package usecase_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/AvnerAdda/shekelsync-sub010/internal/domain"
	"github.com/AvnerAdda/shekelsync-sub010/internal/usecase"
)

func newDuplicateDetector() *usecase.DuplicateDetector {
	return usecase.NewDuplicateDetector(usecase.DefaultDuplicateConfig(), zerolog.Nop())
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDuplicateDetector_CardRepayment(t *testing.T) {
	detector := newDuplicateDetector()
	window := usecase.DuplicateOptions{
		Start: date(2025, 5, 1),
		End:   date(2025, 6, 30),
	}

	t.Run("bank debit matching the monthly card total", func(t *testing.T) {
		txs := []domain.Transaction{
			{Identifier: "C1", Vendor: "visaCal", Date: date(2025, 5, 5), Amount: -750, Name: "Electronics", Category: "Shopping", AccountNumber: "1456"},
			{Identifier: "C2", Vendor: "visaCal", Date: date(2025, 5, 20), Amount: -450, Name: "Groceries", Category: "Food", AccountNumber: "1456"},
			{Identifier: "B1", Vendor: "leumi", Date: date(2025, 6, 2), Amount: -1205, Name: "ויזה כאל 1456", Category: "Bank"},
		}

		got := detector.Detect(txs, nil, window)

		if assert.Len(t, got, 1) {
			c := got[0]
			assert.Equal(t, domain.DuplicateCreditCardPayment, c.Type)
			assert.InDelta(t, 0.996, c.Confidence, 0.0005)
			assert.Equal(t, 5.0, c.AmountDifference)
			assert.Equal(t, "B1", c.Transactions[0].Identifier)
			assert.True(t, c.VendorNameMatch)
			if assert.NotNil(t, c.CardGroup) {
				assert.Equal(t, "2025-05", c.CardGroup.Month)
				assert.Equal(t, "visaCal", c.CardGroup.Vendor)
				assert.Equal(t, 1200.0, c.CardGroup.Total)
				assert.Len(t, c.CardGroup.Transactions, 2)
			}
		}
	})

	t.Run("tolerance boundary at two percent", func(t *testing.T) {
		base := []domain.Transaction{
			{Identifier: "C1", Vendor: "visaCal", Date: date(2025, 5, 5), Amount: -600, Name: "Electronics", Category: "Shopping", AccountNumber: "1456"},
			{Identifier: "C2", Vendor: "visaCal", Date: date(2025, 5, 20), Amount: -400, Name: "Groceries", Category: "Food", AccountNumber: "1456"},
		}

		within := append(base, domain.Transaction{
			Identifier: "B1", Vendor: "leumi", Date: date(2025, 6, 2), Amount: -1015, Name: "cal", Category: "Bank",
		})
		got := detector.Detect(within, nil, window)
		assert.Len(t, got, 1, "diff of 15 is within the 20 tolerance")

		beyond := append(base, domain.Transaction{
			Identifier: "B1", Vendor: "leumi", Date: date(2025, 6, 2), Amount: -1025, Name: "cal", Category: "Bank",
		})
		got = detector.Detect(beyond, nil, window)
		assert.Empty(t, got, "diff of 25 exceeds the 20 tolerance")
	})

	t.Run("small monthly totals are ignored", func(t *testing.T) {
		txs := []domain.Transaction{
			{Identifier: "C1", Vendor: "max", Date: date(2025, 5, 5), Amount: -80, Name: "Coffee", Category: "Food"},
			{Identifier: "B1", Vendor: "leumi", Date: date(2025, 6, 2), Amount: -80, Name: "מקס", Category: "Bank"},
		}
		assert.Empty(t, detector.Detect(txs, nil, window))
	})

	t.Run("bank debit in a non-adjacent month does not match", func(t *testing.T) {
		txs := []domain.Transaction{
			{Identifier: "C1", Vendor: "visaCal", Date: date(2025, 5, 5), Amount: -600, Name: "Electronics", Category: "Shopping"},
			{Identifier: "C2", Vendor: "visaCal", Date: date(2025, 5, 20), Amount: -600, Name: "Furniture", Category: "Shopping"},
			{Identifier: "B1", Vendor: "leumi", Date: date(2025, 5, 28), Amount: -1200, Name: "cal", Category: "Bank"},
		}
		for _, c := range detector.Detect(txs, nil, window) {
			assert.NotEqual(t, domain.DuplicateCreditCardPayment, c.Type,
				"repayment must fall in the month after the billing month")
		}
	})
}

func TestDuplicateDetector_SimilarAmounts(t *testing.T) {
	detector := newDuplicateDetector()
	window := usecase.DuplicateOptions{
		Start: date(2025, 6, 1),
		End:   date(2025, 6, 30),
	}

	t.Run("rent pair within the date window", func(t *testing.T) {
		txs := []domain.Transaction{
			{Identifier: "R1", Vendor: "leumi", Date: date(2025, 6, 3), Amount: -1000, Name: "שכירות יוני"},
			{Identifier: "R2", Vendor: "max", Date: date(2025, 6, 6), Amount: -1020, Name: "שכר דירה"},
		}

		got := detector.Detect(txs, nil, window)

		if assert.Len(t, got, 1) {
			c := got[0]
			assert.Equal(t, domain.DuplicateRent, c.Type)
			// amountSimilarity 0.98, timeProximity 1-3/7
			assert.InDelta(t, 0.98*0.7+(1-3.0/7.0)*0.3, c.Confidence, 0.0005)
			assert.Equal(t, 20.0, c.AmountDifference)
			assert.Equal(t, 3, c.DaysApart)
			assert.Len(t, c.Transactions, 2)
		}
	})

	t.Run("pairs more than seven days apart are skipped", func(t *testing.T) {
		txs := []domain.Transaction{
			{Identifier: "R1", Vendor: "leumi", Date: date(2025, 6, 3), Amount: -1000, Name: "העברה"},
			{Identifier: "R2", Vendor: "leumi", Date: date(2025, 6, 12), Amount: -1000, Name: "העברה"},
		}
		assert.Empty(t, detector.Detect(txs, nil, window))
	})

	t.Run("amounts at or below the large floor are skipped", func(t *testing.T) {
		txs := []domain.Transaction{
			{Identifier: "R1", Vendor: "leumi", Date: date(2025, 6, 3), Amount: -500, Name: "העברה"},
			{Identifier: "R2", Vendor: "leumi", Date: date(2025, 6, 4), Amount: -500, Name: "העברה"},
		}
		assert.Empty(t, detector.Detect(txs, nil, window))
	})

	t.Run("a transaction never matches itself", func(t *testing.T) {
		same := domain.Transaction{Identifier: "R1", Vendor: "leumi", Date: date(2025, 6, 3), Amount: -1000, Name: "העברה"}
		assert.Empty(t, detector.Detect([]domain.Transaction{same, same}, nil, window))
	})

	t.Run("unmatched names default to manual", func(t *testing.T) {
		txs := []domain.Transaction{
			{Identifier: "R1", Vendor: "leumi", Date: date(2025, 6, 3), Amount: -900, Name: "something"},
			{Identifier: "R2", Vendor: "max", Date: date(2025, 6, 4), Amount: -900, Name: "else"},
		}
		got := detector.Detect(txs, nil, window)
		if assert.Len(t, got, 1) {
			assert.Equal(t, domain.DuplicateManual, got[0].Type)
		}
	})
}

func TestDuplicateDetector_ConfirmedPairsExcluded(t *testing.T) {
	detector := newDuplicateDetector()
	window := usecase.DuplicateOptions{Start: date(2025, 6, 1), End: date(2025, 6, 30)}

	a := domain.Transaction{Identifier: "R1", Vendor: "leumi", Date: date(2025, 6, 3), Amount: -1000, Name: "שכירות"}
	b := domain.Transaction{Identifier: "R2", Vendor: "max", Date: date(2025, 6, 6), Amount: -1000, Name: "שכירות"}

	confirmed := map[string]struct{}{
		domain.PairKey(a, b): {},
	}
	assert.Empty(t, detector.Detect([]domain.Transaction{a, b}, confirmed, window),
		"confirmed duplicates must never be re-proposed")

	// Key is order independent.
	assert.Equal(t, domain.PairKey(a, b), domain.PairKey(b, a))
}

func TestDuplicateDetector_Deterministic(t *testing.T) {
	detector := newDuplicateDetector()
	window := usecase.DuplicateOptions{Start: date(2025, 5, 1), End: date(2025, 6, 30)}

	txs := []domain.Transaction{
		{Identifier: "C1", Vendor: "visaCal", Date: date(2025, 5, 5), Amount: -750, Name: "Electronics", Category: "Shopping"},
		{Identifier: "C2", Vendor: "visaCal", Date: date(2025, 5, 20), Amount: -450, Name: "Groceries", Category: "Food"},
		{Identifier: "B1", Vendor: "leumi", Date: date(2025, 6, 2), Amount: -1205, Name: "cal", Category: "Bank"},
		{Identifier: "R1", Vendor: "leumi", Date: date(2025, 6, 3), Amount: -1000, Name: "שכירות"},
		{Identifier: "R2", Vendor: "max", Date: date(2025, 6, 6), Amount: -1000, Name: "שכירות"},
	}

	first := detector.Detect(txs, nil, window)
	second := detector.Detect(txs, nil, window)
	assert.Equal(t, first, second)

	// Sorted by descending confidence, bounded to [0, 1].
	for i, c := range first {
		assert.GreaterOrEqual(t, c.Confidence, 0.0)
		assert.LessOrEqual(t, c.Confidence, 1.0)
		if i > 0 {
			assert.GreaterOrEqual(t, first[i-1].Confidence, c.Confidence)
		}
	}
}

func TestDuplicateDetector_MatchTypeFilter(t *testing.T) {
	detector := newDuplicateDetector()
	window := usecase.DuplicateOptions{
		Start:     date(2025, 6, 1),
		End:       date(2025, 6, 30),
		MatchType: domain.DuplicateRent,
	}

	txs := []domain.Transaction{
		{Identifier: "R1", Vendor: "leumi", Date: date(2025, 6, 3), Amount: -1000, Name: "שכירות"},
		{Identifier: "R2", Vendor: "max", Date: date(2025, 6, 6), Amount: -1000, Name: "שכירות"},
		{Identifier: "T1", Vendor: "leumi", Date: date(2025, 6, 10), Amount: -800, Name: "העברה"},
		{Identifier: "T2", Vendor: "max", Date: date(2025, 6, 11), Amount: -800, Name: "העברה"},
	}

	got := detector.Detect(txs, nil, window)
	if assert.Len(t, got, 1) {
		assert.Equal(t, domain.DuplicateRent, got[0].Type)
	}
}
