package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AvnerAdda/shekelsync-sub010/internal/domain"
)

// AnalysisRequest describes one detection run.
type AnalysisRequest struct {
	TransactionsPath string
	// ConfirmedPath is optional; empty means no confirmed-duplicate set.
	ConfirmedPath string

	Start time.Time
	End   time.Time
	// Now anchors the trailing sub-windows. Zero means End.
	Now time.Time

	MinDuplicateConfidence float64
	DuplicateMatchType     domain.DuplicateType
	MinRecurringConfidence float64
	MinOccurrences         int
	RecurringStrategy      RecurringStrategy

	// Collaborator-owned data, passed through to the detectors.
	ExistingAnomalyKeys map[string]struct{}
	RecurringRecords    []domain.RecurringRecord
	StatusLookup        RecurringStatusLookup
}

// AnalysisUseCase orchestrates the detection pass: fetch the
// transaction window through the repository, run the three detectors,
// and assemble a single report.
type AnalysisUseCase struct {
	repo TransactionRepository

	duplicates *DuplicateDetector
	anomalies  *AnomalyDetector
	recurring  *RecurringDetector
	log        zerolog.Logger
}

// NewAnalysisUseCase creates a usecase with default detector configs.
func NewAnalysisUseCase(repo TransactionRepository, log zerolog.Logger) *AnalysisUseCase {
	norm := NewMerchantNormalizer(DefaultNormalizerConfig())
	return &AnalysisUseCase{
		repo:       repo,
		duplicates: NewDuplicateDetector(DefaultDuplicateConfig(), log),
		anomalies:  NewAnomalyDetector(DefaultAnomalyConfig(), log),
		recurring:  NewRecurringDetector(DefaultRecurringConfig(), norm, log),
		log:        log,
	}
}

// Analyze performs the full detection run.
func (uc *AnalysisUseCase) Analyze(ctx context.Context, req AnalysisRequest) (*domain.AnalysisReport, error) {
	transactions, err := uc.repo.GetTransactions(ctx, req.TransactionsPath)
	if err != nil {
		return nil, fmt.Errorf("could not get transactions: %w", err)
	}

	confirmed := map[string]struct{}{}
	if req.ConfirmedPath != "" {
		confirmed, err = uc.repo.GetConfirmedPairs(ctx, req.ConfirmedPath)
		if err != nil {
			return nil, fmt.Errorf("could not get confirmed pairs: %w", err)
		}
	}

	now := req.Now
	if now.IsZero() {
		now = req.End
	}

	// The duplicate detector windows internally (rule A needs a
	// one-month lookahead past End); the others get the filtered list.
	windowed := filterByDate(transactions, req.Start, req.End)

	anomalies, skipped := uc.anomalies.Detect(windowed, req.ExistingAnomalyKeys, req.RecurringRecords, now)

	report := &domain.AnalysisReport{
		RunID:                 uuid.NewString(),
		WindowStart:           req.Start.Format(time.DateOnly),
		WindowEnd:             req.End.Format(time.DateOnly),
		TransactionsProcessed: len(windowed),
		Duplicates: uc.duplicates.Detect(transactions, confirmed, DuplicateOptions{
			Start:         req.Start,
			End:           req.End,
			MinConfidence: req.MinDuplicateConfidence,
			MatchType:     req.DuplicateMatchType,
		}),
		Anomalies: anomalies,
		Recurring: uc.recurring.Detect(windowed, RecurringOptions{
			MinOccurrences: req.MinOccurrences,
			MinConfidence:  req.MinRecurringConfidence,
			Strategy:       req.RecurringStrategy,
		}, req.StatusLookup),
		SkippedGroups: skipped,
	}

	uc.log.Info().
		Str("run_id", report.RunID).
		Int("transactions", report.TransactionsProcessed).
		Int("duplicates", len(report.Duplicates)).
		Int("anomalies", len(report.Anomalies)).
		Int("recurring", len(report.Recurring)).
		Int("skipped_groups", len(report.SkippedGroups)).
		Msg("analysis run complete")

	return report, nil
}

func filterByDate(txs []domain.Transaction, start, end time.Time) []domain.Transaction {
	var filtered []domain.Transaction
	for _, tx := range txs {
		if withinWindow(tx.Date, start, end) {
			filtered = append(filtered, tx)
		}
	}
	return filtered
}
