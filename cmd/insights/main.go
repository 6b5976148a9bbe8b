package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/AvnerAdda/shekelsync-sub010/internal/domain"
	"github.com/AvnerAdda/shekelsync-sub010/internal/gateway"
	"github.com/AvnerAdda/shekelsync-sub010/internal/logger"
	"github.com/AvnerAdda/shekelsync-sub010/internal/usecase"
)

func main() {
	// Define command-line flags
	transactionsFile := flag.String("transactions", "", "Path to the transactions CSV file (required)")
	confirmedFile := flag.String("confirmed", "", "Path to the confirmed-duplicates CSV file (optional)")
	startDateStr := flag.String("start", "", "Start date for analysis (YYYY-MM-DD) (required)")
	endDateStr := flag.String("end", "", "End date for analysis (YYYY-MM-DD) (required)")
	minDupConfidence := flag.Float64("min-confidence", 0.7, "Minimum confidence for duplicate candidates")
	minRecConfidence := flag.Float64("min-recurring-confidence", 0.5, "Minimum confidence for recurring patterns")
	minOccurrences := flag.Int("min-occurrences", 3, "Minimum occurrences for a recurring pattern")
	strategyName := flag.String("strategy", "interval", "Recurring detection strategy: interval or variance")
	matchType := flag.String("match-type", "", "Only report duplicates of this type (optional)")
	flag.Parse()

	log := logger.New()

	// Validate required flags
	if *transactionsFile == "" || *startDateStr == "" || *endDateStr == "" {
		fmt.Println("Error: flags -transactions, -start and -end are required.")
		flag.Usage()
		os.Exit(1)
	}

	// Parse dates
	startDate, err := time.Parse("2006-01-02", *startDateStr)
	if err != nil {
		log.Fatal().Err(err).Msg("error parsing start date")
	}
	endDate, err := time.Parse("2006-01-02", *endDateStr)
	if err != nil {
		log.Fatal().Err(err).Msg("error parsing end date")
	}

	var strategy usecase.RecurringStrategy
	switch *strategyName {
	case "interval":
		strategy = usecase.IntervalClassificationStrategy{}
	case "variance":
		strategy = usecase.SimpleVarianceStrategy{}
	default:
		log.Fatal().Str("strategy", *strategyName).Msg("unknown recurring strategy")
	}

	// --- Dependency Injection (Wiring the application) ---
	// 1. Create the repository (the outermost layer)
	csvRepo := gateway.NewCSVTransactionRepository()

	// 2. Create the usecase and inject the repository (the core logic layer)
	analysisUseCase := usecase.NewAnalysisUseCase(csvRepo, log)

	// --- Execute the Usecase ---
	report, err := analysisUseCase.Analyze(context.Background(), usecase.AnalysisRequest{
		TransactionsPath:       *transactionsFile,
		ConfirmedPath:          *confirmedFile,
		Start:                  startDate,
		End:                    endDate,
		MinDuplicateConfidence: *minDupConfidence,
		DuplicateMatchType:     domain.DuplicateType(*matchType),
		MinRecurringConfidence: *minRecConfidence,
		MinOccurrences:         *minOccurrences,
		RecurringStrategy:      strategy,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("analysis failed")
	}

	// --- Present the Output ---
	output, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to generate JSON report")
	}

	fmt.Println(string(output))
}
