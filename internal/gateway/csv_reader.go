package gateway

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/AvnerAdda/shekelsync-sub010/internal/domain"
)

// CSVTransactionRepository implements the TransactionRepository
// interface for exported transaction CSV files.
type CSVTransactionRepository struct{}

// NewCSVTransactionRepository creates a new repository instance.
func NewCSVTransactionRepository() *CSVTransactionRepository {
	return &CSVTransactionRepository{}
}

// GetTransactions reads and parses a transactions export.
// Expected columns:
// identifier,vendor,date,amount,name,category,parent_category,account_number
func (r *CSVTransactionRepository) GetTransactions(ctx context.Context, path string) ([]domain.Transaction, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transactions file %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}

	var transactions []domain.Transaction
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading record from %s: %w", path, err)
		}
		if len(record) < 8 {
			return nil, fmt.Errorf("record in %s has %d columns, want 8", path, len(record))
		}

		date, err := time.Parse("2006-01-02", record[2])
		if err != nil {
			return nil, fmt.Errorf("could not parse date '%s': %w", record[2], err)
		}

		amount, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, fmt.Errorf("could not parse amount '%s': %w", record[3], err)
		}

		tx := domain.Transaction{
			Identifier:     record[0],
			Vendor:         record[1],
			Date:           date,
			Amount:         amount,
			Name:           record[4],
			Category:       record[5],
			ParentCategory: record[6],
			AccountNumber:  record[7],
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

// GetConfirmedPairs reads the user's confirmed-duplicate keys, one per
// row under a single-column header.
func (r *CSVTransactionRepository) GetConfirmedPairs(ctx context.Context, path string) (map[string]struct{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open confirmed pairs file %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}

	pairs := make(map[string]struct{})
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading record from %s: %w", path, err)
		}
		if len(record) == 0 || record[0] == "" {
			continue
		}
		pairs[record[0]] = struct{}{}
	}
	return pairs, nil
}
