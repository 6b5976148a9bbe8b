package usecase

import (
	"context"

	"github.com/AvnerAdda/shekelsync-sub010/internal/domain"
)

// TransactionRepository defines the interface for fetching scraped
// transaction data and the user's confirmed-duplicate exclusion set.
// The usecase layer depends on this interface, not on a concrete
// implementation.
//
//go:generate mockgen -destination=mocks/mock_repository.go -source=interface.go TransactionRepository
type TransactionRepository interface {
	GetTransactions(ctx context.Context, path string) ([]domain.Transaction, error)
	GetConfirmedPairs(ctx context.Context, path string) (map[string]struct{}, error)
}

// RecurringStatusLookup resolves the user's decision for a recurring
// pattern. Owned by an external collaborator; a nil lookup means no
// status data is available.
type RecurringStatusLookup func(merchantPattern string, frequency domain.Frequency) domain.RecurringStatus
