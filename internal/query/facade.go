// Package query is the read-only facade over the ledger store for dashboard
// and wallet views. It never takes engine locks; every call is one consistent
// store read.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/uaeinnovatehub/kic-ledger/internal/interfaces"
	"github.com/uaeinnovatehub/kic-ledger/internal/models"
)

// ErrAccountNotFound mirrors the storage sentinel for callers that only
// import the facade.
var ErrAccountNotFound = interfaces.ErrAccountNotFound

// Facade exposes balance and history lookups.
type Facade struct {
	store interfaces.LedgerStore
}

// NewFacade creates a read facade over the given store.
func NewFacade(store interfaces.LedgerStore) *Facade {
	return &Facade{store: store}
}

// BalanceOf returns the account's current balance.
func (f *Facade) BalanceOf(ctx context.Context, accountID string) (int64, error) {
	return f.store.GetBalance(ctx, accountID)
}

// HistoryOf returns up to limit of the account's newest log entries,
// descending by creation time. A limit <= 0 returns the full history.
func (f *Facade) HistoryOf(ctx context.Context, accountID string, limit int) ([]models.LogEntry, error) {
	if _, err := f.store.GetBalance(ctx, accountID); err != nil {
		return nil, err
	}
	return f.store.EntriesForAccount(ctx, accountID, limit)
}

// TotalEarned returns the sum of the account's positive entry amounts.
func (f *Facade) TotalEarned(ctx context.Context, accountID string) (int64, error) {
	earned, _, err := f.totals(ctx, accountID)
	return earned, err
}

// TotalSpent returns the absolute sum of the account's negative entry
// amounts.
func (f *Facade) TotalSpent(ctx context.Context, accountID string) (int64, error) {
	_, spent, err := f.totals(ctx, accountID)
	return spent, err
}

// Summary is the wallet header: balance plus lifetime earned/spent totals.
type Summary struct {
	AccountID   string `json:"account_id"`
	Balance     int64  `json:"balance"`
	TotalEarned int64  `json:"total_earned"`
	TotalSpent  int64  `json:"total_spent"`
}

// SummaryOf returns the account's wallet summary in one call.
func (f *Facade) SummaryOf(ctx context.Context, accountID string) (Summary, error) {
	balance, err := f.store.GetBalance(ctx, accountID)
	if err != nil {
		return Summary{}, err
	}
	earned, spent, err := f.totals(ctx, accountID)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		AccountID:   accountID,
		Balance:     balance,
		TotalEarned: earned,
		TotalSpent:  spent,
	}, nil
}

func (f *Facade) totals(ctx context.Context, accountID string) (earned, spent int64, err error) {
	if _, err := f.store.GetBalance(ctx, accountID); err != nil {
		if errors.Is(err, interfaces.ErrAccountNotFound) {
			return 0, 0, err
		}
		return 0, 0, fmt.Errorf("totals of %s: %w", accountID, err)
	}
	entries, err := f.store.EntriesForAccount(ctx, accountID, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("totals of %s: %w", accountID, err)
	}
	for _, entry := range entries {
		if entry.Amount > 0 {
			earned += entry.Amount
		} else {
			spent -= entry.Amount
		}
	}
	return earned, spent, nil
}
