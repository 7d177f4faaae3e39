// Package memory provides an in-memory LedgerStore used by tests and
// single-process development runs.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/uaeinnovatehub/kic-ledger/internal/interfaces"
	"github.com/uaeinnovatehub/kic-ledger/internal/models"
)

type accountRecord struct {
	kind      models.AccountKind
	balance   int64
	createdAt time.Time
}

// Store keeps accounts, log entries and committed transfers in process
// memory. It is safe for concurrent use; every method takes the store mutex,
// so each call is one consistent snapshot or mutation.
type Store struct {
	mu          sync.Mutex
	accounts    map[string]*accountRecord
	entries     []models.LogEntry
	transfers   map[string]models.Transfer // keyed by idempotency key
	nextEntryID int64
}

// NewStore creates an empty in-memory ledger store.
func NewStore() *Store {
	return &Store{
		accounts:  make(map[string]*accountRecord),
		transfers: make(map[string]models.Transfer),
	}
}

// CreateAccount inserts a new account with a zero balance.
func (s *Store) CreateAccount(ctx context.Context, accountID string, kind models.AccountKind, createdAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[accountID]; ok {
		return fmt.Errorf("%w: %s", interfaces.ErrAccountExists, accountID)
	}
	s.accounts[accountID] = &accountRecord{kind: kind, createdAt: createdAt}
	return nil
}

// GetBalance returns the account's current balance.
func (s *Store) GetBalance(ctx context.Context, accountID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, accountID)
	}
	return acct.balance, nil
}

// ApplyTransfer commits both balance changes, both cross-linked entries and
// the transfer intent under one lock acquisition, so no caller can observe a
// half-applied transfer.
func (s *Store) ApplyTransfer(ctx context.Context, transfer models.Transfer, sent, received models.LogEntry) (models.TransferResult, error) {
	if err := ctx.Err(); err != nil {
		return models.TransferResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.accounts[sent.AccountID]
	if !ok {
		return models.TransferResult{}, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, sent.AccountID)
	}
	to, ok := s.accounts[received.AccountID]
	if !ok {
		return models.TransferResult{}, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, received.AccountID)
	}
	if from.balance+sent.Amount < 0 {
		return models.TransferResult{}, fmt.Errorf("%w: account %s", interfaces.ErrInsufficientFunds, sent.AccountID)
	}

	sent.EntryID = s.nextID()
	received.EntryID = s.nextID()
	sentID, receivedID := sent.EntryID, received.EntryID
	sent.RelatedEntryID = &receivedID
	received.RelatedEntryID = &sentID

	from.balance += sent.Amount
	to.balance += received.Amount
	s.entries = append(s.entries, sent, received)
	if transfer.IdempotencyKey != "" {
		s.transfers[transfer.IdempotencyKey] = transfer
	}

	return models.TransferResult{
		FromBalance:     from.balance,
		ToBalance:       to.balance,
		SentEntryID:     sent.EntryID,
		ReceivedEntryID: received.EntryID,
	}, nil
}

// ApplyAdjustment commits one balance change and one entry.
func (s *Store) ApplyAdjustment(ctx context.Context, entry models.LogEntry) (models.AdjustResult, error) {
	if err := ctx.Err(); err != nil {
		return models.AdjustResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[entry.AccountID]
	if !ok {
		return models.AdjustResult{}, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, entry.AccountID)
	}
	if acct.balance+entry.Amount < 0 {
		return models.AdjustResult{}, fmt.Errorf("%w: account %s", interfaces.ErrInsufficientFunds, entry.AccountID)
	}

	entry.EntryID = s.nextID()
	entry.RelatedEntryID = nil
	acct.balance += entry.Amount
	s.entries = append(s.entries, entry)

	return models.AdjustResult{Balance: acct.balance, EntryID: entry.EntryID}, nil
}

// EntriesForAccount returns the account's entries newest first. Entries are
// appended in id order with non-decreasing timestamps, so walking the slice
// backwards yields created_at descending.
func (s *Store) EntriesForAccount(ctx context.Context, accountID string, limit int) ([]models.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.LogEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].AccountID != accountID {
			continue
		}
		result = append(result, s.entries[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// TransferExists reports whether an idempotency key has already committed.
func (s *Store) TransferExists(ctx context.Context, idempotencyKey string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.transfers[idempotencyKey]
	return exists, nil
}

func (s *Store) nextID() int64 {
	s.nextEntryID++
	return s.nextEntryID
}

var _ interfaces.LedgerStore = (*Store)(nil)
