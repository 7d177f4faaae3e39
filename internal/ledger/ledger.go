// Package ledger implements the KIC ledger engine: the sole writer of account
// balances and the transaction log. Every mutation runs inside a per-account
// critical section, so concurrent transfers observe either the fully applied
// or fully unapplied state of one another, never a partial one.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uaeinnovatehub/kic-ledger/internal/interfaces"
	"github.com/uaeinnovatehub/kic-ledger/internal/models"
	"github.com/uaeinnovatehub/kic-ledger/internal/models/events"
)

// TransferRequest is a request to move KIC between two accounts. The
// idempotency key is optional; when set, a key that already committed is
// reported as a replay instead of settling twice.
type TransferRequest struct {
	FromAccount    string
	ToAccount      string
	Amount         int64
	Description    string
	IdempotencyKey string
}

// Ledger enforces the transfer protocol over a storage collaborator. It owns
// a mutex per account; mutations lock the involved accounts in lexical id
// order so two transfers that cross each other cannot deadlock.
type Ledger struct {
	store  interfaces.LedgerStore
	events interfaces.EventPublisher

	mapMu sync.Mutex
	muMap map[string]*sync.Mutex
}

// NewLedger creates an engine over the given store. The publisher may be nil;
// events are then skipped.
func NewLedger(store interfaces.LedgerStore, publisher interfaces.EventPublisher) *Ledger {
	return &Ledger{
		store:  store,
		events: publisher,
		muMap:  make(map[string]*sync.Mutex),
	}
}

func (l *Ledger) accountLock(accountID string) *sync.Mutex {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	mu, ok := l.muMap[accountID]
	if !ok {
		mu = &sync.Mutex{}
		l.muMap[accountID] = mu
	}
	return mu
}

// OpenAccount creates an account seeded with the opening balance for its
// kind. The opening balance is committed as an adjustment entry so that the
// balance equals the log sum from the first moment.
func (l *Ledger) OpenAccount(ctx context.Context, accountID string, kind models.AccountKind) (models.Account, error) {
	if accountID == "" {
		return models.Account{}, fmt.Errorf("%w: empty account id", ErrInvalidTransfer)
	}
	if !kind.Valid() {
		return models.Account{}, fmt.Errorf("%w: unknown account kind %q", ErrInvalidTransfer, kind)
	}

	mu := l.accountLock(accountID)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now().UTC()
	if err := l.store.CreateAccount(ctx, accountID, kind, now); err != nil {
		if errors.Is(err, interfaces.ErrAccountExists) {
			return models.Account{}, fmt.Errorf("%w: %q", ErrAccountExists, accountID)
		}
		return models.Account{}, storageErr("create account "+accountID, err)
	}

	account := models.Account{ID: accountID, Kind: kind, CreatedAt: now}
	opening := kind.OpeningBalance()
	if opening == 0 {
		return account, nil
	}

	res, err := l.store.ApplyAdjustment(ctx, models.LogEntry{
		AccountID:   accountID,
		Kind:        models.EntryAdjustment,
		Amount:      opening,
		Description: "opening balance",
		CreatedAt:   now,
	})
	if err != nil {
		return models.Account{}, storageErr("seed opening balance for "+accountID, err)
	}
	account.Balance = res.Balance
	return account, nil
}

// Transfer atomically debits the sender and credits the receiver, appending a
// cross-linked sent/received entry pair. Either all four effects commit or
// none do. Validation order: positive amount, distinct accounts, both
// accounts exist, sufficient balance.
func (l *Ledger) Transfer(ctx context.Context, req TransferRequest) (models.TransferResult, error) {
	var zero models.TransferResult

	if req.Amount <= 0 {
		return zero, fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidTransfer, req.Amount)
	}
	if req.FromAccount == "" || req.ToAccount == "" {
		return zero, fmt.Errorf("%w: empty account id", ErrInvalidTransfer)
	}
	if req.FromAccount == req.ToAccount {
		return zero, fmt.Errorf("%w: cannot transfer from %q to itself", ErrInvalidTransfer, req.FromAccount)
	}

	// Lock in lexical order to avoid deadlocks between crossing transfers.
	debitMu := l.accountLock(req.FromAccount)
	creditMu := l.accountLock(req.ToAccount)
	if req.FromAccount < req.ToAccount {
		debitMu.Lock()
		creditMu.Lock()
	} else {
		creditMu.Lock()
		debitMu.Lock()
	}
	defer debitMu.Unlock()
	defer creditMu.Unlock()

	if req.IdempotencyKey != "" {
		exists, err := l.store.TransferExists(ctx, req.IdempotencyKey)
		if err != nil {
			return zero, storageErr("check idempotency key", err)
		}
		if exists {
			return l.replayedResult(ctx, req)
		}
	}

	fromBalance, err := l.store.GetBalance(ctx, req.FromAccount)
	if err != nil {
		if errors.Is(err, interfaces.ErrAccountNotFound) {
			return zero, fmt.Errorf("%w: unknown account %q", ErrInvalidTransfer, req.FromAccount)
		}
		return zero, storageErr("read balance of "+req.FromAccount, err)
	}
	if _, err := l.store.GetBalance(ctx, req.ToAccount); err != nil {
		if errors.Is(err, interfaces.ErrAccountNotFound) {
			return zero, fmt.Errorf("%w: unknown account %q", ErrInvalidTransfer, req.ToAccount)
		}
		return zero, storageErr("read balance of "+req.ToAccount, err)
	}
	if fromBalance < req.Amount {
		return zero, fmt.Errorf("%w: account %q has %d KIC, transfer needs %d",
			ErrInsufficientFunds, req.FromAccount, fromBalance, req.Amount)
	}

	now := time.Now().UTC()
	transfer := models.Transfer{
		ID:             uuid.NewString(),
		IdempotencyKey: req.IdempotencyKey,
		FromAccount:    req.FromAccount,
		ToAccount:      req.ToAccount,
		Amount:         req.Amount,
		Description:    req.Description,
		CreatedAt:      now,
	}
	sent := models.LogEntry{
		AccountID:   req.FromAccount,
		Kind:        models.EntrySent,
		Amount:      -req.Amount,
		Description: req.Description,
		CreatedAt:   now,
	}
	received := models.LogEntry{
		AccountID:   req.ToAccount,
		Kind:        models.EntryReceived,
		Amount:      req.Amount,
		Description: req.Description,
		CreatedAt:   now,
	}

	res, err := l.store.ApplyTransfer(ctx, transfer, sent, received)
	if err != nil {
		if errors.Is(err, interfaces.ErrInsufficientFunds) {
			return zero, fmt.Errorf("%w: account %q, transfer of %d", ErrInsufficientFunds, req.FromAccount, req.Amount)
		}
		return zero, storageErr(fmt.Sprintf("commit transfer %s -> %s", req.FromAccount, req.ToAccount), err)
	}

	l.publish(ctx, events.TopicTransferCompleted, events.TransferCompleted{
		TransferID:      transfer.ID,
		FromAccount:     transfer.FromAccount,
		ToAccount:       transfer.ToAccount,
		Amount:          transfer.Amount,
		Description:     transfer.Description,
		SentEntryID:     res.SentEntryID,
		ReceivedEntryID: res.ReceivedEntryID,
		OccurredAt:      now,
	})
	return res, nil
}

// replayedResult reports the current balances for a transfer whose
// idempotency key already committed. Called with both account locks held.
func (l *Ledger) replayedResult(ctx context.Context, req TransferRequest) (models.TransferResult, error) {
	fromBalance, err := l.store.GetBalance(ctx, req.FromAccount)
	if err != nil {
		return models.TransferResult{}, storageErr("read balance of "+req.FromAccount, err)
	}
	toBalance, err := l.store.GetBalance(ctx, req.ToAccount)
	if err != nil {
		return models.TransferResult{}, storageErr("read balance of "+req.ToAccount, err)
	}
	return models.TransferResult{
		FromBalance: fromBalance,
		ToBalance:   toBalance,
		Replayed:    true,
	}, nil
}

// Adjust applies a system-issued bonus (positive amount) or fee (negative
// amount) to a single account and appends one adjustment entry. No pairing.
func (l *Ledger) Adjust(ctx context.Context, accountID string, amount int64, description string) (models.AdjustResult, error) {
	var zero models.AdjustResult

	if accountID == "" {
		return zero, fmt.Errorf("%w: empty account id", ErrInvalidTransfer)
	}
	if amount == 0 {
		return zero, fmt.Errorf("%w: zero-amount adjustment", ErrInvalidTransfer)
	}

	mu := l.accountLock(accountID)
	mu.Lock()
	defer mu.Unlock()

	balance, err := l.store.GetBalance(ctx, accountID)
	if err != nil {
		if errors.Is(err, interfaces.ErrAccountNotFound) {
			return zero, fmt.Errorf("%w: %q", ErrAccountNotFound, accountID)
		}
		return zero, storageErr("read balance of "+accountID, err)
	}
	if amount < 0 && balance+amount < 0 {
		return zero, fmt.Errorf("%w: account %q has %d KIC, fee of %d",
			ErrInsufficientFunds, accountID, balance, -amount)
	}

	now := time.Now().UTC()
	res, err := l.store.ApplyAdjustment(ctx, models.LogEntry{
		AccountID:   accountID,
		Kind:        models.EntryAdjustment,
		Amount:      amount,
		Description: description,
		CreatedAt:   now,
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrInsufficientFunds) {
			return zero, fmt.Errorf("%w: account %q, adjustment of %d", ErrInsufficientFunds, accountID, amount)
		}
		return zero, storageErr("commit adjustment for "+accountID, err)
	}

	l.publish(ctx, events.TopicAdjustmentApplied, events.AdjustmentApplied{
		AccountID:   accountID,
		Amount:      amount,
		Description: description,
		EntryID:     res.EntryID,
		OccurredAt:  now,
	})
	return res, nil
}

// publish sends an event after a committed mutation. Failures are logged and
// never roll back the mutation.
func (l *Ledger) publish(ctx context.Context, topic string, event any) {
	if l.events == nil {
		return
	}
	if err := l.events.Publish(ctx, topic, event); err != nil {
		log.Printf("ledger: publish %s: %v", topic, err)
	}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
