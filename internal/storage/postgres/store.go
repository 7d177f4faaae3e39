// Package postgres provides a Postgres-backed LedgerStore for deployments
// where the ledger is shared by several services.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/uaeinnovatehub/kic-ledger/internal/interfaces"
	"github.com/uaeinnovatehub/kic-ledger/internal/models"
)

const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    account_id TEXT PRIMARY KEY,
    kind       TEXT NOT NULL,
    balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_entries (
    entry_id         BIGSERIAL PRIMARY KEY,
    account_id       TEXT NOT NULL REFERENCES accounts (account_id),
    kind             TEXT NOT NULL,
    amount           BIGINT NOT NULL,
    description      TEXT NOT NULL DEFAULT '',
    related_entry_id BIGINT,
    created_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_account
    ON ledger_entries (account_id, created_at);

CREATE TABLE IF NOT EXISTS transfers (
    transfer_id     TEXT PRIMARY KEY,
    idempotency_key TEXT UNIQUE,
    from_account    TEXT NOT NULL,
    to_account      TEXT NOT NULL,
    amount          BIGINT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL
);
`

// Store persists the ledger in Postgres.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres with the given DSN and ensures the schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle without touching the schema.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateAccount inserts a new account row with a zero balance.
func (s *Store) CreateAccount(ctx context.Context, accountID string, kind models.AccountKind, createdAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (account_id, kind, balance, created_at) VALUES ($1, $2, 0, $3)`,
		accountID, string(kind), createdAt,
	)
	if err != nil {
		if isPQError(err, pqUniqueViolation) {
			return fmt.Errorf("%w: %s", interfaces.ErrAccountExists, accountID)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetBalance returns the account's current balance.
func (s *Store) GetBalance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE account_id = $1`, accountID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, accountID)
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// ApplyTransfer commits both balance changes, both entries and the transfer
// row inside one database transaction.
func (s *Store) ApplyTransfer(ctx context.Context, transfer models.Transfer, sent, received models.LogEntry) (result models.TransferResult, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.TransferResult{}, fmt.Errorf("begin transfer tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result.FromBalance, err = adjustBalanceTx(ctx, tx, sent.AccountID, sent.Amount)
	if err != nil {
		return models.TransferResult{}, err
	}
	result.ToBalance, err = adjustBalanceTx(ctx, tx, received.AccountID, received.Amount)
	if err != nil {
		return models.TransferResult{}, err
	}

	result.SentEntryID, err = insertEntryTx(ctx, tx, sent, nil)
	if err != nil {
		return models.TransferResult{}, err
	}
	result.ReceivedEntryID, err = insertEntryTx(ctx, tx, received, &result.SentEntryID)
	if err != nil {
		return models.TransferResult{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE ledger_entries SET related_entry_id = $1 WHERE entry_id = $2`,
		result.ReceivedEntryID, result.SentEntryID,
	); err != nil {
		return models.TransferResult{}, fmt.Errorf("link entries: %w", err)
	}

	idempotencyKey := sql.NullString{String: transfer.IdempotencyKey, Valid: transfer.IdempotencyKey != ""}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO transfers (transfer_id, idempotency_key, from_account, to_account, amount, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		transfer.ID, idempotencyKey, transfer.FromAccount, transfer.ToAccount,
		transfer.Amount, transfer.Description, transfer.CreatedAt,
	); err != nil {
		return models.TransferResult{}, fmt.Errorf("record transfer: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return models.TransferResult{}, fmt.Errorf("commit transfer tx: %w", err)
	}
	return result, nil
}

// ApplyAdjustment commits one balance change and one entry in one database
// transaction.
func (s *Store) ApplyAdjustment(ctx context.Context, entry models.LogEntry) (result models.AdjustResult, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.AdjustResult{}, fmt.Errorf("begin adjustment tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result.Balance, err = adjustBalanceTx(ctx, tx, entry.AccountID, entry.Amount)
	if err != nil {
		return models.AdjustResult{}, err
	}
	result.EntryID, err = insertEntryTx(ctx, tx, entry, nil)
	if err != nil {
		return models.AdjustResult{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.AdjustResult{}, fmt.Errorf("commit adjustment tx: %w", err)
	}
	return result, nil
}

func adjustBalanceTx(ctx context.Context, tx *sql.Tx, accountID string, delta int64) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx,
		`UPDATE accounts SET balance = balance + $1 WHERE account_id = $2 RETURNING balance`,
		delta, accountID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, accountID)
	}
	if err != nil {
		if isPQError(err, pqCheckViolation) {
			return 0, fmt.Errorf("%w: account %s", interfaces.ErrInsufficientFunds, accountID)
		}
		return 0, fmt.Errorf("adjust balance of %s: %w", accountID, err)
	}
	return balance, nil
}

func insertEntryTx(ctx context.Context, tx *sql.Tx, entry models.LogEntry, relatedID *int64) (int64, error) {
	related := sql.NullInt64{}
	if relatedID != nil {
		related = sql.NullInt64{Int64: *relatedID, Valid: true}
	}
	var entryID int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO ledger_entries (account_id, kind, amount, description, related_entry_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING entry_id`,
		entry.AccountID, string(entry.Kind), entry.Amount, entry.Description, related, entry.CreatedAt,
	).Scan(&entryID)
	if err != nil {
		return 0, fmt.Errorf("append entry for %s: %w", entry.AccountID, err)
	}
	return entryID, nil
}

// EntriesForAccount returns the account's entries ordered by created_at
// descending, entry id breaking ties.
func (s *Store) EntriesForAccount(ctx context.Context, accountID string, limit int) ([]models.LogEntry, error) {
	query := `SELECT entry_id, account_id, kind, amount, description, related_entry_id, created_at
		  FROM ledger_entries
		  WHERE account_id = $1
		  ORDER BY created_at DESC, entry_id DESC`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var (
			entry   models.LogEntry
			kind    string
			related sql.NullInt64
		)
		if err := rows.Scan(&entry.EntryID, &entry.AccountID, &kind, &entry.Amount,
			&entry.Description, &related, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entry.Kind = models.EntryKind(kind)
		if related.Valid {
			id := related.Int64
			entry.RelatedEntryID = &id
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// TransferExists reports whether an idempotency key has already committed.
func (s *Store) TransferExists(ctx context.Context, idempotencyKey string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM transfers WHERE idempotency_key = $1 LIMIT 1`, idempotencyKey,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check transfer: %w", err)
	}
	return true, nil
}

func isPQError(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}

var _ interfaces.LedgerStore = (*Store)(nil)
