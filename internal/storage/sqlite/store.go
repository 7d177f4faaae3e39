// Package sqlite provides a SQLite-backed LedgerStore for single-node
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/uaeinnovatehub/kic-ledger/internal/interfaces"
	"github.com/uaeinnovatehub/kic-ledger/internal/models"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    account_id TEXT PRIMARY KEY,
    kind       TEXT NOT NULL,
    balance    INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_entries (
    entry_id         INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id       TEXT NOT NULL REFERENCES accounts (account_id),
    kind             TEXT NOT NULL,
    amount           INTEGER NOT NULL,
    description      TEXT NOT NULL DEFAULT '',
    related_entry_id INTEGER,
    created_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_account
    ON ledger_entries (account_id, created_at);

CREATE TABLE IF NOT EXISTS transfers (
    transfer_id     TEXT PRIMARY KEY,
    idempotency_key TEXT UNIQUE,
    from_account    TEXT NOT NULL,
    to_account      TEXT NOT NULL,
    amount          INTEGER NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL
);
`

// Store persists the ledger in SQLite. The balance CHECK constraint backs the
// engine's overdraft rule at the storage layer.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite ledger store at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateAccount inserts a new account row with a zero balance.
func (s *Store) CreateAccount(ctx context.Context, accountID string, kind models.AccountKind, createdAt time.Time) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO accounts (account_id, kind, balance, created_at) VALUES (?, ?, 0, ?)`,
		accountID, string(kind), toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", interfaces.ErrAccountExists, accountID)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetBalance returns the account's current balance.
func (s *Store) GetBalance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE account_id = ?`, accountID,
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
// row inside one database transaction. The entries become visible only at
// commit, already cross-linked.
func (s *Store) ApplyTransfer(ctx context.Context, transfer models.Transfer, sent, received models.LogEntry) (result models.TransferResult, err error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return models.TransferResult{}, fmt.Errorf("begin transfer tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result.FromBalance, err = s.adjustBalanceTx(ctx, tx, sent.AccountID, sent.Amount)
	if err != nil {
		return models.TransferResult{}, err
	}
	result.ToBalance, err = s.adjustBalanceTx(ctx, tx, received.AccountID, received.Amount)
	if err != nil {
		return models.TransferResult{}, err
	}

	result.SentEntryID, err = s.insertEntryTx(ctx, tx, sent, nil)
	if err != nil {
		return models.TransferResult{}, err
	}
	result.ReceivedEntryID, err = s.insertEntryTx(ctx, tx, received, &result.SentEntryID)
	if err != nil {
		return models.TransferResult{}, err
	}
	// Back-link the sent entry before the pair becomes visible at commit.
	if _, err = tx.ExecContext(ctx,
		`UPDATE ledger_entries SET related_entry_id = ? WHERE entry_id = ?`,
		result.ReceivedEntryID, result.SentEntryID,
	); err != nil {
		return models.TransferResult{}, fmt.Errorf("link entries: %w", err)
	}

	idempotencyKey := sql.NullString{String: transfer.IdempotencyKey, Valid: transfer.IdempotencyKey != ""}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO transfers (transfer_id, idempotency_key, from_account, to_account, amount, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		transfer.ID, idempotencyKey, transfer.FromAccount, transfer.ToAccount,
		transfer.Amount, transfer.Description, toMillis(transfer.CreatedAt),
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
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return models.AdjustResult{}, fmt.Errorf("begin adjustment tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result.Balance, err = s.adjustBalanceTx(ctx, tx, entry.AccountID, entry.Amount)
	if err != nil {
		return models.AdjustResult{}, err
	}
	result.EntryID, err = s.insertEntryTx(ctx, tx, entry, nil)
	if err != nil {
		return models.AdjustResult{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.AdjustResult{}, fmt.Errorf("commit adjustment tx: %w", err)
	}
	return result, nil
}

func (s *Store) adjustBalanceTx(ctx context.Context, tx *sql.Tx, accountID string, delta int64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + ? WHERE account_id = ?`, delta, accountID,
	)
	if err != nil {
		if isCheckViolation(err) {
			return 0, fmt.Errorf("%w: account %s", interfaces.ErrInsufficientFunds, accountID)
		}
		return 0, fmt.Errorf("adjust balance of %s: %w", accountID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("adjust balance of %s: %w", accountID, err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, accountID)
	}

	var balance int64
	if err := tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE account_id = ?`, accountID,
	).Scan(&balance); err != nil {
		return 0, fmt.Errorf("read balance of %s: %w", accountID, err)
	}
	return balance, nil
}

func (s *Store) insertEntryTx(ctx context.Context, tx *sql.Tx, entry models.LogEntry, relatedID *int64) (int64, error) {
	related := sql.NullInt64{}
	if relatedID != nil {
		related = sql.NullInt64{Int64: *relatedID, Valid: true}
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (account_id, kind, amount, description, related_entry_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.AccountID, string(entry.Kind), entry.Amount, entry.Description, related, toMillis(entry.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("append entry for %s: %w", entry.AccountID, err)
	}
	entryID, err := res.LastInsertId()
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
		  WHERE account_id = ?
		  ORDER BY created_at DESC, entry_id DESC`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var (
			entry     models.LogEntry
			kind      string
			related   sql.NullInt64
			createdAt int64
		)
		if err := rows.Scan(&entry.EntryID, &entry.AccountID, &kind, &entry.Amount,
			&entry.Description, &related, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entry.Kind = models.EntryKind(kind)
		entry.CreatedAt = fromMillis(createdAt)
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
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT 1 FROM transfers WHERE idempotency_key = ? LIMIT 1`, idempotencyKey,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check transfer: %w", err)
	}
	return true, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isCheckViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_CHECK {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "check constraint failed")
}

var _ interfaces.LedgerStore = (*Store)(nil)
