package interfaces

import (
	"context"
	"time"

	"github.com/uaeinnovatehub/kic-ledger/internal/models"
)

// LedgerStore is the storage collaborator behind the ledger engine: the
// account balance table plus the append-only transaction log. Implementations
// must make ApplyTransfer and ApplyAdjustment all-or-nothing; they may assume
// the engine has already serialized mutations per account, but must still
// refuse to drive any balance negative.
type LedgerStore interface {
	// CreateAccount inserts a new account with a zero balance. Returns
	// ErrAccountExists if the id is already taken.
	CreateAccount(ctx context.Context, accountID string, kind models.AccountKind, createdAt time.Time) error

	// GetBalance returns the current balance, or ErrAccountNotFound.
	GetBalance(ctx context.Context, accountID string) (int64, error)

	// ApplyTransfer atomically debits the sender, credits the receiver,
	// appends both entries with fresh increasing entry ids cross-linked via
	// RelatedEntryID, and records the transfer intent. Either every effect
	// commits or none do. The sent entry carries the negative amount, the
	// received entry the positive one; RelatedEntryID on the inputs is
	// ignored and assigned by the store.
	ApplyTransfer(ctx context.Context, transfer models.Transfer, sent, received models.LogEntry) (models.TransferResult, error)

	// ApplyAdjustment atomically mutates one balance and appends one entry.
	// Returns ErrInsufficientFunds if the balance would go negative.
	ApplyAdjustment(ctx context.Context, entry models.LogEntry) (models.AdjustResult, error)

	// EntriesForAccount returns the account's log entries ordered by
	// created_at descending. A limit <= 0 returns the full history. The read
	// is stateless: re-invoking with the same arguments yields a stable or
	// newer snapshot.
	EntriesForAccount(ctx context.Context, accountID string, limit int) ([]models.LogEntry, error)

	// TransferExists reports whether a transfer with this idempotency key has
	// already been committed.
	TransferExists(ctx context.Context, idempotencyKey string) (bool, error)
}
