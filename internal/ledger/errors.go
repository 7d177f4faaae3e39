package ledger

import (
	"errors"

	"github.com/uaeinnovatehub/kic-ledger/internal/interfaces"
)

// Error taxonomy of the ledger engine. All three are terminal: the engine
// never retries a failed operation, and a failed operation leaves balances
// and the log untouched.
var (
	// ErrInvalidTransfer covers malformed requests: non-positive amount,
	// self-transfer, unknown or empty account.
	ErrInvalidTransfer = errors.New("invalid transfer")

	// ErrInsufficientFunds means the operation would drive a balance
	// negative.
	ErrInsufficientFunds = interfaces.ErrInsufficientFunds

	// ErrAccountNotFound is returned by operations that name a single
	// account which does not exist.
	ErrAccountNotFound = interfaces.ErrAccountNotFound

	// ErrAccountExists is returned by OpenAccount when the id is taken.
	ErrAccountExists = interfaces.ErrAccountExists

	// ErrStorageUnavailable wraps unexpected failures of the storage
	// collaborator. The whole operation is aborted with no partial effect.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
