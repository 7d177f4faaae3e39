package interfaces

import "errors"

// Sentinel errors shared by every LedgerStore implementation. Callers match
// them with errors.Is; stores may wrap them with additional context.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
)
