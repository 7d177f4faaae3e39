package models

import "time"

// Transfer represents an intent to move KIC between two accounts. A committed
// transfer is persisted alongside its two log entries; the idempotency key, if
// set, lets callers replay the same request without double-settling.
type Transfer struct {
	ID             string    `json:"transfer_id"`
	IdempotencyKey string    `json:"-"`
	FromAccount    string    `json:"from_account"`
	ToAccount      string    `json:"to_account"`
	Amount         int64     `json:"amount"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
}

// TransferResult reports the outcome of a committed transfer: both resulting
// balances and the ids of the two cross-linked log entries. Replayed is true
// when an idempotency key matched a previously committed transfer and no new
// mutation happened.
type TransferResult struct {
	FromBalance     int64 `json:"from_balance"`
	ToBalance       int64 `json:"to_balance"`
	SentEntryID     int64 `json:"sent_entry_id"`
	ReceivedEntryID int64 `json:"received_entry_id"`
	Replayed        bool  `json:"replayed,omitempty"`
}

// AdjustResult reports the outcome of a committed adjustment.
type AdjustResult struct {
	Balance int64 `json:"balance"`
	EntryID int64 `json:"entry_id"`
}
