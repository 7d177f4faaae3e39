package events

import "time"

// Topics the ledger publishes on after a mutation commits.
const (
	TopicTransferCompleted = "kic.transfer.completed"
	TopicAdjustmentApplied = "kic.adjustment.applied"
)

// TransferCompleted is emitted after a transfer has been committed to the
// ledger. Balances are intentionally omitted; consumers read them through the
// query facade if they need a point-in-time value.
type TransferCompleted struct {
	TransferID      string    `json:"transfer_id"`
	FromAccount     string    `json:"from_account"`
	ToAccount       string    `json:"to_account"`
	Amount          int64     `json:"amount"`
	Description     string    `json:"description"`
	SentEntryID     int64     `json:"sent_entry_id"`
	ReceivedEntryID int64     `json:"received_entry_id"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// AdjustmentApplied is emitted after a system-issued bonus or fee has been
// committed.
type AdjustmentApplied struct {
	AccountID   string    `json:"account_id"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	EntryID     int64     `json:"entry_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}
