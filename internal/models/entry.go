package models

import "time"

// EntryKind classifies a log entry. A transfer always produces one sent and
// one received entry; adjustments are unilateral (bonuses, fees, opening
// balances).
type EntryKind string

const (
	EntrySent       EntryKind = "sent"
	EntryReceived   EntryKind = "received"
	EntryAdjustment EntryKind = "adjustment"
)

// LogEntry is one immutable, append-only record of a balance change.
// Amount is negative for debits and positive for credits, in whole KIC.
// RelatedEntryID links the paired debit/credit of one transfer and is nil
// for adjustments.
type LogEntry struct {
	EntryID        int64     `json:"entry_id"`
	AccountID      string    `json:"account_id"`
	Kind           EntryKind `json:"kind"`
	Amount         int64     `json:"amount"`
	Description    string    `json:"description"`
	RelatedEntryID *int64    `json:"related_entry_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
