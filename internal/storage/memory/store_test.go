package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/uaeinnovatehub/kic-ledger/internal/interfaces"
	"github.com/uaeinnovatehub/kic-ledger/internal/models"
)

func mustCreate(t *testing.T, s *Store, accountID string, balance int64) {
	t.Helper()
	ctx := context.Background()
	if err := s.CreateAccount(ctx, accountID, models.AccountIndividual, time.Now().UTC()); err != nil {
		t.Fatalf("CreateAccount(%s): %v", accountID, err)
	}
	if balance > 0 {
		if _, err := s.ApplyAdjustment(ctx, models.LogEntry{
			AccountID:   accountID,
			Kind:        models.EntryAdjustment,
			Amount:      balance,
			Description: "opening balance",
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			t.Fatalf("ApplyAdjustment(%s): %v", accountID, err)
		}
	}
}

func TestCreateAccount(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	mustCreate(t, s, "a", 0)
	if err := s.CreateAccount(ctx, "a", models.AccountIndividual, time.Now().UTC()); !errors.Is(err, interfaces.ErrAccountExists) {
		t.Fatalf("want ErrAccountExists, got %v", err)
	}
	if _, err := s.GetBalance(ctx, "ghost"); !errors.Is(err, interfaces.ErrAccountNotFound) {
		t.Fatalf("want ErrAccountNotFound, got %v", err)
	}
	if balance, err := s.GetBalance(ctx, "a"); err != nil || balance != 0 {
		t.Fatalf("balance=%d err=%v", balance, err)
	}
}

func TestApplyTransferLinksEntries(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	mustCreate(t, s, "a", 1000)
	mustCreate(t, s, "b", 500)

	now := time.Now().UTC()
	res, err := s.ApplyTransfer(ctx,
		models.Transfer{ID: "t1", FromAccount: "a", ToAccount: "b", Amount: 300, CreatedAt: now},
		models.LogEntry{AccountID: "a", Kind: models.EntrySent, Amount: -300, CreatedAt: now},
		models.LogEntry{AccountID: "b", Kind: models.EntryReceived, Amount: 300, CreatedAt: now},
	)
	if err != nil {
		t.Fatal(err)
	}
	if res.FromBalance != 700 || res.ToBalance != 800 {
		t.Fatalf("balances=%d/%d want=700/800", res.FromBalance, res.ToBalance)
	}
	if res.ReceivedEntryID != res.SentEntryID+1 {
		t.Fatalf("entry ids not increasing: %d, %d", res.SentEntryID, res.ReceivedEntryID)
	}

	sent, _ := s.EntriesForAccount(ctx, "a", 1)
	received, _ := s.EntriesForAccount(ctx, "b", 1)
	if *sent[0].RelatedEntryID != received[0].EntryID || *received[0].RelatedEntryID != sent[0].EntryID {
		t.Fatalf("entries not cross-linked: %+v / %+v", sent[0], received[0])
	}
}

func TestApplyTransferGuardsOverdraft(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	mustCreate(t, s, "a", 100)
	mustCreate(t, s, "b", 0)

	now := time.Now().UTC()
	_, err := s.ApplyTransfer(ctx,
		models.Transfer{ID: "t1", FromAccount: "a", ToAccount: "b", Amount: 300, CreatedAt: now},
		models.LogEntry{AccountID: "a", Kind: models.EntrySent, Amount: -300, CreatedAt: now},
		models.LogEntry{AccountID: "b", Kind: models.EntryReceived, Amount: 300, CreatedAt: now},
	)
	if !errors.Is(err, interfaces.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	if balance, _ := s.GetBalance(ctx, "a"); balance != 100 {
		t.Fatalf("a=%d want=100", balance)
	}
	if entries, _ := s.EntriesForAccount(ctx, "b", 0); len(entries) != 0 {
		t.Fatalf("entries appended on failed transfer: %+v", entries)
	}
}

func TestEntriesForAccountOrderAndLimit(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	mustCreate(t, s, "a", 0)

	for i := 1; i <= 5; i++ {
		if _, err := s.ApplyAdjustment(ctx, models.LogEntry{
			AccountID:   "a",
			Kind:        models.EntryAdjustment,
			Amount:      int64(i),
			Description: "bonus",
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.EntriesForAccount(ctx, "a", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("len=%d want=3", len(entries))
	}
	// Newest first.
	if entries[0].Amount != 5 || entries[1].Amount != 4 || entries[2].Amount != 3 {
		t.Fatalf("order wrong: %+v", entries)
	}

	all, err := s.EntriesForAccount(ctx, "a", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("len=%d want=5", len(all))
	}
}

func TestTransferExists(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	mustCreate(t, s, "a", 100)
	mustCreate(t, s, "b", 0)

	exists, err := s.TransferExists(ctx, "key-1")
	if err != nil || exists {
		t.Fatalf("exists=%v err=%v before commit", exists, err)
	}

	now := time.Now().UTC()
	if _, err := s.ApplyTransfer(ctx,
		models.Transfer{ID: "t1", IdempotencyKey: "key-1", FromAccount: "a", ToAccount: "b", Amount: 10, CreatedAt: now},
		models.LogEntry{AccountID: "a", Kind: models.EntrySent, Amount: -10, CreatedAt: now},
		models.LogEntry{AccountID: "b", Kind: models.EntryReceived, Amount: 10, CreatedAt: now},
	); err != nil {
		t.Fatal(err)
	}

	exists, err = s.TransferExists(ctx, "key-1")
	if err != nil || !exists {
		t.Fatalf("exists=%v err=%v after commit", exists, err)
	}
}
