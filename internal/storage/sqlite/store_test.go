package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/uaeinnovatehub/kic-ledger/internal/interfaces"
	"github.com/uaeinnovatehub/kic-ledger/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedAccount(t *testing.T, s *Store, accountID string, balance int64) {
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

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("want error for empty path")
	}
}

func TestCreateAccountAndGetBalance(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedAccount(t, s, "a", 1000)
	if balance, err := s.GetBalance(ctx, "a"); err != nil || balance != 1000 {
		t.Fatalf("balance=%d err=%v", balance, err)
	}
	if err := s.CreateAccount(ctx, "a", models.AccountIndividual, time.Now().UTC()); !errors.Is(err, interfaces.ErrAccountExists) {
		t.Fatalf("want ErrAccountExists, got %v", err)
	}
	if _, err := s.GetBalance(ctx, "ghost"); !errors.Is(err, interfaces.ErrAccountNotFound) {
		t.Fatalf("want ErrAccountNotFound, got %v", err)
	}
}

func TestApplyTransferRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedAccount(t, s, "a", 1000)
	seedAccount(t, s, "b", 500)

	now := time.Now().UTC()
	res, err := s.ApplyTransfer(ctx,
		models.Transfer{ID: "t1", IdempotencyKey: "key-1", FromAccount: "a", ToAccount: "b", Amount: 300, Description: "booking #42", CreatedAt: now},
		models.LogEntry{AccountID: "a", Kind: models.EntrySent, Amount: -300, Description: "booking #42", CreatedAt: now},
		models.LogEntry{AccountID: "b", Kind: models.EntryReceived, Amount: 300, Description: "booking #42", CreatedAt: now},
	)
	if err != nil {
		t.Fatal(err)
	}
	if res.FromBalance != 700 || res.ToBalance != 800 {
		t.Fatalf("balances=%d/%d want=700/800", res.FromBalance, res.ToBalance)
	}

	sent, err := s.EntriesForAccount(ctx, "a", 1)
	if err != nil {
		t.Fatal(err)
	}
	received, err := s.EntriesForAccount(ctx, "b", 1)
	if err != nil {
		t.Fatal(err)
	}
	if sent[0].Kind != models.EntrySent || sent[0].Amount != -300 {
		t.Fatalf("sent entry=%+v", sent[0])
	}
	if sent[0].RelatedEntryID == nil || *sent[0].RelatedEntryID != received[0].EntryID {
		t.Fatalf("sent entry not linked: %+v", sent[0])
	}
	if received[0].RelatedEntryID == nil || *received[0].RelatedEntryID != sent[0].EntryID {
		t.Fatalf("received entry not linked: %+v", received[0])
	}

	exists, err := s.TransferExists(ctx, "key-1")
	if err != nil || !exists {
		t.Fatalf("exists=%v err=%v", exists, err)
	}
}

// TestApplyTransferRollsBackOnOverdraft drives the sender negative and checks
// the CHECK constraint aborts the whole transaction.
func TestApplyTransferRollsBackOnOverdraft(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedAccount(t, s, "a", 100)
	seedAccount(t, s, "b", 0)

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
	if balance, _ := s.GetBalance(ctx, "b"); balance != 0 {
		t.Fatalf("b=%d want=0", balance)
	}
	if entries, _ := s.EntriesForAccount(ctx, "b", 0); len(entries) != 0 {
		t.Fatalf("entries survived rollback: %+v", entries)
	}
}

func TestApplyAdjustmentGuardsOverdraft(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedAccount(t, s, "a", 100)

	_, err := s.ApplyAdjustment(ctx, models.LogEntry{
		AccountID:   "a",
		Kind:        models.EntryAdjustment,
		Amount:      -200,
		Description: "fee",
		CreatedAt:   time.Now().UTC(),
	})
	if !errors.Is(err, interfaces.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	if balance, _ := s.GetBalance(ctx, "a"); balance != 100 {
		t.Fatalf("a=%d want=100", balance)
	}
}

func TestEntriesForAccountOrderAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedAccount(t, s, "a", 0)

	base := time.Now().UTC()
	for i := 1; i <= 5; i++ {
		if _, err := s.ApplyAdjustment(ctx, models.LogEntry{
			AccountID:   "a",
			Kind:        models.EntryAdjustment,
			Amount:      int64(i),
			Description: "bonus",
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
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
	if entries[0].Amount != 5 || entries[1].Amount != 4 || entries[2].Amount != 3 {
		t.Fatalf("order wrong: %+v", entries)
	}
	if !entries[0].CreatedAt.After(entries[2].CreatedAt) {
		t.Fatalf("timestamps not descending: %v .. %v", entries[0].CreatedAt, entries[2].CreatedAt)
	}

	all, err := s.EntriesForAccount(ctx, "a", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("len=%d want=5", len(all))
	}
}
