package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"solana-wallet-engine/internal/domain"
	"solana-wallet-engine/internal/storage"
)

func TestWalletStore_InsertAndGet(t *testing.T) {
	store := NewWalletStore()
	ctx := context.Background()

	w := domain.NewWalletRecord(7, "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	if err := store.Insert(ctx, w); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if w.ID == 0 {
		t.Fatal("expected ID to be assigned")
	}

	got, err := store.GetByID(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.UserID != 7 {
		t.Errorf("UserID mismatch: got %d, want 7", got.UserID)
	}

	byKey, err := store.GetByPublicKey(ctx, w.PublicKey)
	if err != nil {
		t.Fatalf("GetByPublicKey failed: %v", err)
	}
	if byKey.ID != w.ID {
		t.Errorf("ID mismatch: got %d, want %d", byKey.ID, w.ID)
	}
}

func TestWalletStore_DuplicatePublicKey(t *testing.T) {
	store := NewWalletStore()
	ctx := context.Background()

	if err := store.Insert(ctx, domain.NewWalletRecord(1, "addr")); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	err := store.Insert(ctx, domain.NewWalletRecord(2, "addr"))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestWalletStore_SaveAndCopies(t *testing.T) {
	store := NewWalletStore()
	ctx := context.Background()

	w := domain.NewWalletRecord(1, "")
	if err := store.Insert(ctx, w); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, _ := store.GetByID(ctx, w.ID)
	got.Balance = decimal.NewFromInt(999)

	again, _ := store.GetByID(ctx, w.ID)
	if !again.Balance.IsZero() {
		t.Errorf("external mutation leaked into store: %s", again.Balance)
	}

	if err := got.ApplyDelta(decimal.NewFromInt(1)); err != nil {
		t.Fatalf("ApplyDelta failed: %v", err)
	}
	if err := store.Save(ctx, got); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	saved, _ := store.GetByID(ctx, w.ID)
	if !saved.Balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Balance mismatch: got %s, want 1000", saved.Balance)
	}
}

func TestWalletStore_NotFound(t *testing.T) {
	store := NewWalletStore()
	ctx := context.Background()

	if _, err := store.GetByID(ctx, 42); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Save(ctx, &domain.WalletRecord{ID: 42}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on save, got %v", err)
	}
}

func TestThroughputSampleStore_ListRecent(t *testing.T) {
	store := NewThroughputSampleStore()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if err := store.Insert(ctx, &domain.ThroughputSample{HeadSlot: uint64(i), Rate: float64(i)}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.ListRecent(ctx, 3)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(got))
	}
	for i, want := range []uint64{5, 4, 3} {
		if got[i].HeadSlot != want {
			t.Errorf("sample %d: got slot %d, want %d", i, got[i].HeadSlot, want)
		}
	}

	if _, err := store.ListRecent(ctx, 0); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestWalletLocker_Serialises(t *testing.T) {
	locker := NewWalletLocker()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, 1)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	// Another wallet is independent.
	other, err := locker.Lock(ctx, 2)
	if err != nil {
		t.Fatalf("Lock on other wallet failed: %v", err)
	}
	_ = other(ctx)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(short, 1); !errors.Is(err, storage.ErrLockHeld) {
		t.Errorf("expected ErrLockHeld, got %v", err)
	}

	_ = unlock(ctx)
	_ = unlock(ctx) // idempotent

	again, err := locker.Lock(ctx, 1)
	if err != nil {
		t.Fatalf("Lock after unlock failed: %v", err)
	}
	_ = again(ctx)

	if n := len(locker.locks); n != 0 {
		t.Errorf("expected no lock entries after release, got %d", n)
	}
}

func TestWalletLocker_CancelledWait(t *testing.T) {
	locker := NewWalletLocker()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, 9)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = locker.Lock(cancelled, 9)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, storage.ErrLockHeld) {
		t.Errorf("cancellation reported as ErrLockHeld: %v", err)
	}

	_ = unlock(ctx)
	if n := len(locker.locks); n != 0 {
		t.Errorf("expected no lock entries after release, got %d", n)
	}
}

func TestWalletLocker_ConcurrentDeposits(t *testing.T) {
	store := NewWalletStore()
	locker := NewWalletLocker()
	ctx := context.Background()

	w := domain.NewWalletRecord(1, "")
	if err := store.Insert(ctx, w); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, w.ID)
			if err != nil {
				t.Errorf("Lock failed: %v", err)
				return
			}
			defer func() { _ = unlock(ctx) }()

			rec, _ := store.GetByID(ctx, w.ID)
			_ = rec.ApplyDelta(decimal.NewFromInt(2))
			_ = store.Save(ctx, rec)
		}()
	}
	wg.Wait()

	final, _ := store.GetByID(ctx, w.ID)
	if !final.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Balance mismatch: got %s, want 100", final.Balance)
	}
}
