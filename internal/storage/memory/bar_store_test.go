package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"margin-liq-lab/internal/domain"
	"margin-liq-lab/internal/storage"
)

var barBase = time.Date(2025, 3, 3, 7, 0, 0, 0, time.UTC)

func makeBars(symbol string, n int) []*domain.PriceBar {
	bars := make([]*domain.PriceBar, n)
	for i := range bars {
		bars[i] = &domain.PriceBar{
			Symbol:    symbol,
			Timestamp: barBase.Add(time.Duration(i) * time.Minute),
			Open:      5000,
			High:      5001,
			Low:       4999,
			Close:     5000,
		}
	}
	return bars
}

func TestPriceBarStore_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewPriceBarStore()

	// Insert out of order; reads come back sorted.
	bars := makeBars("XAUUSD", 3)
	if err := store.InsertBulk(ctx, []*domain.PriceBar{bars[2], bars[0], bars[1]}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetBySymbol(ctx, "XAUUSD")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d bars, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Fatal("bars not sorted by timestamp")
		}
	}
}

func TestPriceBarStore_DuplicateRejected(t *testing.T) {
	ctx := context.Background()
	store := NewPriceBarStore()

	bars := makeBars("XAUUSD", 2)
	if err := store.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	// Same key again: whole batch fails, nothing new stored.
	fresh := makeBars("XAUUSD", 3)
	err := store.InsertBulk(ctx, fresh)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}

	got, _ := store.GetBySymbol(ctx, "XAUUSD")
	if len(got) != 2 {
		t.Errorf("got %d bars after failed batch, want 2", len(got))
	}
}

func TestPriceBarStore_IntraBatchDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	store := NewPriceBarStore()

	bars := makeBars("XAUUSD", 1)
	err := store.InsertBulk(ctx, []*domain.PriceBar{bars[0], bars[0]})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestPriceBarStore_InvalidInput(t *testing.T) {
	ctx := context.Background()
	store := NewPriceBarStore()

	err := store.InsertBulk(ctx, []*domain.PriceBar{{Symbol: "", Timestamp: barBase}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("empty symbol err = %v, want ErrInvalidInput", err)
	}

	err = store.InsertBulk(ctx, []*domain.PriceBar{{Symbol: "XAUUSD"}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("zero timestamp err = %v, want ErrInvalidInput", err)
	}
}

func TestPriceBarStore_GetByTimeRange(t *testing.T) {
	ctx := context.Background()
	store := NewPriceBarStore()

	if err := store.InsertBulk(ctx, makeBars("XAUUSD", 10)); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	// Inclusive on both ends.
	got, err := store.GetByTimeRange(ctx, "XAUUSD", barBase.Add(2*time.Minute), barBase.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("got %d bars, want 4", len(got))
	}
}

func TestPriceBarStore_SymbolIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewPriceBarStore()

	if err := store.InsertBulk(ctx, makeBars("XAUUSD", 2)); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertBulk(ctx, makeBars("XAGUSD", 3)); err != nil {
		t.Fatal(err)
	}

	got, _ := store.GetBySymbol(ctx, "XAGUSD")
	if len(got) != 3 {
		t.Errorf("got %d bars for XAGUSD, want 3", len(got))
	}
}

func TestPriceBarStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewPriceBarStore()

	if err := store.InsertBulk(ctx, makeBars("XAUUSD", 1)); err != nil {
		t.Fatal(err)
	}

	got, _ := store.GetBySymbol(ctx, "XAUUSD")
	got[0].High = 9999

	again, _ := store.GetBySymbol(ctx, "XAUUSD")
	if again[0].High == 9999 {
		t.Error("mutating a returned bar leaked into the store")
	}
}
