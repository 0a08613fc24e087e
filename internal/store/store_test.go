package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/XCP/xcpfolio.com/pkg/model"
)

func newTestStore(t *testing.T) (*HybridStore, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &HybridStore{redis: rdb}, mr
}

func TestSetAndGetJSON(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	defer mr.Close()

	orders := []model.TrackedOrder{
		{OrderHash: "hash1", Asset: "XCPFOLIO.BACH", Status: model.StatusConfirming},
	}

	if err := store.SetJSON(ctx, "orders:recent", orders, time.Minute); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}

	var got []model.TrackedOrder
	if err := store.GetJSON(ctx, "orders:recent", &got); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}

	if len(got) != 1 || got[0].OrderHash != "hash1" {
		t.Errorf("unexpected orders: %+v", got)
	}
	if got[0].Status != model.StatusConfirming {
		t.Errorf("expected status=confirming, got %s", got[0].Status)
	}
}

func TestGetJSON_Miss(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	defer mr.Close()

	var got []model.TrackedOrder
	err := store.GetJSON(ctx, "orders:absent", &got)
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestGetJSON_FromExternallySetKey(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	defer mr.Close()

	order := model.TrackedOrder{
		OrderHash:      "hash2",
		Asset:          "XCPFOLIO.MOZART",
		Buyer:          "1ExampleAddress",
		Status:         model.StatusConfirmed,
		PurchasedBlock: 850000,
		ConfirmedBlock: 850002,
	}
	data, _ := json.Marshal(order)
	_ = mr.Set("orders:hash2", string(data))

	var got model.TrackedOrder
	if err := store.GetJSON(ctx, "orders:hash2", &got); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if got.ConfirmedBlock != 850002 {
		t.Errorf("expected confirmed_block=850002, got %d", got.ConfirmedBlock)
	}
}

func TestSetJSON_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	defer mr.Close()

	if err := store.SetJSON(ctx, "orders:recent", []string{"a"}, 30*time.Second); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}

	mr.FastForward(31 * time.Second)

	var got []string
	err := store.GetJSON(ctx, "orders:recent", &got)
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss after TTL, got %v", err)
	}
}

func TestArchiveOrder_NoPostgresIsNoop(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	defer mr.Close()

	err := store.ArchiveOrder(ctx, model.TrackedOrder{OrderHash: "hash1", Status: model.StatusConfirmed})
	if err != nil {
		t.Fatalf("expected nil without postgres, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("expected healthy store: %v", err)
	}

	mr.Close()
	if err := store.HealthCheck(ctx); err == nil {
		t.Fatal("expected health check failure after redis shutdown")
	}
}

func TestSetJSON_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	defer mr.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order := model.TrackedOrder{OrderHash: "hash", Confirmations: i}
			if err := store.SetJSON(ctx, "orders:hot", order, time.Minute); err != nil {
				t.Errorf("SetJSON failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	var got model.TrackedOrder
	if err := store.GetJSON(ctx, "orders:hot", &got); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if got.OrderHash != "hash" {
		t.Errorf("unexpected order: %+v", got)
	}
}
