package filter

import (
	"context"
	"testing"

	"github.com/rushteam/shoprec/store"
)

func TestStoreBloomChecker(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	checker := NewStoreBloomChecker(kv, 1000, 0.01)

	key := "rec:bloom:u1:20260829"
	if err := checker.AddToBloomFilter(ctx, key, 42, 0); err != nil {
		t.Fatalf("AddToBloomFilter() error = %v", err)
	}

	got, err := checker.CheckInBloomFilter(ctx, key, 42)
	if err != nil {
		t.Fatalf("CheckInBloomFilter() error = %v", err)
	}
	if !got {
		t.Error("added product should test positive")
	}

	got, err = checker.CheckInBloomFilter(ctx, "rec:bloom:u2:20260829", 42)
	if err != nil {
		t.Fatalf("CheckInBloomFilter() error = %v", err)
	}
	if got {
		t.Error("missing filter key must mean not exposed")
	}
}

func TestStoreBloomChecker_FreshInstanceReadsPersisted(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	key := "rec:bloom:u1:20260829"

	writer := NewStoreBloomChecker(kv, 1000, 0.01)
	if err := writer.AddToBloomFilter(ctx, key, 7, 3600); err != nil {
		t.Fatalf("AddToBloomFilter() error = %v", err)
	}

	reader := NewStoreBloomChecker(kv, 1000, 0.01)
	got, err := reader.CheckInBloomFilter(ctx, key, 7)
	if err != nil {
		t.Fatalf("CheckInBloomFilter() error = %v", err)
	}
	if !got {
		t.Error("persisted filter should round trip through the store")
	}
}
