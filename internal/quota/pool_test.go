package quota

import (
	"errors"
	"testing"
	"time"
)

func TestPoolRoundRobin(t *testing.T) {
	pool := NewPool([]string{"key-aaaa", "key-bbbb", "key-cccc"}, 10000)

	seen := make(map[string]int)
	for i := 0; i < 6; i++ {
		cred, err := pool.NextAvailable()
		if err != nil {
			t.Fatalf("next available: %v", err)
		}
		seen[cred.Key]++
	}

	if len(seen) != 3 {
		t.Fatalf("expected all 3 keys visited, got %v", seen)
	}
	for key, count := range seen {
		if count != 2 {
			t.Fatalf("expected key %s visited twice, got %d", key, count)
		}
	}
}

func TestPoolQuotaAccounting(t *testing.T) {
	pool := NewPool([]string{"key-aaaa"}, 300)

	cred, err := pool.NextAvailable()
	if err != nil {
		t.Fatalf("next available: %v", err)
	}

	pool.RecordUsage(cred, 100)
	if cred.Exhausted {
		t.Fatal("credential exhausted below ceiling")
	}

	pool.RecordUsage(cred, 100)
	if cred.Exhausted {
		t.Fatal("credential exhausted below ceiling")
	}

	pool.RecordUsage(cred, 100)
	if !cred.Exhausted {
		t.Fatal("expected credential exhausted at ceiling")
	}

	if _, err := pool.NextAvailable(); !errors.Is(err, ErrAllExhausted) {
		t.Fatalf("expected ErrAllExhausted, got %v", err)
	}
}

func TestPoolAutoReset(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pool := NewPool([]string{"key-aaaa"}, 100)
	pool.WithNowFunc(func() time.Time { return now })
	pool.creds[0].LastReset = now

	cred, err := pool.NextAvailable()
	if err != nil {
		t.Fatalf("next available: %v", err)
	}
	pool.RecordUsage(cred, 100)

	if _, err := pool.NextAvailable(); !errors.Is(err, ErrAllExhausted) {
		t.Fatalf("expected ErrAllExhausted, got %v", err)
	}

	now = now.Add(23 * time.Hour)
	if _, err := pool.NextAvailable(); !errors.Is(err, ErrAllExhausted) {
		t.Fatalf("expected ErrAllExhausted before reset window, got %v", err)
	}

	now = now.Add(time.Hour)
	cred, err = pool.NextAvailable()
	if err != nil {
		t.Fatalf("expected credential after reset window: %v", err)
	}
	if cred.Consumed != 0 || cred.Exhausted {
		t.Fatalf("expected reset credential, got consumed=%d exhausted=%v", cred.Consumed, cred.Exhausted)
	}
}

func TestPoolMarkExhaustedPinsConsumption(t *testing.T) {
	pool := NewPool([]string{"key-aaaa", "key-bbbb"}, 10000)

	cred, err := pool.NextAvailable()
	if err != nil {
		t.Fatalf("next available: %v", err)
	}
	first := cred.Key

	pool.MarkExhausted(cred)
	if !cred.Exhausted {
		t.Fatal("expected credential exhausted")
	}
	if cred.Consumed != cred.Ceiling {
		t.Fatalf("expected consumption pinned to ceiling, got %d", cred.Consumed)
	}

	next, err := pool.NextAvailable()
	if err != nil {
		t.Fatalf("next available: %v", err)
	}
	if next.Key == first {
		t.Fatalf("expected rotation to skip exhausted key %s", first)
	}
}

func TestPoolMarkInvalidNeverResets(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pool := NewPool([]string{"key-aaaa"}, 100)
	pool.WithNowFunc(func() time.Time { return now })

	cred, err := pool.NextAvailable()
	if err != nil {
		t.Fatalf("next available: %v", err)
	}
	pool.MarkInvalid(cred)

	now = now.Add(48 * time.Hour)
	if _, err := pool.NextAvailable(); !errors.Is(err, ErrAllExhausted) {
		t.Fatalf("expected invalid credential to stay out of rotation, got %v", err)
	}
}

func TestPoolSnapshot(t *testing.T) {
	pool := NewPool([]string{"key-aaaa", "key-bbbb", "key-cccc"}, 100)

	a, err := pool.NextAvailable()
	if err != nil {
		t.Fatalf("next available: %v", err)
	}
	pool.MarkExhausted(a)

	b, err := pool.NextAvailable()
	if err != nil {
		t.Fatalf("next available: %v", err)
	}
	pool.MarkInvalid(b)

	snap := pool.Snapshot()
	if snap.Total != 3 || snap.Available != 1 || snap.Exhausted != 1 || snap.Invalid != 1 {
		t.Fatalf("unexpected snapshot counts: %+v", snap)
	}
	if len(snap.Keys) != 3 {
		t.Fatalf("expected 3 key statuses, got %d", len(snap.Keys))
	}
	if snap.Keys[0].KeySuffix != "aaaa" {
		t.Fatalf("expected key suffix aaaa, got %s", snap.Keys[0].KeySuffix)
	}
}

func TestPoolEmpty(t *testing.T) {
	pool := NewPool(nil, 100)
	if _, err := pool.NextAvailable(); !errors.Is(err, ErrAllExhausted) {
		t.Fatalf("expected ErrAllExhausted for empty pool, got %v", err)
	}
}
