package reccache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type stubStore struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	setErr error
	sets   int
}

func newStubStore() *stubStore {
	return &stubStore{data: make(map[string]string)}
}

func (s *stubStore) Get(_ context.Context, d domain.Durability, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	v, ok := s.data[string(d)+"/"+key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return v, nil
}

func (s *stubStore) Set(_ context.Context, d domain.Durability, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.sets++
	s.data[string(d)+"/"+key] = value
	return nil
}

func (s *stubStore) Delete(_ context.Context, d domain.Durability, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(d)+"/"+key)
	return nil
}

type countingObserver struct {
	hits, misses int
}

func (o *countingObserver) RecordCacheLookup(hit bool) {
	if hit {
		o.hits++
		return
	}
	o.misses++
}

func TestFingerprint_OrderInvariant(t *testing.T) {
	a := Fingerprint(NamespaceCart, []string{"b", "a"})
	b := Fingerprint(NamespaceCart, []string{"a", "b"})
	if a != b {
		t.Fatalf("fingerprints differ: %q vs %q", a, b)
	}
}

func TestFingerprint_CartScenario(t *testing.T) {
	got := Fingerprint(NamespaceCart, []string{"p3", "p1"})
	if got != "cart-recs-p1_p3" {
		t.Fatalf("unexpected fingerprint %q", got)
	}
	if again := Fingerprint(NamespaceCart, []string{"p1", "p3"}); again != got {
		t.Fatalf("expected %q, got %q", got, again)
	}
}

func TestNormalizeIDs(t *testing.T) {
	got := NormalizeIDs([]string{" p2", "p1", "", "p2", "  ", "p1"})
	want := []string{"p1", "p2"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestCache_SetThenGet(t *testing.T) {
	store := newStubStore()
	obs := &countingObserver{}
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	cache := New(store, WithObserver(obs), WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	products := []domain.Product{{ID: "1", ExternalID: "e1", Name: "Tee"}}
	if err := cache.Set(ctx, "cart-recs-e1", products); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok := cache.Get(ctx, "cart-recs-e1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 1 || got[0].Name != "Tee" {
		t.Fatalf("unexpected value %#v", got)
	}

	got[0].Name = "mutated"
	again, _ := cache.Get(ctx, "cart-recs-e1")
	if again[0].Name != "Tee" {
		t.Fatal("cached value must be returned as a copy")
	}
	if obs.hits != 2 || obs.misses != 0 {
		t.Fatalf("unexpected observer counts: %+v", obs)
	}
}

func TestCache_MissingKeyIsMiss(t *testing.T) {
	obs := &countingObserver{}
	cache := New(newStubStore(), WithObserver(obs))

	if _, ok := cache.Get(context.Background(), "product-recs-x"); ok {
		t.Fatal("expected miss")
	}
	if obs.misses != 1 {
		t.Fatalf("expected one miss, got %d", obs.misses)
	}
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	store := newStubStore()
	store.data["session/cart-recs-a"] = "{not json"
	cache := New(store)

	if _, ok := cache.Get(context.Background(), "cart-recs-a"); ok {
		t.Fatal("corrupt entry must be a miss")
	}
}

func TestCache_KeyMismatchIsMiss(t *testing.T) {
	store := newStubStore()
	cache := New(store)
	ctx := context.Background()

	if err := cache.Set(ctx, "cart-recs-a", []domain.Product{{ID: "1"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	store.data["session/cart-recs-b"] = store.data["session/cart-recs-a"]

	if _, ok := cache.Get(ctx, "cart-recs-b"); ok {
		t.Fatal("entry written under another key must be a miss")
	}
}

func TestCache_StoreFailureIsMiss(t *testing.T) {
	store := newStubStore()
	store.getErr = errors.New("backend down")
	cache := New(store)

	if _, ok := cache.Get(context.Background(), "cart-recs-a"); ok {
		t.Fatal("store failure must be a miss")
	}
}

func TestCache_SetPropagatesStoreError(t *testing.T) {
	store := newStubStore()
	store.setErr = errors.New("disk full")
	cache := New(store)

	if err := cache.Set(context.Background(), "k", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestCache_EmptyListIsCached(t *testing.T) {
	cache := New(newStubStore())
	ctx := context.Background()

	if err := cache.Set(ctx, "cart-recs-a", nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := cache.Get(ctx, "cart-recs-a")
	if !ok {
		t.Fatal("expected hit for cached empty list")
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}
