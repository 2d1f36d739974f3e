package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestWorker_Sweep_Batches(t *testing.T) {
	t.Parallel()

	sweeper := &stubSweeper{deleteResults: []int{2, 2, 1}}
	worker := NewWorker("test", sweeper, WithBatchSize(2))

	deleted, err := worker.Sweep(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if deleted != 5 {
		t.Fatalf("unexpected deleted total: got=%d want=5", deleted)
	}
	if calls := sweeper.calls(); calls != 3 {
		t.Fatalf("unexpected delete calls: got=%d want=3", calls)
	}
}

func TestWorker_Sweep_Error(t *testing.T) {
	t.Parallel()

	sweeper := &stubSweeper{deleteErrors: []error{errors.New("boom")}}
	worker := NewWorker("test", sweeper, WithBatchSize(10))

	deleted, err := worker.Sweep(context.Background(), time.Now().UTC())
	if err == nil {
		t.Fatal("expected Sweep error")
	}
	if deleted != 0 {
		t.Fatalf("unexpected deleted total: got=%d want=0", deleted)
	}
}

func TestWorker_Sweep_MemoryStore(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewKeyValueStoreWithClock(func() time.Time { return now })
	ctx := context.Background()
	for _, key := range []string{"v1:s:a:k", "v1:s:b:k", "v1:s:c:k"} {
		if err := store.Set(ctx, key, "[]", time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if err := store.Set(ctx, "v1:p:a:guestId", "g", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	worker := NewWorker("visitor-kv", store, WithBatchSize(2), WithClock(func() time.Time { return now.Add(time.Hour) }))
	deleted, err := worker.Sweep(ctx, time.Time{})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 expired keys removed, got %d", deleted)
	}
	if _, err := store.Get(ctx, "v1:p:a:guestId"); err != nil {
		t.Fatalf("persistent key must survive: %v", err)
	}
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	sweeper := &stubSweeper{deleteResults: []int{0, 0, 0}}
	worker := NewWorker("test", sweeper, WithInterval(5*time.Millisecond), WithBatchSize(10))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
	if calls := sweeper.calls(); calls == 0 {
		t.Fatal("expected cleanup to be called at least once")
	}
}

func TestWorker_Run_NilSweeperReturns(t *testing.T) {
	t.Parallel()

	worker := NewWorker("noop", nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker with nil sweeper must return immediately")
	}
	if worker.Target() != "noop" {
		t.Fatalf("unexpected target %q", worker.Target())
	}
}

type stubSweeper struct {
	mu sync.Mutex

	deleteResults []int
	deleteErrors  []error
	callCount     int
}

func (s *stubSweeper) DeleteExpired(_ context.Context, _ time.Time, _ int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++

	if len(s.deleteErrors) > 0 {
		err := s.deleteErrors[0]
		s.deleteErrors = s.deleteErrors[1:]
		if err != nil {
			return 0, err
		}
	}

	if len(s.deleteResults) == 0 {
		return 0, nil
	}
	result := s.deleteResults[0]
	s.deleteResults = s.deleteResults[1:]
	return result, nil
}

func (s *stubSweeper) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}
