package fanout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestDo_CollectsResultsByIndex(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	results := make([]int, len(items))

	err := Do(context.Background(), 4, items, func(_ context.Context, i int, item int) error {
		results[i] = item * 10
		return nil
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for i, item := range items {
		if results[i] != item*10 {
			t.Errorf("Expected results[%d] = %d, got %d", i, item*10, results[i])
		}
	}
}

func TestDo_EmptyInput(t *testing.T) {
	called := false
	err := Do(context.Background(), 4, nil, func(_ context.Context, _ int, _ string) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if called {
		t.Errorf("Expected fn not to be called for empty input")
	}
}

func TestDo_SequentialWhenSingleWorker(t *testing.T) {
	var order []int
	items := []int{0, 1, 2, 3}

	err := Do(context.Background(), 1, items, func(_ context.Context, i int, _ int) error {
		order = append(order, i)
		return nil
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for i, got := range order {
		if got != i {
			t.Fatalf("Expected sequential order, got %v", order)
		}
	}
}

func TestDo_FirstErrorWins(t *testing.T) {
	boom := errors.New("boom")
	items := make([]int, 20)

	err := Do(context.Background(), 4, items, func(_ context.Context, i int, _ int) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected boom error, got %v", err)
	}
}

func TestDo_RespectsWorkerLimit(t *testing.T) {
	var current, peak atomic.Int64
	var mu sync.Mutex
	items := make([]int, 32)

	err := Do(context.Background(), 4, items, func(_ context.Context, _ int, _ int) error {
		n := current.Add(1)
		mu.Lock()
		if n > peak.Load() {
			peak.Store(n)
		}
		mu.Unlock()
		defer current.Add(-1)
		return nil
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if peak.Load() > 4 {
		t.Errorf("Expected at most 4 concurrent workers, observed %d", peak.Load())
	}
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, 1, []int{1, 2}, func(_ context.Context, _ int, _ int) error {
		t.Errorf("Expected fn not to run after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
