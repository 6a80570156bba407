package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/okian/schoolboard/internal/domain/model"
)

func job(period string, d model.DashboardType) Job {
	return Job{Period: period, Dashboard: d, Reason: "test"}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, job("latest", model.Newbie)) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.Dashboard != model.Newbie || got.Period != "latest" {
		t.Errorf("unexpected job %+v", got)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, job("latest", model.Newbie)) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, job("latest", model.Graduate)) {
		t.Error("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, job("latest", model.ExamScore)) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()
	const producers, perProducer = 10, 10

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				if !q.Enqueue(ctx, job("113", model.Graduate)) {
					t.Error("expected enqueue to succeed")
				}
			}
		}()
	}
	wg.Wait()

	if l := q.Len(ctx); l != producers*perProducer {
		t.Fatalf("expected length %d, got %d", producers*perProducer, l)
	}

	_ = q.Close()
	received := 0
	for range q.Dequeue(ctx) {
		received++
	}
	if received != producers*perProducer {
		t.Errorf("expected %d jobs, got %d", producers*perProducer, received)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	if err := q.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if q.Enqueue(ctx, job("latest", model.Newbie)) {
		t.Error("expected enqueue to fail after close")
	}

	select {
	case _, ok := <-q.Dequeue(ctx):
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Error("dequeue channel was not closed")
	}
}

func TestInMemoryQueue_ContextCancel(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	ch := q.Dequeue(ctx)
	cancel()
	_ = q.Close()

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Error("dequeue goroutine did not stop")
	}
}
