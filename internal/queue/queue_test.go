package queue

import (
	"sync"
	"testing"
)

type entry struct {
	ID    int
	Owner string
}

func TestQueue_New(t *testing.T) {
	q := New[entry]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if got := q.Drain(); len(got) != 0 {
		t.Errorf("expected nothing drained, got %v", got)
	}
}

func TestQueue_DrainKeepsOrder(t *testing.T) {
	q := New[entry]()
	q.Push(entry{ID: 1})
	q.Push(entry{ID: 2}, entry{ID: 3})

	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}

	got := q.Drain()
	if len(got) != 3 || got[0].ID != 1 || got[1].ID != 2 || got[2].ID != 3 {
		t.Errorf("unexpected items: %+v", got)
	}
	if !q.Empty() {
		t.Error("expected empty queue after Drain")
	}
}

func TestQueue_DrainedSliceIsDetached(t *testing.T) {
	q := New[entry]()
	q.Push(entry{ID: 1})
	first := q.Drain()

	q.Push(entry{ID: 2})
	if first[0].ID != 1 {
		t.Errorf("drained slice was overwritten: %+v", first)
	}
}

func TestQueue_RemoveFunc(t *testing.T) {
	q := New[entry]()
	q.Push(entry{1, "a"}, entry{2, "b"}, entry{3, "a"}, entry{4, "c"})

	n := q.RemoveFunc(func(e entry) bool { return e.Owner == "a" })
	if n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}

	got := q.Drain()
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 4 {
		t.Errorf("unexpected remaining items: %+v", got)
	}
}

func TestQueue_ConcurrentPushAndDrain(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	results := make(chan []int, 10)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.Push(id)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- q.Drain()
		}()
	}
	wg.Wait()
	close(results)

	total := 0
	for r := range results {
		total += len(r)
	}
	if total != 100 {
		t.Errorf("expected total 100 items, got %d", total)
	}
}
