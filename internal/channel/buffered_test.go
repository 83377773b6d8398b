package channel

import "testing"

func TestBuffered_TrySendDropsWhenFull(t *testing.T) {
	b := NewBuffered[string](2)
	if !b.TrySend("a") || !b.TrySend("b") {
		t.Fatal("expected the first two sends to be queued")
	}
	if b.TrySend("c") {
		t.Error("expected send to a full buffer to be dropped")
	}
	if b.Len() != 2 {
		t.Errorf("expected 2 queued items, got %d", b.Len())
	}
	if got := <-b.Receive(); got != "a" {
		t.Errorf("expected FIFO order, got %q", got)
	}
	if !b.TrySend("d") {
		t.Error("expected send after a receive to succeed")
	}
}
