package lfq_test

import (
	"errors"
	"testing"

	"code.nilpath.dev/lfq"
)

// TestJiffyFill is the Jiffy-FILL scenario: fill past several buffer
// boundaries, then drain, observing 0..5120 in order (single producer).
func TestJiffyFill(t *testing.T) {
	const n = 5 * lfq.JiffyDefaultBufferSize
	s, r := lfq.NewJiffy[int](lfq.JiffyDefaultBufferSize)

	for i := 0; i < n; i++ {
		v := i
		if err := s.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}

	for i := 0; i < n; i++ {
		got, err := r.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue(%d): %v", i, err)
		}
		if got != i {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, got, i)
		}
	}
}

// TestJiffyClose is the Jiffy-CLOSE scenario: one item enqueued, sender
// closes, the pending item is still delivered before Closed.
func TestJiffyClose(t *testing.T) {
	s, r := lfq.NewJiffy[int](16)

	v := 13
	if err := s.Enqueue(&v); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	s.Close()

	got, err := r.Dequeue()
	if err != nil || got != 13 {
		t.Fatalf("Dequeue: got (%d, %v), want (13, nil)", got, err)
	}

	if _, err := r.Dequeue(); !errors.Is(err, lfq.ErrClosed) {
		t.Fatalf("Dequeue after drain: got %v, want ErrClosed", err)
	}
}

func TestJiffyEnqueueAfterClose(t *testing.T) {
	s, _ := lfq.NewJiffy[int](16)
	s.Close()

	v := 1
	if err := s.Enqueue(&v); !errors.Is(err, lfq.ErrClosed) {
		t.Fatalf("Enqueue after close: got %v, want ErrClosed", err)
	}
}
