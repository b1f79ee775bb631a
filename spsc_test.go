package lfq_test

import (
	"errors"
	"testing"

	"code.nilpath.dev/lfq"
)

// TestSPSCED is the SPSC-ED scenario: capacity 3 rounds up to 4, fill,
// drain one, refill, then drain the next three in FIFO order.
func TestSPSCED(t *testing.T) {
	p, c := lfq.NewSPSC[int](3)

	if p.Cap() != 4 {
		t.Fatalf("Cap: got %d, want 4", p.Cap())
	}

	for i := range 4 {
		v := i
		if err := p.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}

	v := 99
	if err := p.Enqueue(&v); !errors.Is(err, lfq.ErrWouldBlock) {
		t.Fatalf("Enqueue on full: got %v, want ErrWouldBlock", err)
	}

	got, err := c.Dequeue()
	if err != nil || got != 0 {
		t.Fatalf("Dequeue: got (%d, %v), want (0, nil)", got, err)
	}

	v = 3
	if err := p.Enqueue(&v); err != nil {
		t.Fatalf("Enqueue after drain: %v", err)
	}

	for i, want := range []int{1, 2, 3} {
		got, err := c.Dequeue()
		if err != nil || got != want {
			t.Fatalf("Dequeue(%d): got (%d, %v), want (%d, nil)", i, got, err, want)
		}
	}
}

func TestSPSCCloseByConsumer(t *testing.T) {
	p, c := lfq.NewSPSC[int](4)
	c.Close()

	v := 1
	if err := p.Enqueue(&v); !errors.Is(err, lfq.ErrClosed) {
		t.Fatalf("Enqueue after consumer close: got %v, want ErrClosed", err)
	}
}
