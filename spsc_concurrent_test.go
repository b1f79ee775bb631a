package lfq_test

import (
	"testing"

	"code.nilpath.dev/lfq"
)

// TestSPSCFIFOConcurrent exercises spec property 1 (SPSC FIFO): for any
// interleaving of a single producer enqueuing 0..N and a consumer
// draining, the dequeued sequence equals 0..N.
func TestSPSCFIFOConcurrent(t *testing.T) {
	if lfq.RaceEnabled {
		t.Skip("skip: lock-free sequencing relies on atomic orderings the race detector cannot model across goroutines")
	}

	const n = 4096
	p, c := lfq.NewSPSC[int](64)

	go func() {
		for i := 0; i < n; i++ {
			v := i
			for p.Enqueue(&v) != nil {
			}
		}
		p.Close()
	}()

	for i := 0; i < n; i++ {
		var got int
		for {
			v, err := c.Dequeue()
			if err == nil {
				got = v
				break
			}
			if lfq.IsClosed(err) {
				t.Fatalf("closed early at i=%d", i)
			}
		}
		if got != i {
			t.Fatalf("sequence: got %d, want %d", got, i)
		}
	}

	if _, err := c.Dequeue(); !lfq.IsClosed(err) {
		t.Fatalf("final Dequeue: got %v, want ErrClosed", err)
	}
}
