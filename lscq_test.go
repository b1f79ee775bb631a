package lfq_test

import (
	"testing"

	"code.nilpath.dev/lfq"
)

// TestLSCQMultiBuf is the LSCQ-MULTIBUF scenario: capacity 128, enqueue
// 0..384 (spanning multiple segments), dequeue 0..384 in order.
func TestLSCQMultiBuf(t *testing.T) {
	q := lfq.NewLSCQ[int](nil, 128)
	tok := lfq.NewToken()
	s := q.NewSender(tok)
	r := q.NewReceiver(tok)

	const n = 384
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

// TestLSCQCloseAfterDrain exercises spec property 4: a receiver observes
// Closed only once every enqueued element has actually been drained, not
// merely once the sender has closed.
func TestLSCQCloseAfterDrain(t *testing.T) {
	q := lfq.NewLSCQ[int](nil, 16)
	tok := lfq.NewToken()
	s := q.NewSender(tok)
	r := q.NewReceiver(tok)

	const n = 50
	for i := 0; i < n; i++ {
		v := i
		if err := s.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}
	s.Close()

	for i := 0; i < n; i++ {
		if _, err := r.Dequeue(); lfq.IsClosed(err) {
			t.Fatalf("Dequeue(%d): premature ErrClosed before drain complete", i)
		} else if err != nil {
			t.Fatalf("Dequeue(%d): %v", i, err)
		}
	}

	if _, err := r.Dequeue(); !lfq.IsClosed(err) {
		t.Fatalf("Dequeue after full drain: got %v, want ErrClosed", err)
	}
}

func TestLSCQWouldBlockBeforeClose(t *testing.T) {
	q := lfq.NewLSCQ[int](nil, 16)
	tok := lfq.NewToken()
	_ = q.NewSender(tok)
	r := q.NewReceiver(tok)

	if _, err := r.Dequeue(); !lfq.IsWouldBlock(err) {
		t.Fatalf("Dequeue on empty, sender open: got %v, want ErrWouldBlock", err)
	}
}
