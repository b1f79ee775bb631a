package lfq

import (
	"code.hybscloud.com/atomix"
)

// spscRing is a single-producer single-consumer bounded ring.
//
// Based on Lamport's ring buffer with cached index optimization: the
// producer caches the consumer's dequeue index, and vice versa, reducing
// cross-core cache line traffic on the common path where the queue is
// neither full nor empty.
type spscRing[T any] struct {
	_           pad
	head        atomix.Uint64 // consumer reads from here
	_           pad
	cachedTail  uint64 // consumer's cached view of tail
	_           pad
	tail        atomix.Uint64 // producer writes here
	_           pad
	cachedHead  uint64 // producer's cached view of head
	_           pad
	closedSend  atomix.Bool
	closedRecv  atomix.Bool
	buffer      []T
	mask        uint64
}

// SPSCProducer is the write side of a bounded SPSC queue (component D).
type SPSCProducer[T any] struct {
	ring *spscRing[T]
}

// SPSCConsumer is the read side of a bounded SPSC queue (component D).
type SPSCConsumer[T any] struct {
	ring *spscRing[T]
}

// NewSPSC creates a bounded SPSC queue, returning its producer and
// consumer halves. Capacity rounds up to the next power of 2.
//
// Grounded on queues/spsc/bounded.rs's sender/receiver split: each half
// owns a Close that sets a shared flag read by the other half, rather
// than the teacher's single-struct SPSC that exposed Enqueue/Dequeue
// directly with no notion of closure.
func NewSPSC[T any](capacity int) (*SPSCProducer[T], *SPSCConsumer[T]) {
	if capacity < 2 {
		panic("lfq: capacity must be >= 2")
	}

	n := uint64(roundToPow2(capacity))
	ring := &spscRing[T]{
		buffer: make([]T, n),
		mask:   n - 1,
	}
	return &SPSCProducer[T]{ring: ring}, &SPSCConsumer[T]{ring: ring}
}

// Enqueue adds an element to the queue. Returns ErrWouldBlock if the
// queue is full, ErrClosed if the consumer has closed its side.
func (p *SPSCProducer[T]) Enqueue(elem *T) error {
	q := p.ring
	if q.closedRecv.LoadAcquire() {
		return ErrClosed
	}

	tail := q.tail.LoadRelaxed()
	if tail-q.cachedHead > q.mask {
		q.cachedHead = q.head.LoadAcquire()
		if tail-q.cachedHead > q.mask {
			return ErrWouldBlock
		}
	}

	q.buffer[tail&q.mask] = *elem
	q.tail.StoreRelease(tail + 1)
	return nil
}

// Close marks the producer side closed. Idempotent.
func (p *SPSCProducer[T]) Close() { p.ring.closedSend.StoreRelease(true) }

// Cap returns the queue capacity.
func (p *SPSCProducer[T]) Cap() int { return int(p.ring.mask + 1) }

// Dequeue removes and returns an element. Returns (zero-value,
// ErrWouldBlock) if the queue is momentarily empty, (zero-value,
// ErrClosed) if the producer has closed and every enqueued element has
// been drained.
func (c *SPSCConsumer[T]) Dequeue() (T, error) {
	q := c.ring
	head := q.head.LoadRelaxed()
	if head >= q.cachedTail {
		q.cachedTail = q.tail.LoadAcquire()
		if head >= q.cachedTail {
			var zero T
			if !q.closedSend.LoadAcquire() {
				return zero, ErrWouldBlock
			}
			// Closed: re-read tail, since an element published just
			// before Close must still be delivered.
			q.cachedTail = q.tail.LoadAcquire()
			if head >= q.cachedTail {
				return zero, ErrClosed
			}
		}
	}

	elem := q.buffer[head&q.mask]
	var zero T
	q.buffer[head&q.mask] = zero
	q.head.StoreRelease(head + 1)
	return elem, nil
}

// Close marks the consumer side closed. Idempotent.
func (c *SPSCConsumer[T]) Close() { c.ring.closedRecv.StoreRelease(true) }

// Closed reports whether the producer has closed and the ring has been
// fully drained.
func (c *SPSCConsumer[T]) Closed() bool {
	q := c.ring
	return q.closedSend.LoadAcquire() && q.head.LoadRelaxed() >= q.tail.LoadAcquire()
}

// Cap returns the queue capacity.
func (c *SPSCConsumer[T]) Cap() int { return int(c.ring.mask + 1) }
