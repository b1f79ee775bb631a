package lfq

import (
	"code.hybscloud.com/spin"
)

// MPMC is a bounded multi-producer multi-consumer queue (component G).
//
// Based on the SCQ (Scalable Circular Queue) algorithm by Nikolaev (DISC
// 2019): FAA blindly increments position counters instead of CASing a
// slot directly, which scales better under contention than CAS-based
// alternatives. Cycle-based slot validation gives ABA safety; the isSafe
// bit additionally protects against wraparound reuse before a dequeuer
// has finished repairing a slot it found stale.
type MPMC[T any] struct {
	ring *scqRing[T]
}

// NewMPMC creates an SCQ-variant bounded queue. Capacity rounds up to the
// next power of 2; physical slot count is 2n for capacity n.
func NewMPMC[T any](capacity int) *MPMC[T] {
	return &MPMC[T]{ring: newSCQRing[T](capacity, false)}
}

// NewMPMCCompact creates the NCQ variant: n physical slots instead of 2n,
// trading the isSafe wraparound protection for half the memory. Safe when
// producers cannot race far enough ahead of consumers to lap the ring
// before a stale slot is repaired — see spec discussion of algorithm
// selection in the package doc.
func NewMPMCCompact[T any](capacity int) *MPMC[T] {
	return &MPMC[T]{ring: newSCQRing[T](capacity, true)}
}

// Enqueue adds an element to the queue. Returns ErrWouldBlock if the
// queue is full.
func (q *MPMC[T]) Enqueue(elem *T) error {
	r := q.ring
	sw := spin.Wait{}
outer:
	for {
		tail := r.tail.LoadAcquire()
		head := r.head.LoadAcquire()
		if tail >= head+r.capacity {
			return ErrWouldBlock
		}

		myTail := r.tail.AddAcqRel(1) - 1
		slot := &r.buffer[myTail&r.mask]
		expectedCycle := myTail / r.capacity

		for {
			entry := slot.entry.LoadAcquire()
			cycle, safe := unpackEntry(entry)

			if cycle < expectedCycle {
				return ErrWouldBlock
			}

			if cycle == expectedCycle {
				// Admission gate (spec.md:154): a stale slot a dequeuer's
				// repair marked unsafe is only written while head has not
				// yet passed this position. Once a dequeuer has gone by,
				// a value written here would never be read, so the
				// producer gives up this position and reserves a new one.
				// NCQ has no Safe field at all, so compact rings skip the
				// gate.
				if !r.compact && !safe && r.head.LoadAcquire() > myTail {
					continue outer
				}

				slot.data = *elem
				slot.entry.StoreRelease(packEntry(expectedCycle+1, true))
				r.threshold.StoreRelaxed(3*int64(r.capacity) - 1)
				return nil
			}

			sw.Once()
		}
	}
}

// Drain signals that no more enqueues will occur, letting Dequeue skip
// its threshold short-circuit and drain whatever remains.
func (q *MPMC[T]) Drain() { q.ring.drain() }

// Dequeue removes and returns an element. Returns (zero-value,
// ErrWouldBlock) if the queue is empty.
func (q *MPMC[T]) Dequeue() (T, error) {
	r := q.ring
	if !r.draining.LoadAcquire() && r.threshold.LoadRelaxed() < 0 {
		var zero T
		return zero, ErrWouldBlock
	}

	sw := spin.Wait{}
	for {
		myHead := r.head.AddAcqRel(1) - 1
		slot := &r.buffer[myHead&r.mask]
		expectedCycle := myHead/r.capacity + 1

		entry := slot.entry.LoadAcquire()
		cycle, _ := unpackEntry(entry)

		if cycle == expectedCycle {
			elem := slot.data
			var zero T
			slot.data = zero
			nextEnqCycle := (myHead + r.size) / r.capacity
			slot.entry.StoreRelease(packEntry(nextEnqCycle, true))
			return elem, nil
		}

		if cycle < expectedCycle {
			// SCQ slot repair: advance the stale slot for future
			// enqueuers, marking it unsafe until a producer has actually
			// filled it at the new cycle.
			nextEnqCycle := (myHead + r.size) / r.capacity
			slot.entry.CompareAndSwapAcqRel(entry, packEntry(nextEnqCycle, false))

			tail := r.tail.LoadAcquire()
			if tail <= myHead+1 {
				r.catchup(tail, myHead+1)
				r.threshold.AddAcqRel(-1)
				var zero T
				return zero, ErrWouldBlock
			}
			if r.threshold.AddAcqRel(-1) <= 0 && !r.draining.LoadAcquire() {
				var zero T
				return zero, ErrWouldBlock
			}
		}
		sw.Once()
	}
}

// Cap returns the queue capacity.
func (q *MPMC[T]) Cap() int { return q.ring.cap() }
