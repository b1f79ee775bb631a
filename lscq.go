package lfq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// LSCQSegmentCapacity is the per-segment capacity of an unbounded MPMC
// queue (component H).
const LSCQSegmentCapacity = 1024

// lscqSegment is one node of the unbounded queue's segment list: a
// bounded SCQ ring plus a link to its successor. A segment is finalized
// once every slot a producer could still claim has been consumed by some
// dequeuer racing to declare the segment empty (spec §3 "finalized
// segment"): Enqueue on a finalized segment must move to the next one
// instead of wrapping into stale slots.
type lscqSegment[T any] struct {
	ring *MPMC[T]
	next atomix.Pointer[lscqSegment[T]]
}

// LSCQ is an unbounded multi-producer multi-consumer queue built from a
// linked list of bounded SCQ segments (component H), reclaiming retired
// segments through a hazard-pointer domain.
//
// Grounded on original_source/src/queues/mpmc/unbounded.rs and
// unbounded/queue.rs in full.
type LSCQ[T any] struct {
	_          pad
	head       atomix.Pointer[lscqSegment[T]]
	_          pad
	tail       atomix.Pointer[lscqSegment[T]]
	_          pad
	senders    atomix.Int64
	_          pad
	receivers  atomix.Int64
	domain     *Domain
	segmentCap int
}

// NewLSCQ creates an empty unbounded MPMC queue whose segments have
// capacity segmentCap (LSCQSegmentCapacity if <= 0). domain is the
// hazard-pointer domain used to reclaim drained segments; pass a shared
// domain when multiple LSCQ instances exist in the same program to
// amortize its retire-list scanning.
//
// The returned queue starts with no open sender or receiver handles; call
// NewSender/NewReceiver to obtain the first one of each. While the
// open-sender count is zero, Dequeue on an empty queue reports ErrClosed;
// while the open-receiver count is zero, Enqueue reports ErrClosed.
func NewLSCQ[T any](domain *Domain, segmentCap int) *LSCQ[T] {
	if domain == nil {
		domain = NewDomain(0)
	}
	if segmentCap <= 0 {
		segmentCap = LSCQSegmentCapacity
	}
	first := &lscqSegment[T]{ring: NewMPMC[T](segmentCap)}
	q := &LSCQ[T]{domain: domain, segmentCap: segmentCap}
	q.head.StoreRelaxed(first)
	q.tail.StoreRelaxed(first)
	return q
}

// LSCQSender and LSCQReceiver are the sender and receiver references into
// an LSCQ, each carrying the Token its holder presents to the shared
// hazard domain.
type LSCQSender[T any] struct {
	q     *LSCQ[T]
	token *Token
}

type LSCQReceiver[T any] struct {
	q     *LSCQ[T]
	token *Token
}

// NewSender returns an additional sender handle, incrementing the queue's
// open-sender count.
func (q *LSCQ[T]) NewSender(token *Token) *LSCQSender[T] {
	q.senders.AddAcqRel(1)
	return &LSCQSender[T]{q: q, token: token}
}

// NewReceiver returns an additional receiver handle, incrementing the
// queue's open-receiver count.
func (q *LSCQ[T]) NewReceiver(token *Token) *LSCQReceiver[T] {
	q.receivers.AddAcqRel(1)
	return &LSCQReceiver[T]{q: q, token: token}
}

// Enqueue adds an element, allocating and linking a new segment once the
// current tail segment is full.
func (s *LSCQSender[T]) Enqueue(elem *T) error {
	q := s.q
	if q.receivers.LoadAcquire() <= 0 {
		return ErrClosed
	}
	sw := spin.Wait{}
	for {
		guard := HazardProtect(q.domain, s.token, &q.tail)
		seg := guard.Get()

		err := seg.ring.Enqueue(elem)
		if err == nil {
			guard.Release()
			return nil
		}
		if !IsWouldBlock(err) {
			guard.Release()
			return err
		}

		// Current tail segment is full: link a new one, or help finish a
		// link another producer already started.
		next := seg.next.LoadAcquire()
		if next == nil {
			fresh := &lscqSegment[T]{ring: NewMPMC[T](q.segmentCap)}
			if seg.next.CompareAndSwapAcqRel(nil, fresh) {
				q.tail.CompareAndSwapAcqRel(seg, fresh)
				next = fresh
			} else {
				next = seg.next.LoadAcquire()
			}
		} else {
			q.tail.CompareAndSwapAcqRel(seg, next)
		}
		guard.Release()
		sw.Once()
	}
}

// Close marks this sender closed.
func (s *LSCQSender[T]) Close() {
	if s.q.senders.AddAcqRel(-1) < 0 {
		s.q.senders.StoreRelease(0)
	}
}

// Dequeue removes and returns an element, advancing past and retiring
// drained segments.
func (r *LSCQReceiver[T]) Dequeue() (T, error) {
	q := r.q
	for {
		// Read the sender count before the ring, so an element enqueued
		// before the last sender closed is seen by the Dequeue below.
		closed := q.senders.LoadAcquire() <= 0
		guard := HazardProtect(q.domain, r.token, &q.head)
		seg := guard.Get()

		v, err := seg.ring.Dequeue()
		if err == nil {
			guard.Release()
			return v, nil
		}
		if !IsWouldBlock(err) {
			guard.Release()
			var zero T
			return zero, err
		}

		next := seg.next.LoadAcquire()
		if next == nil {
			guard.Release()
			var zero T
			if closed {
				return zero, ErrClosed
			}
			return zero, ErrWouldBlock
		}

		// seg is finalized (it has a successor) but reported empty. A
		// producer can still be between its tail reservation and the
		// StoreRelease of that slot's data on seg; reset seg's threshold
		// and retry once so that straggler gets drained before seg is
		// retired out from under it.
		seg.ring.Drain()
		if v, err := seg.ring.Dequeue(); err == nil {
			guard.Release()
			return v, nil
		}

		// This segment is drained and has a successor: advance head and
		// retire it. Only the goroutine that wins the head swing retires,
		// so a segment is never queued for reclamation twice.
		if q.head.CompareAndSwapAcqRel(seg, next) {
			// The deleter is a no-op: Go's GC reclaims the segment once
			// no guard and no typed pointer reaches it. Retire's only
			// job here is delaying that point until Scan confirms no
			// hazard record still protects it.
			HazardRetire(q.domain, r.token, seg, func(s *lscqSegment[T]) {})
		}
		guard.Release()
	}
}

// Closed reports whether every sender has closed. Dequeue is the
// authoritative drain signal (it returns ErrClosed once the last segment
// is both finalized and empty); Closed is a cheap, non-consuming
// approximation for callers that only want to stop polling.
func (r *LSCQReceiver[T]) Closed() bool {
	return r.q.senders.LoadAcquire() <= 0
}

// Close marks this receiver closed.
func (r *LSCQReceiver[T]) Close() {
	if r.q.receivers.AddAcqRel(-1) < 0 {
		r.q.receivers.StoreRelease(0)
	}
}
