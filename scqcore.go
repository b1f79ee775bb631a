package lfq

import (
	"code.hybscloud.com/atomix"
)

// scqRing is the FAA-based bounded ring shared by the SCQ and NCQ variants
// of component G. Each slot packs a cycle counter and an isSafe bit into
// one atomic word: bit 0 is isSafe, the remaining bits are the cycle.
//
// Grounded on the teacher's mpmc.go for the FAA/cycle/threshold/catchup
// skeleton, extended with original_source/src/queues/mpmc/queue/scq.rs's
// isSafe bit. The original additionally indirects through separate aq/fq
// index queues (queue.rs's Bounded<T,UQ>) so the same machinery can index
// into a freelist of arbitrary items; this module only ever needs to ring
// T values directly, so the index queue is specialized straight into the
// data-carrying ring the teacher already had, rather than built as a
// separate generic layer.
type scqRing[T any] struct {
	_         pad
	tail      atomix.Uint64
	_         pad
	head      atomix.Uint64
	_         pad
	threshold atomix.Int64
	_         pad
	draining  atomix.Bool
	_         pad
	compact   bool // true selects the NCQ variant: isSafe is never consulted
	buffer    []scqSlot[T]
	capacity  uint64
	size      uint64
	mask      uint64
}

type scqSlot[T any] struct {
	entry atomix.Uint64 // (cycle << 1) | isSafe
	data  T
	_     padShort
}

func packEntry(cycle uint64, safe bool) uint64 {
	e := cycle << 1
	if safe {
		e |= 1
	}
	return e
}

func unpackEntry(e uint64) (cycle uint64, safe bool) {
	return e >> 1, e&1 != 0
}

// newSCQRing builds a ring with 2n physical slots for capacity n, the SCQ
// requirement for cycle-based wraparound safety. compact selects the NCQ
// variant (no isSafe gating, n physical slots reused directly) by instead
// using n slots when true — NCQ has no ABA concern to buy off with the
// extra factor of two, matching original_source's simpler single-field
// variant repurposed from the teacher's Compact() flag.
func newSCQRing[T any](capacity int, compact bool) *scqRing[T] {
	if capacity < 2 {
		panic("lfq: capacity must be >= 2")
	}

	n := uint64(roundToPow2(capacity))
	size := n
	if !compact {
		size = n * 2
	}

	q := &scqRing[T]{
		buffer:   make([]scqSlot[T], size),
		capacity: n,
		size:     size,
		mask:     size - 1,
		compact:  compact,
	}
	q.threshold.StoreRelaxed(3*int64(n) - 1)

	for i := uint64(0); i < size; i++ {
		q.buffer[i].entry.StoreRelaxed(packEntry(i/n, true))
	}
	return q
}

func (q *scqRing[T]) cap() int { return int(q.capacity) }

func (q *scqRing[T]) drain() { q.draining.StoreRelease(true) }

func (q *scqRing[T]) catchup(tail, head uint64) {
	for tail < head {
		if q.tail.CompareAndSwapRelaxed(tail, head) {
			break
		}
		tail = q.tail.LoadRelaxed()
		head = q.head.LoadRelaxed()
	}
}
