package lfq

import (
	"code.hybscloud.com/atomix"
)

// HyalineDefaultSlots is the default number of reference-count head slots
// (K in spec §4.C).
const HyalineDefaultSlots = 4

// hyalineBatchSize is the thread-local batch size before a flush forces a
// real retire_batch (N in the original's BatchList).
const hyalineBatchSize = 16

// hyalineNode is either a payload node (isRef == false, data holds the
// retired pointer) or a shared reference-count node (isRef == true, one
// per retirement batch).
type hyalineNode[T any] struct {
	isRef      bool
	nref       atomix.Int64     // valid iff isRef
	othersNext *hyalineNode[T]  // valid iff !isRef: link through older batch heads
	nrefNode   *hyalineNode[T]  // this node's owning reference-count node
	batchNext  *hyalineNode[T]  // next node within the same batch
	data       *T
}

// hyalineHeadSlot is one (href, hptr) pair. Every update replaces the
// whole slot via a pointer CAS rather than packing both fields into one
// word: a packed integer would be invisible to the garbage collector, and
// hptr must stay reachable for as long as any slot or chain points at it.
type hyalineHeadSlot[T any] struct {
	href uint64
	hptr *hyalineNode[T]
}

// hyalineBatch is a token-owned accumulator of not-yet-batched retirements.
type hyalineBatch[T any] struct {
	items []*T
}

// Hyaline is a K-slot batched reference-counting reclamation domain
// (component C), an alternative to the hazard-pointer domain (B) not used
// by any other component in this module.
type Hyaline[T any] struct {
	k       int
	adjs    int64
	heads   []atomix.Pointer[hyalineHeadSlot[T]]
	batches *Registry[hyalineBatch[T]]
	freeFn  func(*T)
}

// NewHyaline creates a Hyaline domain with k slots (HyalineDefaultSlots if
// k <= 0) and a deleter applied to every retired pointer once safe.
func NewHyaline[T any](k int, freeFn func(*T)) *Hyaline[T] {
	if k <= 0 {
		k = HyalineDefaultSlots
	}
	return &Hyaline[T]{
		k:       k,
		adjs:    int64((^uint64(0))/uint64(k)) + 1,
		heads:   make([]atomix.Pointer[hyalineHeadSlot[T]], k),
		batches: NewRegistry[hyalineBatch[T]](),
		freeFn:  freeFn,
	}
}

// slotFor picks a head slot for token. The original hard-codes slot 0 for
// both Enter and Handle release ("// TODO" in hyaline.rs); this module
// resolves that Open Question by hashing the token, while preserving the
// original's invariant that the same call site always uses the slot it
// entered with (carried on the Handle, not recomputed at release time).
func (h *Hyaline[T]) slotFor(token *Token) int {
	id := token.id
	id ^= id >> 33
	id *= 0xff51afd7ed558ccd
	id ^= id >> 33
	return int(id % uint64(h.k))
}

// Handle is returned by Enter; it acts as a guard for the critical section
// and the capability to Retire pointers observed during it.
type Handle[T any] struct {
	hptr   *hyalineNode[T]
	slot   int
	domain *Hyaline[T]
	batch  *hyalineBatch[T]
}

// Enter begins a critical section for token, publishing that this thread
// may hold references into the structure Hyaline protects.
func (h *Hyaline[T]) Enter(token *Token) *Handle[T] {
	slot := h.slotFor(token)

	var oldHref uint64
	var oldHptr *hyalineNode[T]
	for {
		old := h.heads[slot].LoadAcquire()
		if old != nil {
			oldHref, oldHptr = old.href, old.hptr
		} else {
			oldHref, oldHptr = 0, nil
		}
		next := &hyalineHeadSlot[T]{href: oldHref + 1, hptr: oldHptr}
		if h.heads[slot].CompareAndSwapAcqRel(old, next) {
			break
		}
	}

	batch := h.batches.GetOr(token, func() *hyalineBatch[T] { return &hyalineBatch[T]{} })
	return &Handle[T]{hptr: oldHptr, slot: slot, domain: h, batch: batch}
}

// Retire hands ptr to the domain. ptr must not be reachable by any new
// caller of Enter from this point on.
func (hd *Handle[T]) Retire(ptr *T) {
	if len(hd.batch.items) < hyalineBatchSize {
		hd.batch.items = append(hd.batch.items, ptr)
		return
	}
	hd.domain.flushBatch(hd.batch)
	hd.batch.items = append(hd.batch.items, ptr)
}

func (h *Hyaline[T]) flushBatch(batch *hyalineBatch[T]) {
	items := batch.items
	batch.items = nil
	if len(items) == 0 {
		return
	}

	refNode := &hyalineNode[T]{isRef: true}
	var head, tail *hyalineNode[T]
	for _, it := range items {
		n := &hyalineNode[T]{nrefNode: refNode, data: it}
		if tail != nil {
			tail.batchNext = n
		} else {
			head = n
		}
		tail = n
	}
	refNode.batchNext = head
	h.retireBatch(head, refNode)
}

func (h *Hyaline[T]) retireBatch(firstNode, refNode *hyalineNode[T]) {
	refNode.nref.StoreRelease(0)

	doAdj := false
	var empty int64
	cur := firstNode

slotLoop:
	for slot := 0; slot < h.k; slot++ {
		for {
			old := h.heads[slot].LoadAcquire()
			var oldHref uint64
			var oldHptr *hyalineNode[T]
			if old != nil {
				oldHref, oldHptr = old.href, old.hptr
			}
			if oldHref == 0 {
				doAdj = true
				empty += h.adjs
				continue slotLoop
			}

			cur.othersNext = oldHptr
			next := &hyalineHeadSlot[T]{href: oldHref, hptr: cur}
			if h.heads[slot].CompareAndSwapAcqRel(old, next) {
				h.adjust(oldHptr, h.adjs+int64(oldHref))
				cur = cur.batchNext
				continue slotLoop
			}
		}
	}

	if doAdj {
		h.adjust(firstNode, empty)
	}
}

func (h *Hyaline[T]) adjust(node *hyalineNode[T], val int64) {
	if node == nil {
		return
	}
	refNode := node.nrefNode
	if refNode == nil || !refNode.isRef {
		return
	}
	if refNode.nref.AddAcqRel(val) == -val {
		h.freeBatch(refNode.batchNext)
	}
}

func (h *Hyaline[T]) traverse(next *hyalineNode[T], stopAt *hyalineNode[T]) {
	for next != nil {
		current := next
		next = current.othersNext

		refNode := current.nrefNode
		if refNode != nil && refNode.isRef {
			if refNode.nref.AddAcqRel(-1) == 1 {
				h.freeBatch(refNode.batchNext)
			}
		}
		if current == stopAt {
			break
		}
	}
}

func (h *Hyaline[T]) freeBatch(start *hyalineNode[T]) {
	cur := start
	for cur != nil {
		next := cur.batchNext
		if cur.data != nil {
			h.freeFn(cur.data)
		}
		cur = next
	}
}

// Release exits the critical section. Between Enter and Release, no
// pointer retired via Retire has been passed to freeFn (spec §8 property
// 8): a batch is only freed once every slot that could have observed it
// has either released (here) or was empty at swing time.
func (hd *Handle[T]) Release() {
	slot := hd.slot
	domain := hd.domain

	var current hyalineHeadSlot[T]
	var next *hyalineNode[T]
	for {
		old := domain.heads[slot].LoadAcquire()
		if old != nil {
			current = *old
		} else {
			current = hyalineHeadSlot[T]{}
		}

		if current.hptr != hd.hptr {
			next = current.hptr.othersNext
		}

		var newHptr *hyalineNode[T]
		if current.href != 1 {
			newHptr = current.hptr
		}
		newSlot := &hyalineHeadSlot[T]{href: current.href - 1, hptr: newHptr}
		if domain.heads[slot].CompareAndSwapAcqRel(old, newSlot) {
			break
		}
	}

	if current.href == 1 && current.hptr != nil {
		domain.adjust(current.hptr, domain.adjs)
	}
	if current.hptr != hd.hptr {
		domain.traverse(next, hd.hptr)
	}
}
