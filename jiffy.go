package lfq

import (
	"code.hybscloud.com/atomix"
)

// JiffyDefaultBufferSize is the default node count per buffer (component F).
const JiffyDefaultBufferSize = 1024

const (
	jiffyEmpty uint64 = iota
	jiffySet
	jiffyHandled
)

type jiffyNode[T any] struct {
	state atomix.Uint64
	data  T
}

// jiffyBuffer is one fixed-size segment of the buffer list. Buffers form a
// doubly-linked list; position_in_queue * bufferSize gives the absolute
// index of buffer[0].
type jiffyBuffer[T any] struct {
	previous        atomix.Pointer[jiffyBuffer[T]]
	next            atomix.Pointer[jiffyBuffer[T]]
	buffer          []jiffyNode[T]
	head            int // consumer cursor; owned exclusively by the single consumer
	positionInQueue uint64
}

func newJiffyBuffer[T any](previous *jiffyBuffer[T], positionInQueue uint64, bufferSize int) *jiffyBuffer[T] {
	b := &jiffyBuffer[T]{
		buffer:          make([]jiffyNode[T], bufferSize),
		positionInQueue: positionInQueue,
	}
	b.previous.StoreRelaxed(previous)
	return b
}

// jiffyCore is the state shared by a Jiffy sender/receiver pair.
type jiffyCore[T any] struct {
	bufferSize  int
	_           pad
	tail        atomix.Uint64 // shared producer reservation counter
	_           pad
	tailOfQueue atomix.Pointer[jiffyBuffer[T]]
	_           pad
	headOfQueue *jiffyBuffer[T] // owned exclusively by the single consumer
	_           pad
	closed      atomix.Bool
}

// JiffySender is the write side of an unbounded MPSC Jiffy queue.
type JiffySender[T any] struct {
	core *jiffyCore[T]
}

// JiffyReceiver is the read side of an unbounded MPSC Jiffy queue.
type JiffyReceiver[T any] struct {
	core *jiffyCore[T]
}

// NewJiffy creates a Jiffy sender/receiver pair. bufferSize defaults to
// JiffyDefaultBufferSize when <= 0.
func NewJiffy[T any](bufferSize int) (*JiffySender[T], *JiffyReceiver[T]) {
	if bufferSize <= 0 {
		bufferSize = JiffyDefaultBufferSize
	}

	initial := newJiffyBuffer[T](nil, 0, bufferSize)
	core := &jiffyCore[T]{bufferSize: bufferSize, headOfQueue: initial}
	core.tailOfQueue.StoreRelaxed(initial)

	return &JiffySender[T]{core: core}, &JiffyReceiver[T]{core: core}
}

// Close marks the queue closed. Idempotent; safe to call from either side.
func (s *JiffySender[T]) Close() { s.core.closed.StoreRelease(true) }

// Close marks the queue closed. Idempotent; safe to call from either side.
func (r *JiffyReceiver[T]) Close() { r.core.closed.StoreRelease(true) }

// Closed reports whether the queue has been closed.
func (r *JiffyReceiver[T]) Closed() bool { return r.core.closed.LoadAcquire() }

// linkNext returns buf's successor, creating and CAS-linking one if none
// exists yet. On success it also best-effort swings tailOfQueue forward.
func linkNext[T any](core *jiffyCore[T], buf *jiffyBuffer[T]) *jiffyBuffer[T] {
	if existing := buf.next.LoadAcquire(); existing != nil {
		return existing
	}

	next := newJiffyBuffer[T](buf, buf.positionInQueue+1, core.bufferSize)
	if buf.next.CompareAndSwapAcqRel(nil, next) {
		core.tailOfQueue.CompareAndSwapAcqRel(buf, next)
		return next
	}
	// Lost the race; the competing buffer is already linked. Ours becomes
	// garbage — no manual free needed, the GC reclaims it.
	return buf.next.LoadAcquire()
}

// Enqueue reserves the next absolute position via fetch-add, locates the
// buffer that covers it (walking forward or backward as needed), and
// publishes the value.
func (s *JiffySender[T]) Enqueue(elem *T) error {
	core := s.core
	if core.closed.LoadAcquire() {
		return ErrClosed
	}

	location := core.tail.AddAcqRel(1) - 1
	buf := core.tailOfQueue.LoadAcquire()

	end := func(b *jiffyBuffer[T]) uint64 {
		return b.positionInQueue*uint64(core.bufferSize) + uint64(core.bufferSize)
	}
	for location >= end(buf) {
		buf = linkNext(core, buf)
	}
	for location < buf.positionInQueue*uint64(core.bufferSize) {
		buf = buf.previous.LoadAcquire()
	}

	idx := int(location - buf.positionInQueue*uint64(core.bufferSize))
	buf.buffer[idx].data = *elem
	buf.buffer[idx].state.StoreRelease(jiffySet)

	// Speculatively pre-allocate the successor once the third slot of what
	// is still the tail buffer has been filled, so producers racing ahead
	// rarely have to allocate on the hot path.
	if idx == 2 && core.tailOfQueue.LoadAcquire() == buf {
		linkNext(core, buf)
	}

	return nil
}

// Dequeue is single-consumer only.
func (r *JiffyReceiver[T]) Dequeue() (T, error) {
	core := r.core
	var zero T

	for {
		buf := core.headOfQueue
		if buf.head >= core.bufferSize {
			next := buf.next.LoadAcquire()
			if next == nil {
				return r.closedResult()
			}
			core.headOfQueue = next
			next.previous.StoreRelease(nil)
			continue
		}

		node := &buf.buffer[buf.head]
		state := node.state.LoadAcquire()
		for state == jiffyHandled {
			buf.head++
			if buf.head >= core.bufferSize {
				next := buf.next.LoadAcquire()
				if next == nil {
					return r.closedResult()
				}
				core.headOfQueue = next
				next.previous.StoreRelease(nil)
				buf = next
			}
			node = &buf.buffer[buf.head]
			state = node.state.LoadAcquire()
		}

		switch state {
		case jiffySet:
			data := node.data
			node.data = zero
			buf.head++
			if buf.head >= core.bufferSize {
				if next := buf.next.LoadAcquire(); next != nil {
					core.headOfQueue = next
					next.previous.StoreRelease(nil)
				}
			}
			return data, nil

		default: // jiffyEmpty: an earlier reservation hasn't been written yet
			if found, idx := jiffyScan(buf, buf.head, core.bufferSize); idx >= 0 {
				n := &found.buffer[idx]
				data := n.data
				n.state.StoreRelease(jiffyHandled)
				return data, nil
			}
			if core.closed.LoadAcquire() {
				// Re-check once more: a producer may have raced the close.
				if found, idx := jiffyScan(buf, buf.head, core.bufferSize); idx >= 0 {
					n := &found.buffer[idx]
					data := n.data
					n.state.StoreRelease(jiffyHandled)
					return data, nil
				}
				return zero, ErrClosed
			}
			return zero, ErrWouldBlock
		}
	}
}

func (r *JiffyReceiver[T]) closedResult() (T, error) {
	var zero T
	if r.core.closed.LoadAcquire() {
		return zero, ErrClosed
	}
	return zero, ErrWouldBlock
}

// jiffyScan searches forward from (buf, head) for a Set node, opportunistically
// folding fully-Handled middle buffers it has already fully traversed.
func jiffyScan[T any](buf *jiffyBuffer[T], head, bufferSize int) (*jiffyBuffer[T], int) {
	movedToNewBuffer := false
	allHandled := true

	for {
		if head >= bufferSize {
			if allHandled && movedToNewBuffer {
				if folded, ok := foldBuffer(buf); ok {
					buf = folded
					head = buf.head
					movedToNewBuffer = true
					allHandled = true
					continue
				}
				return buf, -1
			}
			next := buf.next.LoadAcquire()
			if next == nil {
				return buf, -1
			}
			buf = next
			head = buf.head
			allHandled = true
			movedToNewBuffer = true
			continue
		}

		state := buf.buffer[head].state.LoadAcquire()
		if state == jiffySet {
			return buf, head
		}
		if state != jiffyHandled {
			allHandled = false
		}
		head++
	}
}

// foldBuffer unlinks buf from the buffer list when it is fully handled and
// is neither the head nor the tail buffer (next == nil or previous == nil
// mark those boundary cases).
func foldBuffer[T any](buf *jiffyBuffer[T]) (*jiffyBuffer[T], bool) {
	next := buf.next.LoadAcquire()
	if next == nil {
		return nil, false
	}
	prev := buf.previous.LoadAcquire()
	if prev == nil {
		return nil, false
	}
	next.previous.StoreRelease(prev)
	prev.next.StoreRelease(next)
	return next, true
}

// jiffyRescan is the Open-Question helper from bufferlist.rs's rescan: it
// re-walks from the true head of the queue looking for a node set *after*
// tempHead, which would give strict FIFO-per-producer at the cost of an
// extra full scan per Empty encounter. Spec §5 explicitly allows delivery
// order to differ between producers, so Dequeue never calls this; nothing
// else in the package calls it either.
func jiffyRescan[T any](headOfQueue *jiffyBuffer[T], tempBuf *jiffyBuffer[T], tempHead, bufferSize int) (*jiffyBuffer[T], int) {
	scanBuf := headOfQueue
	scanHead := scanBuf.head

	for {
		if scanBuf.positionInQueue == tempBuf.positionInQueue && scanHead >= tempHead {
			return tempBuf, tempHead
		}
		if scanHead >= bufferSize {
			next := scanBuf.next.LoadAcquire()
			if next == nil {
				return tempBuf, tempHead
			}
			scanBuf = next
			scanHead = scanBuf.head
			continue
		}
		if scanBuf.buffer[scanHead].state.LoadAcquire() == jiffySet {
			tempBuf = scanBuf
			tempHead = scanHead
			scanBuf = headOfQueue
			scanHead = scanBuf.head
			continue
		}
		scanHead++
	}
}
