package lfq

// SPSCUnboundedDefaultCapacity is the capacity of each chained bounded
// segment (component E).
const SPSCUnboundedDefaultCapacity = 1024

// spscHandoff carries the producer's next ring to the consumer side, and
// an emptied ring back, so the pair never allocates on the steady-state
// path.
type spscHandoff[T any] struct {
	ring *spscRing[T]
}

// SPSCUnboundedProducer is the write side of an unbounded SPSC queue.
type SPSCUnboundedProducer[T any] struct {
	capacity int
	cur      *SPSCProducer[T]
	filled   *SPSCProducer[spscHandoff[T]]
	drained  *SPSCConsumer[spscHandoff[T]]
}

// SPSCUnboundedConsumer is the read side of an unbounded SPSC queue.
type SPSCUnboundedConsumer[T any] struct {
	capacity int
	cur      *SPSCConsumer[T]
	filled   *SPSCConsumer[spscHandoff[T]]
	drained  *SPSCProducer[spscHandoff[T]]
}

// NewSPSCUnbounded creates an unbounded SPSC queue out of a chain of
// bounded segments of the given capacity.
//
// Grounded on unbounded/d_spsc.rs: two bounded queues moving full/empty
// ring buffers between producer and consumer, so a slow consumer never
// forces the producer to allocate a new segment while an emptied one is
// available to reuse. This module realizes both of d_spsc's internal
// queues as the same bounded SPSC (component D) rather than inventing a
// second primitive.
func NewSPSCUnbounded[T any](segmentCapacity int) (*SPSCUnboundedProducer[T], *SPSCUnboundedConsumer[T]) {
	if segmentCapacity < 2 {
		segmentCapacity = SPSCUnboundedDefaultCapacity
	}

	// Depth of the handoff pipe between producer and consumer, in whole
	// segments. A producer that races this many segments ahead of the
	// consumer spins in Enqueue until the consumer catches up — the
	// queue's capacity is still unbounded, this only bounds how many
	// full segments can be in flight at once.
	const handoffDepth = 64

	filledTx, filledRx := NewSPSC[spscHandoff[T]](handoffDepth)
	drainedTx, drainedRx := NewSPSC[spscHandoff[T]](handoffDepth)

	firstTx, firstRx := NewSPSC[T](segmentCapacity)

	return &SPSCUnboundedProducer[T]{
			capacity: segmentCapacity,
			cur:      firstTx,
			filled:   filledTx,
			drained:  drainedRx,
		}, &SPSCUnboundedConsumer[T]{
			capacity: segmentCapacity,
			cur:      firstRx,
			filled:   filledRx,
			drained:  drainedTx,
		}
}

// Enqueue adds an element, allocating a new segment when the current one
// fills and no drained segment is available for reuse.
func (p *SPSCUnboundedProducer[T]) Enqueue(elem *T) error {
	if err := p.cur.Enqueue(elem); err == nil {
		return nil
	} else if IsClosed(err) {
		return err
	}

	// Current segment is full: switch to a fresh (or reused) one and
	// publish that one to the consumer, which reads it once it has drained
	// the segment it already holds.
	var next *SPSCProducer[T]
	if ho, err := p.drained.Dequeue(); err == nil {
		next = &SPSCProducer[T]{ring: ho.ring}
	} else {
		ntx, _ := NewSPSC[T](p.capacity)
		next = ntx
	}

	for {
		err := p.filled.Enqueue(&spscHandoff[T]{ring: next.ring})
		if err == nil {
			break
		}
		if IsClosed(err) {
			return ErrClosed
		}
		// Handoff depth exceeded: the consumer hasn't caught up to even
		// LIFO-adjacent segments yet. Spin rather than fail — the queue
		// is unbounded, this is purely a bounded-pipe-depth backpressure
		// stall that the consumer will relieve.
	}
	p.cur = next
	return p.cur.Enqueue(elem)
}

// Close marks the producer side closed.
func (p *SPSCUnboundedProducer[T]) Close() {
	p.cur.Close()
	p.filled.Close()
}

// Dequeue removes and returns an element, advancing to the next chained
// segment when the current one is exhausted.
func (c *SPSCUnboundedConsumer[T]) Dequeue() (T, error) {
	for {
		v, err := c.cur.Dequeue()
		if err == nil {
			return v, nil
		}
		if IsClosed(err) {
			if ho, ferr := c.filled.Dequeue(); ferr == nil {
				c.returnDrained()
				c.cur = &SPSCConsumer[T]{ring: ho.ring}
				continue
			}
			var zero T
			return zero, ErrClosed
		}

		// Current segment momentarily empty: check for a handed-off full
		// segment without blocking.
		if ho, ferr := c.filled.Dequeue(); ferr == nil {
			c.returnDrained()
			c.cur = &SPSCConsumer[T]{ring: ho.ring}
			continue
		}
		var zero T
		return zero, ErrWouldBlock
	}
}

func (c *SPSCUnboundedConsumer[T]) returnDrained() {
	_ = c.drained.Enqueue(&spscHandoff[T]{ring: c.cur.ring})
}

// Close marks the consumer side closed.
func (c *SPSCUnboundedConsumer[T]) Close() {
	c.cur.Close()
	c.drained.Close()
}

// Closed reports whether the producer has closed and every chained
// segment has been drained.
func (c *SPSCUnboundedConsumer[T]) Closed() bool {
	return c.cur.Closed() && c.filled.Closed()
}
