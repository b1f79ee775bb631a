package lfq

// Builder configures and creates a queue with a fluent API, selecting
// among this module's bounded and unbounded algorithms for a given
// producer/consumer cardinality.
//
// Example:
//
//	p, c := lfq.BuildSPSC[Event](lfq.New(1024))
//	q := lfq.BuildMPMC[Request](lfq.New(4096).Compact())
type Builder struct {
	capacity int
	compact  bool
}

// New creates a queue builder with the given capacity. Capacity rounds
// up to the next power of 2. Panics if capacity < 2.
func New(capacity int) *Builder {
	if capacity < 2 {
		panic("lfq: capacity must be >= 2")
	}
	return &Builder{capacity: capacity}
}

// Compact selects the NCQ variant for BuildMPMC: n physical slots instead
// of the SCQ default's 2n, trading away the isSafe wraparound bit for
// half the memory. Every other Build* method ignores Compact.
func (b *Builder) Compact() *Builder {
	b.compact = true
	return b
}

// BuildSPSC creates a bounded single-producer single-consumer queue
// (component D).
func BuildSPSC[T any](b *Builder) (*SPSCProducer[T], *SPSCConsumer[T]) {
	return NewSPSC[T](b.capacity)
}

// BuildSPSCUnbounded creates an unbounded single-producer single-consumer
// queue (component E) made of chained segments sized by the builder's
// capacity.
func BuildSPSCUnbounded[T any](b *Builder) (*SPSCUnboundedProducer[T], *SPSCUnboundedConsumer[T]) {
	return NewSPSCUnbounded[T](b.capacity)
}

// BuildJiffy creates an unbounded multi-producer single-consumer queue
// (component F) with buffer segments sized by the builder's capacity.
func BuildJiffy[T any](b *Builder) (*JiffySender[T], *JiffyReceiver[T]) {
	return NewJiffy[T](b.capacity)
}

// BuildMPMC creates a bounded multi-producer multi-consumer queue
// (component G): SCQ by default, NCQ if Compact was called.
func BuildMPMC[T any](b *Builder) *MPMC[T] {
	if b.compact {
		return NewMPMCCompact[T](b.capacity)
	}
	return NewMPMC[T](b.capacity)
}

// BuildLSCQ creates an unbounded multi-producer multi-consumer queue
// (component H) out of segments sized by the builder's capacity, sharing
// domain for reclamation (a fresh private domain if nil).
func BuildLSCQ[T any](b *Builder, domain *Domain) *LSCQ[T] {
	return NewLSCQ[T](domain, b.capacity)
}
