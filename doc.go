// Package lfq provides lock-free concurrent queues, a hash-trie map, and
// the memory-reclamation machinery they need to be safe in Go without a
// tracing-GC-unfriendly manual free.
//
// # Queues
//
// Five queue shapes cover every producer/consumer cardinality and
// bounded/unbounded pairing this package implements:
//
//   - SPSC (bounded): Lamport ring buffer, cached-index optimization.
//   - SPSC (unbounded): a chain of bounded SPSC segments handed back and
//     forth between producer and consumer so the producer rarely
//     allocates.
//   - MPSC (unbounded): the Jiffy buffer-list algorithm — tri-state
//     (empty/set/handled) nodes, speculative successor pre-allocation,
//     opportunistic folding of fully-handled buffers.
//   - MPMC (bounded): the SCQ (Scalable Circular Queue) algorithm by
//     Nikolaev, FAA-based with cycle-tagged slots and an isSafe bit; an
//     NCQ variant trades the isSafe bit and half the slots for a smaller
//     footprint.
//   - MPMC (unbounded): LSCQ — a linked list of SCQ segments, reclaimed
//     through a hazard-pointer domain.
//
// # Quick Start
//
//	p, c := lfq.NewSPSC[Event](1024)
//	go func() {
//	    for ev := range events {
//	        for p.Enqueue(&ev) != nil {
//	        }
//	    }
//	    p.Close()
//	}()
//	for {
//	    ev, err := c.Dequeue()
//	    if lfq.IsClosed(err) {
//	        break
//	    }
//	    if lfq.IsWouldBlock(err) {
//	        continue
//	    }
//	    handle(ev)
//	}
//
// The Builder gives a fluent alternative for picking capacity and
// algorithm variant:
//
//	q := lfq.BuildMPMC[Request](lfq.New(4096))            // SCQ
//	q := lfq.BuildMPMC[Request](lfq.New(4096).Compact())  // NCQ
//
// # Non-blocking contract
//
// Every Enqueue/Dequeue call returns immediately: ErrWouldBlock means
// "try later", ErrClosed means the counterpart has closed and, for
// Dequeue, that every element enqueued before closing has already been
// drained. Closing is one-directional per queue half — Producer.Close
// tells the consumer no more data is coming; Consumer.Close tells the
// producer no one is listening anymore.
//
// # Algorithm selection: SCQ vs NCQ
//
// SCQ (the default for MPMC) uses 2n physical slots and an isSafe bit to
// protect against wraparound reuse while a stale slot is mid-repair. NCQ
// (Builder.Compact) uses n slots and skips that protection, which is
// safe as long as producers cannot lap consumers by a full buffer's
// worth of in-flight claims before a repair completes — true of most
// bounded-backlog pipelines, false of bursty producers feeding a slow,
// intermittently-stalled consumer. When in doubt, use SCQ.
//
// # Reclamation
//
// trie.go's Map and lscq.go's LSCQ need to let a reader keep dereferencing
// a node a concurrent writer has already unlinked. This package offers
// two independent reclamation domains for that:
//
//   - Domain (hazard.go): classic hazard pointers. A goroutine publishes
//     the address it's about to dereference, a retirer checks the
//     published set before freeing. Cheap reads, retire scans cost
//     proportional to domain size.
//   - Hyaline (hyaline.go): K-slot batched reference counting. Enter/
//     Release bracket a critical section; Retire batches pointers and
//     only walks the reference chain when a batch fills. Lower per-op
//     overhead under high entry/exit churn, at the cost of coarser
//     reclamation granularity (a whole batch, not one node, becomes
//     freeable at once).
//
// Both require every caller to hold a *Token (threadlocal.go), since Go
// has no portable way to read a stable OS-thread identity the way
// hazard-pointer and RCU-style libraries in natively-threaded languages
// do. Mint one Token per goroutine (or worker-pool slot) and reuse it for
// every call that goroutine makes into a domain.
//
// # Concurrency safety
//
//	Type                  Safe for
//	SPSCProducer/Consumer  exactly one goroutine per side
//	JiffySender            many goroutines
//	JiffyReceiver          exactly one goroutine
//	MPMC                   many goroutines on both sides
//	LSCQSender/Receiver    many goroutines on both sides
//	Map                    many goroutines; Get needs a Token
//	Domain, Hyaline        many goroutines, one Token per logical thread
//	Registry               many goroutines, one Token per logical thread
//
// # Dependencies
//
// Atomics go through code.hybscloud.com/atomix's explicitly-ordered
// wrapper types rather than sync/atomic directly, so every load/store/
// CAS in this package states its memory ordering at the call site.
// CAS-retry backoff uses code.hybscloud.com/spin. Error classification
// (ErrWouldBlock, and whether an error is semantic rather than a genuine
// failure) is built on code.hybscloud.com/iox.
package lfq
