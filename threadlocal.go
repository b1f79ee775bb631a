package lfq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// tokenSeq mints unique Token ids. A Token is minted once per logical
// "thread" and reused across every call the holder makes into this module.
var tokenSeq atomix.Uint64

// NewToken mints a fresh Token identifying the calling goroutine (or
// worker-pool slot, or pinned OS thread) for the lifetime the caller
// chooses to retain it.
func NewToken() *Token {
	return &Token{id: tokenSeq.AddAcqRel(1)}
}

// registryEntry is one node of the registry's append-only singly-linked
// list, keyed by Token identity.
type registryEntry[T any] struct {
	id   uint64
	data *T
	next atomix.Pointer[registryEntry[T]]
}

// Registry maps a Token to a lazily-created per-token value.
//
// Grounded on the CAS-append linked list in thread_data.rs: get_or walks
// the list comparing ids, falling back to a CAS-append of a new node on
// miss. Entries are never removed; the chain is released to the garbage
// collector together with the registry.
type Registry[T any] struct {
	head atomix.Pointer[registryEntry[T]]
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{}
}

// GetOr returns the value owned by token, creating it with create() on the
// token's first call into this registry. create is invoked at most once
// per token even under concurrent first-touch from other tokens.
func (r *Registry[T]) GetOr(token *Token, create func() *T) *T {
	if v := r.get(token.id); v != nil {
		return v
	}

	entry := &registryEntry[T]{id: token.id, data: create()}

	sw := spin.Wait{}
	for {
		head := r.head.LoadAcquire()

		// Another goroutine may have inserted this token's entry while we
		// were building ours; don't duplicate it.
		if v := r.get(token.id); v != nil {
			return v
		}

		entry.next.StoreRelaxed(head)
		if r.head.CompareAndSwapAcqRel(head, entry) {
			return entry.data
		}
		sw.Once()
	}
}

// Get returns the value owned by token, or nil if create has never run for
// it.
func (r *Registry[T]) Get(token *Token) *T {
	return r.get(token.id)
}

func (r *Registry[T]) get(id uint64) *T {
	cur := r.head.LoadAcquire()
	for cur != nil {
		if cur.id == id {
			return cur.data
		}
		cur = cur.next.LoadAcquire()
	}
	return nil
}
