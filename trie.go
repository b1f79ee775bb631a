package lfq

import (
	"code.hybscloud.com/atomix"
)

// TrieBits is the number of hash bits consumed per trie level (B in the
// original), giving 2^TrieBits buckets per level.
const TrieBits = 6

// trieMaxChain is the chain length at which a bucket expands into a
// sub-level instead of growing further. On a level below which no hash
// bits remain for a sub-level, chains grow without limit.
const trieMaxChain = 3

// bucketRef is the tagged value every bucket (and every chain link) holds:
// either a chain entry or a back-edge/forward-edge to a HashLevel. The
// original packs this distinction into the low bit of a raw pointer
// (mptr.rs's mark_as_previous); Go expresses the same sum type directly
// as a tagged struct instead of pointer-tagging a *byte, since a tagged
// *byte would again be invisible to the garbage collector.
type bucketRef[K comparable, V any] struct {
	isLevel bool
	entry   *trieEntry[K, V]
	level   *hashLevel[K, V]
}

type trieEntry[K comparable, V any] struct {
	hash  uint64
	key   K
	value V
	next  atomix.Pointer[bucketRef[K, V]]
}

// hashLevel is one radix level of the trie, keyed by TrieBits bits of the
// hash starting at level*TrieBits from the high end — grounded on
// calc_level_hash's `(hash & mask) >> (64 - end)` extracting from the
// high-order end of the hash, not the low-order end.
//
// Grounded on original_source/src/hash_trie.rs and hash_trie/hashlevel.rs
// in full.
type hashLevel[K comparable, V any] struct {
	level   int
	buckets []atomix.Pointer[bucketRef[K, V]]
}

func newHashLevel[K comparable, V any](level int) *hashLevel[K, V] {
	hl := &hashLevel[K, V]{
		level:   level,
		buckets: make([]atomix.Pointer[bucketRef[K, V]], 1<<TrieBits),
	}
	empty := &bucketRef[K, V]{isLevel: true, level: hl}
	for i := range hl.buckets {
		hl.buckets[i].StoreRelaxed(empty)
	}
	return hl
}

func (hl *hashLevel[K, V]) bucketIndex(hash uint64) int {
	start := uint(TrieBits * hl.level)
	end := uint(TrieBits * (hl.level + 1))
	if end > 64 {
		end = 64
	}
	mask := (^uint64(0) << start) >> start
	return int((hash & mask) >> (64 - end))
}

// Map is a lock-free hash-trie map (component I): a radix trie over hash
// bits with chain-to-sublevel expansion once a bucket's chain reaches
// trieMaxChain.
type Map[K comparable, V any] struct {
	root   *hashLevel[K, V]
	domain *Domain
	hashFn func(K) uint64
}

// NewMap creates an empty hash-trie map. hashFn must be a stable,
// well-distributed hash of K; domain is the hazard-pointer domain Get
// uses to protect chain traversal against concurrent expansion — pass a
// shared domain to amortize its scanning across multiple maps.
func NewMap[K comparable, V any](hashFn func(K) uint64, domain *Domain) *Map[K, V] {
	if domain == nil {
		domain = NewDomain(0)
	}
	return &Map[K, V]{root: newHashLevel[K, V](0), domain: domain, hashFn: hashFn}
}

// Insert adds or replaces the value for key. On a key match found partway
// down a chain, this module removes the stale entry and reinserts from
// the root of the trie rather than the original's no-op on match
// (hashlevel.rs's insert_key_on_chain: "Found existing Key // TODO"),
// since spec §4.I requires Insert to support replacement.
func (m *Map[K, V]) Insert(key K, value V) {
	hash := m.hashFn(key)
	m.insertAt(m.root, hash, key, value)
}

func (m *Map[K, V]) insertAt(hl *hashLevel[K, V], hash uint64, key K, value V) {
	idx := hl.bucketIndex(hash)
	bucket := &hl.buckets[idx]

	for {
		cur := bucket.LoadAcquire()
		if cur.isLevel && cur.level == hl {
			// Empty bucket: try to place a fresh single-entry chain.
			entry := &trieEntry[K, V]{hash: hash, key: key, value: value}
			entry.next.StoreRelaxed(&bucketRef[K, V]{isLevel: true, level: hl})
			if bucket.CompareAndSwapAcqRel(cur, &bucketRef[K, V]{entry: entry}) {
				return
			}
			continue
		}

		if cur.isLevel {
			// Bucket has already expanded into a sub-level.
			m.insertAt(cur.level, hash, key, value)
			return
		}

		// Walk the chain.
		if m.insertOnChain(hl, bucket, cur.entry, 1, hash, key, value) {
			return
		}
	}
}

// insertOnChain walks the chain starting at r, CASing a new entry onto
// the first back-edge-to-hl tail it finds, or expanding the bucket into a
// sub-level once chainPos reaches trieMaxChain. Returns false if a CAS
// lost a race and the caller should retry from the bucket head.
func (m *Map[K, V]) insertOnChain(hl *hashLevel[K, V], bucket *atomix.Pointer[bucketRef[K, V]], r *trieEntry[K, V], chainPos int, hash uint64, key K, value V) bool {
	if r.key == key {
		m.remove(key)
		m.insertAt(m.root, hash, key, value)
		return true
	}

	next := r.next.LoadAcquire()
	if next.isLevel && next.level == hl {
		if chainPos >= trieMaxChain && TrieBits*(hl.level+1) < 64 {
			sub := newHashLevel[K, V](hl.level + 1)
			if !r.next.CompareAndSwapAcqRel(next, &bucketRef[K, V]{isLevel: true, level: sub}) {
				return false
			}
			// Migrate the whole chain this bucket held into the new
			// sub-level, then swing the bucket itself to point at it.
			if head := bucket.LoadAcquire(); !head.isLevel {
				m.migrateChain(sub, head.entry)
			}
			bucket.StoreRelease(&bucketRef[K, V]{isLevel: true, level: sub})
			m.insertAt(sub, hash, key, value)
			return true
		}

		entry := &trieEntry[K, V]{hash: hash, key: key, value: value}
		entry.next.StoreRelaxed(&bucketRef[K, V]{isLevel: true, level: hl})
		return r.next.CompareAndSwapAcqRel(next, &bucketRef[K, V]{entry: entry})
	}

	if next.isLevel {
		// A concurrent expansion already replaced hl's tail with a
		// sub-level; defer to it.
		m.insertAt(next.level, hash, key, value)
		return true
	}

	return m.insertOnChain(hl, bucket, next.entry, chainPos+1, hash, key, value)
}

// migrateChain reinserts every entry of a pre-expansion chain into the
// freshly created sub-level, grounded on adjust_chain_nodes/
// adjust_node_on_hash.
func (m *Map[K, V]) migrateChain(sub *hashLevel[K, V], entry *trieEntry[K, V]) {
	if entry == nil {
		return
	}
	next := entry.next.LoadAcquire()
	if !next.isLevel {
		m.migrateChain(sub, next.entry)
	}
	m.insertAt(sub, entry.hash, entry.key, entry.value)
}

// Get looks up key. Each bucket cell it loads is read through a
// hazard-pointer Guard that is released right after the load; chain links
// are then followed with plain acquire loads and are not protected by a
// guard.
func (m *Map[K, V]) Get(token *Token, key K) (V, bool) {
	hash := m.hashFn(key)
	hl := m.root

	for {
		idx := hl.bucketIndex(hash)
		guard := HazardProtect(m.domain, token, &hl.buckets[idx])
		cur := guard.Get()
		guard.Release()

		if cur.isLevel && cur.level == hl {
			var zero V
			return zero, false
		}
		if cur.isLevel {
			hl = cur.level
			continue
		}

		descended := false
		for entry := cur.entry; entry != nil; {
			if entry.key == key {
				return entry.value, true
			}
			next := entry.next.LoadAcquire()
			if next.isLevel {
				if next.level == hl {
					var zero V
					return zero, false
				}
				hl = next.level
				descended = true
				break
			}
			entry = next.entry
		}
		if descended {
			continue
		}
		var zero V
		return zero, false
	}
}

// Remove deletes key if present. Grounded on spec §4.I: the original has
// no remove at all, so this walks the chain CASing the matching entry's
// predecessor link past it.
func (m *Map[K, V]) Remove(key K) bool {
	hash := m.hashFn(key)
	return m.removeAt(m.root, hash, key)
}

func (m *Map[K, V]) remove(key K) bool {
	hash := m.hashFn(key)
	return m.removeAt(m.root, hash, key)
}

func (m *Map[K, V]) removeAt(hl *hashLevel[K, V], hash uint64, key K) bool {
	idx := hl.bucketIndex(hash)
	bucket := &hl.buckets[idx]

	for {
		cur := bucket.LoadAcquire()
		if cur.isLevel && cur.level == hl {
			return false
		}
		if cur.isLevel {
			return m.removeAt(cur.level, hash, key)
		}

		entry := cur.entry
		if entry.key == key {
			if bucket.CompareAndSwapAcqRel(cur, entry.next.LoadAcquire()) {
				return true
			}
			continue
		}

		return m.removeOnChain(hl, &entry.next, hash, key)
	}
}

func (m *Map[K, V]) removeOnChain(hl *hashLevel[K, V], prevNext *atomix.Pointer[bucketRef[K, V]], hash uint64, key K) bool {
	cur := prevNext.LoadAcquire()
	if cur.isLevel {
		if cur.level == hl {
			return false
		}
		return m.removeAt(cur.level, hash, key)
	}

	entry := cur.entry
	if entry.key == key {
		return prevNext.CompareAndSwapAcqRel(cur, entry.next.LoadAcquire())
	}
	return m.removeOnChain(hl, &entry.next, hash, key)
}
