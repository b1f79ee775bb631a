package lfq

import (
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// hazardRecord is one slot in the domain's global, append-only record
// list. A record with ptr == nil is idle and reusable. The ptr field is
// type-erased to *byte so one global list can protect pointers of any
// component's element type; callers never dereference through it, only
// through the typed Guard they receive from HazardProtect.
type hazardRecord struct {
	ptr  atomix.Pointer[byte]
	next atomix.Pointer[hazardRecord]
}

func erase[T any](p *T) *byte    { return (*byte)(unsafe.Pointer(p)) }
func unerase[T any](p *byte) *T { return (*T)(unsafe.Pointer(p)) }

type retireNode struct {
	ptr     *byte
	deleter func(*byte)
}

// hazardThreadState is the per-token state registered in the domain's
// thread-local registry (component A): a retire list, owned exclusively
// by the token that retires into it, and a recycle queue of idle records
// (component F used internally, per spec §2/§4.B).
type hazardThreadState struct {
	retireList   []retireNode
	recycleSend  *JiffySender[*hazardRecord]
	recycleRecv  *JiffyReceiver[*hazardRecord]
}

// Domain is a hazard-pointer reclamation domain (component B).
type Domain struct {
	records          atomix.Pointer[hazardRecord]
	threads          *Registry[hazardThreadState]
	reclaimThreshold int
}

// NewDomain creates a hazard-pointer domain. reclaimThreshold is the
// retire-list length at which Retire auto-triggers a Scan.
func NewDomain(reclaimThreshold int) *Domain {
	if reclaimThreshold <= 0 {
		reclaimThreshold = 64
	}
	return &Domain{threads: NewRegistry[hazardThreadState](), reclaimThreshold: reclaimThreshold}
}

func (d *Domain) threadState(token *Token) *hazardThreadState {
	return d.threads.GetOr(token, func() *hazardThreadState {
		send, recv := NewJiffy[*hazardRecord](64)
		return &hazardThreadState{recycleSend: send, recycleRecv: recv}
	})
}

// appendRecord CAS-appends rec to the tail of the global record list.
func (d *Domain) appendRecord(rec *hazardRecord) {
	sw := spin.Wait{}
	for {
		head := d.records.LoadAcquire()
		if head == nil {
			if d.records.CompareAndSwapAcqRel(nil, rec) {
				return
			}
			sw.Once()
			continue
		}
		cur := head
		for {
			next := cur.next.LoadAcquire()
			if next == nil {
				break
			}
			cur = next
		}
		if cur.next.CompareAndSwapAcqRel(nil, rec) {
			return
		}
		sw.Once()
	}
}

func (d *Domain) acquireRecord(token *Token) *hazardRecord {
	ts := d.threadState(token)
	if rec, err := ts.recycleRecv.Dequeue(); err == nil {
		return rec
	}
	rec := &hazardRecord{}
	d.appendRecord(rec)
	return rec
}

func (d *Domain) releaseRecord(token *Token, rec *hazardRecord) {
	rec.ptr.StoreRelease(nil)
	ts := d.threadState(token)
	_ = ts.recycleSend.Enqueue(&rec)
}

// liveSet snapshots every non-idle record's protected address.
func (d *Domain) liveSet() map[*byte]struct{} {
	set := make(map[*byte]struct{})
	cur := d.records.LoadAcquire()
	for cur != nil {
		if p := cur.ptr.LoadAcquire(); p != nil {
			set[p] = struct{}{}
		}
		cur = cur.next.LoadAcquire()
	}
	return set
}

// Scan partitions token's retire list against the current live hazard set,
// running the deleter for every entry no longer protected.
func (d *Domain) Scan(token *Token) {
	ts := d.threads.Get(token)
	if ts == nil || len(ts.retireList) == 0 {
		return
	}
	live := d.liveSet()
	kept := ts.retireList[:0]
	for _, rn := range ts.retireList {
		if _, ok := live[rn.ptr]; ok {
			kept = append(kept, rn)
		} else {
			rn.deleter(rn.ptr)
		}
	}
	ts.retireList = kept
}

// Reclaim runs an explicit Scan for token's retire list.
func (d *Domain) Reclaim(token *Token) { d.Scan(token) }

// Guard keeps the address it protects alive against retirement until
// Release is called.
type Guard[T any] struct {
	value  *T
	record *hazardRecord
	domain *Domain
	token  *Token
}

// Get returns the protected address. Valid until Release.
func (g *Guard[T]) Get() *T { return g.value }

// Release clears the guard's record and returns it to the owning thread's
// recycle queue.
func (g *Guard[T]) Release() {
	if g.record == nil {
		return
	}
	g.domain.releaseRecord(g.token, g.record)
	g.record = nil
}

// HazardProtect publishes "I am about to dereference *src" using the
// doubled-load idiom: store, reload, retry until the reload matches what
// was stored. This guarantees a concurrent retirer's remove-then-scan
// cannot run to completion between the reload that confirms src's value
// and the store that published it.
func HazardProtect[T any](d *Domain, token *Token, src *atomix.Pointer[T]) *Guard[T] {
	rec := d.acquireRecord(token)
	for {
		p := src.LoadAcquire()
		rec.ptr.StoreRelease(erase(p))
		p2 := src.LoadAcquire()
		if p2 == p {
			return &Guard[T]{value: p, record: rec, domain: d, token: token}
		}
	}
}

// Reprotect re-publishes the guard's record against a (possibly different)
// atomic pointer, releasing the previously protected address immediately.
func Reprotect[T any](g *Guard[T], src *atomix.Pointer[T]) {
	for {
		p := src.LoadAcquire()
		g.record.ptr.StoreRelease(erase(p))
		p2 := src.LoadAcquire()
		if p2 == p {
			g.value = p
			return
		}
	}
}

// HazardRetire hands ptr to the domain for deferred reclamation: deleter
// runs once no guard protects ptr. Retirement cannot fail; it is merely
// delayed if a scan never observes ptr unprotected.
func HazardRetire[T any](d *Domain, token *Token, ptr *T, deleter func(*T)) {
	ts := d.threadState(token)
	ts.retireList = append(ts.retireList, retireNode{
		ptr: erase(ptr),
		deleter: func(p *byte) {
			deleter(unerase[T](p))
		},
	})
	if len(ts.retireList) >= d.reclaimThreshold {
		d.Scan(token)
	}
}
