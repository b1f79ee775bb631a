package lfq_test

import (
	"sync"
	"testing"

	"code.nilpath.dev/lfq"
)

func TestTokenUnique(t *testing.T) {
	a := lfq.NewToken()
	b := lfq.NewToken()
	if a == b {
		t.Fatal("NewToken: got the same Token for two calls")
	}

	r := lfq.NewRegistry[int]()
	va := r.GetOr(a, func() *int { x := 1; return &x })
	vb := r.GetOr(b, func() *int { x := 2; return &x })
	if *va == *vb {
		t.Fatal("two distinct tokens resolved to the same registry entry")
	}
}

func TestRegistryGetOrCreatesOnce(t *testing.T) {
	r := lfq.NewRegistry[int]()
	tok := lfq.NewToken()

	calls := 0
	v1 := r.GetOr(tok, func() *int {
		calls++
		x := 1
		return &x
	})
	v2 := r.GetOr(tok, func() *int {
		calls++
		x := 2
		return &x
	})

	if v1 != v2 {
		t.Fatalf("GetOr: got distinct values %p and %p for the same token", v1, v2)
	}
	if calls != 1 {
		t.Fatalf("create called %d times, want 1", calls)
	}
}

func TestRegistryGetMissingIsNil(t *testing.T) {
	r := lfq.NewRegistry[int]()
	tok := lfq.NewToken()
	if v := r.Get(tok); v != nil {
		t.Fatalf("Get before any GetOr: got %v, want nil", v)
	}
}

func TestRegistryPerTokenIsolation(t *testing.T) {
	r := lfq.NewRegistry[int]()
	tokA := lfq.NewToken()
	tokB := lfq.NewToken()

	va := r.GetOr(tokA, func() *int { x := 10; return &x })
	vb := r.GetOr(tokB, func() *int { x := 20; return &x })

	if *va != 10 || *vb != 20 {
		t.Fatalf("GetOr: got (%d, %d), want (10, 20)", *va, *vb)
	}
	if r.Get(tokA) != va || r.Get(tokB) != vb {
		t.Fatal("Get after GetOr did not return the same stored value")
	}
}

func TestRegistryConcurrentFirstTouch(t *testing.T) {
	r := lfq.NewRegistry[int]()
	tok := lfq.NewToken()

	const goroutines = 32
	var wg sync.WaitGroup
	results := make([]*int, goroutines)
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = r.GetOr(tok, func() *int { x := 7; return &x })
		}(i)
	}
	wg.Wait()

	first := results[0]
	for i, v := range results {
		if v != first {
			t.Fatalf("goroutine %d: got distinct value %p, want %p (same token must share one instance)", i, v, first)
		}
	}
}
