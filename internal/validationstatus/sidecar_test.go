package validationstatus

import (
	"sync"
	"testing"
)

func TestMemSidecar_GetDefaultsUnvalidated(t *testing.T) {
	s := NewMemSidecar()
	if got := s.Get(42); got != Unvalidated {
		t.Fatalf("Get on unseen height = %v, want Unvalidated", got)
	}
}

func TestMemSidecar_SetThenGetRoundTrips(t *testing.T) {
	s := NewMemSidecar()
	s.Set(100, Valid)
	s.Set(101, Invalid)
	if got := s.Get(100); got != Valid {
		t.Fatalf("Get(100) = %v, want Valid", got)
	}
	if got := s.Get(101); got != Invalid {
		t.Fatalf("Get(101) = %v, want Invalid", got)
	}
}

func TestMemSidecar_FirstUnvalidatedSkipsValidated(t *testing.T) {
	s := NewMemSidecar()
	s.Set(0, Valid)
	s.Set(1, Valid)
	s.Set(2, Invalid)
	h, ok := s.FirstUnvalidated(0, 10)
	if !ok {
		t.Fatalf("expected an unvalidated height")
	}
	if h != 3 {
		t.Fatalf("FirstUnvalidated = %d, want 3", h)
	}
}

func TestMemSidecar_FirstUnvalidatedRespectsLimit(t *testing.T) {
	s := NewMemSidecar()
	for h := int64(0); h < 5; h++ {
		s.Set(h, Valid)
	}
	_, ok := s.FirstUnvalidated(0, 5)
	if ok {
		t.Fatalf("expected no unvalidated height within limit")
	}
}

func TestMemSidecar_NegativeHeightShardsWithoutPanic(t *testing.T) {
	s := NewMemSidecar()
	s.Set(-5, Valid)
	if got := s.Get(-5); got != Valid {
		t.Fatalf("Get(-5) = %v, want Valid", got)
	}
}

func TestMemSidecar_ConcurrentAccess(t *testing.T) {
	s := NewMemSidecar()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(h int64) {
			defer wg.Done()
			s.Set(h, Valid)
			s.Get(h)
		}(int64(i))
	}
	wg.Wait()
	for i := int64(0); i < 64; i++ {
		if s.Get(i) != Valid {
			t.Fatalf("height %d not recorded as Valid", i)
		}
	}
}
