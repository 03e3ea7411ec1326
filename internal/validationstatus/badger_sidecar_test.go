package validationstatus

import (
	"bytes"
	"fmt"
	"sort"
	"testing"
)

// fakeDB is a minimal in-memory storage.DB stand-in, enough to exercise
// BadgerSidecar without depending on an actual Badger database in tests.
type fakeDB struct {
	m map[string][]byte
}

func newFakeDB() *fakeDB { return &fakeDB{m: make(map[string][]byte)} }

func (f *fakeDB) Get(key []byte) ([]byte, error) {
	v, ok := f.m[string(key)]
	if !ok {
		return nil, fmt.Errorf("key not found")
	}
	return v, nil
}

func (f *fakeDB) Put(key, value []byte) error {
	f.m[string(key)] = append([]byte(nil), value...)
	return nil
}

func (f *fakeDB) Delete(key []byte) error {
	delete(f.m, string(key))
	return nil
}

func (f *fakeDB) Has(key []byte) (bool, error) {
	_, ok := f.m[string(key)]
	return ok, nil
}

func (f *fakeDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	keys := make([]string, 0, len(f.m))
	for k := range f.m {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), f.m[k]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeDB) Close() error { return nil }

func TestBadgerSidecar_GetDefaultsUnvalidated(t *testing.T) {
	s := NewBadgerSidecar(newFakeDB())
	if got := s.Get(42); got != Unvalidated {
		t.Fatalf("Get = %v, want Unvalidated", got)
	}
}

func TestBadgerSidecar_SetThenGetRoundTrips(t *testing.T) {
	s := NewBadgerSidecar(newFakeDB())
	s.Set(7, Valid)
	s.Set(8, Invalid)
	if got := s.Get(7); got != Valid {
		t.Fatalf("Get(7) = %v, want Valid", got)
	}
	if got := s.Get(8); got != Invalid {
		t.Fatalf("Get(8) = %v, want Invalid", got)
	}
	if got := s.Get(9); got != Unvalidated {
		t.Fatalf("Get(9) = %v, want Unvalidated", got)
	}
}

func TestBadgerSidecar_FirstUnvalidatedSkipsValidated(t *testing.T) {
	s := NewBadgerSidecar(newFakeDB())
	s.Set(0, Valid)
	s.Set(1, Valid)
	s.Set(2, Invalid)

	h, ok := s.FirstUnvalidated(0, 10)
	if !ok || h != 3 {
		t.Fatalf("FirstUnvalidated = (%d, %v), want (3, true)", h, ok)
	}
}
