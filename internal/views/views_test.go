package views

import (
	"testing"

	"github.com/lehigh-university-libraries/retoucher/internal/models"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	s := models.NewSnapshot("a.png", "image/png", 1, 1, []byte{1})

	h1 := r.Acquire(s)
	h2 := r.Acquire(s)
	if h1.ID == h2.ID {
		t.Fatal("handles share an id")
	}
	if r.Live() != 2 {
		t.Errorf("Live = %d, want 2", r.Live())
	}

	got, ok := r.Lookup(h1.ID)
	if !ok || got.Snapshot != s {
		t.Errorf("Lookup = %v, %v", got, ok)
	}

	if !r.Release(h1) {
		t.Error("first release should succeed")
	}
	if r.Release(h1) {
		t.Error("double release should be a no-op")
	}
	if r.Release(nil) {
		t.Error("nil release should be a no-op")
	}
	if _, ok := r.Lookup(h1.ID); ok {
		t.Error("released handle still resolvable")
	}
	if r.Live() != 1 {
		t.Errorf("Live = %d, want 1", r.Live())
	}
}
