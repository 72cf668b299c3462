package strategy

import (
	"math"
	"testing"
)

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Push(v)
	}
	if w.Len() != 3 {
		t.Fatalf("expected len 3, got %d", w.Len())
	}
	got := w.Values()
	want := []float64{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	latest, ok := w.Latest()
	if !ok || latest != 5 {
		t.Fatalf("expected latest 5, got %.1f ok=%v", latest, ok)
	}
}

func TestWindowFull(t *testing.T) {
	w := NewWindow(2)
	if w.Full() {
		t.Fatalf("empty window must not be full")
	}
	w.Push(1)
	if w.Full() {
		t.Fatalf("partially filled window must not be full")
	}
	w.Push(2)
	if !w.Full() {
		t.Fatalf("window at capacity must be full")
	}
	w.Push(3)
	if !w.Full() || w.Len() != 2 {
		t.Fatalf("window must stay at capacity after eviction")
	}
}

func TestWindowStats(t *testing.T) {
	w := NewWindow(4)
	for _, v := range []float64{2, 4, 4, 6} {
		w.Push(v)
	}
	if mean := w.Mean(); mean != 4 {
		t.Fatalf("expected mean 4, got %.4f", mean)
	}
	// Population std dev: sqrt(((2-4)^2+(4-4)^2+(4-4)^2+(6-4)^2)/4) = sqrt(2)
	if std := w.StdDev(); math.Abs(std-math.Sqrt2) > 1e-12 {
		t.Fatalf("expected std sqrt(2), got %.6f", std)
	}
}

func TestWindowEmptyStats(t *testing.T) {
	w := NewWindow(5)
	if w.Mean() != 0 || w.StdDev() != 0 {
		t.Fatalf("empty window stats must be zero")
	}
	if _, ok := w.Latest(); ok {
		t.Fatalf("empty window has no latest value")
	}
}
