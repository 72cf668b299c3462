package strategy

import "math"

// Window is a bounded float64 series: pushes past capacity evict the oldest
// value, insertion order is preserved.
type Window struct {
	data     []float64
	capacity int
}

// NewWindow allocates a window with the given capacity (minimum 1).
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{data: make([]float64, 0, capacity), capacity: capacity}
}

// Push appends a value, evicting the oldest when full.
func (w *Window) Push(v float64) {
	w.data = append(w.data, v)
	if len(w.data) > w.capacity {
		w.data = w.data[1:]
	}
}

// Len returns the current number of values.
func (w *Window) Len() int { return len(w.data) }

// Cap returns the fixed capacity.
func (w *Window) Cap() int { return w.capacity }

// Full reports whether the window holds exactly its capacity.
func (w *Window) Full() bool { return len(w.data) == w.capacity }

// Latest returns the newest value, false when empty.
func (w *Window) Latest() (float64, bool) {
	if len(w.data) == 0 {
		return 0, false
	}
	return w.data[len(w.data)-1], true
}

// At returns the value at index i, oldest first.
func (w *Window) At(i int) float64 { return w.data[i] }

// Mean returns the arithmetic mean over the window, 0 when empty.
func (w *Window) Mean() float64 {
	if len(w.data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range w.data {
		sum += v
	}
	return sum / float64(len(w.data))
}

// StdDev returns the population standard deviation over the window.
func (w *Window) StdDev() float64 {
	n := len(w.data)
	if n == 0 {
		return 0
	}
	mean := w.Mean()
	sum := 0.0
	for _, v := range w.data {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

// Values returns a copy of the window contents, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, len(w.data))
	copy(out, w.data)
	return out
}
