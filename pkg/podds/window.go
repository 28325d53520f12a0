package podds

// Window is a fixed capacity FIFO ring buffer of float64 values.
// It is always full: it is created with capacity copies of a seed value and every
// Push overwrites the oldest entry.
type Window struct {
	values []float64
	next   int // index of the oldest entry, which the next Push overwrites
}

// NewWindow returns a window of the given size holding size copies of seed.
func NewWindow(size int, seed float64) *Window {
	w := &Window{values: make([]float64, size)}
	w.Fill(seed)
	return w
}

// Push appends v, evicting the oldest value.
func (w *Window) Push(v float64) {
	w.values[w.next] = v
	w.next = (w.next + 1) % len(w.values)
}

// Fill overwrites every entry with v.
func (w *Window) Fill(v float64) {
	for i := range w.values {
		w.values[i] = v
	}
	w.next = 0
}

// Mean is the arithmetic mean of the entries.
func (w *Window) Mean() float64 {
	sum := 0.0
	for _, v := range w.values {
		sum += v
	}
	return sum / float64(len(w.values))
}

func (w *Window) Len() int {
	return len(w.values)
}

// Oldest returns the entry that the next Push will evict.
func (w *Window) Oldest() float64 {
	return w.values[w.next]
}

// Values returns a copy of the entries, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, 0, len(w.values))
	out = append(out, w.values[w.next:]...)
	return append(out, w.values[:w.next]...)
}
