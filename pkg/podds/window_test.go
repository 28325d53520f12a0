package podds

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowStartsFullOfSeed(t *testing.T) {
	w := NewWindow(19, 1.0)
	assert.Equal(t, 19, w.Len())
	assert.Equal(t, 1.0, w.Mean())
	assert.Equal(t, 1.0, w.Oldest())
}

func TestWindowEvictsOldestFirst(t *testing.T) {
	const size = 4
	w := NewWindow(size, 0)
	for n := 1; n <= 10; n++ {
		w.Push(float64(n))
		assert.Equal(t, size, w.Len())
		if n >= size {
			// after n folds the oldest survivor is the value folded n-size+1 folds ago
			assert.Equal(t, float64(n-size+1), w.Oldest())
		}
	}
	assert.Equal(t, []float64{7, 8, 9, 10}, w.Values())
	assert.Equal(t, 8.5, w.Mean())
}

func TestWindowFillResetsCursor(t *testing.T) {
	w := NewWindow(3, 1)
	w.Push(5)
	w.Fill(0.8)
	assert.Equal(t, []float64{0.8, 0.8, 0.8}, w.Values())
	w.Push(2)
	assert.Equal(t, []float64{0.8, 0.8, 2}, w.Values())
}
