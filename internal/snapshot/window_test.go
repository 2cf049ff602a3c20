package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow_MeanOverPartialFill(t *testing.T) {
	w := NewWindow(20)
	w.Add(10)
	w.Add(20)
	assert.Equal(t, 2, w.Count())
	assert.InDelta(t, 15.0, w.Mean(), 0.001)
}

func TestWindow_EvictsOldestOnceFull(t *testing.T) {
	w := NewWindow(3)
	w.Add(1)
	w.Add(2)
	w.Add(3)
	assert.InDelta(t, 2.0, w.Mean(), 0.001)

	w.Add(9) // evicts the 1
	assert.Equal(t, 3, w.Count())
	assert.InDelta(t, float64(2+3+9)/3, w.Mean(), 0.001)
}

func TestWindow_EmptyMeanIsZero(t *testing.T) {
	w := NewWindow(5)
	assert.Zero(t, w.Mean())
}
