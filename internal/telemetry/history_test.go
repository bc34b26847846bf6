package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_AddAndPoints(t *testing.T) {
	h := NewHistory(0)
	assert.Equal(t, 0, h.Len())

	h.Add(1000, 120)
	h.Add(2000, 125)
	h.Add(3000, 130)

	points := h.Points()
	require.Len(t, points, 3)
	assert.Equal(t, DataPoint{ElapsedMs: 1000, Value: 120}, points[0])
	assert.Equal(t, DataPoint{ElapsedMs: 3000, Value: 130}, points[2])
}

func TestHistory_DropsOutOfOrderSamples(t *testing.T) {
	h := NewHistory(0)
	h.Add(5000, 140)
	h.Add(3000, 135) // older than latest, dropped
	h.Add(5000, 141) // same timestamp is allowed
	h.Add(6000, 142)

	points := h.Points()
	require.Len(t, points, 3)
	assert.Equal(t, int64(5000), points[0].ElapsedMs)
	assert.Equal(t, int64(6000), points[2].ElapsedMs)
}

func TestHistory_CapacityEviction(t *testing.T) {
	h := NewHistory(3)
	for i := int64(1); i <= 5; i++ {
		h.Add(i*1000, float64(100+i))
	}

	points := h.Points()
	require.Len(t, points, 3)
	// Oldest two evicted
	assert.Equal(t, int64(3000), points[0].ElapsedMs)
	assert.Equal(t, int64(5000), points[2].ElapsedMs)
}

func TestHistory_Latest(t *testing.T) {
	h := NewHistory(0)

	_, ok := h.Latest()
	assert.False(t, ok)

	h.Add(1000, 110)
	h.Add(2000, 112)

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, DataPoint{ElapsedMs: 2000, Value: 112}, latest)
}

func TestHistory_Reset(t *testing.T) {
	h := NewHistory(0)
	h.Add(1000, 110)
	h.Add(2000, 112)
	require.Equal(t, 2, h.Len())

	h.Reset()
	assert.Equal(t, 0, h.Len())

	// Reset also clears the ordering guard
	h.Add(500, 100)
	assert.Equal(t, 1, h.Len())
}

func TestHistory_PointsReturnsCopy(t *testing.T) {
	h := NewHistory(0)
	h.Add(1000, 110)

	points := h.Points()
	points[0].Value = 999

	fresh := h.Points()
	assert.Equal(t, float64(110), fresh[0].Value)
}
