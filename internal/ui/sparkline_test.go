package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSparkline_Trend_FlatWhenInsufficientSamples(t *testing.T) {
	s := NewSparkline(10)
	s.Add(5)
	s.Add(5)

	assert.Equal(t, 1.0, s.Trend())
}

func TestSparkline_Trend_AboveOneWhenAccelerating(t *testing.T) {
	s := NewSparkline(10)
	for _, v := range []float64{1, 1, 1, 1, 10, 10, 10, 10} {
		s.Add(v)
	}

	assert.Greater(t, s.Trend(), 1.0)
}

func TestSparkline_Trend_BelowOneWhenDecelerating(t *testing.T) {
	s := NewSparkline(10)
	for _, v := range []float64{10, 10, 10, 10, 1, 1, 1, 1} {
		s.Add(v)
	}

	assert.Less(t, s.Trend(), 1.0)
}

func TestSparkline_Trend_OnlyConsidersMostRecentWindow(t *testing.T) {
	s := NewSparkline(4)
	for _, v := range []float64{100, 100, 100, 100, 5, 5, 5, 5} {
		s.Add(v)
	}

	// The ring buffer only holds the last 4 samples, all equal, so the
	// trend reflects no change within that window regardless of the
	// values pushed out before it.
	assert.Equal(t, 1.0, s.Trend())
}
