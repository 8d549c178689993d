package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuse_WeightedCombination(t *testing.T) {
	related, combined := Fuse(1.0, 3, true, 0.8)
	assert.InDelta(t, 0.86, combined, 1e-9)
	assert.True(t, related)
}

func TestFuse_ExactThresholdIsNegative(t *testing.T) {
	// 0.3*1.0 + 0.7*(2.0/7.0) lands exactly on 0.5.
	related, combined := Fuse(1.0, 1, true, 2.0/7.0)
	assert.InDelta(t, 0.5, combined, 1e-9)
	assert.False(t, related)
}

func TestFuse_NoMatchedTerms(t *testing.T) {
	related, combined := Fuse(0.9, 0, true, 0.99)
	assert.False(t, related)
	assert.Equal(t, 0.0, combined)
}

func TestFuse_OracleBooleanNotLoadBearing(t *testing.T) {
	// A confident oracle score carries the decision even when the oracle's
	// own boolean disagrees.
	related, combined := Fuse(0.3, 1, false, 0.9)
	assert.InDelta(t, 0.72, combined, 1e-9)
	assert.True(t, related)
}

func TestFuse_LowSignals(t *testing.T) {
	related, combined := Fuse(0.3, 1, false, 0.1)
	assert.InDelta(t, 0.16, combined, 1e-9)
	assert.False(t, related)
}
