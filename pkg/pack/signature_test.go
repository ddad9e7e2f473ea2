package pack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_MatchesWorkedExample(t *testing.T) {
	assert.Equal(t, Signature{37, 64, 73}, Sign("abc"))
}

func TestSign_IsDeterministic(t *testing.T) {
	assert.Equal(t, Sign("react native bridge"), Sign("react native bridge"))
}

func TestSign_DiffersForDifferentInput(t *testing.T) {
	assert.NotEqual(t, Sign("alpha"), Sign("beta"))
}

func TestStabilize_IsMaximalForIdenticalSignatures(t *testing.T) {
	sig := Sign("anything")
	assert.Equal(t, 1.02, Stabilize(sig, sig))
}

func TestStabilize_StaysWithinTwoPercentBound(t *testing.T) {
	a := Sign("alpha beta gamma")
	b := Sign("completely different text entirely")
	mult := Stabilize(a, b)
	assert.GreaterOrEqual(t, mult, 0.98)
	assert.LessOrEqual(t, mult, 1.02)
}

func TestCircularDistance_WrapsAroundModulus(t *testing.T) {
	assert.Equal(t, uint32(2), circularDistance(1, 256, 257))
	assert.Equal(t, uint32(0), circularDistance(5, 5, 257))
}
