package seedrng

import "testing"

import "github.com/stretchr/testify/require"

func TestStreamDeterministic(t *testing.T) {
	a := Stream(7, 2, 128, RoleVelocityHumanize)
	b := Stream(7, 2, 128, RoleVelocityHumanize)
	require.Equal(t, a, b, "identical inputs must produce identical output")
}

func TestStreamDistinguishesRoles(t *testing.T) {
	a := Stream(7, 2, 128, RoleVelocityHumanize)
	b := Stream(7, 2, 128, RoleArpeggioOrder)
	require.NotEqual(t, a, b)
}

func TestStreamDistinguishesTrackAndBeat(t *testing.T) {
	base := Stream(1, 0, 0, RoleDrumChoice)
	require.NotEqual(t, base, Stream(1, 1, 0, RoleDrumChoice))
	require.NotEqual(t, base, Stream(1, 0, 1, RoleDrumChoice))
	require.NotEqual(t, base, Stream(2, 0, 0, RoleDrumChoice))
}

func TestFloat64Range(t *testing.T) {
	for i := int64(0); i < 256; i++ {
		f := Float64(42, 3, i, RolePitchHumanize)
		require.GreaterOrEqual(t, f, 0.0)
		require.Less(t, f, 1.0)
	}
}

func TestIntnRange(t *testing.T) {
	for i := int64(0); i < 256; i++ {
		n := Intn(42, 3, i, RoleDrumChoice, 5)
		require.GreaterOrEqual(t, n, 0)
		require.Less(t, n, 5)
	}
}

func TestSameSeedAcrossCallOrder(t *testing.T) {
	// Determinism requirement: compile order must not matter. Evaluate two
	// independent (trackID, beatIndex) keys in each of two orders and check
	// every value is unaffected by which was computed first.
	k1 := func() uint64 { return Stream(99, 1, 10, RoleVelocityHumanize) }
	k2 := func() uint64 { return Stream(99, 2, 20, RoleVelocityHumanize) }

	firstA, firstB := k1(), k2()
	secondB, secondA := k2(), k1()

	require.Equal(t, firstA, secondA)
	require.Equal(t, firstB, secondB)
}
