// Package seedrng implements the counter-based deterministic RNG required by
// the compiler and audio-thread humanization paths: identical inputs must
// produce identical output regardless of host, thread interleaving, or
// compile order (spec §4.B). Unlike a shared *rand.Rand (the pattern the
// teacher's internal/modulation package uses, acceptable there because it
// only ever runs on a single TUI goroutine), Stream carries no mutable
// state at all, so it is safe to call concurrently from the compiler and
// the audio thread without coordination.
package seedrng

// Role distinguishes independent draw streams for the same (seed, track,
// beat) key so unrelated randomized decisions never correlate.
type Role uint32

const (
	RoleVelocityHumanize Role = iota
	RoleArpeggioOrder
	RoleDrumChoice
	RolePitchHumanize
)

// Stream returns a deterministic 64-bit value for (seed, trackID,
// beatIndex, role). It is a pure function: no global state, no shared
// mutable generator, safe to call from any goroutine at any time.
func Stream(seed, trackID uint64, beatIndex int64, role Role) uint64 {
	// Mix the four inputs into a single 64-bit key with a simple
	// multiplicative hash, then run it through a SplitMix64-style
	// finalizer for avalanche. Deterministic across platforms: only
	// fixed-width unsigned integer arithmetic is used.
	key := seed
	key = key*0x9E3779B97F4A7C15 + uint64(trackID)
	key = key*0xC2B2AE3D27D4EB4F + uint64(uint32(beatIndex))
	key = key*0x165667B19E3779F9 + uint64(beatIndex>>32)
	key = key*0xD6E8FEB86659FD93 + uint64(role)
	return splitmix64(key)
}

func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	z := x
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z = z ^ (z >> 31)
	return z
}

// Float64 derives a uniform [0,1) float from a Stream draw. Using the top
// 53 bits keeps the result exactly representable as a float64 mantissa.
func Float64(seed, trackID uint64, beatIndex int64, role Role) float64 {
	v := Stream(seed, trackID, beatIndex, role)
	return float64(v>>11) / (1 << 53)
}

// Intn derives a uniform integer in [0, n) from a Stream draw. n must be > 0.
func Intn(seed, trackID uint64, beatIndex int64, role Role, n int) int {
	if n <= 0 {
		return 0
	}
	v := Stream(seed, trackID, beatIndex, role)
	return int(v % uint64(n))
}
