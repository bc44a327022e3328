package pitch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameToMidiKnownValues(t *testing.T) {
	cases := map[string]int{
		"C4": 60,
		"A0": 21,
		"C2": 36,
	}
	for lit, want := range cases {
		got, err := NameToMidi(lit)
		require.NoError(t, err)
		require.Equal(t, want, got, lit)
	}
}

func TestNameToMidiAccidentals(t *testing.T) {
	sharp, err := NameToMidi("F#4")
	require.NoError(t, err)
	flat, err := NameToMidi("Gb4")
	require.NoError(t, err)
	require.Equal(t, sharp, flat)
}

func TestNameToMidiInvalid(t *testing.T) {
	_, err := NameToMidi("H4")
	require.Error(t, err)
	_, err = NameToMidi("C")
	require.Error(t, err)
}

func TestMidiToNameStable(t *testing.T) {
	require.Equal(t, "C4", MidiToName(60))
	require.Equal(t, "A0", MidiToName(21))
}

func TestLooksLikePitch(t *testing.T) {
	require.True(t, LooksLikePitch("C2"))
	require.True(t, LooksLikePitch("Eb3"))
	require.False(t, LooksLikePitch("kick"))
	require.False(t, LooksLikePitch("X"))
}
