// Package pitch converts between MIDI note numbers and the pitch literals
// the lexer accepts ("C2", "Eb3", "F#4"). MidiToName is adapted from the
// teacher's internal/music.MidiToNoteName; NameToMidi is new, needed here
// because the tracker teacher only ever displays notes, it never parses
// them back out of source text.
package pitch

import (
	"fmt"
	"strconv"
	"strings"
)

var sharpNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var nameToSemitone = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// MidiToName converts a MIDI note number (0-127) to a display name like
// "C4" or "D#3" (accidentals are always spelled as sharps), matching
// scientific pitch notation with middle C = C4 (MIDI 60).
func MidiToName(midi int) string {
	if midi < 0 || midi > 127 {
		return "--"
	}
	octave := midi/12 - 1
	name := sharpNames[midi%12]
	return fmt.Sprintf("%s%d", name, octave)
}

// NameToMidi parses a pitch literal such as "C2", "Eb3", "F#4", "c-1"
// (flats spelled with 'b', sharps with '#') into a MIDI note number.
// Returns an error if the literal isn't a recognizable pitch.
func NameToMidi(lit string) (int, error) {
	if len(lit) < 2 {
		return 0, fmt.Errorf("pitch: %q too short", lit)
	}
	letter := byte(strings.ToUpper(lit[:1])[0])
	base, ok := nameToSemitone[letter]
	if !ok {
		return 0, fmt.Errorf("pitch: %q has unknown letter %q", lit, letter)
	}

	rest := lit[1:]
	accidental := 0
	if len(rest) > 0 && (rest[0] == '#' || rest[0] == 'b') {
		if rest[0] == '#' {
			accidental = 1
		} else {
			accidental = -1
		}
		rest = rest[1:]
	}
	if rest == "" {
		return 0, fmt.Errorf("pitch: %q missing octave", lit)
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("pitch: %q has invalid octave: %w", lit, err)
	}

	midi := (octave+1)*12 + base + accidental
	if midi < 0 || midi > 127 {
		return 0, fmt.Errorf("pitch: %q resolves to out-of-range MIDI note %d", lit, midi)
	}
	return midi, nil
}

// LooksLikePitch reports whether s has the shape of a pitch literal
// (letter A-G, optional accidental, signed digits), without validating the
// resulting MIDI range. The lexer keeps its own copy of this check
// (lexer.looksLikePitchToken) to tell a pitch literal from a bare
// identifier during tokenization.
func LooksLikePitch(s string) bool {
	if len(s) < 2 {
		return false
	}
	letter := byte(strings.ToUpper(s[:1])[0])
	if _, ok := nameToSemitone[letter]; !ok {
		return false
	}
	rest := s[1:]
	if len(rest) > 0 && (rest[0] == '#' || rest[0] == 'b') {
		rest = rest[1:]
	}
	if rest == "" {
		return false
	}
	start := 0
	if rest[0] == '-' {
		start = 1
	}
	if start >= len(rest) {
		return false
	}
	for i := start; i < len(rest); i++ {
		if rest[i] < '0' || rest[i] > '9' {
			return false
		}
	}
	return true
}
