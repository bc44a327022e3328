package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(src string) []Token {
	l := New(src)
	var toks []Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks
		}
	}
}

func TestKeywordsAndIdents(t *testing.T) {
	toks := collect("tempo 120\ntrack kick")
	require.Equal(t, Keyword, toks[0].Kind)
	require.Equal(t, "tempo", toks[0].Text)
	require.Equal(t, Number, toks[1].Kind)
	require.Equal(t, Newline, toks[2].Kind)
	require.Equal(t, Keyword, toks[3].Kind)
	require.Equal(t, Ident, toks[4].Kind)
	require.Equal(t, "kick", toks[4].Text)
}

func TestStepCells(t *testing.T) {
	toks := collect("[X . x .]")
	kinds := []Kind{LBracket, StepCell, StepCell, StepCell, StepCell, RBracket, EOF}
	for i, k := range kinds {
		require.Equal(t, k, toks[i].Kind, "token %d", i)
	}
}

func TestPitchLiteral(t *testing.T) {
	toks := collect("C2 Eb3 kick")
	require.Equal(t, PitchLiteral, toks[0].Kind)
	require.Equal(t, PitchLiteral, toks[1].Kind)
	require.Equal(t, Ident, toks[2].Kind)
}

func TestArrowsAndPipes(t *testing.T) {
	toks := collect("map cutoff -> poly.filter : 200..8000\ntrack d = drums |> kit default")
	var found = map[Kind]bool{}
	for _, tok := range toks {
		found[tok.Kind] = true
	}
	require.True(t, found[Arrow])
	require.True(t, found[DotDot])
	require.True(t, found[Pipe])
}

func TestSpansTrackLineAndCol(t *testing.T) {
	toks := collect("tempo 120\ntrack d")
	// "track" is on line 2, col 1
	var trackTok Token
	for _, tok := range toks {
		if tok.Text == "track" {
			trackTok = tok
		}
	}
	require.Equal(t, 2, trackTok.Line)
	require.Equal(t, 1, trackTok.Col)
}

func TestCommentsExtendToEndOfLine(t *testing.T) {
	toks := collect("tempo 120 # comment here\ntrack d")
	require.Equal(t, Keyword, toks[0].Kind)
	require.Equal(t, Number, toks[1].Kind)
	require.Equal(t, Newline, toks[2].Kind)
	require.Equal(t, Keyword, toks[3].Kind)
}

func TestNumberValue(t *testing.T) {
	toks := collect("120 0.5 -3")
	v, err := NumberValue(toks[0])
	require.NoError(t, err)
	require.Equal(t, 120.0, v)
	v, err = NumberValue(toks[1])
	require.NoError(t, err)
	require.Equal(t, 0.5, v)
	v, err = NumberValue(toks[2])
	require.NoError(t, err)
	require.Equal(t, -3.0, v)
}
