// Package parser implements Resonance's recursive-descent parser (spec
// §4.D). It accepts two surface syntaxes — block-declarative
// (`track X { ... }`) and chain-functional (`track X = drums |> kit
// default |> section groove { ... }`) — and folds both into the same
// ast.Program. On error it records a compileerr.CompileError and recovers
// at the next top-level keyword so a single parse can surface every error
// in the source, not just the first.
package parser

import (
	"github.com/resonance-lang/resonance/internal/ast"
	"github.com/resonance-lang/resonance/internal/compileerr"
	"github.com/resonance-lang/resonance/internal/lexer"
)

var topLevelKeywords = map[string]bool{
	"tempo": true, "track": true, "macro": true, "map": true, "layer": true,
}

// Parser consumes a flat, newline-filtered token stream (newlines are
// whitespace to this grammar — every construct is keyword- or
// bracket-delimited) and builds an ast.Program.
type Parser struct {
	toks []lexer.Token
	pos  int
	errs compileerr.List
}

// Parse tokenizes and parses src, returning the Program built so far (which
// may be partial if errors occurred) and the accumulated error list.
func Parse(src string) (*ast.Program, compileerr.List) {
	l := lexer.New(src)
	var toks []lexer.Token
	for {
		t := l.Next()
		if t.Kind == lexer.Newline {
			continue
		}
		toks = append(toks, t)
		if t.Kind == lexer.EOF {
			break
		}
	}
	p := &Parser{toks: toks}
	prog := p.parseProgram()
	return prog, p.errs
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) at(k lexer.Kind) bool { return p.cur().Kind == k }
func (p *Parser) atEOF() bool       { return p.at(lexer.EOF) }

func (p *Parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) atKeyword(kw string) bool {
	return p.cur().Kind == lexer.Keyword && p.cur().Text == kw
}

func span(t lexer.Token) ast.Span {
	return ast.Span{Line: t.Line, Col: t.Col, Len: t.Len}
}

func errSpan(s ast.Span) compileerr.Span {
	return compileerr.Span{Line: s.Line, Col: s.Col, Len: s.Len}
}

func (p *Parser) errorf(format string, args ...any) {
	p.errs = append(p.errs, compileerr.New(compileerr.ParseError, errSpan(span(p.cur())), format, args...))
}

// recover skips tokens until the next top-level keyword or EOF, per spec
// §4.D's multi-error recovery strategy.
func (p *Parser) recover() {
	for !p.atEOF() {
		if p.cur().Kind == lexer.Keyword && topLevelKeywords[p.cur().Text] {
			return
		}
		p.advance()
	}
}

// expect consumes and returns a token of the given kind, or records a
// parse error and returns the current (unconsumed) token.
func (p *Parser) expect(k lexer.Kind, what string) lexer.Token {
	if p.at(k) {
		return p.advance()
	}
	p.errorf("expected %s, got %q", what, p.cur().Text)
	return p.cur()
}

func (p *Parser) expectKeyword(kw string) lexer.Token {
	if p.atKeyword(kw) {
		return p.advance()
	}
	p.errorf("expected keyword %q, got %q", kw, p.cur().Text)
	return p.cur()
}

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}

	if p.atKeyword("tempo") {
		prog.Tempo = p.parseTempoDecl()
	} else {
		p.errorf("program must begin with a tempo declaration")
	}

	for !p.atEOF() {
		switch {
		case p.atKeyword("track"):
			if t, ok := p.parseTrackDecl(); ok {
				prog.Tracks = append(prog.Tracks, t)
			}
		case p.atKeyword("macro"):
			if m, ok := p.parseMacroDecl(); ok {
				prog.Macros = append(prog.Macros, m)
			}
		case p.atKeyword("map"):
			if m, ok := p.parseMappingDecl(); ok {
				prog.Maps = append(prog.Maps, m)
			}
		case p.atKeyword("layer"):
			if l, ok := p.parseLayerDecl(); ok {
				prog.Layers = append(prog.Layers, l)
			}
		default:
			p.errorf("unexpected token %q at top level", p.cur().Text)
			p.recover()
		}
	}

	return prog
}

func (p *Parser) parseTempoDecl() ast.TempoDecl {
	kw := p.expectKeyword("tempo")
	numTok := p.expect(lexer.Number, "tempo value")
	v, err := lexer.NumberValue(numTok)
	if err != nil {
		p.errorf("invalid tempo number %q", numTok.Text)
	}
	return ast.TempoDecl{BPM: v, Span: span(kw)}
}

// parseTrackDecl dispatches on the token after the track name: "{" is
// block-declarative, "=" is chain-functional. Both converge on the same
// ast.TrackDecl.
func (p *Parser) parseTrackDecl() (ast.TrackDecl, bool) {
	kw := p.expectKeyword("track")
	nameTok := p.expect(lexer.Ident, "track name")
	decl := ast.TrackDecl{Name: nameTok.Text, Span: span(kw)}

	switch {
	case p.at(lexer.LBrace):
		p.advance()
		decl.Instrument = p.parseInstrumentDecl()
		for p.atKeyword("section") {
			sec, ok := p.parseSectionDecl()
			if ok {
				decl.Sections = append(decl.Sections, sec)
			}
		}
		p.expect(lexer.RBrace, "'}' to close track")
	case p.at(lexer.Equals):
		p.advance()
		decl.Instrument, decl.Sections = p.parseInstrumentChain()
	default:
		p.errorf("expected '{' or '=' after track name")
		p.recover()
		return decl, false
	}
	return decl, true
}

// parseInstrumentDecl handles the block-declarative instrument form:
// ("kit" ":" ident) | "bass" | "poly" | "pluck" | "noise".
func (p *Parser) parseInstrumentDecl() ast.InstrumentDecl {
	t := p.cur()
	switch {
	case t.Kind == lexer.Keyword && t.Text == "kit":
		p.advance()
		p.expect(lexer.Colon, "':' after kit")
		kitTok := p.expect(lexer.Ident, "kit name")
		return ast.InstrumentDecl{Kind: "kit", Kit: kitTok.Text, Span: span(t)}
	case t.Kind == lexer.Keyword && (t.Text == "bass" || t.Text == "poly" || t.Text == "pluck" || t.Text == "noise"):
		p.advance()
		return ast.InstrumentDecl{Kind: t.Text, Span: span(t)}
	default:
		p.errorf("expected instrument declaration (kit/bass/poly/pluck/noise), got %q", t.Text)
		return ast.InstrumentDecl{Kind: "noise", Span: span(t)}
	}
}

// parseInstrumentChain handles `drums |> kit default |> section groove {...}`
// where the leading bare word ("drums") names the instrument family. The
// chain-functional surface spells drum-kit tracks as "drums" and reuses
// the closed instrument set for everything else.
func (p *Parser) parseInstrumentChain() (ast.InstrumentDecl, []ast.SectionDecl) {
	var head lexer.Token
	if p.cur().Kind == lexer.Keyword && chainHeadToKind(p.cur().Text) == p.cur().Text {
		head = p.advance() // bass/poly/pluck/noise lex as keywords
	} else {
		head = p.expect(lexer.Ident, "instrument name")
	}
	kind := chainHeadToKind(head.Text)
	instr := ast.InstrumentDecl{Kind: kind, Span: span(head)}

	var sections []ast.SectionDecl
	for p.at(lexer.Pipe) {
		p.advance()
		switch {
		case p.atKeyword("kit"):
			p.advance()
			kitTok := p.expect(lexer.Ident, "kit name")
			instr.Kit = kitTok.Text
		case p.atKeyword("section"):
			sec, ok := p.parseSectionDecl()
			if ok {
				sections = append(sections, sec)
			}
		default:
			p.errorf("unexpected chain step %q", p.cur().Text)
			p.recover()
			return instr, sections
		}
	}
	return instr, sections
}

func chainHeadToKind(word string) string {
	switch word {
	case "drums":
		return "kit"
	case "bass", "poly", "pluck", "noise":
		return word
	default:
		return "noise"
	}
}

func (p *Parser) parseSectionDecl() (ast.SectionDecl, bool) {
	kw := p.expectKeyword("section")
	nameTok := p.expect(lexer.Ident, "section name")
	sec := ast.SectionDecl{Name: nameTok.Text, Span: span(kw)}

	p.expect(lexer.LBracket, "'[' before bar count")
	numTok := p.expect(lexer.Number, "bar count")
	v, err := lexer.NumberValue(numTok)
	if err != nil {
		p.errorf("invalid bar count %q", numTok.Text)
	}
	sec.LengthBars = int(v)
	p.expectKeyword("bars")
	p.expect(lexer.RBracket, "']' after bar count")

	p.expect(lexer.LBrace, "'{' to open section body")
	for !p.at(lexer.RBrace) && !p.atEOF() {
		if p.atKeyword("map") {
			m, ok := p.parseMappingDecl()
			if ok {
				sec.MappingOverrides = append(sec.MappingOverrides, m)
			}
			continue
		}
		line, ok := p.parsePatternLine()
		if ok {
			sec.Patterns = append(sec.Patterns, line)
		} else {
			p.recoverWithinBrace()
		}
	}
	p.expect(lexer.RBrace, "'}' to close section")
	return sec, true
}

// recoverWithinBrace skips to the closing brace, without escaping past a
// top-level keyword boundary. Lines skipped this way are not parsed, so
// the rest of the block after a malformed line yields no further
// pattern lines or errors.
func (p *Parser) recoverWithinBrace() {
	for !p.at(lexer.RBrace) && !p.atEOF() {
		if p.cur().Kind == lexer.Keyword && topLevelKeywords[p.cur().Text] {
			return
		}
		p.advance()
	}
}

func (p *Parser) parsePatternLine() (ast.PatternLine, bool) {
	nameTok := p.expect(lexer.Ident, "pattern line name")
	line := ast.PatternLine{TargetName: nameTok.Text, Span: span(nameTok)}
	if !p.expectOK(lexer.Colon, "':' after pattern name") {
		return line, false
	}
	steps, ok := p.parseStepArray()
	if !ok {
		return line, false
	}
	line.Steps = steps

	if p.atKeyword("vel") {
		p.advance()
		vel, ok := p.parseVelArray()
		if ok {
			line.Vel = vel
		}
	}
	return line, true
}

func (p *Parser) expectOK(k lexer.Kind, what string) bool {
	if p.at(k) {
		p.advance()
		return true
	}
	p.errorf("expected %s, got %q", what, p.cur().Text)
	return false
}

func (p *Parser) parseStepArray() ([]ast.Step, bool) {
	if !p.expectOK(lexer.LBracket, "'[' to open step array") {
		return nil, false
	}
	var steps []ast.Step
	for !p.at(lexer.RBracket) && !p.atEOF() {
		t := p.cur()
		switch t.Kind {
		case lexer.StepCell:
			kind := ast.StepRest
			switch t.Text {
			case "X":
				kind = ast.StepHit
			case "x":
				kind = ast.StepSoft
			case ".":
				kind = ast.StepRest
			}
			steps = append(steps, ast.Step{Kind: kind, Span: span(t)})
			p.advance()
		case lexer.PitchLiteral:
			steps = append(steps, ast.Step{Kind: ast.StepPitch, Pitch: t.Text, Span: span(t)})
			p.advance()
		default:
			p.errorf("expected step cell (X, x, ., or pitch literal), got %q", t.Text)
			p.advance()
		}
	}
	p.expect(lexer.RBracket, "']' to close step array")
	return steps, true
}

func (p *Parser) parseVelArray() ([]ast.VelCell, bool) {
	if !p.expectOK(lexer.LBracket, "'[' to open vel array") {
		return nil, false
	}
	var cells []ast.VelCell
	for !p.at(lexer.RBracket) && !p.atEOF() {
		t := p.cur()
		switch t.Kind {
		case lexer.Number:
			v, err := lexer.NumberValue(t)
			if err != nil {
				p.errorf("invalid velocity %q", t.Text)
			}
			cells = append(cells, ast.VelCell{Has: true, Value: v, Span: span(t)})
			p.advance()
		case lexer.StepCell:
			if t.Text == "." {
				cells = append(cells, ast.VelCell{Has: false, Span: span(t)})
				p.advance()
				continue
			}
			p.errorf("expected number or '.', got %q", t.Text)
			p.advance()
		default:
			p.errorf("expected number or '.', got %q", t.Text)
			p.advance()
		}
	}
	p.expect(lexer.RBracket, "']' to close vel array")
	return cells, true
}

func (p *Parser) parseMacroDecl() (ast.MacroDecl, bool) {
	kw := p.expectKeyword("macro")
	nameTok := p.expect(lexer.Ident, "macro name")
	if !p.expectOK(lexer.Equals, "'=' in macro declaration") {
		p.recover()
		return ast.MacroDecl{}, false
	}
	numTok := p.expect(lexer.Number, "macro initial value")
	v, err := lexer.NumberValue(numTok)
	if err != nil {
		p.errorf("invalid macro value %q", numTok.Text)
	}
	return ast.MacroDecl{Name: nameTok.Text, Initial: v, Span: span(kw)}, true
}

func (p *Parser) parseMappingDecl() (ast.MappingDecl, bool) {
	kw := p.expectKeyword("map")
	macroTok := p.expect(lexer.Ident, "macro name")
	if !p.expectOK(lexer.Arrow, "'->' in mapping") {
		p.recover()
		return ast.MappingDecl{}, false
	}
	trackTok := p.expect(lexer.Ident, "track reference")
	// track_ref "." ident : the '.' is lexed as StepCell("."); accept it
	// explicitly here since this grammar position is unambiguous.
	if p.at(lexer.StepCell) && p.cur().Text == "." {
		p.advance()
	} else {
		p.errorf("expected '.' between track and param name")
	}
	paramTok := p.expect(lexer.Ident, "param name")
	p.expect(lexer.Colon, "':' before range")
	loTok := p.expect(lexer.Number, "range low bound")
	lo, _ := lexer.NumberValue(loTok)
	if !p.expectOK(lexer.DotDot, "'..' in range") {
		p.recover()
		return ast.MappingDecl{}, false
	}
	hiTok := p.expect(lexer.Number, "range high bound")
	hi, _ := lexer.NumberValue(hiTok)

	curve := ""
	if p.cur().Kind == lexer.Keyword {
		switch p.cur().Text {
		case "linear", "log", "exp", "smoothstep":
			curve = p.cur().Text
			p.advance()
		}
	}

	return ast.MappingDecl{
		MacroName: macroTok.Text,
		TrackName: trackTok.Text,
		ParamName: paramTok.Text,
		Lo:        lo, Hi: hi,
		CurveName: curve,
		Span:      span(kw),
	}, true
}

func (p *Parser) parseLayerDecl() (ast.LayerDecl, bool) {
	kw := p.expectKeyword("layer")
	nameTok := p.expect(lexer.Ident, "layer name")
	decl := ast.LayerDecl{Name: nameTok.Text, Enabled: false, Span: span(kw)}

	if p.cur().Kind == lexer.Ident && (p.cur().Text == "enabled" || p.cur().Text == "disabled") {
		decl.Enabled = p.cur().Text == "enabled"
		p.advance()
	}

	p.expect(lexer.LBrace, "'{' to open layer body")
	for !p.at(lexer.RBrace) && !p.atEOF() {
		if p.atKeyword("map") {
			m, ok := p.parseMappingDecl()
			if ok {
				decl.Mappings = append(decl.Mappings, m)
			}
			continue
		}
		p.errorf("expected mapping inside layer, got %q", p.cur().Text)
		p.recoverWithinBrace()
	}
	p.expect(lexer.RBrace, "'}' to close layer")
	return decl, true
}
