package main

import (
	"bufio"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/resonance-lang/resonance/internal/compiler"
	"github.com/resonance-lang/resonance/internal/parser"
	"github.com/resonance-lang/resonance/internal/types"
)

func TestExitErrorCarriesCodeAndUnwraps(t *testing.T) {
	inner := os.ErrNotExist
	err := newExitError(4, inner)

	var ee *exitError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, 4, ee.code)
	require.ErrorIs(t, err, inner)
}

func TestCountMacrosCountsOnlyNamedSlots(t *testing.T) {
	prog, errs := parser.Parse(defaultSource + "\nmacro vol = 0.5\n")
	require.False(t, errs.HasErrors())
	bundle, errs := compiler.Compile(prog, types.Seed(1))
	require.False(t, errs.HasErrors())

	require.Equal(t, 1, countMacros(bundle))
}

func TestNewRootCmdRegistersSpecFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"seed", "device", "no-audio", "eval", "debug", "osc-addr"} {
		require.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing --%s flag", name)
	}
}

func TestRunEvalWritesEventsThenSummaryLine(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "*.reso")
	require.NoError(t, err)
	_, err = f.WriteString(defaultSource)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	stdout, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	evalErr := runEval(flags{evalFile: f.Name(), seed: 1})
	require.NoError(t, w.Close())
	os.Stdout = orig
	require.NoError(t, evalErr)

	var lines []string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	require.NotEmpty(t, lines)
	require.Contains(t, lines[len(lines)-1], `"summary"`)
	require.Contains(t, lines[len(lines)-1], `"eventCount"`)
}

func TestRunEvalReturnsCompileErrorExitCode(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "*.reso")
	require.NoError(t, err)
	_, err = f.WriteString("track kick {\n  kit: default\n}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	devNull, err := os.Open(os.DevNull)
	require.NoError(t, err)
	defer devNull.Close()
	orig := os.Stdout
	os.Stdout = devNull
	defer func() { os.Stdout = orig }()

	err = runEval(flags{evalFile: f.Name(), seed: 1})
	var ee *exitError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, 2, ee.code)
}

func TestRunEvalMissingFileReturnsIOErrorExitCode(t *testing.T) {
	err := runEval(flags{evalFile: "/nonexistent/does-not-exist.reso"})
	var ee *exitError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, 4, ee.code)
}

func TestStartTelemetryRejectsMalformedAddr(t *testing.T) {
	stop := startTelemetry("not-a-host-port", nil)
	require.Nil(t, stop)
}

func TestStartTelemetryDisabledWhenAddrEmpty(t *testing.T) {
	stop := startTelemetry("", nil)
	require.Nil(t, stop)
}

var _ io.Writer = (*os.File)(nil)
