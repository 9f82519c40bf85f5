package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"tcncore/internal/domain"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRoot()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	require.NoError(t, root.Execute(), stderr.String())
	return stdout.String()
}

func TestBuildMemo(t *testing.T) {
	m, err := buildMemo("Mild", "dry", []string{"breathlessness", "runny-nose"}, "2026-05-30")
	require.NoError(t, err)
	require.Equal(t, domain.FeverMild, m.Fever)
	require.Equal(t, domain.CoughDry, m.Cough)
	require.True(t, m.Breathlessness)
	require.True(t, m.RunnyNose)
	require.NotNil(t, m.EarliestSymptomTime)

	_, err = buildMemo("hot", "none", nil, "")
	require.Error(t, err)
	_, err = buildMemo("mild", "none", []string{"none"}, "")
	require.Error(t, err)
}

func TestCLI_InitTokenRecordReport(t *testing.T) {
	home := t.TempDir()
	pass := "Tr0ub4dor&3-horse"

	require.Contains(t, run(t, "--home", home, "-p", pass, "init"), "Key ID:")

	tok := strings.Fields(run(t, "--home", home, "-p", pass, "token"))
	require.Len(t, tok, 2)

	require.Contains(t, run(t, "--home", home, "record", tok[0], "--distance", "1.5"), "recorded seq 1")

	out := run(t, "--home", home, "-p", pass, "report", "--fever", "mild", "--dry-run")
	require.True(t, strings.HasPrefix(out, "report 0..1\n"), out)

	require.Contains(t, run(t, "--home", home, "alerts"), "no alerts")
}
