package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTypesListsBuiltins(t *testing.T) {
	out, err := execute(t, "types")
	require.NoError(t, err)
	for _, typ := range []string{"esp300", "ell14", "newport1830c", "maitai", "simcam"} {
		assert.Contains(t, out, typ)
	}
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
instruments:
  - id: cam1
    type: simcam
  - id: pm1
    type: newport1830c
    enabled: false
`), 0o600))

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "OK (2 instruments, 1 enabled)")
}

func TestValidateRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("instruments:\n  - id: a\n"), 0o600))

	_, err := execute(t, "validate", path)
	assert.Error(t, err)
}
