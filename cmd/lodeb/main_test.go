package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctagard/lodeb/internal/config"
	lodeberrors "github.com/ctagard/lodeb/internal/errors"
)

func TestVersionFlag(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), version)
}

func TestInvalidAdapterFlag(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--adapter", "node", "--no-mcp"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown adapter")
}

func TestImportLaunchConfig(t *testing.T) {
	root := t.TempDir()
	vscode := filepath.Join(root, ".vscode")
	require.NoError(t, os.MkdirAll(vscode, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(vscode, "launch.json"), []byte(`{
		"version": "0.2.0",
		"configurations": [
			{"type": "lldb", "request": "launch", "name": "native", "program": "${workspaceFolder}/out/app", "args": ["-v"]},
			{"type": "go", "request": "launch", "name": "server", "program": "bin/server"}
		]
	}`), 0o644))

	nested := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	p, kind, err := importLaunchConfig(nested, "")
	require.NoError(t, err)
	assert.Equal(t, config.AdapterLLDB, kind)
	assert.Equal(t, filepath.Join(root, "out", "app"), p.ExePath)
	assert.Equal(t, root, p.WorkingDir)
	assert.Equal(t, []string{"-v"}, p.Args)

	_, kind, err = importLaunchConfig(root, "server")
	require.NoError(t, err)
	assert.Equal(t, config.AdapterDelve, kind)

	_, _, err = importLaunchConfig(t.TempDir(), "")
	assert.True(t, lodeberrors.Is(err, lodeberrors.CodeConfigNotFound))
}
