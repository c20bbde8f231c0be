package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctagard/lodeb/internal/engine/enginetest"
	lodeberrors "github.com/ctagard/lodeb/internal/errors"
	"github.com/ctagard/lodeb/internal/logging"
	"github.com/ctagard/lodeb/pkg/types"
)

func newTestState() *State {
	return NewState(enginetest.New(), Options{Logger: logging.Discard()})
}

func TestStoreLoad_RoundTrip(t *testing.T) {
	h := newHarness(t)
	h.load()
	require.NoError(t, h.st.RequestToggleBreakpoint(h.loc(3)))
	require.NoError(t, h.st.RequestOpen(h.loc(1)))
	h.settle()
	h.start()

	params := types.ExeParams{
		ExePath:     filepath.Join(h.dir, "app"),
		WorkingDir:  h.dir,
		Args:        []string{"-v", "input.txt"},
		Env:         map[string]string{"MODE": "debug"},
		StopOnEntry: true,
	}
	h.st.SetExeParams(params)

	path := filepath.Join(h.dir, "lodeb.json")
	require.NoError(t, Store(h.st, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.ElementsMatch(t, []string{"exe_params", "source_file_path"}, keys(raw), "only configuration is persisted")

	st := newTestState()
	require.NoError(t, Load(st, path))
	assert.Equal(t, params, st.ExeParams())
	assert.True(t, st.ShouldLoad(), "complete exe params trigger a load")
	require.NotNil(t, st.Source())
	assert.Equal(t, h.src, st.Source().Path)

	snap := st.Snapshot()
	assert.Empty(t, snap.Breakpoints)
	assert.Nil(t, snap.Process)
	assert.False(t, snap.TargetLoaded)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestLoad_MissingSourceKeepsExeParams(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lodeb.json")
	body := `{"exe_params":{"exe_path":"/opt/app","working_dir":"/opt"},"source_file_path":"/nowhere/main.c"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	st := newTestState()
	err := Load(st, path)
	require.Error(t, err)
	assert.Equal(t, lodeberrors.CodeSourceUnavailable, lodeberrors.CodeOf(err))

	p := st.ExeParams()
	assert.Equal(t, "/opt/app", p.ExePath)
	assert.NotNil(t, p.Args, "missing args default to an empty list")
	assert.True(t, st.ShouldLoad())
	assert.Nil(t, st.Source())
}

func TestLoad_IncompleteParamsDoNotLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lodeb.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"exe_params":{"exe_path":"/opt/app"},"extra":1}`), 0o644))

	st := newTestState()
	require.NoError(t, Load(st, path))
	assert.False(t, st.ShouldLoad())
	assert.Equal(t, "/opt/app", st.ExeParams().ExePath)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	err := Load(newTestState(), filepath.Join(dir, "absent.json"))
	assert.Equal(t, lodeberrors.CodeConfigNotFound, lodeberrors.CodeOf(err))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"exe_params":`), 0o644))
	err = Load(newTestState(), bad)
	assert.Equal(t, lodeberrors.CodeConfigInvalid, lodeberrors.CodeOf(err))
}
