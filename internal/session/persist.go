package session

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	lodeberrors "github.com/ctagard/lodeb/internal/errors"
	"github.com/ctagard/lodeb/pkg/types"
)

// persisted is the on-disk project file. Breakpoints, the process and every
// cache are deliberately absent.
type persisted struct {
	ExeParams      types.ExeParams `json:"exe_params"`
	SourceFilePath string          `json:"source_file_path,omitempty"`
}

// Load restores the project file at path into st.
//
// The executable parameters are applied first and, when they are complete, a
// target load is requested. The source file is read last; if that fails the
// error has code SOURCE_UNAVAILABLE and everything before it stays applied.
func Load(st *State, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return lodeberrors.ConfigNotFound(path, err)
		}
		return lodeberrors.ConfigInvalid(path, err)
	}

	p := persisted{ExeParams: types.DefaultExeParams()}
	if err := json.Unmarshal(data, &p); err != nil {
		return lodeberrors.ConfigInvalid(path, err)
	}

	st.mu.Lock()
	st.setExeParams(p.ExeParams)
	if st.exeParams.Loadable() {
		st.pending |= SessionLoad
		st.signal()
	}
	st.mu.Unlock()

	if p.SourceFilePath == "" {
		return nil
	}
	view, err := ReadSourceView(p.SourceFilePath)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.source = view
	st.mu.Unlock()
	return nil
}

// Store writes the executable parameters and the open source path of st to
// path, replacing the file atomically
func Store(st *State, path string) error {
	st.mu.Lock()
	p := persisted{ExeParams: st.exeParams.Clone()}
	if st.source != nil {
		p.SourceFilePath = st.source.Path
	}
	st.mu.Unlock()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return lodeberrors.ConfigInvalid(path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".lodeb-*.json")
	if err != nil {
		return lodeberrors.ConfigInvalid(path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return lodeberrors.ConfigInvalid(path, err)
	}
	if err := tmp.Close(); err != nil {
		return lodeberrors.ConfigInvalid(path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return lodeberrors.ConfigInvalid(path, err)
	}
	return nil
}
