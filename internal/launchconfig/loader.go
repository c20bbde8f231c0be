package launchconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	lodeberrors "github.com/ctagard/lodeb/internal/errors"
)

const (
	// LaunchJSONFileName is the standard name for VS Code launch configuration file.
	LaunchJSONFileName = "launch.json"
	// VSCodeDirName is the VS Code configuration directory name.
	VSCodeDirName = ".vscode"
)

// LoadFromPath loads a launch.json file from an explicit path.
func LoadFromPath(path string) (*LaunchJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, lodeberrors.ConfigNotFound(path, err)
		}
		return nil, lodeberrors.ConfigInvalid(path, err)
	}

	var lj LaunchJSON
	if err := json.Unmarshal(data, &lj); err != nil {
		return nil, lodeberrors.ConfigInvalid(path, fmt.Errorf("failed to parse launch.json: %w", err))
	}

	return &lj, nil
}

// Discover searches for a .vscode/launch.json file starting from the given path
// and walking up the directory tree until found or reaching the root.
func Discover(startPath string) (string, error) {
	if startPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		startPath = cwd
	}

	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	// If startPath is a file, start from its directory
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		absPath = filepath.Dir(absPath)
	}

	current := absPath
	for {
		launchPath := filepath.Join(current, VSCodeDirName, LaunchJSONFileName)
		if _, err := os.Stat(launchPath); err == nil {
			return launchPath, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return "", lodeberrors.ConfigNotFound(filepath.Join(startPath, VSCodeDirName, LaunchJSONFileName),
		fmt.Errorf("no %s/%s found in %s or parent directories", VSCodeDirName, LaunchJSONFileName, startPath))
}

// Find returns the configuration called name. An empty name selects the
// first launch configuration.
func (lj *LaunchJSON) Find(name string) (*DebugConfiguration, error) {
	for i := range lj.Configurations {
		cfg := &lj.Configurations[i]
		if name == "" && cfg.IsLaunchRequest() {
			return cfg, nil
		}
		if name != "" && cfg.Name == name {
			return cfg, nil
		}
	}
	if name == "" {
		return nil, fmt.Errorf("launch.json has no launch configuration")
	}
	return nil, fmt.Errorf("configuration %q not found (available: %v)", name, lj.Names())
}

// Names returns the configuration names in file order
func (lj *LaunchJSON) Names() []string {
	names := make([]string, len(lj.Configurations))
	for i, cfg := range lj.Configurations {
		names[i] = cfg.Name
	}
	return names
}

// Defaults returns the default value of every input, keyed by id
func (lj *LaunchJSON) Defaults() map[string]string {
	out := make(map[string]string, len(lj.Inputs))
	for _, in := range lj.Inputs {
		if in.Default != "" {
			out[in.ID] = in.Default
		}
	}
	return out
}

// WorkspaceFolder derives the workspace folder from the launch.json path.
// The workspace folder is the parent of the .vscode directory.
func WorkspaceFolder(launchJSONPath string) string {
	return filepath.Dir(filepath.Dir(launchJSONPath))
}
