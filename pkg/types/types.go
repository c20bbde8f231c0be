// Package types defines shared data types used across lodeb.
//
// This package provides type definitions for:
//   - Location: the (file, line) identity used for breakpoints and highlighting
//   - ExeParams: the configured target executable, working directory and arguments
//   - ProcessStatus: execution state of the debugged process
//   - Frame: a stack frame as reported by the debug engine
//   - Snapshot types: read-only views of the session handed to the UI layer
//
// These types are plain values so they can cross goroutine boundaries and be
// serialized without dragging engine state along.
package types

import (
	"fmt"
	"strings"
)

// Location identifies a line in a source file.
// It is comparable and used as a map key; no path normalization is applied,
// so callers must supply canonical paths consistently.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

// String renders the location as path:line
func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.Path, l.Line)
}

// IsZero reports whether the location is unset
func (l Location) IsZero() bool {
	return l.Path == "" && l.Line == 0
}

// Less orders locations by path, then line
func (l Location) Less(other Location) bool {
	if c := strings.Compare(l.Path, other.Path); c != 0 {
		return c < 0
	}
	return l.Line < other.Line
}

// ExeParams describes the target executable and how to run it
type ExeParams struct {
	ExePath     string            `json:"exe_path"`
	WorkingDir  string            `json:"working_dir"`
	Args        []string          `json:"args"`
	Env         map[string]string `json:"env,omitempty"`
	StopOnEntry bool              `json:"stop_on_entry,omitempty"`
}

// DefaultExeParams returns empty parameters with a non-nil argument list
func DefaultExeParams() ExeParams {
	return ExeParams{Args: []string{}}
}

// Loadable reports whether enough is configured to load the target
func (p ExeParams) Loadable() bool {
	return p.ExePath != "" && p.WorkingDir != ""
}

// Clone returns a deep copy
func (p ExeParams) Clone() ExeParams {
	out := p
	out.Args = append([]string{}, p.Args...)
	if p.Env != nil {
		out.Env = make(map[string]string, len(p.Env))
		for k, v := range p.Env {
			out.Env[k] = v
		}
	}
	return out
}

// ProcessStatus represents the execution state of the debugged process
type ProcessStatus string

const (
	ProcessStopped     ProcessStatus = "stopped"
	ProcessRunning     ProcessStatus = "running"
	ProcessTerminating ProcessStatus = "terminating"
	ProcessExited      ProcessStatus = "exited"
)

// Frame represents a stack frame
type Frame struct {
	ID       int      `json:"id"`
	Index    int      `json:"index"`
	Name     string   `json:"name"`
	Location Location `json:"location"`
	ThreadID int      `json:"threadId"`
}

// Signature identifies the function activation a frame belongs to.
// Two frames with the same signature show the same set of variables.
func (f Frame) Signature() string {
	return fmt.Sprintf("%s|%s|%d", f.Name, f.Location.Path, f.Index)
}

// VariableView is a rendered variable row
type VariableView struct {
	Name     string         `json:"name"`
	Value    string         `json:"value,omitempty"`
	Expanded bool           `json:"expanded,omitempty"`
	Children []VariableView `json:"children,omitempty"`
}

// ProcessSnapshot is a read-only view of the process session
type ProcessSnapshot struct {
	ID            string         `json:"id"`
	Status        ProcessStatus  `json:"status"`
	Pending       string         `json:"pending,omitempty"`
	RunToLoc      *Location      `json:"runToLoc,omitempty"`
	SelectedFrame *Frame         `json:"selectedFrame,omitempty"`
	HighlightLoc  *Location      `json:"highlightLoc,omitempty"`
	Frames        []Frame        `json:"frames,omitempty"`
	Variables     []VariableView `json:"variables,omitempty"`
}

// SessionSnapshot is a read-only view of the whole session
type SessionSnapshot struct {
	ExeParams       ExeParams        `json:"exeParams"`
	Pending         string           `json:"pending,omitempty"`
	TargetLoaded    bool             `json:"targetLoaded"`
	MetadataPending bool             `json:"metadataPending"`
	MetadataReady   bool             `json:"metadataReady"`
	SourcePath      string           `json:"sourcePath,omitempty"`
	Breakpoints     []Location       `json:"breakpoints"`
	Process         *ProcessSnapshot `json:"process,omitempty"`
	SearchText      string           `json:"searchText,omitempty"`
}
