package engine

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ctagard/lodeb/pkg/types"
)

// lineRegistry tracks the breakpoint lines of every source file with a
// reference count. DAP setBreakpoints replaces a file's whole set, so the
// engine resends the full list whenever a file's distinct lines change. A
// user breakpoint and a run-to breakpoint on the same line share one entry.
type lineRegistry struct {
	files map[string]map[int]int
}

func newLineRegistry() *lineRegistry {
	return &lineRegistry{files: make(map[string]map[int]int)}
}

// add references loc and reports whether its line is new to the file
func (r *lineRegistry) add(loc types.Location) bool {
	lines, ok := r.files[loc.Path]
	if !ok {
		lines = make(map[int]int)
		r.files[loc.Path] = lines
	}
	lines[loc.Line]++
	return lines[loc.Line] == 1
}

// remove drops one reference and reports whether the line left the file
func (r *lineRegistry) remove(loc types.Location) bool {
	lines, ok := r.files[loc.Path]
	if !ok || lines[loc.Line] == 0 {
		return false
	}
	lines[loc.Line]--
	if lines[loc.Line] > 0 {
		return false
	}
	delete(lines, loc.Line)
	if len(lines) == 0 {
		delete(r.files, loc.Path)
	}
	return true
}

// lines returns the distinct lines of path in ascending order
func (r *lineRegistry) lines(path string) []int {
	out := make([]int, 0, len(r.files[path]))
	for line := range r.files[path] {
		out = append(out, line)
	}
	sort.Ints(out)
	return out
}

// paths returns every file with at least one line, sorted
func (r *lineRegistry) paths() []string {
	out := make([]string, 0, len(r.files))
	for p := range r.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// checkSourceLine verifies that path is a readable file with at least line
// lines. It stands in for adapter verification before a process exists.
func checkSourceLine(path string, line int) error {
	if line < 1 {
		return fmt.Errorf("line %d is out of range", line)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	n := 0
	for {
		chunk, err := r.ReadSlice('\n')
		if len(chunk) > 0 {
			n++
			if n >= line {
				return nil
			}
		}
		if err == bufio.ErrBufferFull {
			// long line: keep reading the same line
			n--
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	return fmt.Errorf("file has %d lines, line %d is out of range", n, line)
}
