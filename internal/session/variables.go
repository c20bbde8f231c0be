package session

import (
	"strconv"
	"strings"

	"github.com/ctagard/lodeb/pkg/types"
)

// VariableState is the variable pane of one stopped frame: the names in
// display order, which of them are expanded and their last rendered text.
//
// Values and expansion are keyed by path: a top-level name, or a child path
// built with ChildPath. Entries for paths that no longer exist are harmless;
// they are simply never rendered.
type VariableState struct {
	signature string
	names     []string
	expanded  map[string]bool
	values    map[string]string
	children  map[string][]string
	rendered  bool
}

// NewVariableState builds the state for a freshly stopped frame.
//
// Names are taken as given, with shadowed duplicates renamed name#2, name#3
// and so on. When prev belongs to a frame with the same signature its
// expanded set carries over, restricted to names still present. Values always
// start empty and must be rendered again.
func NewVariableState(signature string, names []string, prev *VariableState) *VariableState {
	s := &VariableState{
		signature: signature,
		names:     dedupeNames(names),
		expanded:  make(map[string]bool),
		values:    make(map[string]string),
		children:  make(map[string][]string),
	}

	if prev != nil && prev.signature == signature {
		present := make(map[string]bool, len(s.names))
		for _, n := range s.names {
			present[n] = true
		}
		for path := range prev.expanded {
			if present[rootOf(path)] {
				s.expanded[path] = true
			}
		}
	}
	return s
}

// dedupeNames keeps display order and disambiguates repeats
func dedupeNames(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]int, len(names))
	for i, n := range names {
		seen[n]++
		if seen[n] == 1 {
			out[i] = n
			continue
		}
		out[i] = n + "#" + strconv.Itoa(seen[n])
	}
	return out
}

// ChildPath names a child of an expanded variable
func ChildPath(parent, child string) string {
	return parent + "." + child
}

func rootOf(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}

// Signature identifies the frame this state was built for
func (s *VariableState) Signature() string {
	return s.signature
}

// Names returns the top-level names in display order
func (s *VariableState) Names() []string {
	return append([]string(nil), s.names...)
}

// IsExpanded reports whether path shows its children
func (s *VariableState) IsExpanded(path string) bool {
	return s.expanded[path]
}

// ToggleExpanded flips path and returns the new state. The values have to be
// rendered again afterwards.
func (s *VariableState) ToggleExpanded(path string) bool {
	if s.expanded[path] {
		delete(s.expanded, path)
	} else {
		s.expanded[path] = true
	}
	s.rendered = false
	return s.expanded[path]
}

// Value returns the last rendered text of path
func (s *VariableState) Value(path string) (string, bool) {
	v, ok := s.values[path]
	return v, ok
}

// SetValue caches the rendered text of path
func (s *VariableState) SetValue(path, text string) {
	s.values[path] = text
}

// Children returns the child names last rendered under path
func (s *VariableState) Children(path string) []string {
	return s.children[path]
}

// NeedsRender reports whether values are missing or stale
func (s *VariableState) NeedsRender() bool {
	return !s.rendered
}

// MarkRendered records that values match the expanded set
func (s *VariableState) MarkRendered() {
	s.rendered = true
}

// expandedPaths returns a copy of the expanded set for rendering off-lock
func (s *VariableState) expandedPaths() map[string]bool {
	out := make(map[string]bool, len(s.expanded))
	for p := range s.expanded {
		out[p] = true
	}
	return out
}

// applyRender replaces values and children wholesale
func (s *VariableState) applyRender(values map[string]string, children map[string][]string) {
	s.values = values
	s.children = children
	s.rendered = true
}

// View renders the tree for the UI
func (s *VariableState) View() []types.VariableView {
	out := make([]types.VariableView, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, s.view(n, n, 0))
	}
	return out
}

func (s *VariableState) view(path, name string, depth int) types.VariableView {
	v := types.VariableView{Name: name, Value: s.values[path], Expanded: s.expanded[path]}
	if v.Expanded && depth < maxRenderDepth {
		for _, child := range s.children[path] {
			v.Children = append(v.Children, s.view(ChildPath(path, child), child, depth+1))
		}
	}
	return v
}
