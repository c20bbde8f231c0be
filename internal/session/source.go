package session

import (
	"os"
	"strings"

	lodeberrors "github.com/ctagard/lodeb/internal/errors"
)

// SourceView is the file shown in the source pane and a one-shot request to
// scroll it to a line
type SourceView struct {
	Path string
	Text string

	scroll OneShot[int]
}

// NewSourceView wraps already loaded text
func NewSourceView(path, text string) *SourceView {
	return &SourceView{Path: path, Text: text}
}

// ReadSourceView loads path eagerly
func ReadSourceView(path string) (*SourceView, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lodeberrors.SourceUnavailable(path, err)
	}
	return NewSourceView(path, string(data)), nil
}

// ScrollTo asks the UI to bring line into view
func (v *SourceView) ScrollTo(line int) {
	v.scroll.Set(line)
}

// ScrollTarget returns the pending scroll request without consuming it
func (v *SourceView) ScrollTarget() (int, bool) {
	return v.scroll.Peek()
}

// TakeScroll consumes the pending scroll request
func (v *SourceView) TakeScroll() (int, bool) {
	return v.scroll.Take()
}

// Lines splits the text for rendering; a trailing newline does not add an
// empty last line
func (v *SourceView) Lines() []string {
	if v.Text == "" {
		return nil
	}
	text := strings.ReplaceAll(v.Text, "\r\n", "\n")
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// clone copies the view including its pending scroll
func (v *SourceView) clone() *SourceView {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
