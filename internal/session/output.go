package session

import (
	"strings"
	"unicode/utf8"
)

// Output is the captured console of the debuggee, bounded to the most recent
// max bytes
type Output struct {
	max       int
	buf       strings.Builder
	truncated bool
}

// NewOutput returns an empty capture; max <= 0 means unbounded
func NewOutput(max int) *Output {
	return &Output{max: max}
}

// Append adds text; stderr output is kept verbatim alongside stdout
func (o *Output) Append(text string) {
	o.buf.WriteString(text)
	if o.max <= 0 || o.buf.Len() <= o.max {
		return
	}

	s := o.buf.String()
	cut := len(s) - o.max
	// don't split a UTF-8 sequence
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	o.buf.Reset()
	o.buf.WriteString(s[cut:])
	o.truncated = true
}

// String returns the captured text
func (o *Output) String() string {
	return o.buf.String()
}

// Len returns the captured size in bytes
func (o *Output) Len() int {
	return o.buf.Len()
}

// Truncated reports whether older output was dropped
func (o *Output) Truncated() bool {
	return o.truncated
}

// Reset empties the capture
func (o *Output) Reset() {
	o.buf.Reset()
	o.truncated = false
}
