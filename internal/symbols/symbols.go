// Package symbols builds the function symbol table of a target executable
// from its DWARF debug information and answers fuzzy name searches over it.
package symbols

import (
	"context"
	"debug/dwarf"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/ctagard/lodeb/pkg/types"
)

// ErrNoDebugInfo is returned for executables without DWARF data
var ErrNoDebugInfo = errors.New("no DWARF debug information")

// Symbol is a function and the source line its code starts at
type Symbol struct {
	Name string         `json:"name"`
	Loc  types.Location `json:"loc"`
}

// Table is an immutable, name-sorted set of symbols
type Table struct {
	Symbols []Symbol
	names   []string
}

// NewTable builds a table, sorting by name and dropping exact duplicates
func NewTable(syms []Symbol) *Table {
	sorted := append([]Symbol(nil), syms...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].Loc.Less(sorted[j].Loc)
	})

	out := sorted[:0]
	for i, s := range sorted {
		if i > 0 && s == sorted[i-1] {
			continue
		}
		out = append(out, s)
	}

	names := make([]string, len(out))
	for i, s := range out {
		names[i] = s.Name
	}
	return &Table{Symbols: out, names: names}
}

// Len returns the number of symbols
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Symbols)
}

// Lookup returns the first symbol with exactly this name
func (t *Table) Lookup(name string) (Symbol, bool) {
	if t == nil {
		return Symbol{}, false
	}
	i := sort.SearchStrings(t.names, name)
	if i < len(t.names) && t.names[i] == name {
		return t.Symbols[i], true
	}
	return Symbol{}, false
}

// Search returns up to limit symbols whose names contain text as a
// case-insensitive subsequence, closest matches first. An empty query
// matches nothing; limit <= 0 means no limit.
func (t *Table) Search(text string, limit int) []Symbol {
	text = strings.TrimSpace(text)
	if t == nil || text == "" || len(t.names) == 0 {
		return nil
	}

	ranks := fuzzy.RankFindFold(text, t.names)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})

	if limit > 0 && len(ranks) > limit {
		ranks = ranks[:limit]
	}

	out := make([]Symbol, len(ranks))
	for i, r := range ranks {
		out[i] = t.Symbols[r.OriginalIndex]
	}
	return out
}

// Load reads the symbol table of the executable at path
func Load(path string) (*Table, error) {
	return LoadContext(context.Background(), path)
}

// LoadContext is Load with cancellation checked between compilation units
func LoadContext(ctx context.Context, path string) (*Table, error) {
	data, closer, err := openDWARF(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	syms, err := collect(ctx, data)
	if err != nil {
		return nil, err
	}
	return NewTable(syms), nil
}

// openDWARF tries ELF, then Mach-O, then PE
func openDWARF(path string) (*dwarf.Data, io.Closer, error) {
	if f, err := elf.Open(path); err == nil {
		return dwarfOf(f, f.DWARF)
	}
	if f, err := macho.Open(path); err == nil {
		return dwarfOf(f, f.DWARF)
	}
	if f, err := pe.Open(path); err == nil {
		return dwarfOf(f, f.DWARF)
	}
	return nil, nil, fmt.Errorf("%s: not an ELF, Mach-O or PE executable", path)
}

func dwarfOf(c io.Closer, load func() (*dwarf.Data, error)) (*dwarf.Data, io.Closer, error) {
	d, err := load()
	if err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("%w: %v", ErrNoDebugInfo, err)
	}
	return d, c, nil
}

// collect walks every compilation unit and records its subprograms
func collect(ctx context.Context, d *dwarf.Data) ([]Symbol, error) {
	var (
		syms []Symbol
		lr   *dwarf.LineReader
	)

	r := d.Reader()
	for {
		e, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("reading DWARF: %w", err)
		}
		if e == nil {
			break
		}

		switch e.Tag {
		case dwarf.TagCompileUnit:
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			lr, err = d.LineReader(e)
			if err != nil {
				lr = nil
			}

		case dwarf.TagSubprogram:
			if s, ok := subprogram(d, lr, e); ok {
				syms = append(syms, s)
			}
		}

		// parameters and lexical blocks are not symbols
		if e.Tag == dwarf.TagSubprogram && e.Children {
			r.SkipChildren()
		}
	}
	return syms, nil
}

func subprogram(d *dwarf.Data, lr *dwarf.LineReader, e *dwarf.Entry) (Symbol, bool) {
	lowpc, ok := e.Val(dwarf.AttrLowpc).(uint64)
	if !ok {
		// declarations and abstract inline instances have no code
		return Symbol{}, false
	}

	name := entryName(d, e)
	if name == "" {
		return Symbol{}, false
	}

	loc, ok := pcLocation(lr, lowpc)
	if !ok {
		loc, ok = declLocation(lr, e)
	}
	if !ok {
		return Symbol{}, false
	}
	return Symbol{Name: name, Loc: loc}, true
}

// entryName prefers the linkage-free name, following specification and
// abstract-origin references for out-of-line definitions
func entryName(d *dwarf.Data, e *dwarf.Entry) string {
	if name, ok := e.Val(dwarf.AttrName).(string); ok && name != "" {
		return name
	}
	for _, attr := range []dwarf.Attr{dwarf.AttrSpecification, dwarf.AttrAbstractOrigin} {
		off, ok := e.Val(attr).(dwarf.Offset)
		if !ok {
			continue
		}
		r := d.Reader()
		r.Seek(off)
		ref, err := r.Next()
		if err != nil || ref == nil {
			continue
		}
		if name, ok := ref.Val(dwarf.AttrName).(string); ok && name != "" {
			return name
		}
	}
	return ""
}

func pcLocation(lr *dwarf.LineReader, pc uint64) (types.Location, bool) {
	if lr == nil {
		return types.Location{}, false
	}
	var le dwarf.LineEntry
	if err := lr.SeekPC(pc, &le); err != nil || le.File == nil || le.Line == 0 {
		return types.Location{}, false
	}
	return types.Location{Path: le.File.Name, Line: le.Line}, true
}

func declLocation(lr *dwarf.LineReader, e *dwarf.Entry) (types.Location, bool) {
	if lr == nil {
		return types.Location{}, false
	}
	fileIdx, ok := e.Val(dwarf.AttrDeclFile).(int64)
	if !ok {
		return types.Location{}, false
	}
	line, ok := e.Val(dwarf.AttrDeclLine).(int64)
	if !ok || line <= 0 {
		return types.Location{}, false
	}
	files := lr.Files()
	if fileIdx < 0 || int(fileIdx) >= len(files) || files[fileIdx] == nil {
		return types.Location{}, false
	}
	return types.Location{Path: files[fileIdx].Name, Line: int(line)}, true
}
