package symbols

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ctagard/lodeb/pkg/types"
)

func sampleTable() *Table {
	return NewTable([]Symbol{
		{Name: "parse_args", Loc: types.Location{Path: "/src/main.c", Line: 12}},
		{Name: "main", Loc: types.Location{Path: "/src/main.c", Line: 40}},
		{Name: "print_usage", Loc: types.Location{Path: "/src/usage.c", Line: 3}},
		{Name: "main", Loc: types.Location{Path: "/src/main.c", Line: 40}},
		{Name: "ParseConfig", Loc: types.Location{Path: "/src/config.c", Line: 88}},
	})
}

func TestNewTable_SortsAndDedupes(t *testing.T) {
	tbl := sampleTable()
	require.Equal(t, 4, tbl.Len())

	names := make([]string, 0, tbl.Len())
	for _, s := range tbl.Symbols {
		names = append(names, s.Name)
	}
	require.Equal(t, []string{"ParseConfig", "main", "parse_args", "print_usage"}, names)
}

func TestTable_Lookup(t *testing.T) {
	tbl := sampleTable()

	s, ok := tbl.Lookup("main")
	require.True(t, ok)
	require.Equal(t, types.Location{Path: "/src/main.c", Line: 40}, s.Loc)

	_, ok = tbl.Lookup("nope")
	require.False(t, ok)

	var empty *Table
	_, ok = empty.Lookup("main")
	require.False(t, ok)
	require.Zero(t, empty.Len())
}

func TestTable_Search(t *testing.T) {
	tbl := sampleTable()

	t.Run("exact beats subsequence", func(t *testing.T) {
		got := tbl.Search("main", 0)
		require.NotEmpty(t, got)
		require.Equal(t, "main", got[0].Name)
	})

	t.Run("case insensitive", func(t *testing.T) {
		got := tbl.Search("parse", 0)
		require.Len(t, got, 2)
		for _, s := range got {
			require.True(t, strings.HasPrefix(strings.ToLower(s.Name), "parse"))
		}
	})

	t.Run("subsequence", func(t *testing.T) {
		got := tbl.Search("prus", 0)
		require.Len(t, got, 1)
		require.Equal(t, "print_usage", got[0].Name)
	})

	t.Run("limit", func(t *testing.T) {
		require.Len(t, tbl.Search("a", 1), 1)
	})

	t.Run("empty query matches nothing", func(t *testing.T) {
		require.Nil(t, tbl.Search("  ", 10))
	})

	t.Run("no match", func(t *testing.T) {
		require.Empty(t, tbl.Search("zzz", 10))
	})
}

func TestLoad_NotAnExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	_, err := Load(path)
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestLoad_TestBinary(t *testing.T) {
	exe, err := os.Executable()
	if err != nil {
		t.Skipf("no executable path: %v", err)
	}

	tbl, err := Load(exe)
	if err != nil {
		t.Skipf("test binary has no usable debug info: %v", err)
	}
	if tbl.Len() == 0 {
		t.Skip("test binary has no subprogram entries")
	}

	got := tbl.Search("TestLoad_TestBinary", 5)
	require.NotEmpty(t, got)
	require.True(t, strings.HasSuffix(got[0].Name, "TestLoad_TestBinary"))
	require.True(t, strings.HasSuffix(got[0].Loc.Path, "symbols_test.go"))
	require.Greater(t, got[0].Loc.Line, 0)
}

func TestLoadContext_Cancelled(t *testing.T) {
	exe, err := os.Executable()
	if err != nil {
		t.Skipf("no executable path: %v", err)
	}
	if _, err := Load(exe); err != nil {
		t.Skipf("test binary has no usable debug info: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = LoadContext(ctx, exe)
	require.ErrorIs(t, err, context.Canceled)
}
