package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocation_Equality(t *testing.T) {
	a := Location{Path: "main.c", Line: 10}
	b := Location{Path: "main.c", Line: 10}
	c := Location{Path: "main.c", Line: 11}
	d := Location{Path: "./main.c", Line: 10}

	require.Equal(t, a, b)
	require.True(t, a == b)
	require.False(t, a == c)
	require.False(t, a == d, "paths are not normalized")
}

func TestLocation_MapKey(t *testing.T) {
	m := map[Location]int{}
	m[Location{Path: "main.c", Line: 10}] = 1
	m[Location{Path: "main.c", Line: 10}] = 2
	m[Location{Path: "main.c", Line: 12}] = 3

	require.Len(t, m, 2)
	require.Equal(t, 2, m[Location{Path: "main.c", Line: 10}])
}

func TestLocation_LessAndString(t *testing.T) {
	require.True(t, Location{Path: "a.c", Line: 9}.Less(Location{Path: "b.c", Line: 1}))
	require.True(t, Location{Path: "a.c", Line: 1}.Less(Location{Path: "a.c", Line: 2}))
	require.False(t, Location{Path: "a.c", Line: 2}.Less(Location{Path: "a.c", Line: 2}))
	require.Equal(t, "main.c:10", Location{Path: "main.c", Line: 10}.String())
	require.True(t, Location{}.IsZero())
}

func TestExeParams_CloneAndLoadable(t *testing.T) {
	p := ExeParams{ExePath: "/bin/app", WorkingDir: "/tmp", Args: []string{"-v"}, Env: map[string]string{"A": "1"}}
	require.True(t, p.Loadable())

	c := p.Clone()
	c.Args[0] = "-q"
	c.Env["A"] = "2"
	require.Equal(t, "-v", p.Args[0])
	require.Equal(t, "1", p.Env["A"])

	require.False(t, ExeParams{ExePath: "/bin/app"}.Loadable())
	require.NotNil(t, DefaultExeParams().Args)
}

func TestFrame_Signature(t *testing.T) {
	f1 := Frame{ID: 1000, Name: "main", Location: Location{Path: "main.c", Line: 3}}
	f2 := Frame{ID: 1001, Name: "main", Location: Location{Path: "main.c", Line: 9}}
	f3 := Frame{ID: 1002, Name: "helper", Location: Location{Path: "main.c", Line: 3}}

	require.Equal(t, f1.Signature(), f2.Signature(), "frame id and line do not change the signature")
	require.NotEqual(t, f1.Signature(), f3.Signature())
}
