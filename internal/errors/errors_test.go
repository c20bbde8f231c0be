package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDebugError_ErrorIncludesHint(t *testing.T) {
	err := NoTarget("toggle breakpoint")
	require.Contains(t, err.Error(), "toggle breakpoint requires a loaded target")
	require.Contains(t, err.Error(), "| Hint: Load the target first.")
}

func TestDebugError_UnwrapReachesCause(t *testing.T) {
	err := ConfigNotFound("lodeb.json", fs.ErrNotExist)
	require.True(t, stderrors.Is(err, fs.ErrNotExist))

	wrapped := fmt.Errorf("load: %w", err)
	require.True(t, Is(wrapped, CodeConfigNotFound))
	require.Equal(t, CodeConfigNotFound, CodeOf(wrapped))
}

func TestIs_FollowsNestedDebugErrors(t *testing.T) {
	inner := BreakpointRejected("main.c", 10, "not verified", nil)
	outer := StepFailed("run to main.c:10", inner)

	require.True(t, Is(outer, CodeStepFailed))
	require.True(t, Is(outer, CodeEngineRejected))
	require.False(t, Is(outer, CodeLoadFailed))
	require.False(t, Is(stderrors.New("plain"), CodeLoadFailed))
}

func TestBreakpointRejected_Details(t *testing.T) {
	err := BreakpointRejected("main.c", 10, "file not in target", nil)
	require.Equal(t, CodeEngineRejected, err.Code)
	require.Equal(t, "main.c", err.Details["path"])
	require.Equal(t, 10, err.Details["line"])
}

func TestFromError_PreservesStructure(t *testing.T) {
	de := CommandPending("step over", "continue")
	require.Same(t, de, FromError(fmt.Errorf("x: %w", de)))

	plain := FromError(stderrors.New("boom"))
	require.Equal(t, ErrorCode("UNKNOWN_ERROR"), plain.Code)
	require.Equal(t, "boom", plain.Message)
}
