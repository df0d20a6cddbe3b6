package grading

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiffKeys(t *testing.T) {
	diff := DiffKeys([]string{"a", "c", "c", " "}, []string{"a", "b", "b"})
	require.Equal(t, []string{"b"}, diff.Added)
	require.Equal(t, []string{"c"}, diff.Removed)

	empty := DiffKeys(nil, nil)
	require.Empty(t, empty.Added)
	require.Empty(t, empty.Removed)
}
