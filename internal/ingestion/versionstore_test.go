package ingestion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionStore_AdvancesMonotonically(t *testing.T) {
	dir := t.TempDir()
	vs, err := OpenVersionStore(dir)
	require.NoError(t, err)
	defer vs.Close()

	v, err := vs.Current()
	require.NoError(t, err)
	require.Equal(t, 0, v)

	v1, err := vs.Advance()
	require.NoError(t, err)
	require.Equal(t, 1, v1)

	v2, err := vs.Advance()
	require.NoError(t, err)
	require.Equal(t, 2, v2)

	reopened, err := vs.Current()
	require.NoError(t, err)
	require.Equal(t, 2, reopened)
}
