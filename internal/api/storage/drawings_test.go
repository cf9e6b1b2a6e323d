package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawingStore_SaveAndRemove(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "drawings")
	store, err := NewDrawingStore(dir)
	require.NoError(t, err)

	path, err := store.Save("job-1", "../../escape/plan.dwg", strings.NewReader("AC1032"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "job-1", "plan.dwg"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "AC1032", string(data))

	require.NoError(t, store.Remove("job-1"))
	_, err = os.Stat(filepath.Join(dir, "job-1"))
	assert.True(t, os.IsNotExist(err))
}
