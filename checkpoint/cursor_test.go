package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorStoreLifecycle(t *testing.T) {
	store := NewCursorStore(filepath.Join(t.TempDir(), "checkpoints", "checkpoint_20250309.txt"))

	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save("2012", "Ford"))
	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, "2012|Ford", string(data))

	cur, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Cursor{Year: "2012", Make: "Ford"}, cur)

	require.NoError(t, store.Clear())
	_, ok, err = store.Load()
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, store.Clear())
}

func TestCursorStoreIgnoresMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.txt")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	_, ok, err := NewCursorStore(path).Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCursorSkipRules(t *testing.T) {
	cur := Cursor{Year: "2012", Make: "Ford"}

	tests := []struct {
		year, make string
		skip       bool
	}{
		{year: "2011", make: "Toyota", skip: true},
		{year: "2012", make: "Acura", skip: true},
		{year: "2012", make: "ford", skip: true},
		{year: "2012", make: "GMC", skip: false},
		{year: "2013", make: "Acura", skip: false},
	}
	for _, tt := range tests {
		got := cur.SkipYear(tt.year) || cur.SkipMake(tt.year, tt.make)
		assert.Equal(t, tt.skip, got, "%s %s", tt.year, tt.make)
	}

	assert.False(t, Cursor{}.SkipYear("2010"))
	assert.False(t, Cursor{}.SkipMake("2010", "Acura"))
}
