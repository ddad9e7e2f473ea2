package packcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowpack-dev/knowpack/pkg/pack"
)

func buildTestPack(t *testing.T) []byte {
	t.Helper()
	docs := []pack.Document{
		{Text: "the quick brown fox", ID: "a", Heading: "A"},
		{Text: "jumps over the lazy dog", ID: "b", Heading: "B"},
	}
	out, err := pack.Build(context.Background(), docs, pack.BuildOptions{})
	require.NoError(t, err)
	return out
}

func writeTestPack(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.kpack")
	require.NoError(t, os.WriteFile(path, buildTestPack(t), 0o644))
	return path
}

func TestCache_GetMountsAndCaches(t *testing.T) {
	path := writeTestPack(t)
	c, err := New(2)
	require.NoError(t, err)

	pk1, err := c.Get(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, pk1.BlockCount())
	assert.Equal(t, 1, c.Len())

	pk2, err := c.Get(context.Background(), path)
	require.NoError(t, err)
	assert.Same(t, pk1, pk2)
}

func TestCache_GetRemountsOnModification(t *testing.T) {
	path := writeTestPack(t)
	c, err := New(2)
	require.NoError(t, err)

	pk1, err := c.Get(context.Background(), path)
	require.NoError(t, err)

	// Force a distinct mtime, then overwrite with new content.
	time.Sleep(10 * time.Millisecond)
	docs := []pack.Document{{Text: "an entirely different document", ID: "c"}}
	out, err := pack.Build(context.Background(), docs, pack.BuildOptions{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, out, 0o644))
	newTime := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, newTime, newTime))

	pk2, err := c.Get(context.Background(), path)
	require.NoError(t, err)
	assert.NotSame(t, pk1, pk2)
	assert.Equal(t, 1, pk2.BlockCount())
}

func TestCache_Invalidate(t *testing.T) {
	path := writeTestPack(t)
	c, err := New(2)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	c.Invalidate(path)
	assert.Equal(t, 0, c.Len())
}

func TestNew_DefaultCapacity(t *testing.T) {
	c, err := New(0)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestCache_GetMissingFile(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), filepath.Join(t.TempDir(), "missing.kpack"))
	assert.Error(t, err)
}
