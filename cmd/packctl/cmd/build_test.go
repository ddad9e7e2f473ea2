package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDirectoryDocuments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "guides"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guides", "retry.md"), []byte("# Retry\n\nBackoff notes."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("plain notes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blank.md"), []byte("   \n"), 0o644))

	docs, err := readDirectoryDocuments(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	byID := make(map[string]bool)
	for _, d := range docs {
		byID[d.ID] = true
	}
	assert.True(t, byID["guides/retry.md"])
	assert.True(t, byID["notes.txt"])

	for _, d := range docs {
		if d.ID == "guides/retry.md" {
			assert.Equal(t, "retry", d.Heading)
			assert.Equal(t, "guides", d.Namespace)
		}
		if d.ID == "notes.txt" {
			assert.Equal(t, "", d.Namespace)
		}
	}
}

func TestReadDirectoryDocuments_SkipsHiddenDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "hidden.md"), []byte("hidden"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "visible.md"), []byte("visible"), 0o644))

	docs, err := readDirectoryDocuments(dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "visible.md", docs[0].ID)
}

func TestReadJSONLDocuments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.jsonl")
	content := `{"text":"first doc","id":"a","heading":"A"}
{"text":"second doc","id":"b","namespace":"ns"}

`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	docs, err := readJSONLDocuments(path)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "first doc", docs[0].Text)
	assert.Equal(t, "A", docs[0].Heading)
	assert.Equal(t, "ns", docs[1].Namespace)
}

func TestReadJSONLDocuments_RejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("not json\n"), 0o644))

	_, err := readJSONLDocuments(path)
	assert.Error(t, err)
}

func TestReadEmbeddings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "embeddings.json")
	require.NoError(t, os.WriteFile(path, []byte(`[[0.1,0.2],[0.3,0.4]]`), 0o644))

	rows, err := readEmbeddings(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []float32{0.1, 0.2}, rows[0])
}
