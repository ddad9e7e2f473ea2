package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowpack-dev/knowpack/pkg/pack"
)

func mountTestPack(t *testing.T) *pack.Pack {
	t.Helper()
	docs := []pack.Document{
		{Text: "the quick brown fox jumps", ID: "a", Heading: "Fox"},
		{Text: "over the lazy dog in the yard", ID: "b", Heading: "Dog"},
	}
	out, err := pack.Build(context.Background(), docs, pack.BuildOptions{BuildTag: "test-tag"})
	require.NoError(t, err)
	pk, err := pack.Mount(context.Background(), pack.FromBytes(out))
	require.NoError(t, err)
	return pk
}

func TestNew_RequiresPack(t *testing.T) {
	_, err := New(nil, "somewhere")
	assert.Error(t, err)
}

func TestQueryHandler_ReturnsSnippets(t *testing.T) {
	srv, err := New(mountTestPack(t), "test.kpack")
	require.NoError(t, err)

	_, out, err := srv.queryHandler(context.Background(), nil, QueryInput{Query: "fox"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Snippets)
}

func TestQueryHandler_RejectsEmptyQuery(t *testing.T) {
	srv, err := New(mountTestPack(t), "test.kpack")
	require.NoError(t, err)

	_, _, err = srv.queryHandler(context.Background(), nil, QueryInput{})
	assert.Error(t, err)
}

func TestStatusHandler_ReportsShape(t *testing.T) {
	srv, err := New(mountTestPack(t), "test.kpack")
	require.NoError(t, err)

	_, out, err := srv.statusHandler(context.Background(), nil, StatusInput{})
	require.NoError(t, err)
	assert.Equal(t, "test.kpack", out.Source)
	assert.Equal(t, uint32(2), out.Blocks)
	assert.Equal(t, "test-tag", out.BuildTag)
}
