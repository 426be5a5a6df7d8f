package util

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURIRoundTrip(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix paths")
	}
	path := "/tmp/my project/main.go"
	uri := PathToURI(path)
	assert.Equal(t, "file:///tmp/my%20project/main.go", uri)
	assert.Equal(t, path, URIToPath(uri))
}

func TestURIToPath_NonFileURI(t *testing.T) {
	assert.Equal(t, "untitled:Untitled-1", URIToPath("untitled:Untitled-1"))
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, ContentHash("a", "b"), ContentHash("a", "b"))
	assert.NotEqual(t, ContentHash("ab"), ContentHash("a", "b"))
	assert.Len(t, ContentHash("x"), 64)
}

func TestFindGitRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0755))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	got, err := FindGitRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, got)

	plain := t.TempDir()
	got, err = FindGitRoot(plain)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}
