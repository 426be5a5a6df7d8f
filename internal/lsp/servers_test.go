package lsp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callgraph/internal/errors"
)

func TestGetServerMetadata(t *testing.T) {
	for _, lang := range SupportedLanguages() {
		meta, err := GetServerMetadata(lang)
		require.NoError(t, err, lang)
		assert.NotEmpty(t, meta.BinaryName)
		assert.NotEmpty(t, meta.Extensions)
		assert.Equal(t, lang, meta.LanguageID)
	}

	_, err := GetServerMetadata("cobol")
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestLanguageID(t *testing.T) {
	assert.Equal(t, "go", LanguageID("/a/b/main.go"))
	assert.Equal(t, "typescript", LanguageID("src/App.TSX"))
	assert.Equal(t, "python", LanguageID("x.py"))
	assert.Equal(t, "plaintext", LanguageID("README.md"))
}

func TestDetectLanguage(t *testing.T) {
	lang, err := DetectLanguage([]string{"a.py", "b.py", "c.go", "README.md"})
	require.NoError(t, err)
	assert.Equal(t, "python", lang)

	_, err = DetectLanguage([]string{"README.md"})
	assert.True(t, errors.IsNotFoundError(err))
}

func TestResolveServer_CustomPath(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "my-gopls")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755))

	got, err := ResolveServer("go", bin)
	require.NoError(t, err)
	assert.Equal(t, bin, got)
}

func TestResolveServer_Missing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := ResolveServer("rust", "")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
	assert.NotEmpty(t, errors.GetAllHints(err))
}
