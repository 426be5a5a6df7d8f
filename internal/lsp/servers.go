package lsp

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"callgraph/internal/errors"
)

// ServerMetadata describes how to launch the language server for a language.
type ServerMetadata struct {
	Name       string
	BinaryName string
	Args       []string
	LanguageID string
	Extensions []string
}

// Known language servers. Only servers that implement call hierarchy are
// listed; type hierarchy support varies by server.
var serverMetadata = map[string]*ServerMetadata{
	"go": {
		Name:       "gopls",
		BinaryName: "gopls",
		Args:       []string{"serve"},
		LanguageID: "go",
		Extensions: []string{".go"},
	},
	"python": {
		Name:       "pyright",
		BinaryName: "pyright-langserver",
		Args:       []string{"--stdio"},
		LanguageID: "python",
		Extensions: []string{".py", ".pyi"},
	},
	"typescript": {
		Name:       "typescript-language-server",
		BinaryName: "typescript-language-server",
		Args:       []string{"--stdio"},
		LanguageID: "typescript",
		Extensions: []string{".ts", ".tsx", ".mts", ".cts"},
	},
	"javascript": {
		Name:       "typescript-language-server",
		BinaryName: "typescript-language-server",
		Args:       []string{"--stdio"},
		LanguageID: "javascript",
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
	},
	"rust": {
		Name:       "rust-analyzer",
		BinaryName: "rust-analyzer",
		LanguageID: "rust",
		Extensions: []string{".rs"},
	},
	"c": {
		Name:       "clangd",
		BinaryName: "clangd",
		LanguageID: "c",
		Extensions: []string{".c", ".h"},
	},
	"cpp": {
		Name:       "clangd",
		BinaryName: "clangd",
		LanguageID: "cpp",
		Extensions: []string{".cc", ".cpp", ".cxx", ".hpp", ".hh"},
	},
	"java": {
		Name:       "jdtls",
		BinaryName: "jdtls",
		LanguageID: "java",
		Extensions: []string{".java"},
	},
}

// GetServerMetadata returns metadata for a given language's server.
func GetServerMetadata(lang string) (*ServerMetadata, error) {
	metadata, ok := serverMetadata[lang]
	if !ok {
		return nil, errors.NewInvalidRequestError("no language server known for language: %s", lang)
	}
	return metadata, nil
}

// SupportedLanguages returns the known languages in sorted order.
func SupportedLanguages() []string {
	langs := make([]string, 0, len(serverMetadata))
	for lang := range serverMetadata {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// LanguageID returns the LSP language identifier for a file, or "plaintext".
func LanguageID(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	for _, meta := range serverMetadata {
		for _, e := range meta.Extensions {
			if e == ext {
				return meta.LanguageID
			}
		}
	}
	return "plaintext"
}

// DetectLanguage picks the language with the most matching files. Ties are
// broken alphabetically so the result is deterministic.
func DetectLanguage(files []string) (string, error) {
	counts := make(map[string]int)
	for _, f := range files {
		if id := LanguageID(f); id != "plaintext" {
			counts[id]++
		}
	}

	best, bestCount := "", 0
	for _, lang := range SupportedLanguages() {
		if counts[lang] > bestCount {
			best, bestCount = lang, counts[lang]
		}
	}
	if best == "" {
		return "", errors.NewNotFoundError("no source files for a supported language")
	}
	return best, nil
}

// ResolveServer returns the path to the server binary for the given language.
// Priority:
// 1. customPath (if provided and exists)
// 2. System PATH
func ResolveServer(lang, customPath string) (string, error) {
	metadata, err := GetServerMetadata(lang)
	if err != nil {
		return "", err
	}

	if customPath != "" {
		if _, err := os.Stat(customPath); err == nil {
			return customPath, nil
		}
		if p, err := exec.LookPath(customPath); err == nil {
			return p, nil
		}
	}

	p, err := exec.LookPath(metadata.BinaryName)
	if err != nil {
		return "", errors.WithHintf(
			errors.Wrapf(errors.ErrNotFound, "%s not found", metadata.BinaryName),
			"install %s or set lsp.command in the config", metadata.Name,
		)
	}
	return p, nil
}
