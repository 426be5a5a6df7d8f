package util

import (
	"os"
	"path/filepath"
)

// FindGitRoot walks up from dir looking for a .git entry.
// Returns dir itself if no repository is found.
func FindGitRoot(dir string) (string, error) {
	start, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	current := start
	for {
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			// Reached root
			return start, nil
		}
		current = parent
	}
}
