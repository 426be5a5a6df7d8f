// Package files lists the source files of a folder and reads lines from them.
package files

import (
	"bufio"
	"bytes"
	"context"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"callgraph/internal/errors"
)

// Directories that are never worth walking when git is unavailable.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"__pycache__":  true,
}

// List returns the absolute paths of the files under folder. Inside a git
// work tree it asks git for tracked and untracked-but-not-ignored files;
// otherwise it walks the folder honoring its .gitignore. When extensions are
// given, only files with one of them are returned.
func List(ctx context.Context, folder string, extensions ...string) ([]string, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", folder)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", abs)
	}
	if !info.IsDir() {
		return nil, errors.NewInvalidRequestError("not a directory: %s", abs)
	}

	var paths []string
	if insideWorkTree(ctx, abs) {
		paths, err = listWithGit(ctx, abs)
	} else {
		paths, err = listWithWalk(ctx, abs)
	}
	if err != nil {
		return nil, err
	}

	out := paths[:0]
	for _, p := range paths {
		if matchesExtension(p, extensions) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func matchesExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func insideWorkTree(ctx context.Context, folder string) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = folder
	out, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "true"
}

func listWithGit(ctx context.Context, folder string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = folder
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrap(err, "git ls-files failed")
	}

	var paths []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		rel := strings.TrimSpace(scanner.Text())
		if rel == "" {
			continue
		}
		path := filepath.Join(folder, filepath.FromSlash(rel))
		// --cached still lists files deleted from the work tree.
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			paths = append(paths, path)
		}
	}
	return paths, scanner.Err()
}

// LoadGitignore compiles the .gitignore at the root of folder, or returns nil.
func LoadGitignore(folder string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(folder, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

func listWithWalk(ctx context.Context, folder string) ([]string, error) {
	gitignore := LoadGitignore(folder)

	var paths []string
	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, relErr := filepath.Rel(folder, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skipDirs[d.Name()] || (gitignore != nil && gitignore.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if gitignore != nil && gitignore.MatchesPath(rel) {
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk %s", folder)
	}
	return paths, nil
}

// RelativeTo strips root from path, yielding a slash-separated display name.
// Paths outside root are returned unchanged.
func RelativeTo(root, path string) string {
	if root == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(rel)
}

// Within reports whether path is scope itself or lies below it. An empty
// scope contains everything.
func Within(path, scope string) bool {
	if scope == "" {
		return true
	}
	scope = strings.TrimRight(scope, string(filepath.Separator))
	if scope == "" {
		return true
	}
	return path == scope || strings.HasPrefix(path, scope+string(filepath.Separator))
}

// ReadLine returns the zero-based line of a file without its line ending.
func ReadLine(path string, line int) (string, error) {
	if line < 0 {
		return "", errors.NewInvalidRequestError("negative line %d", line)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for n := 0; scanner.Scan(); n++ {
		if n == line {
			return strings.TrimRight(scanner.Text(), "\r"), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrapf(err, "failed to read %s", path)
	}
	return "", errors.Wrapf(errors.ErrNotFound, "line %d beyond end of %s", line, path)
}
