package sources

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Tree is an immutable-by-convention, in-memory view of a package's files,
// keyed by slash-separated paths relative to the package root. It is built
// once by a loader and only read afterwards.
type Tree struct {
	root  string // display name of the package root, for logs only
	files map[string][]byte
}

// NewTree creates an empty tree. Loaders and tests populate it with Add.
func NewTree(root string) *Tree {
	return &Tree{root: root, files: make(map[string][]byte)}
}

// Add records a file. Paths are normalized to forward slashes.
func (t *Tree) Add(path string, content []byte) {
	t.files[filepath.ToSlash(path)] = content
}

// Root returns the display name of the package root.
func (t *Tree) Root() string { return t.root }

// File returns a file's content and whether it exists.
func (t *Tree) File(path string) ([]byte, bool) {
	content, ok := t.files[path]
	return content, ok
}

// Has reports whether the given path exists in the tree.
func (t *Tree) Has(path string) bool {
	_, ok := t.files[path]
	return ok
}

// Paths returns every file path in lexicographic order.
func (t *Tree) Paths() []string {
	paths := make([]string, 0, len(t.files))
	for p := range t.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of files in the tree.
func (t *Tree) Len() int { return len(t.files) }

// LoadDir reads every regular file under dir into a Tree. Symbolic links are
// skipped entirely, so a link cannot pull content from outside the package
// root. The .git directory is ignored.
func LoadDir(dir string) (*Tree, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving package root %q: %w", dir, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("reading package root %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("package root %q is not a directory", dir)
	}

	tree := NewTree(filepath.Base(abs))
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			// Symlinks and other special files are not part of a package.
			return nil
		}

		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		if strings.HasPrefix(rel, "..") {
			return fmt.Errorf("file %q escapes package root", p)
		}

		content, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading %q: %w", p, err)
		}
		tree.Add(rel, content)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tree, nil
}
