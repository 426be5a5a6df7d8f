package rollup

import (
	"sort"
	"strings"

	"callgraph/internal/errors"
	"callgraph/internal/graph"
)

// RootID is the id of the tree's root directory.
const RootID = "root"

// Directory is one folder of a Tree. ID is the slash-separated path of the
// folder, or RootID.
type Directory struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Directories []*Directory `json:"directories" yaml:"directories"`
	Files       []string     `json:"files" yaml:"files"`
	Depth       int          `json:"depth" yaml:"depth"`

	children map[string]*Directory
}

// Tree is a folder hierarchy built from file paths, with per-folder collapse
// state and an optional isolated subtree. Collapse state is kept beside the
// hierarchy because it changes far more often than the hierarchy does.
type Tree struct {
	Root *Directory

	dirs      map[string]*Directory
	files     map[string]bool
	collapsed map[string]bool
	isolated  string
}

// NewTree builds the hierarchy of the given slash-separated file paths. All
// folders start expanded.
func NewTree(paths []string) *Tree {
	t := &Tree{
		Root:      &Directory{ID: RootID, Name: RootID, children: make(map[string]*Directory)},
		dirs:      make(map[string]*Directory),
		files:     make(map[string]bool),
		collapsed: make(map[string]bool),
	}
	t.dirs[RootID] = t.Root

	for _, p := range paths {
		if p == "" || t.files[p] {
			continue
		}
		parts := strings.Split(p, "/")
		dir := t.Root
		for i, part := range parts[:len(parts)-1] {
			next, ok := dir.children[part]
			if !ok {
				next = &Directory{
					ID:       strings.Join(parts[:i+1], "/"),
					Name:     part,
					Depth:    i + 1,
					children: make(map[string]*Directory),
				}
				dir.children[part] = next
				dir.Directories = append(dir.Directories, next)
				t.dirs[next.ID] = next
			}
			dir = next
		}
		dir.Files = append(dir.Files, p)
		t.files[p] = true
	}

	t.sort(t.Root)
	return t
}

func (t *Tree) sort(d *Directory) {
	sort.Slice(d.Directories, func(i, j int) bool { return d.Directories[i].Name < d.Directories[j].Name })
	sort.Strings(d.Files)
	for _, child := range d.Directories {
		t.sort(child)
	}
}

func (t *Tree) directory(id string) (*Directory, error) {
	d, ok := t.dirs[id]
	if !ok {
		return nil, errors.NewNotFoundError("no directory %q", id)
	}
	return d, nil
}

// IsFile reports whether id names a file of the tree.
func (t *Tree) IsFile(id string) bool {
	return t.files[id]
}

// Collapsed reports whether a directory is collapsed.
func (t *Tree) Collapsed(id string) bool {
	return t.collapsed[id]
}

// Collapse hides the contents of a directory. An isolated subtree inside it
// is released.
func (t *Tree) Collapse(id string) error {
	if _, err := t.directory(id); err != nil {
		return err
	}
	if t.isolated != "" && t.contains(id, t.isolated) {
		t.isolated = ""
	}
	t.collapsed[id] = true
	return nil
}

// CollapseAll collapses every directory below the root.
func (t *Tree) CollapseAll() {
	for id := range t.dirs {
		if id != RootID {
			t.collapsed[id] = true
		}
	}
	t.isolated = ""
}

// Expand shows the contents of a directory.
func (t *Tree) Expand(id string) error {
	if _, err := t.directory(id); err != nil {
		return err
	}
	delete(t.collapsed, id)
	return nil
}

// ExpandTill expands the root and every ancestor folder of file.
func (t *Tree) ExpandTill(file string) {
	delete(t.collapsed, RootID)
	parts := strings.Split(file, "/")
	for i := 1; i < len(parts); i++ {
		delete(t.collapsed, strings.Join(parts[:i], "/"))
	}
}

// Isolate restricts projections to a subtree. An empty id clears it.
func (t *Tree) Isolate(id string) error {
	if id == "" || id == RootID {
		t.isolated = ""
		return nil
	}
	if !t.files[id] {
		if _, err := t.directory(id); err != nil {
			return err
		}
	}
	t.isolated = id
	return nil
}

// Isolated returns the isolated subtree, or "".
func (t *Tree) Isolated() string {
	return t.isolated
}

// contains reports whether path is dir or lies below it.
func (t *Tree) contains(dir, path string) bool {
	return dir == RootID || under(path, dir)
}

// Linearize lists directories and files in display order: each directory,
// then its subdirectories, then its files. Collapsed directories hide their
// contents.
func (t *Tree) Linearize() []string {
	return t.linearize(t.Root, nil)
}

func (t *Tree) linearize(d *Directory, out []string) []string {
	out = append(out, d.ID)
	if t.collapsed[d.ID] {
		return out
	}
	for _, child := range d.Directories {
		out = t.linearize(child, out)
	}
	return append(out, d.Files...)
}

// Next returns the entry after id in the linear order, or id at the end.
func (t *Tree) Next(id string) string {
	return t.step(id, 1)
}

// Prev returns the entry before id in the linear order, or id at the start.
func (t *Tree) Prev(id string) string {
	return t.step(id, -1)
}

func (t *Tree) step(id string, delta int) string {
	line := t.Linearize()
	for i, entry := range line {
		if entry != id {
			continue
		}
		if j := i + delta; j >= 0 && j < len(line) {
			return line[j]
		}
		return id
	}
	return id
}

// collapsedRoots returns the outermost collapsed directories.
func (t *Tree) collapsedRoots() []string {
	if t.collapsed[RootID] {
		return []string{RootID}
	}
	all := make([]string, 0, len(t.collapsed))
	for id := range t.collapsed {
		all = append(all, id)
	}
	sort.Slice(all, func(i, j int) bool {
		if len(all[i]) != len(all[j]) {
			return len(all[i]) < len(all[j])
		}
		return all[i] < all[j]
	})

	var roots []string
	for _, id := range all {
		nested := false
		for _, r := range roots {
			if under(id, r) {
				nested = true
				break
			}
		}
		if !nested {
			roots = append(roots, id)
		}
	}
	return roots
}

// Project renders g, whose node display names are the tree's file paths,
// through the current tree state. Files inside a collapsed directory merge
// into one folder node for it, the isolated subtree filters nodes, self-loops
// are dropped and parallel edges sum their weights.
func (t *Tree) Project(g *graph.Graph) *graph.Graph {
	roots := t.collapsedRoots()
	owner := func(path string) string {
		for _, r := range roots {
			if t.contains(r, path) && path != r {
				return r
			}
		}
		return path
	}

	out := &graph.Graph{Nodes: []graph.Node{}, Edges: []graph.Edge{}}
	idOf := make(map[string]string, len(g.Nodes))
	projected := make(map[string]bool)
	for _, n := range g.Nodes {
		target := owner(n.DisplayName)
		if t.isolated != "" && !under(target, t.isolated) {
			continue
		}
		if target == n.DisplayName {
			idOf[n.ID] = n.ID
			if !projected[n.ID] {
				projected[n.ID] = true
				out.Nodes = append(out.Nodes, n)
			}
			continue
		}
		idOf[n.ID] = target
		if !projected[target] {
			projected[target] = true
			out.Nodes = append(out.Nodes, graph.Node{
				ID:          target,
				Key:         target,
				Kind:        graph.KindFolder,
				DisplayName: target + "/",
				FilePath:    target,
			})
		}
	}

	edgeIndex := make(map[string]int)
	for _, e := range g.Edges {
		src, okSrc := idOf[e.Source]
		dst, okDst := idOf[e.Target]
		if !okSrc || !okDst || src == dst {
			continue
		}
		key := src + "-" + dst
		if i, ok := edgeIndex[key]; ok {
			out.Edges[i].Weight += e.Weight
			continue
		}
		edge := e
		edge.Key = key
		edge.Source = src
		edge.Target = dst
		edge.Snippets = append([]graph.Snippet{}, e.Snippets...)
		edgeIndex[key] = len(out.Edges)
		out.Edges = append(out.Edges, edge)
	}
	return out
}
