package graph

import "fmt"

// NodeKind is what a node stands for.
type NodeKind string

const (
	KindFile   NodeKind = "file"
	KindFolder NodeKind = "folder"
	KindSymbol NodeKind = "symbol"
)

// Node represents a file, folder or symbol in the codebase.
type Node struct {
	ID          string   `json:"id" yaml:"id"`
	Key         string   `json:"key" yaml:"key"`
	Kind        NodeKind `json:"type" yaml:"type"`
	DisplayName string   `json:"displayName" yaml:"displayName"`
	FilePath    string   `json:"filepath" yaml:"filepath"`
	Line        int      `json:"lineno" yaml:"lineno"`
	Column      int      `json:"colno" yaml:"colno"`
	Hidden      bool     `json:"hidden" yaml:"hidden"`
}

// Snippet is a source excerpt attached to an edge.
type Snippet struct {
	Line        *int   `json:"lineno" yaml:"lineno"`
	Text        string `json:"text" yaml:"text"`
	DisplayName string `json:"displayName" yaml:"displayName"`
}

// Edge represents a directed relation between two nodes. Weight counts how
// many discoveries were collapsed into it.
type Edge struct {
	ID       string    `json:"id" yaml:"id"`
	Key      string    `json:"key" yaml:"key"`
	Source   string    `json:"source" yaml:"source"`
	Target   string    `json:"target" yaml:"target"`
	Weight   int       `json:"weight" yaml:"weight"`
	Snippets []Snippet `json:"snippets" yaml:"snippets"`
}

// Graph is a snapshot of nodes and edges. Every edge endpoint is
// present in Nodes.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Hide sets the hidden flag of the nodes whose key or display name is name
// and returns how many matched. Nodes are never removed, so edges keep their
// endpoints.
func (g *Graph) Hide(name string, hidden bool) int {
	n := 0
	for i := range g.Nodes {
		if g.Nodes[i].Key == name || g.Nodes[i].DisplayName == name {
			g.Nodes[i].Hidden = hidden
			n++
		}
	}
	return n
}

// Symbol is a named declaration found in a file.
type Symbol struct {
	ID       string `json:"id" yaml:"id"`
	Key      string `json:"key" yaml:"key"`
	Name     string `json:"name" yaml:"name"`
	FilePath string `json:"filepath" yaml:"filepath"`
	Line     int    `json:"lineno" yaml:"lineno"`
	Column   int    `json:"colno" yaml:"colno"`
	Kind     string `json:"kind" yaml:"kind"`
}

// Reference is a use site of a Symbol.
type Reference struct {
	ID       string `json:"id" yaml:"id"`
	Key      string `json:"key" yaml:"key"`
	SymbolID string `json:"symbolId" yaml:"symbolId"`
	FilePath string `json:"filepath" yaml:"filepath"`
	Line     int    `json:"lineno" yaml:"lineno"`
	Column   int    `json:"colno" yaml:"colno"`
}

// SymbolsAndReferences is the side channel collected by the file hierarchy
// explorer for detail panels.
type SymbolsAndReferences struct {
	Symbols    []Symbol    `json:"symbols" yaml:"symbols"`
	References []Reference `json:"references" yaml:"references"`
}

// IntegrityError reports an edge whose endpoint is missing from the store.
// It signals a bug in how nodes and edges were added, never bad input.
type IntegrityError struct {
	EdgeKey   string
	SourceKey string
	TargetKey string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("edge %s references non-existent nodes %s and %s", e.EdgeKey, e.SourceKey, e.TargetKey)
}

// NodeKey is the dedup key of a node.
func NodeKey(filepath, displayName string) string {
	return filepath + "|" + displayName
}

// EdgeKey is the dedup key of an edge between two node keys.
func EdgeKey(sourceKey, targetKey string) string {
	return sourceKey + "||" + targetKey
}
