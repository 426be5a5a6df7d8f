package explorer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"callgraph/internal/errors"
	"callgraph/internal/lsp"
	"callgraph/internal/retry"
	"callgraph/util"
)

// fakeOracle answers from scripted tables. Hierarchy queries are keyed by
// item name; position queries by visit key.
type fakeOracle struct {
	mu sync.Mutex

	prepared map[string][]lsp.HierarchyItem
	outgoing map[string][]lsp.CallHierarchyOutgoingCall
	incoming map[string][]lsp.CallHierarchyIncomingCall
	supers   map[string][]lsp.HierarchyItem
	subs     map[string][]lsp.HierarchyItem
	symbols  map[string][]lsp.DocumentSymbol
	refs     map[string][]lsp.Location

	// failures counts how many more times a "method:name" query errors.
	failures map[string]int
	// afterCall runs after every query with the call log so far.
	afterCall func(calls []string)
	calls     []string
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		prepared: make(map[string][]lsp.HierarchyItem),
		outgoing: make(map[string][]lsp.CallHierarchyOutgoingCall),
		incoming: make(map[string][]lsp.CallHierarchyIncomingCall),
		supers:   make(map[string][]lsp.HierarchyItem),
		subs:     make(map[string][]lsp.HierarchyItem),
		symbols:  make(map[string][]lsp.DocumentSymbol),
		refs:     make(map[string][]lsp.Location),
		failures: make(map[string]int),
	}
}

func item(name, file string, line int) lsp.HierarchyItem {
	pos := lsp.Position{Line: line, Character: 5}
	return lsp.HierarchyItem{
		Name:           name,
		Kind:           lsp.SymbolKindFunction,
		URI:            util.PathToURI(file),
		Range:          lsp.Range{Start: lsp.Position{Line: line}, End: lsp.Position{Line: line + 3}},
		SelectionRange: lsp.Range{Start: pos, End: lsp.Position{Line: line, Character: 5 + len(name)}},
	}
}

func posOf(it lsp.HierarchyItem) lsp.Position {
	return it.SelectionRange.Start
}

// declare makes items resolvable by prepare at their own position.
func (f *fakeOracle) declare(items ...lsp.HierarchyItem) {
	for _, it := range items {
		key := visitKey(util.URIToPath(it.URI), posOf(it))
		f.prepared[key] = []lsp.HierarchyItem{it}
	}
}

func (f *fakeOracle) link(from lsp.HierarchyItem, to ...lsp.HierarchyItem) {
	for _, t := range to {
		f.outgoing[from.Name] = append(f.outgoing[from.Name], lsp.CallHierarchyOutgoingCall{To: t})
		f.incoming[t.Name] = append(f.incoming[t.Name], lsp.CallHierarchyIncomingCall{From: from})
	}
}

func (f *fakeOracle) record(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	snapshot := append([]string(nil), f.calls...)
	fail := f.failures[call] > 0
	if fail {
		f.failures[call]--
	}
	hook := f.afterCall
	f.mu.Unlock()

	if hook != nil {
		hook(snapshot)
	}
	if fail {
		return errors.Newf("scripted failure for %s", call)
	}
	return nil
}

func (f *fakeOracle) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeOracle) ListSymbols(_ context.Context, file string) ([]lsp.DocumentSymbol, error) {
	if err := f.record("symbols:" + file); err != nil {
		return nil, err
	}
	return f.symbols[file], nil
}

func (f *fakeOracle) PrepareCallHierarchy(_ context.Context, file string, pos lsp.Position) ([]lsp.HierarchyItem, error) {
	key := visitKey(file, pos)
	if err := f.record("prepare:" + key); err != nil {
		return nil, err
	}
	return f.prepared[key], nil
}

func (f *fakeOracle) PrepareTypeHierarchy(ctx context.Context, file string, pos lsp.Position) ([]lsp.HierarchyItem, error) {
	return f.PrepareCallHierarchy(ctx, file, pos)
}

func (f *fakeOracle) OutgoingCalls(_ context.Context, it lsp.HierarchyItem) ([]lsp.CallHierarchyOutgoingCall, error) {
	if err := f.record("outgoing:" + it.Name); err != nil {
		return nil, err
	}
	return f.outgoing[it.Name], nil
}

func (f *fakeOracle) IncomingCalls(_ context.Context, it lsp.HierarchyItem) ([]lsp.CallHierarchyIncomingCall, error) {
	if err := f.record("incoming:" + it.Name); err != nil {
		return nil, err
	}
	return f.incoming[it.Name], nil
}

func (f *fakeOracle) Supertypes(_ context.Context, it lsp.HierarchyItem) ([]lsp.HierarchyItem, error) {
	if err := f.record("supertypes:" + it.Name); err != nil {
		return nil, err
	}
	return f.supers[it.Name], nil
}

func (f *fakeOracle) Subtypes(_ context.Context, it lsp.HierarchyItem) ([]lsp.HierarchyItem, error) {
	if err := f.record("subtypes:" + it.Name); err != nil {
		return nil, err
	}
	return f.subs[it.Name], nil
}

func (f *fakeOracle) References(_ context.Context, file string, pos lsp.Position) ([]lsp.Location, error) {
	key := visitKey(file, pos)
	if err := f.record("references:" + key); err != nil {
		return nil, err
	}
	return f.refs[key], nil
}

func TestRetryingOracle_RetriesFailures(t *testing.T) {
	a := item("A", "/ws/a.go", 1)
	b := item("B", "/ws/b.go", 1)
	fake := newFakeOracle()
	fake.link(a, b)
	fake.failures["outgoing:A"] = 1

	o := NewRetryingOracle(fake, retry.Options{MaxRetries: 2, Delay: time.Millisecond}, nil)
	calls, err := o.OutgoingCalls(context.Background(), a)
	assert.NoError(t, err)
	assert.Len(t, calls, 1)
	assert.Equal(t, 2, fake.count("outgoing:A"))
}

func TestRetryingOracle_SwallowsPersistentFailure(t *testing.T) {
	a := item("A", "/ws/a.go", 1)
	fake := newFakeOracle()
	fake.failures["supertypes:A"] = 10

	o := NewRetryingOracle(fake, retry.Options{MaxRetries: 3, Delay: time.Millisecond}, nil)
	items, err := o.Supertypes(context.Background(), a)
	assert.NoError(t, err)
	assert.Nil(t, items)
	assert.Equal(t, 3, fake.count("supertypes:A"))
}

func TestRetryingOracle_EmptyIsDefinitive(t *testing.T) {
	fake := newFakeOracle()
	fake.refs[visitKey("/ws/a.go", lsp.Position{})] = []lsp.Location{}

	o := NewRetryingOracle(fake, retry.Options{MaxRetries: 5, Delay: time.Millisecond}, nil)
	refs, err := o.References(context.Background(), "/ws/a.go", lsp.Position{})
	assert.NoError(t, err)
	assert.NotNil(t, refs)
	assert.Equal(t, 1, fake.count("references:/ws/a.go#0#0"))
}
