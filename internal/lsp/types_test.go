package lsp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbolKindName(t *testing.T) {
	assert.Equal(t, "Function", SymbolKindName(SymbolKindFunction))
	assert.Equal(t, "TypeParameter", SymbolKindName(SymbolKindTypeParameter))
	assert.Equal(t, "Unknown", SymbolKindName(99))
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, IsCallable(SymbolKindMethod))
	assert.True(t, IsCallable(SymbolKindConstructor))
	assert.False(t, IsCallable(SymbolKindClass))

	assert.True(t, IsTypeLike(SymbolKindInterface))
	assert.True(t, IsTypeLike(SymbolKindStruct))
	assert.False(t, IsTypeLike(SymbolKindFunction))
}

func TestFlattenSymbols(t *testing.T) {
	symbols := []DocumentSymbol{
		{Name: "Server", Kind: SymbolKindClass, Children: []DocumentSymbol{
			{Name: "Start", Kind: SymbolKindMethod},
			{Name: "Stop", Kind: SymbolKindMethod},
		}},
		{Name: "main", Kind: SymbolKindFunction},
	}

	flat := FlattenSymbols(symbols)
	names := make([]string, 0, len(flat))
	for _, s := range flat {
		names = append(names, s.Name)
		assert.Nil(t, s.Children)
	}
	assert.Equal(t, []string{"Server", "Start", "Stop", "main"}, names)
}

func TestSupports(t *testing.T) {
	assert.True(t, Supports(json.RawMessage(`true`)))
	assert.True(t, Supports(json.RawMessage(`{"workDoneProgress":true}`)))
	assert.False(t, Supports(json.RawMessage(`false`)))
	assert.False(t, Supports(nil))
}
