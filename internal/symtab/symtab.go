// Package symtab binds identifier names used in an expression to a
// 1-based slot index into a side table of value cells owned by the
// search driver. Binding through an index rather than a raw pointer
// keeps the evaluator memory-safe: a Var node never holds anything that
// could outlive or alias past the buffer it was read from.
package symtab

import (
	"fmt"

	"memprobe/internal/types"
)

// Symbol is one entry: a name, its declared type, and the 1-based slot
// it reads from in the driver's cell table.
type Symbol struct {
	Name  string
	Type  types.Tag
	Index int
}

// Table is the compile-time symbol table shared by every expression
// evaluated against the same driver. addr, value, and prev are seeded
// by the search/filter driver before parsing begins.
type Table struct {
	symbols []Symbol
	byName  map[string]int // name -> index into symbols
}

func New() *Table {
	return &Table{byName: make(map[string]int)}
}

// Add registers name with its value type and returns its 1-based
// index. Re-adding an existing name is an error: every symbol a
// driver binds is declared exactly once.
func (t *Table) Add(name string, typ types.Tag) (int, error) {
	if _, exists := t.byName[name]; exists {
		return 0, fmt.Errorf("symtab: symbol %q already declared", name)
	}
	idx := len(t.symbols) + 1
	t.symbols = append(t.symbols, Symbol{Name: name, Type: typ, Index: idx})
	t.byName[name] = idx
	return idx, nil
}

// Lookup resolves name to its symbol. ok is false if the name was
// never declared.
func (t *Table) Lookup(name string) (Symbol, bool) {
	idx, ok := t.byName[name]
	if !ok {
		return Symbol{}, false
	}
	return t.symbols[idx-1], true
}

// ByIndex returns the symbol at a 1-based index, as bound into a Var
// node by the parser.
func (t *Table) ByIndex(index int) (Symbol, bool) {
	if index < 1 || index > len(t.symbols) {
		return Symbol{}, false
	}
	return t.symbols[index-1], true
}

// Len reports how many symbols are declared.
func (t *Table) Len() int { return len(t.symbols) }
