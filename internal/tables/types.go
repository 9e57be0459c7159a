// Package tables builds and maintains the recipe manager's two side
// tables over a parse tree (C4 in the component design): the variable
// table (template variable definitions) and the selector table (uses
// of bracketed selector expressions), plus the narrow template
// substitution sandbox that resolves "{{ … }}" / "${{ … }}" expressions.
package tables

import (
	"github.com/conda/conda-recipe-manager/internal/parsetree"
)

// NodeVar is one definition of a template variable: its value, an
// optional trailing comment, and an optional parsed selector (v0 only —
// v1 context entries never carry a selector).
type NodeVar struct {
	Value    parsetree.Value
	Comment  string
	Selector string // normalized selector text, or "" if none
	Path     parsetree.Path
	NodeID   parsetree.NodeID
}

// VariableTable maps a variable name to its ordered list of
// definitions: length 1 in v1 (single /context entry), length >= 1 in
// v0 (the "string concatenation" idiom permits repeats).
type VariableTable map[string][]NodeVar

// SelectorInfo records one use of a selector expression in the tree:
// which node carries it and where that node lives.
type SelectorInfo struct {
	NodeID parsetree.NodeID
	Path   parsetree.Path
}

// SelectorTable maps a normalized selector expression (including its
// surrounding brackets, e.g. "[linux and not py2k]") to every place it
// is used, in first-appearance order.
type SelectorTable map[string][]SelectorInfo
