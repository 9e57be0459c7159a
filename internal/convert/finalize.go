package convert

import (
	"sort"

	"github.com/conda/conda-recipe-manager/internal/parsetree"
)

// canonicalTopLevelOrder is the key order v1 recipes are conventionally
// written in; any key outside this list keeps its relative position
// after every recognized key (spec.md Sec. 4.8 point 11).
var canonicalTopLevelOrder = []string{
	"schema_version", "context", "recipe", "package",
	"source", "build", "requirements", "tests", "about", "extra", "outputs",
}

// sortTopLevelKeys is C9 step 11: reorder the document's top-level
// mapping keys into canonical order without touching their contents.
func (c *Converter) sortTopLevelKeys() {
	root := c.p.Tree.Node(c.p.Tree.Root())
	rank := make(map[string]int, len(canonicalTopLevelOrder))
	for i, k := range canonicalTopLevelOrder {
		rank[k] = i
	}

	children := append([]parsetree.NodeID(nil), root.Children...)
	sort.SliceStable(children, func(i, j int) bool {
		ki := c.p.Tree.Node(children[i]).Key
		kj := c.p.Tree.Node(children[j]).Key
		ri, iok := rank[ki]
		rj, jok := rank[kj]
		if !iok {
			ri = len(canonicalTopLevelOrder)
		}
		if !jok {
			rj = len(canonicalTopLevelOrder)
		}
		return ri < rj
	})
	root.Children = children
}
