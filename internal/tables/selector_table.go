package tables

import (
	"regexp"
	"strings"

	"github.com/conda/conda-recipe-manager/internal/parsetree"
)

var bracketedSelectorRe = regexp.MustCompile(`\[([^\[\]]*)\]`)

// BuildSelectorTable traverses every node in tree, recording a
// SelectorInfo wherever a node's comment contains a bracketed selector
// expression (spec.md Sec. 4.4). Rebuild this after any mutation that
// may alter a comment.
func BuildSelectorTable(tree *parsetree.Tree) SelectorTable {
	table := make(SelectorTable)
	tree.Walk(func(id parsetree.NodeID, path parsetree.Path) {
		if sel, ok := ExtractSelector(tree.Node(id).Comment); ok {
			table[sel] = append(table[sel], SelectorInfo{NodeID: id, Path: path})
		}
	})
	return table
}

// ExtractSelector pulls the bracketed selector expression out of a
// comment string, e.g. "# [linux and not py2k]" -> "[linux and not
// py2k]". Returns false if the comment carries no selector.
func ExtractSelector(comment string) (string, bool) {
	m := bracketedSelectorRe.FindStringSubmatch(comment)
	if m == nil {
		return "", false
	}
	return "[" + strings.TrimSpace(m[1]) + "]", true
}

// StripSelector removes the bracketed selector expression from a
// comment, leaving the plain comment text (spec.md Sec. 4.5
// get_comments_table).
func StripSelector(comment string) string {
	stripped := bracketedSelectorRe.ReplaceAllString(comment, "")
	return strings.TrimSpace(stripped)
}
