package convert

import (
	"fmt"
	"strings"

	"github.com/conda/conda-recipe-manager/internal/parsetree"
	"github.com/conda/conda-recipe-manager/internal/tables"
)

type selectorHit struct {
	path         parsetree.Path
	bracketed    string
	isListMember bool
}

// upgradeSelectorsToConditionals is C9 step 3: rewrite every "# [...]"
// preprocessor-style selector comment into a v1 conditional — a list
// member becomes a "{if: EXPR, then: VALUE}" mapping, a boolean mapping
// value becomes a "${{ true if EXPR }}" expression string — dropping
// the original comment once the conditional carries the same meaning
// (spec.md Sec. 4.8 point 3). Any other selector-gated value logs a
// warning, has its selector comment stripped, and keeps its value.
func (c *Converter) upgradeSelectorsToConditionals() {
	var hits []selectorHit
	c.p.Tree.Walk(func(id parsetree.NodeID, path parsetree.Path) {
		if !c.p.Tree.IsLeaf(id) {
			return
		}
		n := c.p.Tree.Node(id)
		sel, ok := tables.ExtractSelector(n.Comment)
		if !ok {
			return
		}
		hits = append(hits, selectorHit{path: path, bracketed: sel, isListMember: n.ListMemberFlag})
	})

	for _, h := range hits {
		val, err := c.p.GetValue(h.path, nil, false, false)
		if err != nil {
			continue
		}
		expr := conditionalExpr(h.bracketed)

		var newVal any
		if h.isListMember {
			newVal = map[string]any{"if": expr, "then": val}
		} else if _, isBool := val.(bool); isBool {
			newVal = fmt.Sprintf("${{ true if %s }}", expr)
		} else {
			c.Messages.Warn("selector %s at %s is not on a list member or boolean value; stripping it and leaving the value as-is", h.bracketed, h.path)
			if err := c.p.RemoveSelector(h.path); err != nil {
				c.Messages.Warn("could not strip selector comment at %s: %v", h.path, err)
			}
			continue
		}

		if _, err := c.p.Patch(patchReplace(h.path.String(), newVal)); err != nil {
			c.Messages.Warn("could not convert selector at %s: %v", h.path, err)
			continue
		}
		if err := c.p.RemoveSelector(h.path); err != nil {
			c.Messages.Warn("could not strip converted selector comment at %s: %v", h.path, err)
		}
	}
}

// legacyPySelectors maps old special-cased Python selector shorthand to
// the match()-based form v1's boolean expression grammar understands.
var legacyPySelectors = map[string]string{
	"py2k":  `match(python, "<3")`,
	"py3k":  `match(python, ">=3")`,
	"py36":  `match(python, "==3.6")`,
	"py<36": `match(python, "<3.6")`,
}

func conditionalExpr(bracketed string) string {
	expr := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(bracketed, "["), "]"))
	if replacement, ok := legacyPySelectors[expr]; ok {
		return replacement
	}
	return expr
}
