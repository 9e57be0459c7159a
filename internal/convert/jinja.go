package convert

import (
	"regexp"

	"github.com/conda/conda-recipe-manager/internal/parsetree"
)

// upgradeJinjaToContext is C9 step 4: emit every v0 "{% set %}"
// variable as a /context entry, rewrite every "{{ expr }}" reference
// to "${{ expr }}" in place, and mark the document as v1 by adding
// /schema_version: 1 (spec.md Sec. 4.8 point 4).
//
// The "{{ }}" -> "${{ }}" rewrite is done as a dedicated tree walk
// rather than through Parser.SearchAndPatchReplace: that helper's
// replacement callback only ever sees the regex-matched substring, not
// the rest of the leaf's string, so it cannot express "keep everything
// around the delimiters, just add a $".
func (c *Converter) upgradeJinjaToContext() {
	for _, name := range c.p.ListVariables() {
		val, ok := c.p.Variables.Resolve(name)
		if !ok {
			continue
		}
		prim, err := val.Primitive()
		if err != nil {
			c.Messages.Warn("skipping non-scalar jinja variable %q: %v", name, err)
			continue
		}
		if _, err := c.p.Patch(patchAdd("/context/"+name, prim)); err != nil {
			c.Messages.Warn("could not emit context variable %q: %v", name, err)
		}
	}

	var ids []parsetree.NodeID
	c.p.Tree.Walk(func(id parsetree.NodeID, path parsetree.Path) {
		if !c.p.Tree.IsLeaf(id) {
			return
		}
		n := c.p.Tree.Node(id)
		if n.Value.Kind != parsetree.KindString && n.Value.Kind != parsetree.KindMultilineString {
			return
		}
		if jinjaOpenRe.MatchString(n.Value.AsString()) {
			ids = append(ids, id)
		}
	})
	for _, id := range ids {
		n := c.p.Tree.Node(id)
		n.Value = parsetree.StringValue(rewriteJinjaDelims(n.Value.AsString()))
	}

	if _, err := c.p.Patch(patchAdd("/schema_version", int64(1))); err != nil {
		c.Messages.Warn("could not set /schema_version: %v", err)
	}
}

// jinjaOpenRe matches any "{{", including one already preceded by "$";
// rewriteJinjaDelims leaves such "${{ }}" spans unchanged.
var jinjaOpenRe = regexp.MustCompile(`\{\{`)
var jinjaExprRe = regexp.MustCompile(`\$?\{\{([^}]*)\}\}`)

func rewriteJinjaDelims(s string) string {
	return jinjaExprRe.ReplaceAllString(s, "${{$1}}")
}
