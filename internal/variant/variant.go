// Package variant implements the Recipe Variant projection (C8 in the
// component design): filtering a parsed recipe down to one concrete
// build environment by dropping selector-gated content that does not
// apply and evaluating every template expression against that
// environment's build context plus the recipe's own variables.
//
// This is destructive by construction (spec.md Sec. 4.7) — a Variant
// is a one-shot view, not something a caller continues to patch.
package variant

import (
	"fmt"
	"strings"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
	"github.com/conda/conda-recipe-manager/internal/parser"
	"github.com/conda/conda-recipe-manager/internal/parsetree"
	"github.com/conda/conda-recipe-manager/internal/selector"
	"github.com/conda/conda-recipe-manager/internal/tables"
)

// Variant is a recipe projected onto one concrete build environment:
// every selector-gated node either survived (selector stripped) or was
// removed, and every Jinja/template expression has been replaced by
// its evaluated value.
type Variant struct {
	*parser.Parser
}

// New parses content and projects it onto ctx: selectors not
// satisfied by ctx are removed (satisfied ones have their selector
// comment stripped), then every template expression is evaluated
// against ctx's build variables plus the recipe's own variable table.
// Grounded on original_source/conda_recipe_manager/parser/recipe_variant.py's
// RecipeVariant (_filter_by_selectors + _evaluate_jinja_expressions).
func New(content string, ctx selector.BuildContext) (*Variant, error) {
	if err := validateBuildContext(ctx); err != nil {
		return nil, err
	}

	p, err := parser.New(content, false)
	if err != nil {
		return nil, err
	}
	v := &Variant{Parser: p}

	if err := v.filterBySelectors(ctx); err != nil {
		return nil, err
	}
	if err := v.evaluateJinjaExpressions(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

// validateBuildContext rejects malformed python/numpy versions before
// they reach selector matching, per spec.md Sec. 4.6/4.7's version
// predicate grammar (py>=/np>= selectors assume a well-formed version).
func validateBuildContext(ctx selector.BuildContext) error {
	for _, name := range []string{"python", "numpy"} {
		v, ok := ctx.Variables[name]
		if !ok || v == "" {
			continue
		}
		if err := selector.ValidateVersion(v); err != nil {
			return &crmerrors.BuildContextVersionException{Variable: name, Value: v}
		}
	}
	return nil
}

// filterBySelectors removes variable-table entries and tree nodes
// whose selector does not apply to ctx, stripping the selector comment
// from nodes that survive.
func (v *Variant) filterBySelectors(ctx selector.BuildContext) error {
	for name, defs := range v.Variables {
		var kept []tables.NodeVar
		for _, d := range defs {
			if d.Selector == "" {
				kept = append(kept, d)
				continue
			}
			applies, err := selector.Evaluate(strings.TrimSuffix(strings.TrimPrefix(d.Selector, "["), "]"), ctx)
			if err != nil {
				return err
			}
			if applies {
				kept = append(kept, d)
			}
		}
		if len(kept) == 0 {
			delete(v.Variables, name)
		} else {
			v.Variables[name] = kept
		}
	}

	var filterNode func(id parsetree.NodeID) error
	filterNode = func(id parsetree.NodeID) error {
		n := v.Tree.Node(id)
		newChildren := make([]parsetree.NodeID, 0, len(n.Children))
		for _, c := range n.Children {
			cn := v.Tree.Node(c)
			sel, ok := tables.ExtractSelector(cn.Comment)
			if ok {
				applies, err := selector.Evaluate(strings.TrimSuffix(strings.TrimPrefix(sel, "["), "]"), ctx)
				if err != nil {
					return err
				}
				if !applies {
					continue
				}
				cn.Comment = tables.StripSelector(cn.Comment)
			}
			newChildren = append(newChildren, c)
			if err := filterNode(c); err != nil {
				return err
			}
		}
		n.Children = newChildren
		return nil
	}
	if err := filterNode(v.Tree.Root()); err != nil {
		return err
	}

	v.Selectors = tables.BuildSelectorTable(v.Tree)
	return nil
}

// evaluateJinjaExpressions substitutes every template expression in
// the tree against ctx's build variables plus the recipe's own
// (already selector-filtered) variable table, then clears the
// variable table since v1 context/v0 {% set %} entries no longer have
// anything downstream to resolve against.
func (v *Variant) evaluateJinjaExpressions(ctx selector.BuildContext) error {
	vars := make(tables.VariableTable, len(v.Variables)+len(ctx.Variables))
	for name, defs := range v.Variables {
		vars[name] = defs
	}
	for name, val := range ctx.Variables {
		if _, exists := vars[name]; exists {
			// The recipe's own variable definition takes precedence
			// over the ambient build context, matching the original's
			// "{**build_context, **recipe_vars}" merge order.
			continue
		}
		vars[name] = []tables.NodeVar{{Value: parsetree.StringValue(val)}}
	}

	v1 := v.SchemaV1()
	var evalNode func(id parsetree.NodeID) error
	evalNode = func(id parsetree.NodeID) error {
		n := v.Tree.Node(id)
		if n.Value.Kind == parsetree.KindString {
			newVal, err := evaluateNodeValue(n.Value.Str, vars, v1)
			if err != nil {
				return fmt.Errorf("variant: %w", err)
			}
			n.Value = newVal
		}
		for _, c := range n.Children {
			if err := evalNode(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := evalNode(v.Tree.Root()); err != nil {
		return err
	}

	for name := range v.Variables {
		delete(v.Variables, name)
	}
	return nil
}

// evaluateNodeValue evaluates s as a template expression. A value that
// is, in its entirety, one "{{ expr }}"/"${{ expr }}" span evaluates
// to expr's native primitive type; anything else is treated as string
// interpolation (partial or no template markers) and evaluates to a
// string.
func evaluateNodeValue(s string, vars tables.VariableTable, v1 bool) (parsetree.Value, error) {
	if expr, ok := fullExpr(s, v1); ok {
		val, err := tables.EvaluateExpr(expr, vars, v1)
		if err != nil {
			return parsetree.Value{}, fmt.Errorf("jinja expression %q failed to evaluate: %w", expr, err)
		}
		return parser.ScalarValue(val), nil
	}
	out, _ := tables.Substitute(s, vars, v1)
	return parsetree.StringValue(out), nil
}

// fullExpr reports whether s, once trimmed, consists of exactly one
// template span with nothing outside it, returning the inner
// expression text.
func fullExpr(s string, v1 bool) (string, bool) {
	s = strings.TrimSpace(s)
	if v1 && strings.HasPrefix(s, "${{") && strings.HasSuffix(s, "}}") && len(s) > 5 {
		inner := s[3 : len(s)-2]
		if !strings.Contains(inner, "${{") {
			return strings.TrimSpace(inner), true
		}
	}
	if strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}") && len(s) > 4 {
		inner := s[2 : len(s)-2]
		if !strings.Contains(inner, "{{") {
			return strings.TrimSpace(inner), true
		}
	}
	return "", false
}
