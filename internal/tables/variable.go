package tables

import (
	"regexp"
	"strings"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
	"github.com/conda/conda-recipe-manager/internal/parsetree"
)

var setStatementRe = regexp.MustCompile(`^\s*\{%\s*set\s+([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*?)\s*%\}\s*(#.*)?$`)

// BuildVariableTableV0 scans raw (pre-tree) v0 text for
// "{% set NAME = EXPR %}" pragma lines with an optional trailing
// comment, appending one NodeVar per occurrence (spec.md Sec. 4.4).
// EXPR is parsed as a literal where possible; otherwise kept as the
// raw expression string.
func BuildVariableTableV0(rawText string) VariableTable {
	table := make(VariableTable)
	for _, line := range strings.Split(rawText, "\n") {
		m := setStatementRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name, expr, comment := m[1], m[2], m[3]
		sel, _ := ExtractSelector(comment)
		table[name] = append(table[name], NodeVar{
			Value:    literalOrString(expr),
			Comment:  strings.TrimSpace(comment),
			Selector: sel,
		})
	}
	return table
}

func literalOrString(expr string) parsetree.Value {
	trimmed := strings.TrimSpace(expr)
	if len(trimmed) >= 2 && (trimmed[0] == '"' || trimmed[0] == '\'') && trimmed[len(trimmed)-1] == trimmed[0] {
		return parsetree.StringValue(trimmed[1 : len(trimmed)-1])
	}
	v := parsetree.ParseScalar(trimmed)
	if v.Kind == parsetree.KindString && v.Str == trimmed && strings.ContainsAny(trimmed, "(){}[]+~") {
		// Not a plain literal (contains expression syntax); keep as a
		// raw expression string to be evaluated lazily at resolution
		// time.
		return parsetree.StringValue(trimmed)
	}
	return v
}

// BuildVariableTableV1 reads /context as a plain mapping and builds one
// NodeVar per key, recovering each entry's trailing comment from the
// tree. Non-scalar variables are rejected.
func BuildVariableTableV1(tree *parsetree.Tree) (VariableTable, error) {
	table := make(VariableTable)
	ctxID, ok := tree.Find(parsetree.ParsePath("/context"))
	if !ok {
		return table, nil
	}
	for _, keyID := range tree.Node(ctxID).Children {
		keyNode := tree.Node(keyID)
		if len(keyNode.Children) != 1 {
			return nil, &crmerrors.ParsingException{Message: "non-scalar /context variable: " + keyNode.Key}
		}
		scalar := tree.Node(keyNode.Children[0])
		if scalar.Value.Kind == parsetree.KindMultilineString || scalar.KeyFlag || scalar.ListMemberFlag {
			return nil, &crmerrors.ParsingException{Message: "non-scalar /context variable: " + keyNode.Key}
		}
		table[keyNode.Key] = []NodeVar{{
			Value:   scalar.Value,
			Comment: scalar.Comment,
			Path:    parsetree.ParsePath("/context/" + keyNode.Key),
			NodeID:  keyID,
		}}
	}
	return table, nil
}

// Resolve returns the effective value of name. v1 variables have a
// single definition. v0 variables with multiple definitions follow the
// "string concatenation" idiom (spec.md Sec. 9, open question): each
// subsequent definition's expression is evaluated in a context seeded
// only with the prior result bound to name, and the final result wins.
// This order is preserved exactly as the upstream source is documented
// to behave, even though the spec calls it possibly unintentional.
func (vt VariableTable) Resolve(name string) (parsetree.Value, bool) {
	defs, ok := vt[name]
	if !ok || len(defs) == 0 {
		return parsetree.Value{}, false
	}
	if len(defs) == 1 {
		return defs[0].Value, true
	}

	result := defs[0].Value
	for _, def := range defs[1:] {
		if def.Value.Kind == parsetree.KindString {
			evaluated, err := EvaluateExpr(def.Value.Str, VariableTable{name: {{Value: result}}}, false)
			if err == nil {
				result = toValue(evaluated)
				continue
			}
		}
		result = def.Value
	}
	return result, true
}

func toValue(v any) parsetree.Value {
	switch t := v.(type) {
	case string:
		return parsetree.StringValue(t)
	case bool:
		return parsetree.BoolValue(t)
	case int64:
		return parsetree.IntValue(t)
	case float64:
		return parsetree.FloatValue(t)
	case nil:
		return parsetree.Null()
	default:
		return parsetree.Null()
	}
}
