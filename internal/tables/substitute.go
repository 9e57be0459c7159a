package tables

import "strings"

// Substitute finds every "{{ expr }}" (v0) or "${{ expr }}" (v1)
// template expression in text, evaluates expr against vars, and
// replaces the whole expression with its stringified primitive.
// Expressions that fail to evaluate are left untouched in the output
// and reported via the returned warnings slice (spec.md Sec. 4.4).
func Substitute(text string, vars VariableTable, v1 bool) (string, []string) {
	var b strings.Builder
	var warnings []string
	i := 0
	for i < len(text) {
		start, openLen, ok := findOpen(text, i, v1)
		if !ok {
			b.WriteString(text[i:])
			break
		}
		b.WriteString(text[i:start])
		exprStart := start + openLen
		end, ok := findClose(text, exprStart)
		if !ok {
			b.WriteString(text[start:])
			break
		}
		expr := strings.TrimSpace(text[exprStart:end])
		val, err := EvaluateExpr(expr, vars, v1)
		if err != nil {
			warnings = append(warnings, "unevaluated template expression: "+expr+": "+err.Error())
			b.WriteString(text[start : end+2])
		} else {
			b.WriteString(stringify(val))
		}
		i = end + 2
	}
	return b.String(), warnings
}

func findOpen(text string, from int, v1 bool) (int, int, bool) {
	dollarIdx := -1
	if v1 {
		dollarIdx = strings.Index(text[from:], "${{")
	}
	braceIdx := strings.Index(text[from:], "{{")
	switch {
	case dollarIdx < 0 && braceIdx < 0:
		return 0, 0, false
	case dollarIdx < 0:
		return from + braceIdx, 2, true
	case braceIdx < 0:
		return from + dollarIdx, 3, true
	case dollarIdx <= braceIdx:
		return from + dollarIdx, 3, true
	default:
		return from + braceIdx, 2, true
	}
}

func findClose(text string, from int) (int, bool) {
	depth := 0
	for i := from; i+1 < len(text); i++ {
		switch {
		case text[i] == '{' && text[i+1] == '{':
			depth++
			i++
		case text[i] == '}' && text[i+1] == '}':
			if depth == 0 {
				return i, true
			}
			depth--
			i++
		}
	}
	return 0, false
}
