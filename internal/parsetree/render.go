package parsetree

import (
	"regexp"
	"strconv"
	"strings"
)

// Render produces text from the tree such that re-parsing yields an
// equivalent tree (spec.md Sec. 4.3). When omitTrailingNewline is
// false, the output ends with a single "\n".
func (t *Tree) Render(omitTrailingNewline bool) string {
	var b strings.Builder
	root := t.Node(t.Root())

	i := 0
	for i < len(root.Children) && t.Node(root.Children[i]).commentOnly {
		b.WriteString(t.Node(root.Children[i]).Comment)
		b.WriteString("\n")
		i++
	}

	for ; i < len(root.Children); i++ {
		t.renderNode(&b, root.Children[i], 0)
		if i < len(root.Children)-1 {
			b.WriteString("\n")
		}
	}

	out := b.String()
	if omitTrailingNewline {
		out = strings.TrimSuffix(out, "\n")
	} else if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}

func indentStr(n int) string { return strings.Repeat(" ", n) }

func (t *Tree) renderNode(b *strings.Builder, id NodeID, indent int) {
	n := t.Node(id)

	prefix := indentStr(indent)
	lead := prefix
	if n.ListMemberFlag {
		lead = prefix + "- "
	}

	if n.KeyFlag {
		b.WriteString(lead)
		b.WriteString(n.Key)
		b.WriteString(":")
		t.renderKeyTail(b, n, indent)
		return
	}

	// Plain list member (scalar or nested).
	if len(n.Children) == 0 {
		b.WriteString(lead)
		writeScalarOrMultiline(b, n, indent)
		if n.Value.Kind != KindMultilineString {
			b.WriteString("\n")
		}
		return
	}
	// list member that is itself a nested list/mapping with no single
	// leading key (rare); render its children at one deeper indent.
	b.WriteString(lead)
	b.WriteString("\n")
	for _, c := range n.Children {
		t.renderNode(b, c, indent+2)
	}
}

func (t *Tree) renderKeyTail(b *strings.Builder, n *Node, indent int) {
	if len(n.Children) == 1 && !hasKeyedChildrenNode(t, n.Children[0]) && t.isScalarLeaf(n.Children[0]) && !t.Node(n.Children[0]).ListMemberFlag {
		scalar := t.Node(n.Children[0])
		b.WriteString(" ")
		writeScalarOrMultiline(b, scalar, indent)
		if scalar.Value.Kind != KindMultilineString {
			b.WriteString("\n")
		}
		return
	}

	if len(n.Children) == 0 {
		b.WriteString("\n")
		return
	}

	b.WriteString("\n")
	first := t.Node(n.Children[0])
	childIndent := indent + 2
	if first.ListMemberFlag {
		childIndent = indent + 2
	}
	for _, c := range n.Children {
		t.renderNode(b, c, childIndent)
	}
}

func (t *Tree) isScalarLeaf(id NodeID) bool {
	n := t.Node(id)
	return !n.KeyFlag && len(n.Children) == 0
}

func hasKeyedChildrenNode(t *Tree, id NodeID) bool {
	return hasKeyedChildren(t, t.Node(id))
}

func writeScalarOrMultiline(b *strings.Builder, n *Node, indent int) {
	if n.Value.Kind == KindMultilineString {
		b.WriteString(n.MultilineVariant.Marker())
		if n.Comment != "" {
			b.WriteString("  ")
			b.WriteString(n.Comment)
		}
		b.WriteString("\n")
		for _, line := range n.Value.Lines {
			if line == "" {
				b.WriteString("\n")
				continue
			}
			b.WriteString(indentStr(indent + 2))
			b.WriteString(line)
			b.WriteString("\n")
		}
		// multiline emits its own per-line newlines; callers skip their
		// trailing "\n" for multiline values.
		return
	}
	b.WriteString(RenderScalar(n.Value))
	if n.Comment != "" {
		b.WriteString("  ")
		b.WriteString(n.Comment)
	}
}

var (
	ambiguousPattern = regexp.MustCompile(`^(?:[-+]?[0-9.]+|true|false|null|yes|no|on|off)$`)
	reservedStarters = "!&*-?|>%@`\"'#,[]{}"
)

// RenderScalar applies the scalar string-escaping rules of spec.md Sec.
// 4.3: reserved starting characters, embedded ": "/":\t", or ambiguous
// bare words force double-quoting (single-quoting if the string itself
// contains a double quote; JSON-safe escaping if it contains both).
func RenderScalar(v Value) string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return renderStringScalar(v.Str)
	default:
		return ""
	}
}

func renderStringScalar(s string) string {
	if s == "" {
		return `""`
	}
	if strings.Contains(s, "{{") || strings.Contains(s, "${{") {
		return s
	}

	needsQuote := strings.ContainsAny(s, ":") && (strings.Contains(s, ": ") || strings.HasSuffix(s, ":") || strings.Contains(s, ":\t"))
	if strings.ContainsAny(string(s[0]), reservedStarters) {
		needsQuote = true
	}
	if len(s) == 1 && strings.ContainsAny(s, reservedStarters) {
		needsQuote = true
	}
	if ambiguousPattern.MatchString(strings.ToLower(s)) {
		needsQuote = true
	}
	if !needsQuote {
		return s
	}

	hasDouble := strings.Contains(s, `"`)
	hasSingle := strings.Contains(s, `'`)

	switch {
	case hasDouble && hasSingle:
		return jsonEscape(s)
	case hasDouble:
		return "'" + s + "'"
	default:
		return `"` + s + `"`
	}
}

func jsonEscape(s string) string {
	quoted := strconv.Quote(s)
	return quoted
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
