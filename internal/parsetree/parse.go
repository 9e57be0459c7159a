package parsetree

import (
	"strings"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
)

// frame tracks one level of the indent stack while parsing.
type frame struct {
	indent int
	id     NodeID
}

type parser struct {
	lines []string
	pos   int
	tree  *Tree
	stack []frame

	pendingComment  string
	sawRealContent  bool
	forceRemoveJinja bool
}

// ParseOptions configures Parse.
type ParseOptions struct {
	// ForceRemoveJinja, when true, silently drops unsupported v0
	// template statements ({% if %}, {% for %}) instead of raising
	// ParsingJinjaException (spec.md Sec. 7).
	ForceRemoveJinja bool
}

// Parse builds a Tree from v0 or v1 recipe text. Text is assumed to
// already be post-C1 (Text Formatter) normalized for v0, or raw for v1.
// Blank lines are skipped; {% set %} pragma lines (v0) are skipped here
// since they are captured by the variable table (C4), not the mapping
// tree itself.
func Parse(text string, opts ParseOptions) (*Tree, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &crmerrors.ParsingException{Message: "empty recipe text"}
	}

	t := NewTree()
	p := &parser{
		lines:            splitLines(text),
		tree:             t,
		stack:            []frame{{indent: -2, id: t.Root()}},
		forceRemoveJinja: opts.ForceRemoveJinja,
	}

	for p.pos < len(p.lines) {
		if err := p.parseLine(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

func countIndent(line string) int {
	n := 0
	for _, r := range line {
		if r != ' ' {
			break
		}
		n++
	}
	return n
}

func (p *parser) parseLine() error {
	raw := p.lines[p.pos]
	trimmed := strings.TrimRight(raw, " \t")

	if strings.TrimSpace(trimmed) == "" {
		p.pos++
		return nil
	}

	indent := countIndent(raw)
	content := strings.TrimLeft(trimmed, " ")

	if strings.HasPrefix(content, "{%") {
		return p.handleJinjaPragma(content)
	}

	if strings.HasPrefix(content, "#") {
		p.handleComment(content)
		p.pos++
		return nil
	}

	p.sawRealContent = true

	if content == "-" || strings.HasPrefix(content, "- ") {
		return p.parseListEntry(indent, content)
	}
	return p.parseMappingEntry(indent, content)
}

func (p *parser) handleJinjaPragma(content string) error {
	// {% set NAME = EXPR %} is handled by the variable table (C4); any
	// other statement ({% if %}, {% for %}) is unsupported here.
	if strings.HasPrefix(strings.TrimSpace(content), "{% set") {
		p.pos++
		return nil
	}
	if p.forceRemoveJinja {
		p.pos++
		return nil
	}
	return &crmerrors.ParsingJinjaException{Statement: content, Line: p.pos + 1}
}

func (p *parser) handleComment(content string) {
	if !p.sawRealContent {
		id := p.tree.AddNode(Node{
			Value:       Sentinel(),
			Comment:     content,
			CommentPos:  CommentTopOfFile,
			commentOnly: true,
		})
		root := p.tree.Node(p.tree.Root())
		root.Children = append(root.Children, id)
		return
	}
	if p.pendingComment == "" {
		p.pendingComment = content
	} else {
		p.pendingComment += "\n" + content
	}
}

func (p *parser) takeComment(inline string) string {
	switch {
	case p.pendingComment == "" && inline == "":
		return ""
	case p.pendingComment == "":
		c := inline
		return c
	case inline == "":
		c := p.pendingComment
		p.pendingComment = ""
		return c
	default:
		c := p.pendingComment + "\n" + inline
		p.pendingComment = ""
		return c
	}
}

func (p *parser) popTo(indent int) (NodeID, error) {
	for len(p.stack) > 1 && p.stack[len(p.stack)-1].indent >= indent {
		p.stack = p.stack[:len(p.stack)-1]
	}
	if len(p.stack) == 0 {
		return 0, &crmerrors.ParsingException{Message: "indentation underflow", Line: p.pos + 1}
	}
	return p.stack[len(p.stack)-1].id, nil
}

func (p *parser) push(indent int, id NodeID) {
	p.stack = append(p.stack, frame{indent: indent, id: id})
}

func splitKeyColon(content string) (key, rest string, hasColon bool) {
	// Split on the first ":" anywhere in content — quoting is
	// not tracked inside the key position since recipe keys are plain
	// identifiers in both v0 and v1.
	idx := strings.Index(content, ":")
	if idx < 0 {
		return content, "", false
	}
	key = strings.TrimSpace(content[:idx])
	rest = strings.TrimSpace(content[idx+1:])
	return key, rest, true
}

func splitValueAndComment(s string) (value, comment string) {
	// A trailing "# ..." that is preceded by whitespace (outside of
	// quotes) is a comment. Quoted strings are rare enough in test
	// fixtures that a simple quote-depth scan is sufficient here.
	inSingle, inDouble := false, false
	for i, r := range s {
		switch r {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '#':
			if !inSingle && !inDouble && i > 0 && s[i-1] == ' ' {
				return strings.TrimSpace(s[:i]), s[i:]
			}
		}
	}
	return strings.TrimSpace(s), ""
}

func detectMultilineVariant(value string) (MultilineVariant, string) {
	value = strings.TrimSpace(value)
	candidates := []struct {
		marker string
		v      MultilineVariant
	}{
		{"|+", MultilinePipePlus}, {"|-", MultilinePipeMinus}, {"|", MultilinePipe},
		{">+", MultilineFoldPlus}, {">-", MultilineFoldMinus}, {">", MultilineFold},
		{"<+", MultilineAnglePlus}, {"<-", MultilineAngleMinus}, {"<", MultilineAngle},
	}
	for _, c := range candidates {
		if value == c.marker || strings.HasPrefix(value, c.marker+" ") || strings.HasPrefix(value, c.marker+"#") {
			rest := strings.TrimSpace(strings.TrimPrefix(value, c.marker))
			return c.v, rest
		}
	}
	if strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `\`) {
		return MultilineBackslashQuote, ""
	}
	return MultilineNone, value
}

func (p *parser) parseMappingEntry(indent int, content string) error {
	parent, err := p.popTo(indent)
	if err != nil {
		return err
	}

	key, rest, hasColon := splitKeyColon(content)
	if !hasColon {
		return &crmerrors.ParsingException{Message: "expected \"key: value\" or \"key:\"", Line: p.pos + 1}
	}

	if _, dup := p.tree.ChildByKey(parent, key); dup {
		return &crmerrors.DuplicateKeyException{Key: key, Line: p.pos + 1}
	}

	keyID := p.tree.AddNode(Node{Key: key, KeyFlag: true, Value: Sentinel()})
	p.tree.Node(parent).Children = append(p.tree.Node(parent).Children, keyID)

	if rest == "" {
		p.pos++
		p.push(indent, keyID)
		return nil
	}

	variant, afterMarker := detectMultilineVariant(rest)
	if variant != MultilineNone {
		lines, comment, err := p.consumeMultiline(indent, afterMarker)
		if err != nil {
			return err
		}
		scalarID := p.tree.AddNode(Node{
			Value:            MultilineValue(lines),
			MultilineVariant: variant,
			Comment:          p.takeComment(comment),
		})
		p.tree.Node(keyID).Children = []NodeID{scalarID}
		return nil
	}

	value, comment := splitValueAndComment(rest)
	scalarID := p.tree.AddNode(Node{Value: ParseScalar(value), Comment: p.takeComment(comment)})
	p.tree.Node(keyID).Children = []NodeID{scalarID}
	p.pos++
	return nil
}

func (p *parser) parseListEntry(indent int, content string) error {
	parent, err := p.popTo(indent)
	if err != nil {
		return err
	}

	rest := strings.TrimPrefix(content, "-")
	rest = strings.TrimPrefix(rest, " ")
	rest = strings.TrimSpace(rest)

	if rest == "" {
		id := p.tree.AddNode(Node{ListMemberFlag: true, Value: Sentinel()})
		p.tree.Node(parent).Children = append(p.tree.Node(parent).Children, id)
		p.pos++
		p.push(indent, id)
		return nil
	}

	if key, kv, hasColon := splitKeyColon(rest); hasColon && looksLikeKey(key) {
		mapID := p.tree.AddNode(Node{ListMemberFlag: true, Value: Sentinel()})
		p.tree.Node(parent).Children = append(p.tree.Node(parent).Children, mapID)

		keyID := p.tree.AddNode(Node{Key: key, KeyFlag: true, Value: Sentinel()})
		p.tree.Node(mapID).Children = append(p.tree.Node(mapID).Children, keyID)

		if kv == "" {
			p.pos++
			p.push(indent, mapID)
			p.push(indent+2, keyID)
			return nil
		}
		value, comment := splitValueAndComment(kv)
		scalarID := p.tree.AddNode(Node{Value: ParseScalar(value), Comment: p.takeComment(comment)})
		p.tree.Node(keyID).Children = []NodeID{scalarID}
		p.pos++
		p.push(indent, mapID)
		return nil
	}

	variant, afterMarker := detectMultilineVariant(rest)
	if variant != MultilineNone {
		lines, comment, err := p.consumeMultiline(indent, afterMarker)
		if err != nil {
			return err
		}
		id := p.tree.AddNode(Node{
			ListMemberFlag:   true,
			Value:            MultilineValue(lines),
			MultilineVariant: variant,
			Comment:          p.takeComment(comment),
		})
		p.tree.Node(parent).Children = append(p.tree.Node(parent).Children, id)
		return nil
	}

	value, comment := splitValueAndComment(rest)
	id := p.tree.AddNode(Node{ListMemberFlag: true, Value: ParseScalar(value), Comment: p.takeComment(comment)})
	p.tree.Node(parent).Children = append(p.tree.Node(parent).Children, id)
	p.pos++
	return nil
}

// looksLikeKey rejects values that merely contain a colon (e.g. a URL)
// from being misclassified as "key: value" list-of-mapping entries.
func looksLikeKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if r == ' ' || r == '/' {
			return false
		}
	}
	return true
}

func (p *parser) consumeMultiline(keyIndent int, inlineComment string) ([]string, string, error) {
	p.pos++
	var lines []string
	baseIndent := -1
	for p.pos < len(p.lines) {
		raw := p.lines[p.pos]
		if strings.TrimSpace(raw) == "" {
			lines = append(lines, "")
			p.pos++
			continue
		}
		indent := countIndent(raw)
		if indent <= keyIndent {
			break
		}
		if baseIndent == -1 {
			baseIndent = indent
		}
		content := raw
		if len(content) >= baseIndent {
			content = content[baseIndent:]
		} else {
			content = strings.TrimLeft(content, " ")
		}
		lines = append(lines, content)
		p.pos++
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, inlineComment, nil
}
