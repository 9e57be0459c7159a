// Package reader implements the recipe manager's read-only semantic
// view over a parse tree (C5 in the component design): path-based
// value lookup, variable and selector introspection, and rendering,
// all layered on internal/parsetree and internal/tables.
package reader

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/conda/conda-recipe-manager/internal/parsetree"
	"github.com/conda/conda-recipe-manager/internal/tables"
)

// ErrNotFound is returned by path lookups with no supplied default.
var ErrNotFound = errors.New("path not found")

// Reader is a read-only semantic view over one recipe document.
type Reader struct {
	Tree      *parsetree.Tree
	Variables tables.VariableTable
	Selectors tables.SelectorTable
	v1        bool
}

// New parses text (applying force_remove_jinja for v0 documents whose
// schema_version is absent, per spec.md Sec. 4.1) and builds its
// variable and selector tables.
func New(text string, forceRemoveJinja bool) (*Reader, error) {
	tree, err := parsetree.Parse(text, parsetree.ParseOptions{ForceRemoveJinja: forceRemoveJinja})
	if err != nil {
		return nil, err
	}
	return FromTree(tree, text)
}

// FromTree wraps an already-parsed tree, building its variable table
// according to the document's schema version (rawText is needed only
// for the v0 "{% set %}" scan, since those statements are not modeled
// as tree nodes).
func FromTree(tree *parsetree.Tree, rawText string) (*Reader, error) {
	v1 := detectSchemaV1(tree)
	tree.SchemaV1 = v1
	var vars tables.VariableTable
	if v1 {
		var err error
		vars, err = tables.BuildVariableTableV1(tree)
		if err != nil {
			return nil, err
		}
	} else {
		vars = tables.BuildVariableTableV0(rawText)
	}
	return &Reader{
		Tree:      tree,
		Variables: vars,
		Selectors: tables.BuildSelectorTable(tree),
		v1:        v1,
	}, nil
}

// GetValue returns the scalar or subtree at path. If hasDefault is
// false and path does not resolve, it returns ErrNotFound.
func (r *Reader) GetValue(path parsetree.Path, def any, hasDefault bool, subVars bool) (any, error) {
	id, ok := r.Tree.Find(path)
	if !ok {
		if hasDefault {
			return def, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path.String())
	}
	val, err := NodeToObject(r.Tree, id)
	if err != nil {
		return nil, err
	}
	if subVars {
		val, err = r.substituteDeep(val)
		if err != nil {
			return nil, err
		}
	}
	return val, nil
}

// ContainsValue reports whether path resolves to a node.
func (r *Reader) ContainsValue(path parsetree.Path) bool {
	_, ok := r.Tree.Find(path)
	return ok
}

// ListValuePaths returns every leaf path in document order.
func (r *Reader) ListValuePaths() []parsetree.Path {
	var out []parsetree.Path
	r.Tree.Walk(func(id parsetree.NodeID, path parsetree.Path) {
		if r.Tree.IsLeaf(id) {
			out = append(out, path)
		}
	})
	return out
}

// Search returns every leaf path whose stringified value matches re.
// When includeComment is true, the node's comment is also matched.
func (r *Reader) Search(re *regexp.Regexp, includeComment bool) []parsetree.Path {
	var out []parsetree.Path
	r.Tree.Walk(func(id parsetree.NodeID, path parsetree.Path) {
		if !r.Tree.IsLeaf(id) {
			return
		}
		n := r.Tree.Node(id)
		if re.MatchString(n.Value.AsString()) || (includeComment && re.MatchString(n.Comment)) {
			out = append(out, path)
		}
	})
	return out
}

// FindValue returns every leaf path whose value equals primitive.
func (r *Reader) FindValue(primitive any) []parsetree.Path {
	var out []parsetree.Path
	r.Tree.Walk(func(id parsetree.NodeID, path parsetree.Path) {
		if !r.Tree.IsLeaf(id) {
			return
		}
		val, err := r.Tree.Node(id).Value.Primitive()
		if err != nil {
			return
		}
		if fmt.Sprintf("%v", val) == fmt.Sprintf("%v", primitive) {
			out = append(out, path)
		}
	})
	return out
}

// ListVariables returns every defined variable name, sorted.
func (r *Reader) ListVariables() []string {
	names := make([]string, 0, len(r.Variables))
	for name := range r.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SchemaV1 reports whether the document is a v1 (schema_version: 1)
// recipe.
func (r *Reader) SchemaV1() bool { return r.v1 }

// ContainsVariable reports whether name is defined.
func (r *Reader) ContainsVariable(name string) bool {
	_, ok := r.Variables[name]
	return ok
}

// GetVariable returns the resolved value of name, or def/false if it
// is not defined and hasDefault is true.
func (r *Reader) GetVariable(name string, def parsetree.Value, hasDefault bool) (parsetree.Value, error) {
	val, ok := r.Variables.Resolve(name)
	if !ok {
		if hasDefault {
			return def, nil
		}
		return parsetree.Value{}, fmt.Errorf("%w: variable %q", ErrNotFound, name)
	}
	return val, nil
}

// GetVariableReferences scans every string leaf for name framed by
// "{{ … }}" (v0) or "${{ … }}" (v1), returning de-duplicated paths in
// first-appearance order.
func (r *Reader) GetVariableReferences(name string) []parsetree.Path {
	re := regexp.MustCompile(`\$?\{\{\s*` + regexp.QuoteMeta(name) + `\b[^}]*\}\}`)
	seen := make(map[string]bool)
	var out []parsetree.Path
	r.Tree.Walk(func(id parsetree.NodeID, path parsetree.Path) {
		if !r.Tree.IsLeaf(id) {
			return
		}
		n := r.Tree.Node(id)
		if n.Value.Kind != parsetree.KindString && n.Value.Kind != parsetree.KindMultilineString {
			return
		}
		if re.MatchString(n.Value.AsString()) {
			key := path.String()
			if !seen[key] {
				seen[key] = true
				out = append(out, path)
			}
		}
	})
	return out
}

// ListSelectors returns every distinct selector expression in use.
func (r *Reader) ListSelectors() []string {
	names := make([]string, 0, len(r.Selectors))
	for sel := range r.Selectors {
		names = append(names, sel)
	}
	sort.Strings(names)
	return names
}

// ContainsSelector reports whether sel is used anywhere in the tree.
func (r *Reader) ContainsSelector(sel string) bool {
	_, ok := r.Selectors[sel]
	return ok
}

// GetSelectorPaths returns every path that carries sel.
func (r *Reader) GetSelectorPaths(sel string) []parsetree.Path {
	infos := r.Selectors[sel]
	out := make([]parsetree.Path, len(infos))
	for i, info := range infos {
		out[i] = info.Path
	}
	return out
}

// ContainsSelectorAtPath reports whether the node at path carries a
// selector comment.
func (r *Reader) ContainsSelectorAtPath(path parsetree.Path) bool {
	id, ok := r.Tree.Find(path)
	if !ok {
		return false
	}
	_, has := tables.ExtractSelector(r.Tree.Node(id).Comment)
	return has
}

// GetSelectorAtPath returns the selector expression at path, or
// def/false if there is none and hasDefault is true.
func (r *Reader) GetSelectorAtPath(path parsetree.Path, def string, hasDefault bool) (string, error) {
	id, ok := r.Tree.Find(path)
	if ok {
		if sel, has := tables.ExtractSelector(r.Tree.Node(id).Comment); has {
			return sel, nil
		}
	}
	if hasDefault {
		return def, nil
	}
	return "", fmt.Errorf("%w: no selector at %s", ErrNotFound, path.String())
}

// GetCommentsTable returns every node's comment with any selector
// expression stripped out, keyed by path.
func (r *Reader) GetCommentsTable() map[string]string {
	out := make(map[string]string)
	r.Tree.Walk(func(id parsetree.NodeID, path parsetree.Path) {
		c := r.Tree.Node(id).Comment
		if c == "" {
			return
		}
		if stripped := tables.StripSelector(c); stripped != "" {
			out[path.String()] = stripped
		}
	})
	return out
}

// GetRecipeName returns /package/name (v0) or /recipe/name (v1), with
// variables substituted, if present.
func (r *Reader) GetRecipeName() (string, bool) {
	for _, base := range []string{"/package/name", "/recipe/name"} {
		val, err := r.GetValue(parsetree.ParsePath(base), nil, false, true)
		if err == nil {
			if s, ok := val.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

// GetPackagePaths returns "/" for a single-output recipe, or
// "/outputs/0", "/outputs/1", … for a multi-output one.
func (r *Reader) GetPackagePaths() []string {
	outputsID, ok := r.Tree.Find(parsetree.ParsePath("/outputs"))
	if !ok {
		return []string{"/"}
	}
	n := r.Tree.Node(outputsID)
	out := make([]string, 0, len(n.Children))
	for i := range n.Children {
		out = append(out, fmt.Sprintf("/outputs/%d", i))
	}
	if len(out) == 0 {
		return []string{"/"}
	}
	return out
}

// IsMultiOutput reports whether the recipe declares more than one
// output.
func (r *Reader) IsMultiOutput() bool {
	paths := r.GetPackagePaths()
	return len(paths) > 1 || (len(paths) == 1 && paths[0] != "/")
}

var dependencySections = []string{"build", "host", "run", "run_constrained", "run_constraints"}

// GetDependencyPaths returns every leaf path under a requirements
// section (build/host/run/run_constrained) across every package path.
func (r *Reader) GetDependencyPaths() []parsetree.Path {
	var out []parsetree.Path
	for _, pkg := range r.GetPackagePaths() {
		base := strings.TrimSuffix(pkg, "/")
		for _, section := range dependencySections {
			reqPath := parsetree.ParsePath(base + "/requirements/" + section)
			id, ok := r.Tree.Find(reqPath)
			if !ok {
				continue
			}
			for _, c := range r.Tree.Node(id).Children {
				if r.Tree.IsLeaf(c) {
					out = append(out, reqPath.Append(indexOfChild(r.Tree, id, c)))
				}
			}
		}
	}
	return out
}

func indexOfChild(tree *parsetree.Tree, parent, child parsetree.NodeID) string {
	for i, c := range tree.Node(parent).Children {
		if c == child {
			return fmt.Sprintf("%d", i)
		}
	}
	return "0"
}

// IsPythonRecipe reports whether "python" appears as a host or run
// dependency name anywhere in the recipe.
func (r *Reader) IsPythonRecipe() bool {
	for _, p := range r.GetDependencyPaths() {
		id, ok := r.Tree.Find(p)
		if !ok {
			continue
		}
		name := strings.Fields(r.Tree.Node(id).Value.AsString())
		if len(name) > 0 && name[0] == "python" {
			return true
		}
	}
	return false
}

// CalcSHA256 returns the SHA-256 of the rendered recipe text.
func (r *Reader) CalcSHA256() string {
	sum := sha256.Sum256([]byte(r.Tree.Render(false)))
	return hex.EncodeToString(sum[:])
}

// Render renders the tree to text.
func (r *Reader) Render(omitTrailingNewline bool) string {
	return r.Tree.Render(omitTrailingNewline)
}

// AppendToPath joins base and ext with JSON-Pointer normalization.
func AppendToPath(base parsetree.Path, ext string) parsetree.Path {
	return base.Append(ext)
}

// RenderToJSON marshals RenderToObject's result to JSON text, giving
// callers a stable serialization to hand to external tooling or to a
// gjson.Result for ad hoc path queries (see JSONPath).
func (r *Reader) RenderToJSON(replaceVariables bool) (string, error) {
	obj, err := r.RenderToObject(replaceVariables)
	if err != nil {
		return "", err
	}
	buf, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// JSONPath evaluates a gjson path expression (e.g. "package.name" or
// "requirements.run.0") against the rendered JSON projection. It is a
// convenience accessor for callers that already think in gjson paths
// rather than this package's own "/a/b/0" Path type.
func (r *Reader) JSONPath(path string, replaceVariables bool) (gjson.Result, error) {
	text, err := r.RenderToJSON(replaceVariables)
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.Get(text, path), nil
}

// detectSchemaV1 reports whether the document declares
// "/schema_version: 1" (v1 dialect); its absence means v0.
func detectSchemaV1(tree *parsetree.Tree) bool {
	id, ok := tree.Find(parsetree.ParsePath("/schema_version"))
	if !ok {
		return false
	}
	n := tree.Node(id)
	return n.Value.Kind == parsetree.KindInt && n.Value.Int == 1
}

// NodeToObject converts the subtree at id into a Go-native value: a
// scalar primitive for a leaf, []any for a list, or map[string]any for
// a mapping.
func NodeToObject(tree *parsetree.Tree, id parsetree.NodeID) (any, error) {
	n := tree.Node(id)
	if tree.IsLeaf(id) {
		if n.Value.Kind == parsetree.KindMultilineString {
			return n.Value.AsString(), nil
		}
		return n.Value.Primitive()
	}

	if len(n.Children) == 0 {
		return map[string]any{}, nil
	}

	if hasKeyedChildren(tree, n) {
		out := make(map[string]any, len(n.Children))
		for _, c := range n.Children {
			if tree.IsCommentOnly(c) {
				continue
			}
			child := tree.Node(c)
			val, err := NodeToObject(tree, childValueNode(tree, c))
			if err != nil {
				return nil, err
			}
			out[child.Key] = val
		}
		return out, nil
	}

	out := make([]any, 0, len(n.Children))
	for _, c := range n.Children {
		val, err := NodeToObject(tree, c)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	return out, nil
}

// childValueNode follows a KeyFlag node down to its anonymous scalar
// value holder, if it has one; otherwise returns the node unchanged.
func childValueNode(tree *parsetree.Tree, id parsetree.NodeID) parsetree.NodeID {
	n := tree.Node(id)
	if n.KeyFlag && n.Value.Kind == parsetree.KindSentinel && len(n.Children) == 1 {
		sole := tree.Node(n.Children[0])
		if sole.Key == "" && !sole.KeyFlag && !sole.ListMemberFlag {
			return n.Children[0]
		}
	}
	return id
}

func hasKeyedChildren(tree *parsetree.Tree, n *parsetree.Node) bool {
	for _, c := range n.Children {
		if tree.Node(c).Key != "" {
			return true
		}
	}
	return false
}

// substituteDeep recursively substitutes template expressions into
// every string found within val.
func (r *Reader) substituteDeep(val any) (any, error) {
	switch t := val.(type) {
	case string:
		out, warnings := tables.Substitute(t, r.Variables, r.v1)
		_ = warnings
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			sv, err := r.substituteDeep(v)
			if err != nil {
				return nil, err
			}
			out[k] = sv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			sv, err := r.substituteDeep(v)
			if err != nil {
				return nil, err
			}
			out[i] = sv
		}
		return out, nil
	default:
		return val, nil
	}
}

// RenderToObject converts the whole tree into a Go-native value,
// optionally substituting template variables first.
func (r *Reader) RenderToObject(replaceVariables bool) (any, error) {
	val, err := NodeToObject(r.Tree, r.Tree.Root())
	if err != nil {
		return nil, err
	}
	if replaceVariables {
		return r.substituteDeep(val)
	}
	return val, nil
}
