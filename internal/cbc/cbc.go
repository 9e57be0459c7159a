package cbc

import (
	"fmt"
	"sort"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
	"github.com/conda/conda-recipe-manager/internal/parsetree"
	"github.com/conda/conda-recipe-manager/internal/reader"
	"github.com/conda/conda-recipe-manager/internal/selector"
	"github.com/conda/conda-recipe-manager/internal/tables"
)

// CBC is a parsed Conda Build Configuration document: a reader over
// the same v0 grammar (spec.md Sec. 4.6), plus its variable and
// zip_keys tables.
type CBC struct {
	*reader.Reader
	vars     map[string][]Entry
	varOrder []string
	zipKeys  [][]Entry
}

// New parses a CBC document's content. CBC files never carry jinja
// statements, so force_remove_jinja is always false.
func New(content string) (*CBC, error) {
	r, err := reader.New(content, false)
	if err != nil {
		return nil, err
	}
	c := &CBC{Reader: r, vars: map[string][]Entry{}}
	c.parse()
	return c, nil
}

func (c *CBC) parse() {
	root := c.Tree.Node(c.Tree.Root())
	for _, id := range root.Children {
		if c.Tree.IsCommentOnly(id) {
			continue
		}
		key := c.Tree.Node(id).Key
		if specialKeys[key] {
			continue
		}
		if key == "zip_keys" {
			c.zipKeys = buildZipKeys(c.Tree, id)
			continue
		}
		entries := buildEntries(c.Tree, id)
		if len(entries) == 0 {
			continue
		}
		c.vars[key] = entries
		c.varOrder = append(c.varOrder, key)
	}
}

// singleValueChild reports whether keyNode's value is a bare scalar
// (the anonymous single child the parser attaches to a KeyFlag node),
// as opposed to a pushed-up list of ListMemberFlag children.
func singleValueChild(tree *parsetree.Tree, keyNode *parsetree.Node) (parsetree.NodeID, bool) {
	if len(keyNode.Children) != 1 {
		return 0, false
	}
	child := tree.Node(keyNode.Children[0])
	if child.Key == "" && !child.KeyFlag && !child.ListMemberFlag {
		return keyNode.Children[0], true
	}
	return 0, false
}

func buildEntries(tree *parsetree.Tree, keyID parsetree.NodeID) []Entry {
	keyNode := tree.Node(keyID)
	if id, ok := singleValueChild(tree, keyNode); ok {
		n := tree.Node(id)
		return []Entry{{Value: n.Value.AsString(), Selector: selectorOf(n.Comment)}}
	}
	entries := make([]Entry, 0, len(keyNode.Children))
	for _, c := range keyNode.Children {
		n := tree.Node(c)
		entries = append(entries, Entry{Value: n.Value.AsString(), Selector: selectorOf(n.Comment)})
	}
	return entries
}

// buildZipKeys constructs zip groups from the "zip_keys" key's value: a
// flat list of strings becomes a single group; a list of lists becomes
// one group per inner list (spec.md Sec. 4.6).
func buildZipKeys(tree *parsetree.Tree, keyID parsetree.NodeID) [][]Entry {
	keyNode := tree.Node(keyID)
	var groups [][]Entry
	isListOfLists := len(keyNode.Children) > 0
	for _, c := range keyNode.Children {
		if tree.IsLeaf(c) {
			isListOfLists = false
			break
		}
	}
	if isListOfLists {
		for _, groupID := range keyNode.Children {
			groups = append(groups, buildEntries(tree, groupID))
		}
		return groups
	}
	return [][]Entry{buildEntries(tree, keyID)}
}

func selectorOf(comment string) string {
	sel, ok := tables.ExtractSelector(comment)
	if !ok {
		return ""
	}
	// selector.Evaluate takes the expression without its brackets.
	return sel[1 : len(sel)-1]
}

// ListVariables returns the CBC variable names, in first-appearance
// document order.
func (c *CBC) ListVariables() []string {
	out := append([]string(nil), c.varOrder...)
	return out
}

// ContainsVariable reports whether variable is defined.
func (c *CBC) ContainsVariable(variable string) bool {
	_, ok := c.vars[variable]
	return ok
}

// GetCBCVariableValues returns the values of variable whose selector
// applies under query, or def/nil if none apply and hasDefault is set
// (spec.md Sec. 4.6).
func (c *CBC) GetCBCVariableValues(variable string, query selector.BuildContext, def []string, hasDefault bool) ([]string, error) {
	entries, ok := c.vars[variable]
	if !ok {
		if hasDefault {
			return def, nil
		}
		return nil, fmt.Errorf("CBC variable not found: %s", variable)
	}
	var out []string
	for _, e := range entries {
		if e.Selector == "" {
			out = append(out, e.Value)
			continue
		}
		applies, err := selector.Evaluate(e.Selector, query)
		if err != nil {
			return nil, err
		}
		if applies {
			out = append(out, e.Value)
		}
	}
	if len(out) == 0 {
		if hasDefault {
			return def, nil
		}
		return nil, fmt.Errorf("CBC variable has no value for the provided selector query: %s", variable)
	}
	return out, nil
}

// GetZipKeys returns the zip-key groups applicable under query,
// validating them with validateZipKeys (spec.md Sec. 4.6).
func (c *CBC) GetZipKeys(query selector.BuildContext) ([][]string, error) {
	if len(c.zipKeys) == 0 {
		return nil, fmt.Errorf("no zip keys found in the CBC file")
	}
	var groups [][]string
	for _, group := range c.zipKeys {
		var keys []string
		for _, e := range group {
			if e.Selector == "" {
				keys = append(keys, e.Value)
				continue
			}
			applies, err := selector.Evaluate(e.Selector, query)
			if err != nil {
				return nil, err
			}
			if applies {
				keys = append(keys, e.Value)
			}
		}
		if len(keys) > 0 {
			groups = append(groups, keys)
		}
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("no zip keys found for the provided selector query")
	}
	if err := validateZipKeys(groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// validateZipKeys enforces that every group has at least two members
// and that no name appears in more than one group.
func validateZipKeys(groups [][]string) error {
	for _, g := range groups {
		if len(g) < 2 {
			return &crmerrors.ZipKeysException{Message: "each set of zip keys must contain at least two values"}
		}
	}
	seen := map[string]bool{}
	for _, g := range groups {
		for _, k := range g {
			if seen[k] {
				return &crmerrors.ZipKeysException{Message: "duplicate zip key found: " + k}
			}
			seen[k] = true
		}
	}
	return nil
}

// GenerateCBCValues merges the default-variants baseline and cbcFiles
// (left-to-right, later files overwriting earlier ones), returning the
// merged value table and the applicable zip-key groups (spec.md Sec.
// 4.6).
func GenerateCBCValues(cbcFiles []*CBC, query selector.BuildContext) (map[string][]string, [][]string, error) {
	values := loadDefaultVariants()
	var zipKeys [][]string

	for _, cbc := range cbcFiles {
		if groups, err := cbc.GetZipKeys(query); err == nil {
			zipKeys = groups
		}
		for _, name := range cbc.ListVariables() {
			vals, err := cbc.GetCBCVariableValues(name, query, nil, false)
			if err != nil {
				continue
			}
			values[name] = vals
		}
	}

	for _, group := range zipKeys {
		for _, k := range group {
			if _, ok := values[k]; !ok {
				return nil, nil, &crmerrors.ZipKeysException{Message: "zip key not found in CBC values: " + k}
			}
		}
	}
	return values, zipKeys, nil
}

// Variant is one fully-resolved build variant: a flat name->value
// table plus the zip_keys/target_platform bookkeeping conda-build
// itself carries on every variant (spec.md Sec. 4.6).
type Variant map[string]any

// GenerateVariants computes every build variant implied by cbcFiles
// under query: zip-grouped names are zipped pairwise, all remaining
// ("free") names are combined via Cartesian product (spec.md Sec. 4.6).
func GenerateVariants(cbcFiles []*CBC, query selector.BuildContext) ([]Variant, error) {
	values, zipKeys, err := GenerateCBCValues(cbcFiles, query)
	if err != nil {
		return nil, err
	}

	inZipGroup := map[string]bool{}
	for _, g := range zipKeys {
		for _, k := range g {
			inZipGroup[k] = true
		}
	}
	var freeNames []string
	for name := range values {
		if !inZipGroup[name] {
			freeNames = append(freeNames, name)
		}
	}
	sort.Strings(freeNames)

	type axis = axisT
	var axes []axis
	for _, name := range freeNames {
		var tuples [][]string
		for _, v := range values[name] {
			tuples = append(tuples, []string{v})
		}
		axes = append(axes, axis{names: []string{name}, tuples: tuples})
	}
	for _, group := range zipKeys {
		length := -1
		for _, k := range group {
			if length == -1 {
				length = len(values[k])
			} else if len(values[k]) != length {
				return nil, &crmerrors.ZipKeysException{Message: "zipped CBC value lists must be the same length"}
			}
		}
		var tuples [][]string
		for i := 0; i < length; i++ {
			row := make([]string, len(group))
			for j, k := range group {
				row[j] = values[k][i]
			}
			tuples = append(tuples, row)
		}
		axes = append(axes, axis{names: group, tuples: tuples})
	}

	combos := cartesianProduct(axes)
	variants := make([]Variant, 0, len(combos))
	for _, combo := range combos {
		v := Variant{}
		zk := make([][]string, len(zipKeys))
		copy(zk, zipKeys)
		v["zip_keys"] = zk
		v["target_platform"] = query.Platform
		for i, names := range comboNames(axes) {
			for j, name := range names {
				v[name] = combo[i][j]
			}
		}
		variants = append(variants, v)
	}
	return variants, nil
}

type axisT = struct {
	names  []string
	tuples [][]string
}

func comboNames(axes []axisT) [][]string {
	out := make([][]string, len(axes))
	for i, a := range axes {
		out[i] = a.names
	}
	return out
}

// cartesianProduct returns every combination of one tuple per axis, in
// axis order.
func cartesianProduct(axes []axisT) [][][]string {
	if len(axes) == 0 {
		return [][][]string{{}}
	}
	rest := cartesianProduct(axes[1:])
	var out [][][]string
	for _, tuple := range axes[0].tuples {
		for _, r := range rest {
			combo := append([][]string{tuple}, r...)
			out = append(out, combo)
		}
	}
	return out
}
