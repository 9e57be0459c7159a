package convert

import (
	"strings"

	"github.com/conda/conda-recipe-manager/internal/parsetree"
)

// correctMisspellings is C9 step 5: fix a fixed list of common recipe
// typos (spec.md Sec. 4.8 point 5).
func (c *Converter) correctMisspellings() {
	c.renameKeyAnywhere("skipt", "skip")
	c.renameKeyAnywhere("licence_file", "license_file")
	c.renameKeyAnywhere("extras", "extra")
}

// sectionRenames is the fixed table of v0 -> v1 path moves C9 step 6
// performs (spec.md Sec. 4.8 point 6).
var sectionRenames = [][2]string{
	{"/build/entry_points", "/build/python/entry_points"},
	{"/build/force_use_keys", "/build/variant/use_keys"},
	{"/build/ignore_prefix_files", "/build/prefix_detection/ignore"},
	{"/build/rpaths", "/build/dynamic_linking/rpaths"},
	{"/build/run_exports", "/requirements/run_exports"},
	{"/build/ignore_run_exports", "/requirements/ignore_run_exports/by_name"},
}

// upgradeSections is C9 step 6: apply the fixed section/field renames
// and expand /build/script_env into its structured v1 form.
func (c *Converter) upgradeSections() {
	for _, r := range sectionRenames {
		c.renamePath(r[0], r[1])
	}
	c.upgradeScriptEnv()
}

// upgradeScriptEnv splits each "/build/script_env" entry into a
// key=value pair feeding "/build/script/env", or, for a bare name with
// no "=", a passthrough secret feeding "/build/script/secrets".
func (c *Converter) upgradeScriptEnv() {
	const from = "/build/script_env"
	val, ok := c.readList(from)
	if !ok {
		return
	}

	env := map[string]any{}
	var secrets []any
	for _, e := range val {
		s, ok := e.(string)
		if !ok {
			continue
		}
		if name, value, found := strings.Cut(s, "="); found {
			env[name] = value
		} else {
			secrets = append(secrets, s)
		}
	}

	if _, err := c.p.Patch(patchRemove(from)); err != nil {
		c.Messages.Warn("could not remove %s: %v", from, err)
		return
	}
	if len(env) > 0 {
		if _, err := c.p.Patch(patchAdd("/build/script/env", env)); err != nil {
			c.Messages.Warn("could not add /build/script/env: %v", err)
		}
	}
	if len(secrets) > 0 {
		if _, err := c.p.Patch(patchAdd("/build/script/secrets", secrets)); err != nil {
			c.Messages.Warn("could not add /build/script/secrets: %v", err)
		}
	}
}

func (c *Converter) readList(path string) ([]any, bool) {
	p := parsetree.ParsePath(path)
	if !c.p.ContainsValue(p) {
		return nil, false
	}
	val, err := c.p.GetValue(p, nil, false, false)
	if err != nil {
		c.Messages.Warn("could not read %s: %v", path, err)
		return nil, false
	}
	list, ok := val.([]any)
	if !ok {
		c.Messages.Warn("%s is not a list, leaving as-is", path)
		return nil, false
	}
	return list, true
}

// renameRunConstrained is C9 step 7: "run_constrained" was renamed
// "run_constraints" in v1, across every output's requirements section
// (spec.md Sec. 4.8 point 7).
func (c *Converter) renameRunConstrained() {
	for _, pkg := range c.p.GetPackagePaths() {
		base := strings.TrimSuffix(pkg, "/")
		c.renamePath(base+"/requirements/run_constrained", base+"/requirements/run_constraints")
	}
}
