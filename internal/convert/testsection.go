package convert

import "strings"

// upgradeTestSection is C9 step 9: restructure each package's v0 /test
// mapping into the v1 /tests array form (spec.md Sec. 4.8 point 9).
func (c *Converter) upgradeTestSection() {
	for _, pkg := range c.p.GetPackagePaths() {
		base := strings.TrimSuffix(pkg, "/")
		c.upgradeOneTestSection(base+"/test", base+"/tests")
	}
}

func (c *Converter) upgradeOneTestSection(from, to string) {
	if !c.p.ContainsValue(parsePath(from)) {
		return
	}
	raw, err := c.p.GetValue(parsePath(from), nil, false, false)
	if err != nil {
		c.Messages.Warn("could not read %s: %v", from, err)
		return
	}
	oldTest, ok := raw.(map[string]any)
	if !ok {
		c.Messages.Warn("%s is not a mapping, leaving as-is", from)
		return
	}

	newTest := map[string]any{}

	if requires, ok := oldTest["requires"]; ok {
		newTest["requirements"] = map[string]any{"run": requires}
	}

	files := map[string]any{}
	if sourceFiles, ok := oldTest["source_files"]; ok {
		files["source"] = sourceFiles
	}
	if recipeFiles, ok := oldTest["files"]; ok {
		files["recipe"] = recipeFiles
	}
	if len(files) > 0 {
		newTest["files"] = files
	}

	pipCheck := false
	if commands, ok := oldTest["commands"].([]any); ok {
		var script []any
		for _, cmd := range commands {
			if s, ok := cmd.(string); ok {
				switch strings.TrimSpace(s) {
				case "pip check", "python -m pip check", "python3 -m pip check":
					pipCheck = true
					continue
				}
			}
			script = append(script, cmd)
		}
		if len(script) > 0 {
			newTest["script"] = script
		}
	}

	if imports, ok := oldTest["imports"]; ok {
		newTest["python"] = map[string]any{"imports": imports, "pip_check": pipCheck}
	} else if pipCheck {
		newTest["python"] = map[string]any{"pip_check": pipCheck}
	}

	if _, err := c.p.Patch(patchRemove(from)); err != nil {
		c.Messages.Warn("could not remove %s: %v", from, err)
		return
	}
	if len(newTest) == 0 {
		return
	}
	if _, err := c.p.Patch(patchAdd(to, []any{newTest})); err != nil {
		c.Messages.Warn("could not add %s: %v", to, err)
	}
}
