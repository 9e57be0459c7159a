package convert

import "regexp"

// upgradeAmbiguousDependencies is C9 step 2: normalize dependency
// version operators that conda-build accepted loosely but rattler-build
// parses strictly (spec.md Sec. 4.8 point 2).
func (c *Converter) upgradeAmbiguousDependencies() {
	for _, path := range c.p.GetDependencyPaths() {
		val, err := c.p.GetValue(path, nil, false, false)
		if err != nil {
			continue
		}
		dep, ok := val.(string)
		if !ok {
			continue
		}
		upgraded := upgradeDependencySpec(dep)
		if upgraded == dep {
			continue
		}
		if _, err := c.p.Patch(patchReplace(path.String(), upgraded)); err != nil {
			c.Messages.Warn("could not upgrade dependency spec %q: %v", dep, err)
		}
	}
}

var (
	arrowGeRe     = regexp.MustCompile(`=>\s*`)
	singleEqRe    = regexp.MustCompile(`([^=!<>])=([^=])`)
	bareVersionRe = regexp.MustCompile(`^([A-Za-z0-9_.\-]+)\s+(\d+(?:\.\d+)*)$`)
)

// upgradeDependencySpec corrects "=>" (meant as ">="), a bare "="
// (meant as "=="), and appends ".*" to a bare numeric version with no
// comparison operator at all (the old fuzzy-match default).
func upgradeDependencySpec(dep string) string {
	dep = arrowGeRe.ReplaceAllString(dep, ">=")
	dep = singleEqRe.ReplaceAllString(dep, "${1}==${2}")
	if m := bareVersionRe.FindStringSubmatch(dep); m != nil {
		dep = m[1] + " " + m[2] + ".*"
	}
	return dep
}
