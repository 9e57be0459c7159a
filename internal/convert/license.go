package convert

import (
	"strings"
	"sync"

	"github.com/conda/conda-recipe-manager/internal/spdx"
)

var (
	licenseTableOnce sync.Once
	loadedLicenses   *spdx.Table
)

func licenseTable() *spdx.Table {
	licenseTableOnce.Do(func() { loadedLicenses = spdx.Load() })
	return loadedLicenses
}

// deprecatedAboutFields lists /about entries the v1 schema dropped
// entirely, rather than renaming.
var deprecatedAboutFields = []string{"license_family"}

// correctLicenses is C9 step 8: normalize each package's /about/license
// string onto a known SPDX identifier via internal/spdx, and drop
// fields the v1 schema no longer carries (spec.md Sec. 4.8 point 8).
func (c *Converter) correctLicenses() {
	table := licenseTable()
	for _, pkg := range c.p.GetPackagePaths() {
		base := strings.TrimSuffix(pkg, "/")
		licensePath := base + "/about/license"

		if val, err := c.p.GetValue(parsePath(licensePath), nil, false, false); err == nil {
			if license, ok := val.(string); ok {
				if corrected := table.FindClosestMatch(license); corrected != "" && corrected != license {
					if _, err := c.p.Patch(patchReplace(licensePath, corrected)); err != nil {
						c.Messages.Warn("could not correct license %q: %v", license, err)
					} else {
						c.Messages.Warn("corrected /about/license %q -> %q", license, corrected)
					}
				}
			}
		}

		for _, field := range deprecatedAboutFields {
			c.removeDeprecated(base + "/about/" + field)
		}
	}
}

func (c *Converter) removeDeprecated(path string) {
	if !c.p.ContainsValue(parsePath(path)) {
		return
	}
	if _, err := c.p.Patch(patchRemove(path)); err != nil {
		c.Messages.Warn("could not remove deprecated field %s: %v", path, err)
		return
	}
	c.Messages.Warn("dropped deprecated field %s", path)
}
