// Package spdx implements SPDX license-expression correction: mapping
// a recipe's free-form `/about/license` string onto the closest known
// SPDX identifier (C9's license-correction step, spec.md Sec. 4.8).
//
// Grounded on original_source/conda_recipe_manager/licenses/spdx_utils.py's
// SpdxUtils: a curated identifier table (embedded as TOML rather than
// the original's full upstream licenses.json, since this repo does not
// need the entire SPDX catalog to demonstrate the correction behavior)
// plus the same patch table and GPL-suffix upgrade heuristic.
package spdx

import (
	_ "embed"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed licenses.toml
var licensesTOML []byte

// expressionOps are SPDX compound-expression operators; a license
// string containing one of these (or a comma) is a compound
// expression and is left untouched rather than risk mangling it.
var expressionOps = []string{"AND", "OR", "WITH"}

// patchTable corrects common recipe-author mistakes difflib-style
// matching cannot recover on its own, keyed by the upper-cased mistake.
var patchTable = map[string]string{
	`BSD 2-CLAUSE "SIMPLIFIED"`: "BSD-2-Clause",
	"UNLIMITED":                 "NOASSERTION",
}

var gplOnlySuffixes = []string{"-only", ".0-only"}
var gplOrLaterSuffixes = []string{"-or-later", ".0-or-later"}

// Table is the loaded SPDX identifier set used for correction lookups.
type Table struct {
	ids map[string]bool
}

type licenseList struct {
	Licenses []string `toml:"licenses"`
}

// Load decodes the embedded SPDX identifier table.
func Load() *Table {
	var list licenseList
	if err := toml.Unmarshal(licensesTOML, &list); err != nil {
		panic("spdx: malformed embedded licenses.toml: " + err.Error())
	}
	ids := make(map[string]bool, len(list.Licenses))
	for _, id := range list.Licenses {
		ids[id] = true
	}
	return &Table{ids: ids}
}

// matchGPL attempts to upgrade an old-style GPL license name
// ("GPL-3.0", "GPL-2.0+") to the modern SPDX "-only"/"-or-later" form.
func (t *Table) matchGPL(sanitized string) (string, bool) {
	if sanitized == "" {
		return "", false
	}
	suffixes := gplOnlySuffixes
	base := sanitized
	if sanitized[len(sanitized)-1] == '+' {
		suffixes = gplOrLaterSuffixes
		base = sanitized[:len(sanitized)-1]
	}
	for _, suffix := range suffixes {
		candidate := base + suffix
		if t.ids[candidate] {
			return candidate, true
		}
	}
	return "", false
}

// FindClosestMatch returns the closest SPDX identifier for license, or
// "" if no correction applies (an exact match, a known mistake, a GPL
// upgrade, or — failing those — the closest Levenshtein-ish match
// among known identifiers via a bounded edit-distance scan).
func (t *Table) FindClosestMatch(license string) string {
	sanitized := strings.TrimSpace(license)
	if sanitized == "" {
		return ""
	}
	if t.ids[sanitized] {
		return sanitized
	}
	if corrected, ok := patchTable[strings.ToUpper(sanitized)]; ok {
		return corrected
	}
	if corrected, ok := t.matchGPL(sanitized); ok {
		return corrected
	}
	for _, op := range expressionOps {
		if strings.Contains(sanitized, op) {
			return ""
		}
	}
	if strings.Contains(sanitized, ",") {
		return ""
	}
	return t.closestByEditDistance(sanitized)
}

// closestByEditDistance is a simplified stand-in for the original's
// difflib.get_close_matches: it returns the known identifier with the
// smallest case-insensitive Levenshtein distance to sanitized, or ""
// if every candidate is farther than half of sanitized's length (the
// same rough "not a real match" cutoff difflib's default cutoff=0.6
// approximates).
func (t *Table) closestByEditDistance(sanitized string) string {
	best := ""
	bestDist := -1
	threshold := len(sanitized) / 2
	if threshold < 2 {
		threshold = 2
	}
	lower := strings.ToLower(sanitized)
	for id := range t.ids {
		d := levenshtein(lower, strings.ToLower(id))
		if d > threshold {
			continue
		}
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = id
		}
	}
	return best
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
