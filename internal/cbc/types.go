// Package cbc implements the Conda Build Configuration parser and
// variant expander (C7 in the component design): reading CBC YAML
// documents, resolving zip-key groupings, and computing the Cartesian
// product of build variants a recipe must be built for.
package cbc

import (
	_ "embed"

	"github.com/BurntSushi/toml"
)

// Entry is one CBC value with its optional applicability selector,
// mirroring the original's per-entry NodeVar (spec.md Sec. 4.6).
type Entry struct {
	Value    string
	Selector string // "" if the entry is unconditional
}

// specialKeys are CBC top-level keys the parser does not treat as
// ordinary variables (conda-build reserves these for variant-pinning
// metadata this repo does not model).
var specialKeys = map[string]bool{
	"pin_run_as_build":       true,
	"extend_keys":            true,
	"ignore_version":         true,
	"ignore_build_only_deps": true,
}

//go:embed default_variants.toml
var defaultVariantsTOML []byte

// loadDefaultVariants decodes the built-in baseline variant table
// (spec.md Sec. 4.6: "prepend a built-in default-variants CBC"),
// grounded on parser/types.py's DEFAULT_VARIANTS table in
// original_source/. Only the plain scalar variant knobs are carried;
// the original's pin_run_as_build/ignore_version/extend_keys entries
// are CBC special keys with no variant-expansion meaning here.
func loadDefaultVariants() map[string][]string {
	var raw map[string]string
	if err := toml.Unmarshal(defaultVariantsTOML, &raw); err != nil {
		panic("cbc: malformed embedded default_variants.toml: " + err.Error())
	}
	out := make(map[string][]string, len(raw))
	for k, v := range raw {
		out[k] = []string{v}
	}
	return out
}
