package variant

import (
	"fmt"
	"sort"

	"github.com/conda/conda-recipe-manager/internal/cbc"
	"github.com/conda/conda-recipe-manager/internal/selector"
)

// GenerateRecipeVariants expands cbcFiles into every build variant
// applicable to platform, then projects content onto each one,
// returning one Variant per resulting build environment in a stable
// (sorted-key) order. Grounded on
// original_source/conda_recipe_manager/parser/variants_manager.py's
// VariantsManager, folded into C8 rather than kept as a standalone
// type since this repo processes one base recipe against one CBC set
// per invocation instead of the original's multi-file CLI flow.
func GenerateRecipeVariants(content string, cbcFiles []*cbc.CBC, platform string) ([]*Variant, error) {
	probe := selector.NewBuildContext(platform, nil)
	variants, err := cbc.GenerateVariants(cbcFiles, probe)
	if err != nil {
		return nil, err
	}

	sort.Slice(variants, func(i, j int) bool {
		return variantKey(variants[i]) < variantKey(variants[j])
	})

	out := make([]*Variant, 0, len(variants))
	for _, cv := range variants {
		ctx := buildContextFromVariant(platform, cv)
		rv, err := New(content, ctx)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", variantKey(cv), err)
		}
		out = append(out, rv)
	}
	return out, nil
}

// buildContextFromVariant flattens a cbc.Variant (whose values are
// plain strings plus the zip_keys/target_platform bookkeeping entries)
// into a selector.BuildContext.
func buildContextFromVariant(platform string, cv cbc.Variant) selector.BuildContext {
	vars := make(map[string]string, len(cv))
	for k, val := range cv {
		if k == "zip_keys" || k == "target_platform" {
			continue
		}
		if s, ok := val.(string); ok {
			vars[k] = s
		}
	}
	return selector.NewBuildContext(platform, vars)
}

// variantKey produces a stable, sortable identity for a variant so
// GenerateRecipeVariants returns its results in deterministic order
// despite map iteration inside cbc.GenerateVariants.
func variantKey(cv cbc.Variant) string {
	names := make([]string, 0, len(cv))
	for k := range cv {
		if k == "zip_keys" || k == "target_platform" {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)
	key := ""
	for _, n := range names {
		if s, ok := cv[n].(string); ok {
			key += n + "=" + s + ";"
		}
	}
	return key
}
