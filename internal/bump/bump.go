// Package bump implements the recipe manager's version bumper (C11,
// spec.md Sec. 4.10): build-number increments, version updates, and
// source-artifact URL/hash refreshes driven off internal/fetch's
// results, applied through internal/parser's Patch surface and
// committed back to the recipe file.
//
// Grounded on
// original_source/conda_recipe_manager/ops/version_bumper.py (the
// retry-wrapped fetch helper and the VersionBumper shape) and
// original_source/conda_recipe_manager/commands/bump_recipe.py (the
// operation ordering: build number, then version, then HTTP URLs,
// then SHA-256, then commit — and the options this package's Options
// mirrors as VersionBumperOption's bit flags, recast as bools since Go
// has no idiomatic use for a bitset here).
package bump

import (
	"fmt"
	"os"
	"strings"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
	"github.com/conda/conda-recipe-manager/internal/fetch"
	"github.com/conda/conda-recipe-manager/internal/parser"
	"github.com/conda/conda-recipe-manager/internal/parsetree"
)

// Options mirrors VersionBumperOption's flag set from the original
// Python implementation.
type Options struct {
	DryRun               bool
	CommitOnFailure      bool
	OmitTrailingNewline bool
}

// hashVariableNames is the fixed set of variable names update_sha256
// recognizes as "the" hash variable for short-circuit updates
// (spec.md Sec. 4.10).
var hashVariableNames = []string{"sha256", "hash", "hash_val", "hash_value", "checksum", "check_sum", "hashval", "hashvalue"}

// VersionBumper drives one recipe file's update/commit cycle.
type VersionBumper struct {
	path    string
	opts    Options
	p       *parser.Parser
	writeCount int
}

// New reads and parses path, applying the pypi.io -> pypi.org
// migration patch spec.md Sec. 4.10 describes as "one
// post-processing patch" run at construction time.
func New(path string, opts Options) (*VersionBumper, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	p, err := parser.New(string(raw), false)
	if err != nil {
		return nil, err
	}

	vb := &VersionBumper{path: path, opts: opts, p: p}
	vb.migratePyPIDomain()
	return vb, nil
}

// migratePyPIDomain rewrites any deprecated pypi.io source URL to
// pypi.org in place.
func (vb *VersionBumper) migratePyPIDomain() {
	for _, path := range vb.sourceURLPaths() {
		val, err := vb.p.GetValue(path, nil, false, false)
		if err != nil {
			continue
		}
		url, ok := val.(string)
		if !ok {
			continue
		}
		const deprecated = "pypi.io"
		const replacement = "pypi.org"
		if !strings.Contains(url, deprecated) {
			continue
		}
		_, _ = vb.p.Patch(parser.PatchOp{Op: parser.OpReplace, Path: path.String(), Value: strings.ReplaceAll(url, deprecated, replacement), HasValue: true})
	}
}

// GetRecipeReader exposes the bumper's underlying read-only view, the
// way the original VersionBumper.get_recipe_reader does — e.g. so a
// caller can build fetchers from it with fetch.FromRecipe without
// reaching into an unexported field.
func (vb *VersionBumper) GetRecipeReader() *parser.Parser { return vb.p }

// UpdateBuildNum is spec.md Sec. 4.10's update_build_num: given nil,
// increments the existing /build/number; given a value, writes it
// directly. Either way /build must already exist, and a negative
// value is rejected.
func (vb *VersionBumper) UpdateBuildNum(n *int) error {
	buildPath := parsetree.ParsePath("/build")
	if !vb.p.ContainsValue(buildPath) {
		return vb.fail(&crmerrors.VersionBumperInvalidState{Operation: "update_build_num", Message: "/build does not exist"})
	}

	numberPath := parsetree.ParsePath("/build/number")

	if n != nil {
		if *n < 0 {
			return vb.fail(&crmerrors.VersionBumperInvalidState{Operation: "update_build_num", Message: "build number must not be negative"})
		}
		return vb.patchOrFail("update_build_num", buildNumberPatch(vb.p, numberPath, int64(*n)))
	}

	current := int64(0)
	if vb.p.ContainsValue(numberPath) {
		val, err := vb.p.GetValue(numberPath, nil, false, false)
		if err != nil {
			return vb.fail(&crmerrors.VersionBumperInvalidState{Operation: "update_build_num", Message: err.Error()})
		}
		i, ok := asInt(val)
		if !ok {
			return vb.fail(&crmerrors.VersionBumperInvalidState{Operation: "update_build_num", Message: "/build/number is not an integer"})
		}
		current = i
	}
	return vb.patchOrFail("update_build_num", buildNumberPatch(vb.p, numberPath, current+1))
}

func buildNumberPatch(p *parser.Parser, path parsetree.Path, value int64) error {
	op := parser.OpReplace
	if !p.ContainsValue(path) {
		op = parser.OpAdd
	}
	_, err := p.Patch(parser.PatchOp{Op: op, Path: path.String(), Value: value, HasValue: true})
	return err
}

// UpdateVersion is spec.md Sec. 4.10's update_version: rejects an
// empty or unchanged target, then, for a v1 recipe whose
// /package/version references the /context "version" variable, updates
// that variable; otherwise it patches /package/version directly. A v0
// "{% set version = ... %}" statement is not changed.
func (vb *VersionBumper) UpdateVersion(newVersion string) error {
	if newVersion == "" {
		return vb.fail(&crmerrors.VersionBumperInvalidState{Operation: "update_version", Message: "target version must not be empty"})
	}

	versionPath := parsetree.ParsePath("/package/version")
	current, err := vb.p.GetValue(versionPath, nil, false, true)
	if err == nil {
		want, _ := parsetree.ParseScalar(newVersion).Primitive()
		if s, ok := current.(string); (ok && s == newVersion) || current == want {
			return vb.fail(&crmerrors.VersionBumperInvalidState{Operation: "update_version", Message: "target version matches the current version"})
		}
	}

	// v0 "{% set %}" variables are not tree-backed (Parser.SetVariable
	// rejects them outright), so the short-circuit only applies to v1
	// recipes, whose /context variables are.
	if vb.p.SchemaV1() && vb.p.ContainsVariable("version") {
		for _, ref := range vb.p.GetVariableReferences("version") {
			if ref.String() == versionPath.String() {
				return vb.patchOrFail("update_version", vb.p.SetVariable("version", newVersion))
			}
		}
	}

	_, err = vb.p.Patch(parser.PatchOp{Op: parser.OpReplace, Path: versionPath.String(), Value: newVersion, HasValue: true})
	return vb.patchOrFail("update_version", err)
}

// patchOrFail applies the fail-then-propagate pattern every bumper
// operation shares: a nil err is passed through; a non-nil err is
// wrapped as a VersionBumperPatchError and routed through fail (which
// commits partial progress first, if configured to).
func (vb *VersionBumper) patchOrFail(op string, err error) error {
	if err != nil {
		return vb.fail(&crmerrors.VersionBumperPatchError{Operation: op, Err: err})
	}
	return nil
}

// fail commits whatever progress has been made so far, if
// CommitOnFailure is set, then returns err unchanged (spec.md Sec.
// 4.10, "Every operation that fails calls commit_changes() if
// commit_on_failure is set").
func (vb *VersionBumper) fail(err error) error {
	if vb.opts.CommitOnFailure {
		_ = vb.CommitChanges()
	}
	return err
}

// CommitChanges writes the current recipe text back to disk (or
// stdout, in dry-run mode) and increments the write counter.
func (vb *VersionBumper) CommitChanges() error {
	text := vb.p.Render(vb.opts.OmitTrailingNewline)
	if vb.opts.DryRun {
		fmt.Print(text)
		vb.writeCount++
		return nil
	}
	if err := os.WriteFile(vb.path, []byte(text), 0o644); err != nil {
		return err
	}
	vb.writeCount++
	return nil
}

// WriteCount reports how many times CommitChanges has actually
// written out the recipe (disk or stdout), mirroring the original
// _disk_write_cntr test hook.
func (vb *VersionBumper) WriteCount() int { return vb.writeCount }

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func (vb *VersionBumper) sourceURLPaths() []parsetree.Path {
	fetchers, err := fetch.FromRecipe(vb.p.Reader, true)
	if err != nil {
		return nil
	}
	var out []parsetree.Path
	for path, f := range fetchers {
		if _, ok := f.(*fetch.HTTPFetcher); ok {
			out = append(out, parsetree.ParsePath(path).Append("url"))
		}
	}
	return out
}
