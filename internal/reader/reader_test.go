package reader

import (
	"regexp"
	"testing"

	"github.com/conda/conda-recipe-manager/internal/parsetree"
)

const sampleRecipe = `{% set name = "libfoo" %}
{% set version = "1.2.3" %}
package:
  name: {{ name }}
  version: {{ version }}

requirements:
  host:
    - python
  run:
    - python
    - numpy  # [linux]

about:
  summary: a test package
`

func mustNew(t *testing.T, text string) *Reader {
	t.Helper()
	r, err := New(text, false)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return r
}

func TestGetValue_ScalarWithSubstitution(t *testing.T) {
	r := mustNew(t, sampleRecipe)
	val, err := r.GetValue(parsetree.ParsePath("/package/name"), nil, false, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "libfoo" {
		t.Errorf("name = %v, want libfoo", val)
	}
}

func TestGetValue_MissingWithoutDefault(t *testing.T) {
	r := mustNew(t, sampleRecipe)
	if _, err := r.GetValue(parsetree.ParsePath("/nope"), nil, false, false); err == nil {
		t.Fatal("expected ErrNotFound")
	}
}

func TestGetValue_MissingWithDefault(t *testing.T) {
	r := mustNew(t, sampleRecipe)
	val, err := r.GetValue(parsetree.ParsePath("/nope"), "fallback", true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "fallback" {
		t.Errorf("val = %v, want fallback", val)
	}
}

func TestContainsValue(t *testing.T) {
	r := mustNew(t, sampleRecipe)
	if !r.ContainsValue(parsetree.ParsePath("/about/summary")) {
		t.Error("expected /about/summary to exist")
	}
	if r.ContainsValue(parsetree.ParsePath("/about/nope")) {
		t.Error("expected /about/nope to not exist")
	}
}

func TestListValuePaths(t *testing.T) {
	r := mustNew(t, sampleRecipe)
	paths := r.ListValuePaths()
	found := false
	for _, p := range paths {
		if p.String() == "/about/summary" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected /about/summary among leaf paths, got %v", paths)
	}
}

func TestSearch(t *testing.T) {
	r := mustNew(t, sampleRecipe)
	paths := r.Search(regexp.MustCompile("^numpy$"), false)
	if len(paths) != 1 {
		t.Fatalf("expected one match for numpy, got %v", paths)
	}
}

func TestListVariablesAndGetVariable(t *testing.T) {
	r := mustNew(t, sampleRecipe)
	names := r.ListVariables()
	if len(names) != 2 {
		t.Fatalf("expected 2 variables, got %v", names)
	}
	val, err := r.GetVariable("version", parsetree.Value{}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val.Str != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", val.Str)
	}
}

func TestGetVariableReferences(t *testing.T) {
	r := mustNew(t, sampleRecipe)
	refs := r.GetVariableReferences("name")
	if len(refs) != 1 || refs[0].String() != "/package/name" {
		t.Errorf("expected one reference at /package/name, got %v", refs)
	}
}

func TestSelectorsAndComments(t *testing.T) {
	r := mustNew(t, sampleRecipe)
	if !r.ContainsSelector("[linux]") {
		t.Error("expected [linux] selector to be recorded")
	}
	paths := r.GetSelectorPaths("[linux]")
	if len(paths) != 1 || paths[0].String() != "/requirements/run/1" {
		t.Errorf("unexpected selector paths: %v", paths)
	}
}

func TestGetPackagePathsSingleOutput(t *testing.T) {
	r := mustNew(t, sampleRecipe)
	paths := r.GetPackagePaths()
	if len(paths) != 1 || paths[0] != "/" {
		t.Errorf("expected [\"/\"], got %v", paths)
	}
	if r.IsMultiOutput() {
		t.Error("expected single-output recipe")
	}
}

func TestGetDependencyPathsAndIsPythonRecipe(t *testing.T) {
	r := mustNew(t, sampleRecipe)
	deps := r.GetDependencyPaths()
	if len(deps) != 3 {
		t.Fatalf("expected 3 dependency leaves, got %d: %v", len(deps), deps)
	}
	if !r.IsPythonRecipe() {
		t.Error("expected python recipe to be detected")
	}
}

func TestCalcSHA256Deterministic(t *testing.T) {
	r1 := mustNew(t, sampleRecipe)
	r2 := mustNew(t, sampleRecipe)
	if r1.CalcSHA256() != r2.CalcSHA256() {
		t.Error("expected identical hashes for identical input")
	}
}

func TestRenderToObject(t *testing.T) {
	r := mustNew(t, sampleRecipe)
	obj, err := r.RenderToObject(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := obj.(map[string]any)
	if !ok {
		t.Fatalf("expected top-level map, got %T", obj)
	}
	pkg, ok := m["package"].(map[string]any)
	if !ok {
		t.Fatalf("expected package map, got %T", m["package"])
	}
	if pkg["name"] != "libfoo" {
		t.Errorf("package.name = %v, want libfoo", pkg["name"])
	}
}

func TestAppendToPath(t *testing.T) {
	got := AppendToPath(parsetree.ParsePath("/outputs/0"), "package/name")
	if got.String() != "/outputs/0/package/name" {
		t.Errorf("AppendToPath = %q, want /outputs/0/package/name", got.String())
	}
}
