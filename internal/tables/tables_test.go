package tables

import (
	"testing"

	"github.com/conda/conda-recipe-manager/internal/parsetree"
)

func TestBuildVariableTableV0_SingleDefinition(t *testing.T) {
	text := "{% set name = \"libfoo\" %}\npackage:\n  name: {{ name }}\n"
	vt := BuildVariableTableV0(text)
	val, ok := vt.Resolve("name")
	if !ok {
		t.Fatal("expected name to resolve")
	}
	if val.Str != "libfoo" {
		t.Errorf("name = %q, want libfoo", val.Str)
	}
}

func TestBuildVariableTableV0_MultipleDefinitionsConcatenate(t *testing.T) {
	text := "{% set version = \"1.0\" %}\n{% set version = version + \".post1\" %}\n"
	vt := BuildVariableTableV0(text)
	val, ok := vt.Resolve("version")
	if !ok {
		t.Fatal("expected version to resolve")
	}
	if val.Str != "1.0.post1" {
		t.Errorf("version = %q, want 1.0.post1", val.Str)
	}
}

func TestBuildVariableTableV1_RejectsNonScalar(t *testing.T) {
	text := "context:\n  name: foo\n  deps:\n    - a\n    - b\n"
	tree, err := parsetree.Parse(text, parsetree.ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	_, err = BuildVariableTableV1(tree)
	if err == nil {
		t.Fatal("expected error for non-scalar /context entry")
	}
}

func TestBuildVariableTableV1_SimpleMapping(t *testing.T) {
	text := "context:\n  name: foo\n  version: 1.2.3\n"
	tree, err := parsetree.Parse(text, parsetree.ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	vt, err := BuildVariableTableV1(tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	val, ok := vt.Resolve("name")
	if !ok || val.Str != "foo" {
		t.Errorf("name = %+v, want foo", val)
	}
}

func TestExtractSelector(t *testing.T) {
	sel, ok := ExtractSelector("# [linux and not py2k]")
	if !ok || sel != "[linux and not py2k]" {
		t.Errorf("ExtractSelector = %q, %v, want [linux and not py2k], true", sel, ok)
	}
	if _, ok := ExtractSelector("# just a comment"); ok {
		t.Error("expected no selector in a plain comment")
	}
}

func TestStripSelector(t *testing.T) {
	got := StripSelector("# some note [linux]")
	if got != "# some note" {
		t.Errorf("StripSelector = %q, want '# some note'", got)
	}
}

func TestBuildSelectorTable(t *testing.T) {
	text := "requirements:\n  run:\n    - python  # [linux]\n    - numpy\n"
	tree, err := parsetree.Parse(text, parsetree.ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	table := BuildSelectorTable(tree)
	infos, ok := table["[linux]"]
	if !ok || len(infos) != 1 {
		t.Fatalf("expected one use of [linux], got %+v", table)
	}
}

func TestEvaluateExpr_Literals(t *testing.T) {
	vars := VariableTable{}
	for _, tt := range []struct {
		expr string
		want any
	}{
		{`"hello"`, "hello"},
		{"42", int64(42)},
		{"3.5", 3.5},
		{"true", true},
		{"not false", true},
		{"1 == 1", true},
		{"1 != 2", true},
		{"2 > 1 and 1 < 2", true},
		{`"a" + "b"`, "ab"},
		{`1 if true else 2`, int64(1)},
		{`1 if false else 2`, int64(2)},
		{`len("hello")`, int64(5)},
		{`"HELLO".lower()`, "hello"},
		{`"foo".startswith("f")`, true},
	} {
		got, err := EvaluateExpr(tt.expr, vars, false)
		if err != nil {
			t.Fatalf("EvaluateExpr(%q) returned error: %v", tt.expr, err)
		}
		if got != tt.want {
			t.Errorf("EvaluateExpr(%q) = %v (%T), want %v (%T)", tt.expr, got, got, tt.want, tt.want)
		}
	}
}

func TestEvaluateExpr_VariableLookup(t *testing.T) {
	vars := VariableTable{"name": {{Value: parsetree.StringValue("libfoo")}}}
	got, err := EvaluateExpr("name", vars, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "libfoo" {
		t.Errorf("got %v, want libfoo", got)
	}
}

func TestEvaluateExpr_UnevaluableReturnsError(t *testing.T) {
	vars := VariableTable{}
	if _, err := EvaluateExpr("some_undefined_function(1, 2, 3)", vars, false); err == nil {
		t.Fatal("expected error for unknown function")
	}
	if _, err := EvaluateExpr("[1, 2, 3]", vars, false); err == nil {
		t.Fatal("expected error for list literal (outside the allowed grammar)")
	}
}

func TestEvaluateExpr_EnvGet(t *testing.T) {
	t.Setenv("CRM_TEST_VAR", "set-value")
	vars := VariableTable{}
	got, err := EvaluateExpr(`env.get("CRM_TEST_VAR", "fallback")`, vars, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "set-value" {
		t.Errorf("got %v, want set-value", got)
	}

	got, err = EvaluateExpr(`env.get("CRM_TEST_VAR_UNSET", "fallback")`, vars, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "fallback" {
		t.Errorf("got %v, want fallback", got)
	}
}
