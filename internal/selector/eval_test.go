package selector

import "testing"

func ctxFor(platform string, vars map[string]string) BuildContext {
	return NewBuildContext(platform, vars)
}

func TestEvaluate_EmptySelectorIsTrue(t *testing.T) {
	ok, err := Evaluate("", ctxFor("linux-64", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("empty selector should evaluate true")
	}
}

func TestEvaluate_PlatformAliases(t *testing.T) {
	ok, err := Evaluate("linux64", ctxFor("linux-64", nil))
	if err != nil || !ok {
		t.Fatalf("linux64 should match linux-64, got %v, %v", ok, err)
	}
	ok, err = Evaluate("win64", ctxFor("linux-64", nil))
	if err != nil || ok {
		t.Fatalf("win64 should not match linux-64, got %v, %v", ok, err)
	}
}

func TestEvaluate_UnixAndWin(t *testing.T) {
	for _, tt := range []struct {
		expr     string
		platform string
		want     bool
	}{
		{"unix", "linux-64", true},
		{"unix", "osx-arm64", true},
		{"unix", "win-64", false},
		{"win", "win-64", true},
		{"linux", "osx-64", false},
	} {
		ok, err := Evaluate(tt.expr, ctxFor(tt.platform, nil))
		if err != nil {
			t.Fatalf("%s on %s: unexpected error %v", tt.expr, tt.platform, err)
		}
		if ok != tt.want {
			t.Errorf("%s on %s = %v, want %v", tt.expr, tt.platform, ok, tt.want)
		}
	}
}

func TestEvaluate_BooleanCombinators(t *testing.T) {
	ctx := ctxFor("linux-64", nil)
	for _, tt := range []struct {
		expr string
		want bool
	}{
		{"linux and not win64", true},
		{"win64 or linux64", true},
		{"not (linux and win64)", true},
		{"linux and win64", false},
		{"not linux", false},
	} {
		ok, err := Evaluate(tt.expr, ctx)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tt.expr, err)
		}
		if ok != tt.want {
			t.Errorf("%s = %v, want %v", tt.expr, ok, tt.want)
		}
	}
}

func TestEvaluate_PrecedenceNotBeforeAndBeforeOr(t *testing.T) {
	ctx := ctxFor("linux-64", nil)
	// not linux64 and win64 or linux  => ((not linux64) and win64) or linux == true (linux is true)
	ok, err := Evaluate("not linux64 and win64 or linux", ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected true due to operator precedence resolving via the trailing linux atom")
	}
}

func TestEvaluate_VersionPredicates(t *testing.T) {
	ctx := ctxFor("linux-64", map[string]string{"python": "3.10", "numpy": "1.26"})
	for _, tt := range []struct {
		expr string
		want bool
	}{
		{"py36", false},
		{"py310", true},
		{"py>=3.10", true},
		{"py<36", false},
		{"np>=1.19", true},
		{"py2k", false},
		{"py3k", true},
	} {
		ok, err := Evaluate(tt.expr, ctx)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tt.expr, err)
		}
		if ok != tt.want {
			t.Errorf("%s = %v, want %v", tt.expr, ok, tt.want)
		}
	}
}

func TestEvaluate_FreeFormVariable(t *testing.T) {
	ctx := ctxFor("linux-64", map[string]string{"cuda_compiler_version": "11.2"})
	ok, err := Evaluate("cuda_compiler_version", ctx)
	if err != nil || !ok {
		t.Fatalf("present variable should be truthy, got %v, %v", ok, err)
	}
	ok, err = Evaluate("not_present_var", ctx)
	if err != nil || ok {
		t.Fatalf("missing variable should be falsy, got %v, %v", ok, err)
	}
}

func TestEvaluate_EmptyPlatformIsFalseForPlatformAtoms(t *testing.T) {
	ctx := ctxFor("", nil)
	ok, err := Evaluate("linux", ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("empty platform should make platform atoms false")
	}
}

func TestEvaluate_MismatchedParens(t *testing.T) {
	_, err := Evaluate("(linux and win64", ctxFor("linux-64", nil))
	if err == nil {
		t.Fatal("expected SyntaxError for mismatched parens")
	}
	var se *SyntaxError
	if !asSyntaxError(err, &se) {
		t.Fatalf("expected *SyntaxError, got %T: %v", err, err)
	}
}

func TestEvaluate_DanglingOperator(t *testing.T) {
	_, err := Evaluate("linux and", ctxFor("linux-64", nil))
	if err == nil {
		t.Fatal("expected SyntaxError for dangling operator")
	}
}

func TestEvaluate_MissingOperand(t *testing.T) {
	_, err := Evaluate("and linux", ctxFor("linux-64", nil))
	if err == nil {
		t.Fatal("expected SyntaxError for missing operand")
	}
}

func TestEvaluate_Determinism(t *testing.T) {
	ctx := ctxFor("linux-64", map[string]string{"python": "3.11"})
	expr := "linux64 and py>=3.10"
	first, err1 := Evaluate(expr, ctx)
	second, err2 := Evaluate(expr, ctx)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if first != second {
		t.Error("evaluation should be deterministic")
	}
}

func asSyntaxError(err error, target **SyntaxError) bool {
	if se, ok := err.(*SyntaxError); ok {
		*target = se
		return true
	}
	return false
}
