package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunConvertRejectsAlreadyV1Recipe(t *testing.T) {
	v1 := "schema_version: 1\npackage:\n  name: foo\n  version: 1.0\n"
	var out, errOut bytes.Buffer

	_, code := runConvert(&out, &errOut, v1, false)
	if code != ExitIllegalOperation {
		t.Fatalf("got exit code %d, want %d", code, ExitIllegalOperation)
	}
	if out.Len() != 0 {
		t.Errorf("expected no stdout output, got %q", out.String())
	}
	if !strings.Contains(errOut.String(), "already in the v1 schema") {
		t.Errorf("expected an already-v1 message, got %q", errOut.String())
	}
}

func TestRunConvertRejectsUnparsableRecipe(t *testing.T) {
	var out, errOut bytes.Buffer

	_, code := runConvert(&out, &errOut, "not: [valid", false)
	if code != ExitIllegalOperation {
		t.Fatalf("got exit code %d, want %d", code, ExitIllegalOperation)
	}
}

func TestRunConvertSucceedsOnV0Recipe(t *testing.T) {
	v0 := "package:\n  name: libfoo\n  version: 1.0\n" +
		"requirements:\n  run:\n    - python\n"
	var out, errOut bytes.Buffer

	text, code := runConvert(&out, &errOut, v0, false)
	if code != ExitSuccess {
		t.Fatalf("got exit code %d, want %d, stderr: %s", code, ExitSuccess, errOut.String())
	}
	if text == "" || out.String() != text {
		t.Errorf("expected the rendered text to be written to stdout")
	}
	if !strings.Contains(out.String(), "schema_version: 1") {
		t.Errorf("expected the output to carry the v1 schema marker, got %q", out.String())
	}
}

func TestRunConvertReportsWarningsExitCode(t *testing.T) {
	v0 := "package:\n  name: foo\n  version: 1.0\n" +
		"about:\n  license: MIT\n  license_family: MIT\n"
	var out, errOut bytes.Buffer

	_, code := runConvert(&out, &errOut, v0, false)
	if code != ExitRenderWarnings {
		t.Fatalf("got exit code %d, want %d (stderr: %s)", code, ExitRenderWarnings, errOut.String())
	}
	if errOut.Len() == 0 {
		t.Errorf("expected a warning message on stderr")
	}
}

func TestRunConvertFailOnUnsupportedJinjaIsStrict(t *testing.T) {
	v0 := "{% if is_unix %}\npackage:\n  name: foo\n  version: 1.0\n{% endif %}\n" +
		"requirements:\n  run:\n    - python\n"
	var out, errOut bytes.Buffer

	_, code := runConvert(&out, &errOut, v0, true)
	if code != ExitParse {
		t.Fatalf("got exit code %d, want %d (stderr: %s)", code, ExitParse, errOut.String())
	}
}
