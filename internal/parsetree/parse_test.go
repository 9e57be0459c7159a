package parsetree

import (
	"strings"
	"testing"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
)

func TestParse_EmptyText(t *testing.T) {
	_, err := Parse("", ParseOptions{})
	if err == nil {
		t.Fatal("expected ParsingException for empty text")
	}
	var pe *crmerrors.ParsingException
	if !isParsingException(err, &pe) {
		t.Fatalf("expected *ParsingException, got %T", err)
	}
}

func isParsingException(err error, target **crmerrors.ParsingException) bool {
	if pe, ok := err.(*crmerrors.ParsingException); ok {
		*target = pe
		return true
	}
	return false
}

func TestParse_SimpleMapping(t *testing.T) {
	text := "package:\n  name: foo\n  version: 1.2.3\n"
	tree, err := Parse(text, ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pkgID, ok := tree.Find(ParsePath("/package"))
	if !ok {
		t.Fatal("expected /package to resolve")
	}
	nameValID, ok := tree.Find(ParsePath("/package/name"))
	if !ok {
		t.Fatal("expected /package/name to resolve")
	}
	if got := tree.Node(nameValID).Value.Str; got != "foo" {
		t.Errorf("name = %q, want foo", got)
	}
	_ = pkgID
}

func TestParse_DuplicateKey(t *testing.T) {
	text := "package:\n  name: foo\n  name: bar\n"
	_, err := Parse(text, ParseOptions{})
	if err == nil {
		t.Fatal("expected DuplicateKeyException")
	}
	if _, ok := err.(*crmerrors.DuplicateKeyException); !ok {
		t.Fatalf("expected *DuplicateKeyException, got %T: %v", err, err)
	}
}

func TestParse_ListOfScalars(t *testing.T) {
	text := "requirements:\n  run:\n    - python\n    - numpy\n"
	tree, err := Parse(text, ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runID, ok := tree.Find(ParsePath("/requirements/run"))
	if !ok {
		t.Fatal("expected /requirements/run")
	}
	children := tree.Node(runID).Children
	if len(children) != 2 {
		t.Fatalf("expected 2 run deps, got %d", len(children))
	}
	if tree.Node(children[0]).Value.Str != "python" {
		t.Errorf("first dep = %q, want python", tree.Node(children[0]).Value.Str)
	}
}

func TestParse_ListOfMappings(t *testing.T) {
	text := "outputs:\n  - name: foo\n    version: 1.0\n  - name: bar\n"
	tree, err := Parse(text, ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, ok := tree.Find(ParsePath("/outputs/0/name"))
	if !ok {
		t.Fatal("expected /outputs/0/name")
	}
	if tree.Node(first).Value.Str != "foo" {
		t.Errorf("outputs[0].name = %q, want foo", tree.Node(first).Value.Str)
	}
	second, ok := tree.Find(ParsePath("/outputs/1/name"))
	if !ok {
		t.Fatal("expected /outputs/1/name")
	}
	if tree.Node(second).Value.Str != "bar" {
		t.Errorf("outputs[1].name = %q, want bar", tree.Node(second).Value.Str)
	}
}

func TestParse_Comments(t *testing.T) {
	text := "# top of file\npackage:\n  name: foo  # the name\n"
	tree, err := Parse(text, ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	root := tree.Node(tree.Root())
	if len(root.Children) == 0 || root.Children[0] == 0 {
		t.Fatal("expected a top-of-file comment child")
	}
	topComment := tree.Node(root.Children[0])
	if !topComment.commentOnly || topComment.CommentPos != CommentTopOfFile {
		t.Fatalf("expected top-of-file comment node, got %+v", topComment)
	}

	nameID, ok := tree.Find(ParsePath("/package/name"))
	if !ok {
		t.Fatal("expected /package/name")
	}
	if c := tree.Node(nameID).Comment; c != "# the name" {
		t.Errorf("comment = %q, want '# the name'", c)
	}
}

func TestParse_Multiline(t *testing.T) {
	text := "about:\n  summary: |\n    line one\n    line two\n"
	tree, err := Parse(text, ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id, ok := tree.Find(ParsePath("/about/summary"))
	if !ok {
		t.Fatal("expected /about/summary")
	}
	n := tree.Node(id)
	if n.Value.Kind != KindMultilineString {
		t.Fatalf("expected multiline value, got kind %d", n.Value.Kind)
	}
	if len(n.Value.Lines) != 2 || n.Value.Lines[0] != "line one" || n.Value.Lines[1] != "line two" {
		t.Errorf("unexpected multiline lines: %#v", n.Value.Lines)
	}
	if n.MultilineVariant != MultilinePipe {
		t.Errorf("expected MultilinePipe, got %v", n.MultilineVariant)
	}
}

func TestParse_UnsupportedJinjaWithoutForceRemove(t *testing.T) {
	text := "package:\n  name: foo\n{% if true %}\nbuild:\n  number: 0\n{% endif %}\n"
	_, err := Parse(text, ParseOptions{})
	if err == nil {
		t.Fatal("expected ParsingJinjaException")
	}
	if _, ok := err.(*crmerrors.ParsingJinjaException); !ok {
		t.Fatalf("expected *ParsingJinjaException, got %T", err)
	}
}

func TestParse_ForceRemoveJinja(t *testing.T) {
	text := "package:\n  name: foo\n{% if true %}\nbuild:\n  number: 0\n{% endif %}\n"
	tree, err := Parse(text, ParseOptions{ForceRemoveJinja: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tree.Find(ParsePath("/build/number")); !ok {
		t.Fatal("expected /build/number to still parse")
	}
}

func TestRoundTrip_ParseRenderParse(t *testing.T) {
	text := "package:\n  name: foo\n  version: 1.2.3\n\nrequirements:\n  run:\n    - python\n    - numpy\n"
	tree1, err := Parse(text, ParseOptions{})
	if err != nil {
		t.Fatalf("first parse failed: %v", err)
	}
	rendered := tree1.Render(false)

	tree2, err := Parse(rendered, ParseOptions{})
	if err != nil {
		t.Fatalf("second parse failed on rendered text: %v\n---\n%s", err, rendered)
	}

	p1, ok1 := tree1.Find(ParsePath("/package/name"))
	p2, ok2 := tree2.Find(ParsePath("/package/name"))
	if !ok1 || !ok2 {
		t.Fatal("expected /package/name in both trees")
	}
	if tree1.Node(p1).Value.Str != tree2.Node(p2).Value.Str {
		t.Errorf("round trip changed /package/name: %q vs %q", tree1.Node(p1).Value.Str, tree2.Node(p2).Value.Str)
	}
}

func TestRender_OmitTrailingNewline(t *testing.T) {
	tree, err := Parse("package:\n  name: foo\n", ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	withNL := tree.Render(false)
	withoutNL := tree.Render(true)
	if !strings.HasSuffix(withNL, "\n") {
		t.Error("expected trailing newline by default")
	}
	if strings.HasSuffix(withoutNL, "\n") {
		t.Error("expected no trailing newline when omitted")
	}
}

func TestRenderScalar_QuotingRules(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"true", `"true"`},
		{"1.0", `"1.0"`},
		{"has: colon", `"has: colon"`},
	} {
		got := RenderScalar(StringValue(tt.in))
		if got != tt.want {
			t.Errorf("RenderScalar(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
