// Package format implements the v0 recipe text formatter (C1): a
// best-effort text-level pre-processor that straightens out common
// indentation mistakes in v0 recipe files before they reach the parse
// tree (C3). v0 is not legal YAML, so a general-purpose YAML formatter
// cannot be reused; this only fixes the small set of mistakes found
// in the wild in the conda-forge ecosystem.
package format

import (
	"regexp"
	"strings"
)

// TabSpaces is the expected indentation width of a well-formed v0
// recipe: two spaces per nesting level.
const TabSpaces = 2

// sectionHeaderRe matches a bare "key:" section header line with no
// inline value, the anchor the list-indentation fixer looks for.
var sectionHeaderRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+:\s*$`)

// Formatter holds one recipe document's lines for in-place repair.
type Formatter struct {
	lines    []string
	isV0     bool
	maxFixes int
}

// New constructs a Formatter over content. isV0Recipe is true when
// the text contains no "schema_version:" anywhere, which is looser
// than the reader's check for a top-level schema_version of 1.
func New(content string) *Formatter {
	return &Formatter{
		lines:    splitLines(content),
		isV0:     !strings.Contains(content, "schema_version:"),
		maxFixes: 1000,
	}
}

func splitLines(content string) []string {
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

// String renders the formatter's current lines back to text, always
// terminated by a single trailing newline.
func (f *Formatter) String() string {
	return strings.Join(f.lines, "\n") + "\n"
}

// IsV0Recipe reports whether the document this formatter was built
// from is a v0 recipe.
func (f *Formatter) IsV0Recipe() bool { return f.isV0 }

// numTabSpaces counts a line's leading space run (only spaces count;
// v0/v1 recipes are indented with spaces, never tabs).
func numTabSpaces(s string) int {
	n := 0
	for _, c := range s {
		if c != ' ' {
			break
		}
		n++
	}
	return n
}

// FixExcessiveIndentation repeatedly corrects lines indented more than
// one level deeper than their parent, until a pass makes no further
// change or the bounded iteration count is exhausted (spec.md Sec. 9:
// the fixer gives up rather than looping forever on pathological
// input, leaving the last attempted text in place).
func (f *Formatter) FixExcessiveIndentation() {
	for i := 0; i < f.maxFixes; i++ {
		if !f.fixExcessiveIndentationPass() {
			return
		}
	}
}

func (f *Formatter) fixExcessiveIndentationPass() bool {
	oldLines := append([]string(nil), f.lines...)
	newLines := append([]string(nil), f.lines...)

	var parentStack []string
	prevCntr := -TabSpaces
	prevLine := ""

	for idx, line := range oldLines {
		clean := strings.TrimLeft(line, " ")
		if clean == "" {
			continue
		}

		curCntr := numTabSpaces(line)
		switch {
		case curCntr > prevCntr:
			parentStack = append(parentStack, prevLine)
		case curCntr < prevCntr:
			if len(parentStack) == 0 {
				return false
			}
			parentStack = parentStack[:len(parentStack)-1]
		}

		if len(parentStack) == 0 {
			return false
		}
		lastParent := parentStack[len(parentStack)-1]
		correctIndent := numTabSpaces(lastParent) + TabSpaces
		if curCntr > correctIndent {
			newLines[idx] = strings.Repeat(" ", correctIndent) + clean
		} else {
			newLines[idx] = line
		}

		prevCntr = curCntr
		prevLine = line
	}

	changed := false
	for i := range oldLines {
		if oldLines[i] != newLines[i] {
			changed = true
			break
		}
	}
	f.lines = newLines
	return changed
}

// fixCommentAndListIndentation aligns a standalone comment with the
// line that follows it (unless that line is blank); lines of a block of
// consecutive comments, the block's last line included, are not
// realigned. It also nudges misindented list bodies that directly
// follow a bare section header back to one tab level deeper.
func (f *Formatter) fixCommentAndListIndentation() {
	n := len(f.lines)
	if n < 2 {
		return
	}
	isCommentBlock := false
	badListIndent := -1

	for idx := 1; idx < n-1; idx++ {
		line := f.lines[idx]
		clean := strings.TrimLeft(line, " ")
		if clean == "" {
			continue
		}

		curCntr := numTabSpaces(line)
		nextLine := f.lines[idx+1]
		nextClean := strings.TrimLeft(nextLine, " ")
		nextCntr := numTabSpaces(nextLine)

		if strings.HasPrefix(clean, "#") {
			if strings.HasPrefix(nextClean, "#") {
				isCommentBlock = true
			}
			if curCntr != nextCntr && nextClean != "" && !isCommentBlock {
				f.lines[idx] = strings.Repeat(" ", nextCntr) + clean
			}
		} else {
			isCommentBlock = false
		}

		expectedListIndent := curCntr + TabSpaces
		switch {
		case sectionHeaderRe.MatchString(clean) && strings.HasPrefix(nextClean, "-") && nextCntr != expectedListIndent:
			badListIndent = expectedListIndent
		case badListIndent > 0 && (strings.HasPrefix(clean, "-") || (strings.HasPrefix(clean, "#") && strings.HasPrefix(nextClean, "-"))):
			f.lines[idx] = strings.Repeat(" ", badListIndent) + clean
		default:
			badListIndent = -1
		}
	}
}

// FmtText runs the formatter's default pass: comment and list
// indentation repair. FixExcessiveIndentation is opt-in since it is
// more aggressive and can rewrite deeply nested structure.
func (f *Formatter) FmtText() {
	f.fixCommentAndListIndentation()
}
