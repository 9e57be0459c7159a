package main

import "os"

// Exit codes for the crm CLI (spec.md Sec. 6's bump-recipe table).
// convert reuses the same space, adding ExitRenderWarnings for its own
// "conversion completed but logged warnings" case — a value the
// retrieved original_source pack references by name
// (test_convert.py's RENDER_WARNINGS) but never pins a number for, so
// this picks the next free slot after the documented 0-6 range.
const (
	ExitSuccess          = 0
	ExitClickUsage       = 1
	ExitIO               = 2
	ExitParse            = 3
	ExitPatch            = 4
	ExitHTTP             = 5
	ExitIllegalOperation = 6
	ExitRenderWarnings   = 7
)

func exitWithCode(code int) {
	os.Exit(code)
}
