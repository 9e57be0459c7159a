// Package selector parses and evaluates conda's "[linux and not py2k]"
// style bracketed boolean selector expressions against a build
// environment query (C2 in the recipe manager's component design).
package selector

import "strconv"

// BuildContext describes the environment a recipe is being evaluated
// against: a platform string (e.g. "linux-64"), its derived OS/Arch, and
// a table of named build variables (python/numpy versions and the like).
type BuildContext struct {
	Platform  string
	OS        string
	Arch      string
	Variables map[string]string
}

// NewBuildContext builds a BuildContext from a platform string of the
// conda form "<os>-<arch>" (e.g. "linux-64", "osx-arm64", "win-64").
func NewBuildContext(platform string, variables map[string]string) BuildContext {
	ctx := BuildContext{Platform: platform, Variables: variables}
	ctx.OS, ctx.Arch = splitPlatform(platform)
	return ctx
}

func splitPlatform(platform string) (os, arch string) {
	switch platform {
	case "linux-32":
		return "linux", "x86"
	case "linux-64":
		return "linux", "x86_64"
	case "linux-aarch64":
		return "linux", "aarch64"
	case "linux-armv6l":
		return "linux", "armv6l"
	case "linux-armv7l":
		return "linux", "armv7l"
	case "linux-ppc64le":
		return "linux", "ppc64le"
	case "linux-s390x":
		return "linux", "s390x"
	case "osx-64":
		return "osx", "x86_64"
	case "osx-arm64":
		return "osx", "arm64"
	case "win-32":
		return "win", "x86"
	case "win-64":
		return "win", "x86_64"
	default:
		return "", ""
	}
}

// selectorView coerces string-encoded numbers and booleans to their
// native Go type, the way conda-build's selector namespace does, so
// that a free-form variable like "True" or "3" compares sensibly.
func (c BuildContext) selectorView() map[string]any {
	view := make(map[string]any, len(c.Variables))
	for k, v := range c.Variables {
		view[k] = coerce(v)
	}
	return view
}

func coerce(s string) any {
	switch s {
	case "True", "true":
		return true
	case "False", "false":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// truthy reports whether a variable's coerced value counts as "present"
// for a free-form identifier selector like "# [cuda_compiler_version]" referring to a
// plain build-environment flag rather than a platform/version predicate.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != "" && t != "0"
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return v != nil
	}
}
