package selector

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var platformAliases = map[string][2]string{
	"linux32": {"linux", "x86"},
	"linux64": {"linux", "x86_64"},
	"win32":   {"win", "x86"},
	"win64":   {"win", "x86_64"},
}

var architectures = map[string]bool{
	"x86": true, "x86_64": true, "aarch64": true, "arm64": true,
	"armv6l": true, "armv7l": true, "ppc64le": true, "s390x": true,
}

var operatingSystems = map[string]bool{
	"linux": true, "osx": true, "unix": true, "win": true,
}

var versionPredicateRe = regexp.MustCompile(`^(py|np)(>=|<=|==|!=|>|<)?(.*)$`)

// evalAtom evaluates one identifier (already operator-glued by the
// lexer) against a BuildContext. An empty platform in the context
// (ctx.OS == "") evaluates every platform/arch atom to false, per
// spec.md Sec. 4.2 ("Selector with empty platform => false").
func evalAtom(ctx BuildContext, ident string) (bool, error) {
	if alias, ok := platformAliases[ident]; ok {
		if ctx.OS == "" {
			return false, nil
		}
		return ctx.OS == alias[0] && ctx.Arch == alias[1], nil
	}

	if architectures[ident] {
		if ctx.Arch == "" {
			return false, nil
		}
		if ident == "arm64" {
			return ctx.Arch == "arm64" || ctx.Arch == "aarch64", nil
		}
		return ctx.Arch == ident, nil
	}

	if operatingSystems[ident] {
		if ctx.OS == "" {
			return false, nil
		}
		switch ident {
		case "unix":
			return ctx.OS == "linux" || ctx.OS == "osx", nil
		case "win":
			return ctx.OS == "win", nil
		default:
			return ctx.OS == ident, nil
		}
	}

	if m := versionPredicateRe.FindStringSubmatch(ident); m != nil && m[3] != "" {
		return evalVersionPredicate(ctx, m[1], m[2], m[3])
	}

	if ident == "py2k" || ident == "py3k" {
		actual, ok := ctx.Variables["python"]
		if !ok {
			return false, nil
		}
		return strings.SplitN(actual, ".", 2)[0] == ident[2:3], nil
	}

	// Free-form identifier: build-environment variable presence check.
	v, ok := ctx.selectorView()[ident]
	if !ok {
		return false, nil
	}
	return truthy(v), nil
}

func evalVersionPredicate(ctx BuildContext, prefix, op, version string) (bool, error) {
	varName := "python"
	if prefix == "np" {
		varName = "numpy"
	}

	actual, ok := ctx.Variables[varName]
	if !ok {
		return false, nil
	}

	if op == "" {
		// Bare "py36" style defaults to "==".
		op = "=="
	}
	// Major+minor may be glued with no dot ("36"), with or without an
	// operator.
	version = expandGluedVersion(version)

	return Match(actual, op+version)
}

// expandGluedVersion turns "36" into "3.6" (single-digit major) and "310"
// into "3.10" the way conda's py36/py310 selectors are historically
// written: first digit is the major version, the rest is the minor.
func expandGluedVersion(v string) string {
	if strings.Contains(v, ".") || len(v) < 2 {
		return v
	}
	return v[:1] + "." + v[1:]
}

// Match implements the template sandbox's match(variable_value, spec)
// builtin (spec.md Sec. 4.4): spec is an operator ("==", ">=", ...)
// followed by a version. Versions are zero-padded to three components
// before comparison since conda/python versions are rarely full semver.
func Match(value, spec string) (bool, error) {
	op, verStr := splitSpec(spec)
	v, err := normalizeVersion(value)
	if err != nil {
		return false, fmt.Errorf("match(): invalid value %q: %w", value, err)
	}
	semverOp := op
	if op == "==" {
		semverOp = "="
	}
	constraint, err := semver.NewConstraint(semverOp + " " + mustNormalize(verStr))
	if err != nil {
		return false, fmt.Errorf("match(): invalid spec %q: %w", spec, err)
	}
	return constraint.Check(v), nil
}

func splitSpec(spec string) (op, version string) {
	for _, candidate := range []string{">=", "<=", "==", "!=", ">", "<"} {
		if strings.HasPrefix(spec, candidate) {
			return candidate, strings.TrimPrefix(spec, candidate)
		}
	}
	return "==", spec
}

func normalizeVersion(v string) (*semver.Version, error) {
	return semver.NewVersion(mustNormalize(v))
}

// ValidateVersion reports whether v parses as a dotted numeric version
// once zero-padded to three components, the same normalization Match
// applies. Callers that seed a BuildContext from CBC/user-supplied
// python/numpy values use this to reject malformed versions up front.
func ValidateVersion(v string) error {
	_, err := normalizeVersion(v)
	return err
}

func mustNormalize(v string) string {
	parts := strings.Split(v, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return strings.Join(parts[:3], ".")
}
