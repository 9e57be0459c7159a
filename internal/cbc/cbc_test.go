package cbc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conda/conda-recipe-manager/internal/selector"
)

func linuxCtx() selector.BuildContext {
	return selector.NewBuildContext("linux-64", nil)
}

func TestScalarAndListVariables(t *testing.T) {
	c, err := New("python:\n  - 3.9\n  - 3.10\nzlib: 1.2.13\n")
	require.NoError(t, err)

	vals, err := c.GetCBCVariableValues("python", linuxCtx(), nil, false)
	require.NoError(t, err)
	require.Equal(t, []string{"3.9", "3.10"}, vals)

	vals, err = c.GetCBCVariableValues("zlib", linuxCtx(), nil, false)
	require.NoError(t, err)
	require.Equal(t, []string{"1.2.13"}, vals)
}

func TestSelectorFilteredValues(t *testing.T) {
	text := "c_compiler:\n  - gcc       # [linux]\n  - clang     # [osx]\n"
	c, err := New(text)
	require.NoError(t, err)

	vals, err := c.GetCBCVariableValues("c_compiler", linuxCtx(), nil, false)
	require.NoError(t, err)
	require.Equal(t, []string{"gcc"}, vals)

	osxCtx := selector.NewBuildContext("osx-64", nil)
	vals, err = c.GetCBCVariableValues("c_compiler", osxCtx, nil, false)
	require.NoError(t, err)
	require.Equal(t, []string{"clang"}, vals)
}

func TestMissingVariableUsesDefault(t *testing.T) {
	c, err := New("python: 3.9\n")
	require.NoError(t, err)

	vals, err := c.GetCBCVariableValues("numpy", linuxCtx(), []string{"1.23"}, true)
	require.NoError(t, err)
	require.Equal(t, []string{"1.23"}, vals)

	_, err = c.GetCBCVariableValues("numpy", linuxCtx(), nil, false)
	require.Error(t, err)
}

func TestSpecialKeysAreSkipped(t *testing.T) {
	c, err := New("pin_run_as_build:\n  python:\n    min_pin: x.x\n    max_pin: x.x\npython: 3.9\n")
	require.NoError(t, err)
	require.False(t, c.ContainsVariable("pin_run_as_build"))
	require.True(t, c.ContainsVariable("python"))
}

func TestFlatZipKeys(t *testing.T) {
	c, err := New("python:\n  - 3.9\n  - 3.10\nnumpy:\n  - 1.22\n  - 1.23\nzip_keys:\n  - python\n  - numpy\n")
	require.NoError(t, err)

	groups, err := c.GetZipKeys(linuxCtx())
	require.NoError(t, err)
	require.Equal(t, [][]string{{"python", "numpy"}}, groups)
}

func TestNestedZipKeys(t *testing.T) {
	text := "python:\n  - 3.9\n  - 3.10\nnumpy:\n  - 1.22\n  - 1.23\nvc:\n  - 14\n  - 15\nzip_keys:\n  -\n    - python\n    - numpy\n  -\n    - vc\n    - vc2\nvc2:\n  - a\n  - b\n"
	c, err := New(text)
	require.NoError(t, err)

	groups, err := c.GetZipKeys(linuxCtx())
	require.NoError(t, err)
	require.Len(t, groups, 2, "a list-of-lists zip_keys value must produce one group per inner list")
	require.Equal(t, []string{"python", "numpy"}, groups[0])
	require.Equal(t, []string{"vc", "vc2"}, groups[1])
}

func TestZipKeysTooFewMembersFails(t *testing.T) {
	c, err := New("vc:\n  - 14\nzip_keys:\n  - vc\n")
	require.NoError(t, err)
	_, err = c.GetZipKeys(linuxCtx())
	require.Error(t, err)
}

func TestZipKeysDuplicateAcrossGroupsFails(t *testing.T) {
	err := validateZipKeys([][]string{{"python", "numpy"}, {"numpy", "vc"}})
	require.Error(t, err)
}

func TestGenerateCBCValuesMergesAndOverridesDefaults(t *testing.T) {
	base, err := New("python: 3.9\n")
	require.NoError(t, err)
	override, err := New("python:\n  - 3.10\n  - 3.11\n")
	require.NoError(t, err)

	values, _, err := GenerateCBCValues([]*CBC{base, override}, linuxCtx())
	require.NoError(t, err)
	require.Equal(t, []string{"3.10", "3.11"}, values["python"])
	require.Contains(t, values, "numpy", "the embedded default-variants baseline must still be present")
}

func TestGenerateVariantsCartesianProduct(t *testing.T) {
	c, err := New("python:\n  - 3.9\n  - 3.10\nzlib:\n  - 1.2.12\n  - 1.2.13\n")
	require.NoError(t, err)

	variants, err := GenerateVariants([]*CBC{c}, linuxCtx())
	require.NoError(t, err)

	names := map[string]bool{}
	for _, v := range variants {
		names[v["python"].(string)+"/"+v["zlib"].(string)] = true
		require.Equal(t, "linux-64", v["target_platform"])
	}
	require.Len(t, names, 4, "2 python values x 2 zlib values must yield 4 variants")
}

func TestGenerateVariantsZipsGroupedAxes(t *testing.T) {
	text := "python:\n  - 3.9\n  - 3.10\nnumpy:\n  - 1.22\n  - 1.23\nzip_keys:\n  - python\n  - numpy\n"
	c, err := New(text)
	require.NoError(t, err)

	variants, err := GenerateVariants([]*CBC{c}, linuxCtx())
	require.NoError(t, err)
	require.Len(t, variants, 2, "zipped axes must pair up rather than Cartesian-product against each other")

	for _, v := range variants {
		if v["python"] == "3.9" {
			require.Equal(t, "1.22", v["numpy"])
		} else {
			require.Equal(t, "1.23", v["numpy"])
		}
	}
}
