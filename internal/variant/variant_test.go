package variant

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conda/conda-recipe-manager/internal/cbc"
	"github.com/conda/conda-recipe-manager/internal/parsetree"
	"github.com/conda/conda-recipe-manager/internal/selector"
)

func linuxCtx() selector.BuildContext {
	return selector.NewBuildContext("linux-64", map[string]string{"python": "3.10"})
}

func TestFiltersSelectorsAndStripsSurvivors(t *testing.T) {
	text := "requirements:\n  host:\n    - python           # [linux]\n    - python-win-only  # [win]\n"
	v, err := New(text, linuxCtx())
	require.NoError(t, err)

	require.True(t, v.ContainsValue(parsetree.ParsePath("/requirements/host/0")))
	host, err := v.GetValue(parsetree.ParsePath("/requirements/host"), nil, false, false)
	require.NoError(t, err)
	require.Equal(t, []any{"python"}, host, "the win-only entry must be dropped and the surviving selector stripped")
}

func TestEvaluatesFullExpressionToPrimitive(t *testing.T) {
	text := "schema_version: 1\ncontext:\n  build_num: 3\nbuild:\n  number: ${{ build_num }}\n"
	v, err := New(text, linuxCtx())
	require.NoError(t, err)

	val, err := v.GetValue(parsetree.ParsePath("/build/number"), nil, false, false)
	require.NoError(t, err)
	require.Equal(t, int64(3), val, "a value that is exactly one expression must keep its native type")
}

func TestEvaluatesPartialExpressionAsString(t *testing.T) {
	text := "schema_version: 1\ncontext:\n  name: foo\npackage:\n  name: lib${{ name }}\n"
	v, err := New(text, linuxCtx())
	require.NoError(t, err)

	val, err := v.GetValue(parsetree.ParsePath("/package/name"), nil, false, false)
	require.NoError(t, err)
	require.Equal(t, "libfoo", val)
}

func TestVariableTableClearedAfterEvaluation(t *testing.T) {
	text := "schema_version: 1\ncontext:\n  name: foo\npackage:\n  name: ${{ name }}\n"
	v, err := New(text, linuxCtx())
	require.NoError(t, err)
	require.False(t, v.ContainsVariable("name"))
}

func TestRejectsMalformedBuildContextVersion(t *testing.T) {
	ctx := selector.NewBuildContext("linux-64", map[string]string{"python": "not-a-version"})
	_, err := New("package:\n  name: foo\n", ctx)
	require.Error(t, err)
}

func TestGenerateRecipeVariants(t *testing.T) {
	c, err := cbc.New("python:\n  - 3.9\n  - 3.10\n")
	require.NoError(t, err)

	text := "schema_version: 1\ncontext:\n  name: foo\npackage:\n  name: ${{ name }}\n"
	variants, err := GenerateRecipeVariants(text, []*cbc.CBC{c}, "linux-64")
	require.NoError(t, err)
	require.Len(t, variants, 2)
	for _, rv := range variants {
		val, err := rv.GetValue(parsetree.ParsePath("/package/name"), nil, false, false)
		require.NoError(t, err)
		require.Equal(t, "foo", val)
	}
}
