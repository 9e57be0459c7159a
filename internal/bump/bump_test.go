package bump

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conda/conda-recipe-manager/internal/fetch"
	"github.com/conda/conda-recipe-manager/internal/parsetree"
)

func writeTempRecipe(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestUpdateBuildNumIncrementsExisting(t *testing.T) {
	path := writeTempRecipe(t, "package:\n  name: foo\n  version: 1.0\n"+
		"build:\n  number: 3\n")
	vb, err := New(path, Options{})
	require.NoError(t, err)

	require.NoError(t, vb.UpdateBuildNum(nil))

	val, err := vb.p.GetValue(parsetree.ParsePath("/build/number"), nil, false, false)
	require.NoError(t, err)
	require.EqualValues(t, 4, val)
}

func TestUpdateBuildNumRejectsNegative(t *testing.T) {
	path := writeTempRecipe(t, "package:\n  name: foo\n  version: 1.0\n"+
		"build:\n  number: 0\n")
	vb, err := New(path, Options{CommitOnFailure: true})
	require.NoError(t, err)

	n := -1
	err = vb.UpdateBuildNum(&n)
	require.Error(t, err)
	require.Equal(t, 1, vb.WriteCount())
}

func TestUpdateBuildNumRequiresBuildSection(t *testing.T) {
	path := writeTempRecipe(t, "package:\n  name: foo\n  version: 1.0\n")
	vb, err := New(path, Options{})
	require.NoError(t, err)

	err = vb.UpdateBuildNum(nil)
	require.Error(t, err)
}

func TestUpdateVersionRejectsUnchangedValue(t *testing.T) {
	path := writeTempRecipe(t, "package:\n  name: foo\n  version: 1.0\n")
	vb, err := New(path, Options{})
	require.NoError(t, err)

	err = vb.UpdateVersion("1.0")
	require.Error(t, err)
}

func TestUpdateVersionPatchesDirectlyWithoutVariable(t *testing.T) {
	path := writeTempRecipe(t, "package:\n  name: foo\n  version: 1.0\n")
	vb, err := New(path, Options{})
	require.NoError(t, err)

	require.NoError(t, vb.UpdateVersion("2.0"))

	val, err := vb.p.GetValue(parsetree.ParsePath("/package/version"), nil, false, false)
	require.NoError(t, err)
	require.Equal(t, "2.0", val)
}

func TestUpdateVersionPrefersTemplateVariable(t *testing.T) {
	path := writeTempRecipe(t, "schema_version: 1\n"+
		"context:\n  version: \"1.0\"\n"+
		"package:\n  name: foo\n  version: ${{ version }}\n")
	vb, err := New(path, Options{})
	require.NoError(t, err)

	require.NoError(t, vb.UpdateVersion("2.0"))

	val, err := vb.p.GetVariable("version", parsetree.Value{}, false)
	require.NoError(t, err)
	require.Equal(t, "2.0", val.AsString())
}

func TestCommitChangesDryRunDoesNotTouchDisk(t *testing.T) {
	path := writeTempRecipe(t, "package:\n  name: foo\n  version: 1.0\n")
	original, err := os.ReadFile(path)
	require.NoError(t, err)

	vb, err := New(path, Options{DryRun: true})
	require.NoError(t, err)
	require.NoError(t, vb.UpdateVersion("2.0"))
	require.NoError(t, vb.CommitChanges())

	afterDryRun, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, string(original), string(afterDryRun))
	require.Equal(t, 1, vb.WriteCount())
}

func TestCommitChangesWritesFileWhenNotDryRun(t *testing.T) {
	path := writeTempRecipe(t, "package:\n  name: foo\n  version: 1.0\n")

	vb, err := New(path, Options{})
	require.NoError(t, err)
	require.NoError(t, vb.UpdateVersion("2.0"))
	require.NoError(t, vb.CommitChanges())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "2.0")
	require.Equal(t, 1, vb.WriteCount())
}

func TestUpdateSHA256PatchesFetcherDigestDirectly(t *testing.T) {
	path := writeTempRecipe(t, "package:\n  name: foo\n  version: 1.0\n"+
		"source:\n  url: https://example.com/foo-1.0.tar.gz\n  sha256: old\n")
	vb, err := New(path, Options{})
	require.NoError(t, err)

	f, err := fetch.NewHTTPFetcher("https://example.com/foo-1.0.tar.gz", "/source")
	require.NoError(t, err)
	defer f.Close()
	f.SHA256 = "deadbeef"

	require.NoError(t, vb.UpdateSHA256([]fetch.FetchResult{{Path: "/source", Fetcher: f}}))

	val, err := vb.p.GetValue(parsetree.ParsePath("/source/sha256"), nil, false, false)
	require.NoError(t, err)
	require.Equal(t, "deadbeef", val)
}

func TestUpdateHTTPURLsPatchesCorrectedURL(t *testing.T) {
	path := writeTempRecipe(t, "package:\n  name: foo\n  version: 1.0\n"+
		"source:\n  url: https://pypi.io/packages/source/f/foo/foo-0.9.tar.gz\n  sha256: abc\n")
	vb, err := New(path, Options{})
	require.NoError(t, err)

	f, err := fetch.NewHTTPFetcher("https://pypi.org/packages/source/f/foo/foo-0.9.tar.gz", "/source")
	require.NoError(t, err)
	defer f.Close()

	corrected := "https://pypi.org/packages/source/f/foo/foo-1.0.tar.gz"
	require.NoError(t, vb.UpdateHTTPURLs([]fetch.FetchResult{{Path: "/source", Fetcher: f, UpdatedURL: corrected}}))

	val, err := vb.p.GetValue(parsetree.ParsePath("/source/url"), nil, false, false)
	require.NoError(t, err)
	require.Equal(t, corrected, val)
}

func TestMigratePyPIDomainRewritesDeprecatedHost(t *testing.T) {
	path := writeTempRecipe(t, "package:\n  name: foo\n  version: 1.0\n"+
		"source:\n  url: https://pypi.io/packages/source/f/foo/foo-1.0.tar.gz\n  sha256: abc\n")
	vb, err := New(path, Options{})
	require.NoError(t, err)

	val, err := vb.p.GetValue(parsetree.ParsePath("/source/url"), nil, false, false)
	require.NoError(t, err)
	require.Equal(t, "https://pypi.org/packages/source/f/foo/foo-1.0.tar.gz", val)
}
