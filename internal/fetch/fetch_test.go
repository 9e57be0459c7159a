package fetch

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conda/conda-recipe-manager/internal/reader"
)

func TestDetectArchiveFormat(t *testing.T) {
	require.Equal(t, "tar.gz", detectArchiveFormat("https://example.com/foo-1.0.tar.gz"))
	require.Equal(t, "zip", detectArchiveFormat("https://example.com/foo-1.0.zip"))
	require.Equal(t, "unknown", detectArchiveFormat("https://example.com/foo-1.0.exe"))
}

func buildTestTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Size: int64(len(content)), Mode: 0o644}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func TestHTTPFetcherDownloadsExtractsAndHashes(t *testing.T) {
	archive := buildTestTarGz(t, map[string]string{"pkg/README.md": "hello"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.URL+"/pkg-1.0.tar.gz", "/source")
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.Fetch(context.Background()))
	require.True(t, f.Fetched())
	require.NotEmpty(t, f.SHA256)

	contents, err := os.ReadFile(filepath.Join(f.ExtractDir, "pkg", "README.md"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(contents))
}

func TestHTTPFetcherFailsOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.URL+"/missing.tar.gz", "/source")
	require.NoError(t, err)
	defer f.Close()

	err = f.Fetch(context.Background())
	require.Error(t, err)
	require.False(t, f.Fetched())
}

func TestSourceCodePathRequiresFetch(t *testing.T) {
	f, err := NewHTTPFetcher("https://example.com/foo-1.0.tar.gz", "/source")
	require.NoError(t, err)
	defer f.Close()

	_, err = f.SourceCodePath()
	require.Error(t, err)

	archive := buildTestTarGz(t, map[string]string{"pkg/README.md": "hello"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()
	f.URL = srv.URL + "/pkg-1.0.tar.gz"

	require.NoError(t, f.Fetch(context.Background()))
	path, err := f.SourceCodePath()
	require.NoError(t, err)
	require.Equal(t, f.ExtractDir, path)
}

func TestFetchWithRetryExhaustsBudget(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.URL+"/flaky.tar.gz", "/source")
	require.NoError(t, err)
	defer f.Close()

	err = fetchWithRetry(context.Background(), f, time.Millisecond, 3)
	require.Error(t, err)
	require.Equal(t, 3, attempts)
}

func TestFromRecipeBuildsHTTPFetcher(t *testing.T) {
	text := "package:\n  name: foo\n  version: 1.0\n" +
		"source:\n  url: https://example.com/foo-1.0.tar.gz\n  sha256: abc123\n"
	r, err := reader.New(text, false)
	require.NoError(t, err)

	fetchers, err := FromRecipe(r, false)
	require.NoError(t, err)
	require.Len(t, fetchers, 1)

	f, ok := fetchers["/source"].(*HTTPFetcher)
	require.True(t, ok)
	require.Equal(t, "https://example.com/foo-1.0.tar.gz", f.URL)
	require.NoError(t, f.Close())
}

func TestFromRecipeBuildsGitFetcherFromV0Keys(t *testing.T) {
	text := "package:\n  name: foo\n  version: 1.0\n" +
		"source:\n  git_url: https://example.com/foo.git\n  git_rev: v1.0\n"
	r, err := reader.New(text, false)
	require.NoError(t, err)

	fetchers, err := FromRecipe(r, false)
	require.NoError(t, err)
	require.Len(t, fetchers, 1)

	f, ok := fetchers["/source"].(*GitFetcher)
	require.True(t, ok)
	require.Equal(t, "https://example.com/foo.git", f.URL)
	require.Equal(t, "v1.0", f.Rev)
	require.NoError(t, f.Close())
}

func TestFromRecipeUnsupportedSourceFailsWithoutIgnoreFlag(t *testing.T) {
	text := "package:\n  name: foo\n  version: 1.0\n" +
		"source:\n  path: ../local\n"
	r, err := reader.New(text, false)
	require.NoError(t, err)

	_, err = FromRecipe(r, false)
	require.Error(t, err)

	fetchers, err := FromRecipe(r, true)
	require.NoError(t, err)
	require.Empty(t, fetchers)
}

func TestPyPIPackageNameExtraction(t *testing.T) {
	name, ok := pypiPackageName("https://pypi.io/packages/source/f/foo/foo-1.0.tar.gz")
	require.True(t, ok)
	require.Equal(t, "foo", name)

	_, ok = pypiPackageName("https://example.com/foo-1.0.tar.gz")
	require.False(t, ok)
}
