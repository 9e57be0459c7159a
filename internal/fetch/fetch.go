// Package fetch implements the recipe manager's artifact fetcher
// (C10, spec.md Sec. 4.9): HTTP and Git fetchers, each scoped to its
// own temp directory, plus the retrying worker pool and PyPI URL
// correction path that drive them from a parsed recipe.
//
// Grounded on the teacher's internal/llm/archive.go (HTTP download +
// archive extraction idiom) and internal/version/resolver.go (the
// github.com/google/go-github/v57 + golang.org/x/oauth2 client
// construction used here for Git-fetcher tag listing), and on
// internal/actions/extract.go for the tar.gz/tar.xz/tar.zst/tar.lz/zip
// dispatch built on klauspost/compress, ulikunitz/xz and
// sorairolake/lzip-go.
package fetch

import (
	"context"
	"os"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
)

// Fetcher is the lifecycle shared by the HTTP and Git fetcher shapes
// (spec.md Sec. 4.9): construction reserves a temp directory, Fetch
// populates it, Fetched reports success, and Close removes it.
type Fetcher interface {
	Fetch(ctx context.Context) error
	Fetched() bool
	Close() error
	Dir() string

	// SourceCodePath returns the directory containing the fetched
	// source code, failing with FetchRequiredError if Fetch has not
	// yet succeeded (grounded on
	// original_source/conda_recipe_manager/fetcher/base_artifact_fetcher.py's
	// _fetch_guard/get_path_to_source_code pair).
	SourceCodePath() (string, error)
}

// scopedDir is the temp-directory lifecycle both fetcher shapes embed:
// created on construction, owned exclusively by one fetcher, removed
// on scope exit even after a failed fetch (spec.md Sec. 5,
// "Shared-resource discipline").
type scopedDir struct {
	dir string
}

func newScopedDir(prefix string) (scopedDir, error) {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return scopedDir{}, &crmerrors.FetchError{Source: prefix, Message: "could not create scoped temp directory", Err: err}
	}
	return scopedDir{dir: dir}, nil
}

func (s scopedDir) Dir() string { return s.dir }

func (s scopedDir) Close() error {
	if s.dir == "" {
		return nil
	}
	return os.RemoveAll(s.dir)
}
