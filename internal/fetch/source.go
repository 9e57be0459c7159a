package fetch

import (
	"fmt"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
	"github.com/conda/conda-recipe-manager/internal/parsetree"
	"github.com/conda/conda-recipe-manager/internal/reader"
)

// FromRecipe reads /source from r, normalizes a single-source mapping
// into a one-element list, and builds one Fetcher per element
// (spec.md Sec. 4.9's from_recipe). The reader is only read from,
// never mutated, so it is safe to share across the fetchers this
// returns (spec.md Sec. 5, "the read-only recipe reader passed to
// them").
func FromRecipe(r *reader.Reader, ignoreUnsupported bool) (map[string]Fetcher, error) {
	if !r.ContainsValue(parsetree.ParsePath("/source")) {
		return map[string]Fetcher{}, nil
	}

	raw, err := r.GetValue(parsetree.ParsePath("/source"), nil, false, true)
	if err != nil {
		return nil, err
	}

	var entries []map[string]any
	switch v := raw.(type) {
	case map[string]any:
		entries = []map[string]any{v}
	case []any:
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			entries = append(entries, m)
		}
	default:
		return nil, &crmerrors.FetchUnsupportedError{Path: "/source"}
	}

	fetchers := make(map[string]Fetcher, len(entries))
	for i, entry := range entries {
		path := "/source"
		if len(entries) > 1 {
			path = fmt.Sprintf("/source/%d", i)
		}

		f, err := fetcherFromEntry(entry, path)
		if err != nil {
			return nil, err
		}
		if f == nil {
			if ignoreUnsupported {
				continue
			}
			return nil, &crmerrors.FetchUnsupportedError{Path: path}
		}
		fetchers[path] = f
	}
	return fetchers, nil
}

func fetcherFromEntry(entry map[string]any, path string) (Fetcher, error) {
	if url, ok := stringField(entry, "url"); ok {
		return NewHTTPFetcher(url, path)
	}

	// v1: a "git" sub-mapping carrying url/branch/tag/rev.
	if gitVal, ok := entry["git"]; ok {
		gitMap, ok := gitVal.(map[string]any)
		if !ok {
			return nil, &crmerrors.FetchUnsupportedError{Path: path}
		}
		url, _ := stringField(gitMap, "url")
		branch, _ := stringField(gitMap, "branch")
		tag, _ := stringField(gitMap, "tag")
		rev, _ := stringField(gitMap, "rev")
		return NewGitFetcher(url, branch, tag, rev, path)
	}

	// v0: a flat git_url plus git_branch/git_tag/git_rev keys.
	if url, ok := stringField(entry, "git_url"); ok {
		branch, _ := stringField(entry, "git_branch")
		tag, _ := stringField(entry, "git_tag")
		rev, _ := stringField(entry, "git_rev")
		return NewGitFetcher(url, branch, tag, rev, path)
	}

	return nil, nil
}

func stringField(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
