package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
)

// pypiSourceRe recognizes the PyPI source-distribution URL shape this
// package knows how to correct: .../packages/source/{letter}/{name}/{filename}.
var pypiSourceRe = regexp.MustCompile(`pypi\.(?:io|org)/packages/source/[A-Za-z0-9_.]/([^/]+)/([^/?#]+)$`)

// pypiRelease is the subset of PyPI's JSON API response this package
// needs (spec.md Sec. 6, "JSON responses must include
// releases[VERSION].filename and info.name").
type pypiRelease struct {
	Info struct {
		Name string `json:"name"`
	} `json:"info"`
	Releases map[string][]struct {
		Filename string `json:"filename"`
	} `json:"releases"`
}

// Corrector memoizes PyPI JSON API lookups across a batch of fetches
// so that repeated corrections for the same package don't re-query
// the API (spec.md Sec. 4.9's PyPI correction path).
type Corrector struct {
	client *http.Client
	cache  *lru.Cache[string, string] // package name -> canonical filename
}

// NewCorrector builds a Corrector with a bounded lookup cache.
func NewCorrector() (*Corrector, error) {
	cache, err := lru.New[string, string](128)
	if err != nil {
		return nil, err
	}
	return &Corrector{client: &http.Client{Timeout: 30 * time.Second}, cache: cache}, nil
}

// correctedURL queries PyPI for name's canonical source-distribution
// filename and builds the corrected download URL described in
// spec.md Sec. 4.9 and Sec. 6.
func (c *Corrector) correctedURL(ctx context.Context, name string) (string, error) {
	if filename, ok := c.cache.Get(name); ok {
		return pypiDownloadURL(name, filename), nil
	}

	apiURL := fmt.Sprintf("https://pypi.org/pypi/%s/json", name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", &crmerrors.BaseAPIException{API: "pypi", Message: "could not build request", Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &crmerrors.BaseAPIException{API: "pypi", Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &crmerrors.BaseAPIException{API: "pypi", Message: fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode)}
	}

	var release pypiRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", &crmerrors.BaseAPIException{API: "pypi", Message: "could not parse JSON response", Err: err}
	}

	filename, err := canonicalSdistFilename(release)
	if err != nil {
		return "", err
	}

	c.cache.Add(name, filename)
	return pypiDownloadURL(name, filename), nil
}

func canonicalSdistFilename(release pypiRelease) (string, error) {
	for _, files := range release.Releases {
		for _, f := range files {
			if strings.HasSuffix(f.Filename, ".tar.gz") || strings.HasSuffix(f.Filename, ".zip") {
				return f.Filename, nil
			}
		}
	}
	return "", &crmerrors.BaseAPIException{API: "pypi", Message: "no source distribution found"}
}

func pypiDownloadURL(name, filename string) string {
	return fmt.Sprintf("https://pypi.org/packages/source/%s/%s/%s", strings.ToLower(name[:1]), name, filename)
}

// pypiPackageName extracts the package name from a PyPI source URL,
// if url matches the recognized shape.
func pypiPackageName(url string) (string, bool) {
	m := pypiSourceRe.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FetchAllCorrectedArtifactsWithRetry is FetchAllArtifactsWithRetry
// plus the PyPI correction path: an HTTP fetcher whose URL matches a
// PyPI source pattern and which fails to fetch within half its retry
// budget is retried against the PyPI JSON API's canonical filename
// for its remaining budget (spec.md Sec. 4.9). Unlike
// FetchAllArtifactsWithRetry it fetches the sources one at a time,
// not through the worker pool.
func FetchAllCorrectedArtifactsWithRetry(ctx context.Context, fetchers map[string]Fetcher, retryInterval time.Duration, retries int) ([]FetchResult, error) {
	corrector, err := NewCorrector()
	if err != nil {
		return nil, err
	}

	halfBudget := retries / 2
	if halfBudget < 1 {
		halfBudget = 1
	}
	remaining := retries - halfBudget
	if remaining < 1 {
		remaining = 1
	}

	results := make([]FetchResult, 0, len(fetchers))
	for path, f := range fetchers {
		httpFetcher, ok := f.(*HTTPFetcher)
		if !ok {
			if err := fetchWithRetry(ctx, f, retryInterval, retries); err != nil {
				return nil, err
			}
			sourcePath, err := f.SourceCodePath()
			if err != nil {
				return nil, err
			}
			results = append(results, FetchResult{Path: path, Fetcher: f, SourcePath: sourcePath})
			continue
		}

		name, isPyPI := pypiPackageName(httpFetcher.URL)
		err := fetchWithRetry(ctx, httpFetcher, retryInterval, halfBudget)
		if err == nil {
			sourcePath, spErr := httpFetcher.SourceCodePath()
			if spErr != nil {
				return nil, spErr
			}
			results = append(results, FetchResult{Path: path, Fetcher: httpFetcher, SourcePath: sourcePath})
			continue
		}
		if !isPyPI {
			return nil, err
		}

		corrected, cErr := corrector.correctedURL(ctx, name)
		if cErr != nil {
			return nil, cErr
		}
		httpFetcher.URL = corrected
		if err := fetchWithRetry(ctx, httpFetcher, retryInterval, remaining); err != nil {
			return nil, err
		}
		sourcePath, spErr := httpFetcher.SourceCodePath()
		if spErr != nil {
			return nil, spErr
		}
		results = append(results, FetchResult{Path: path, Fetcher: httpFetcher, UpdatedURL: corrected, SourcePath: sourcePath})
	}

	return results, nil
}
