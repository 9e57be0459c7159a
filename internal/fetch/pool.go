package fetch

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// FetchResult is one resolved future from a worker-pool fetch run: the
// path it was built from, the fetcher itself, and — for corrected
// HTTP fetches — the URL actually used, if it differs from the
// fetcher's original URL (spec.md Sec. 4.9).
type FetchResult struct {
	Path       string
	Fetcher    Fetcher
	UpdatedURL string
	SourcePath string // the fetched source directory (Fetcher.SourceCodePath, resolved once Fetch succeeds)
}

// workerCount bounds the fetch pool to the CPU count or a small
// constant floor, per spec.md Sec. 5 ("bounded by CPU count or a small
// constant; the system is I/O-bound").
func workerCount() int {
	n := runtime.NumCPU()
	if n < 4 {
		return 4
	}
	if n > 16 {
		return 16
	}
	return n
}

// FetchAllArtifactsWithRetry runs fetchWithRetry for every fetcher
// concurrently across a bounded worker pool and returns one
// FetchResult per source path, in no particular order. Cancelling ctx
// propagates to every outstanding fetch (spec.md Sec. 5,
// "Cancellation and timeouts").
func FetchAllArtifactsWithRetry(ctx context.Context, fetchers map[string]Fetcher, retryInterval time.Duration, retries int) ([]FetchResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount())

	results := make([]FetchResult, len(fetchers))
	paths := make([]string, 0, len(fetchers))
	for path := range fetchers {
		paths = append(paths, path)
	}

	for i, path := range paths {
		i, path := i, path
		f := fetchers[path]
		g.Go(func() error {
			if err := fetchWithRetry(gctx, f, retryInterval, retries); err != nil {
				return err
			}
			sourcePath, err := f.SourceCodePath()
			if err != nil {
				return err
			}
			results[i] = FetchResult{Path: path, Fetcher: f, SourcePath: sourcePath}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// CloseAll releases every fetcher's scoped temp directory. Call once
// the caller is done consuming a FetchAllArtifactsWithRetry result
// (spec.md Sec. 4.9, "On scope exit, the temp directory is removed").
func CloseAll(results []FetchResult) {
	for _, r := range results {
		if r.Fetcher != nil {
			_ = r.Fetcher.Close()
		}
	}
}
