package fetch

import (
	"context"
	"time"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
)

// fetchWithRetry is spec.md Sec. 4.9's _fetch_archive: a linear-backoff
// retry loop around a single fetcher's Fetch. Retries are not
// parallelised — this loop owns the fetcher for its whole duration.
func fetchWithRetry(ctx context.Context, f Fetcher, retryInterval time.Duration, retries int) error {
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		err := f.Fetch(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == retries {
			break
		}

		select {
		case <-ctx.Done():
			return &crmerrors.FetchError{Source: f.Dir(), Message: "fetch cancelled", Err: ctx.Err()}
		case <-time.After(retryInterval * time.Duration(attempt)):
		}
	}
	return &crmerrors.FetchError{Source: f.Dir(), Message: "exhausted retry budget", Err: lastErr}
}
