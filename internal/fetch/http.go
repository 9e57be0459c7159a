package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
)

// maxArchiveBytes bounds a single download, mirroring the teacher's
// io.LimitReader guard in internal/llm/archive.go.
const maxArchiveBytes = 1 << 30 // 1GiB

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// HTTPFetcher owns a URL, a scoped temp directory and, after Fetch, an
// extracted archive plus its SHA-256 (spec.md Sec. 4.9).
type HTTPFetcher struct {
	scopedDir
	URL        string
	SourcePath string // the /source path this fetcher was built from

	client *http.Client

	fetched  bool
	ExtractDir string
	SHA256   string
}

// NewHTTPFetcher reserves a scoped temp directory for url.
func NewHTTPFetcher(url, sourcePath string) (*HTTPFetcher, error) {
	sd, err := newScopedDir("crm-fetch-http-")
	if err != nil {
		return nil, err
	}
	return &HTTPFetcher{scopedDir: sd, URL: url, SourcePath: sourcePath, client: newHTTPClient()}, nil
}

func (f *HTTPFetcher) Fetched() bool { return f.fetched }

// SourceCodePath returns the extracted archive's directory, or the
// scoped temp directory itself if the URL named an unrecognized
// archive format. It fails with FetchRequiredError until Fetch has
// succeeded once.
func (f *HTTPFetcher) SourceCodePath() (string, error) {
	if !f.fetched {
		return "", &crmerrors.FetchRequiredError{Path: f.SourcePath}
	}
	if f.ExtractDir != "" {
		return f.ExtractDir, nil
	}
	return f.Dir(), nil
}

// Fetch downloads URL into the fetcher's scoped directory, computes
// its SHA-256 and, if the trailing suffix names a known archive
// format, extracts it.
func (f *HTTPFetcher) Fetch(ctx context.Context) error {
	archivePath := filepath.Join(f.Dir(), "download")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return &crmerrors.FetchError{Source: f.URL, Message: "could not build request", Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return &crmerrors.FetchError{Source: f.URL, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &crmerrors.FetchError{Source: f.URL, Message: fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode)}
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return &crmerrors.FetchError{Source: f.URL, Message: "could not create download file", Err: err}
	}

	hasher := sha256.New()
	limited := io.LimitReader(resp.Body, maxArchiveBytes)
	_, copyErr := io.Copy(io.MultiWriter(out, hasher), limited)
	closeErr := out.Close()
	if copyErr != nil {
		return &crmerrors.FetchError{Source: f.URL, Message: "download interrupted", Err: copyErr}
	}
	if closeErr != nil {
		return &crmerrors.FetchError{Source: f.URL, Message: "could not finalize download", Err: closeErr}
	}

	f.SHA256 = hex.EncodeToString(hasher.Sum(nil))

	if format := detectArchiveFormat(f.URL); format != "unknown" {
		extractDir := filepath.Join(f.Dir(), "extracted")
		if err := os.MkdirAll(extractDir, 0o755); err != nil {
			return &crmerrors.FetchError{Source: f.URL, Message: "could not create extraction directory", Err: err}
		}
		if err := extractArchive(archivePath, format, extractDir); err != nil {
			return err
		}
		f.ExtractDir = extractDir
	}

	f.fetched = true
	return nil
}
