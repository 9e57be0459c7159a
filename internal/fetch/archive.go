package fetch

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
	"github.com/klauspost/compress/zstd"
	lzip "github.com/sorairolake/lzip-go"
	"github.com/ulikunitz/xz"
)

// detectArchiveFormat dispatches on the URL's trailing suffix, the way
// the teacher's internal/actions.ExtractAction.detectFormat does for a
// filename.
func detectArchiveFormat(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return "tar.gz"
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return "tar.xz"
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return "tar.zst"
	case strings.HasSuffix(lower, ".tar.lz"), strings.HasSuffix(lower, ".tlz"):
		return "tar.lz"
	case strings.HasSuffix(lower, ".tar"):
		return "tar"
	case strings.HasSuffix(lower, ".zip"):
		return "zip"
	default:
		return "unknown"
	}
}

// isPathWithinDirectory guards against path-traversal entries in a
// downloaded archive.
func isPathWithinDirectory(targetPath, basePath string) bool {
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return false
	}
	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(os.PathSeparator))
}

// extractArchive unpacks archivePath (whose format was already
// resolved by detectArchiveFormat) into destDir.
func extractArchive(archivePath, format, destDir string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return &crmerrors.FetchError{Source: archivePath, Message: "could not open downloaded archive", Err: err}
	}
	defer file.Close()

	switch format {
	case "tar.gz":
		gzr, err := gzip.NewReader(file)
		if err != nil {
			return &crmerrors.FetchError{Source: archivePath, Message: "not a valid gzip stream", Err: err}
		}
		defer gzr.Close()
		return extractTarReader(tar.NewReader(gzr), destDir, archivePath)
	case "tar.xz":
		xzr, err := xz.NewReader(file)
		if err != nil {
			return &crmerrors.FetchError{Source: archivePath, Message: "not a valid xz stream", Err: err}
		}
		return extractTarReader(tar.NewReader(xzr), destDir, archivePath)
	case "tar.zst":
		zr, err := zstd.NewReader(file)
		if err != nil {
			return &crmerrors.FetchError{Source: archivePath, Message: "not a valid zstd stream", Err: err}
		}
		defer zr.Close()
		return extractTarReader(tar.NewReader(zr), destDir, archivePath)
	case "tar.lz":
		lr, err := lzip.NewReader(file)
		if err != nil {
			return &crmerrors.FetchError{Source: archivePath, Message: "not a valid lzip stream", Err: err}
		}
		return extractTarReader(tar.NewReader(lr), destDir, archivePath)
	case "tar":
		return extractTarReader(tar.NewReader(file), destDir, archivePath)
	case "zip":
		return extractZip(archivePath, destDir)
	default:
		return &crmerrors.FetchError{Source: archivePath, Message: fmt.Sprintf("unsupported archive format %q", format)}
	}
}

func extractTarReader(tr *tar.Reader, destDir, source string) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &crmerrors.FetchError{Source: source, Message: "corrupt tar stream", Err: err}
		}

		target := filepath.Join(destDir, hdr.Name)
		if !isPathWithinDirectory(target, destDir) {
			return &crmerrors.FetchError{Source: source, Message: fmt.Sprintf("archive entry escapes destination: %s", hdr.Name)}
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return &crmerrors.FetchError{Source: source, Message: "could not create directory", Err: err}
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return &crmerrors.FetchError{Source: source, Message: "could not create directory", Err: err}
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode&0o777))
			if err != nil {
				return &crmerrors.FetchError{Source: source, Message: "could not create file", Err: err}
			}
			_, copyErr := io.Copy(out, tr)
			closeErr := out.Close()
			if copyErr != nil {
				return &crmerrors.FetchError{Source: source, Message: "could not write file", Err: copyErr}
			}
			if closeErr != nil {
				return &crmerrors.FetchError{Source: source, Message: "could not close file", Err: closeErr}
			}
		}
	}
}

func extractZip(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return &crmerrors.FetchError{Source: archivePath, Message: "not a valid zip archive", Err: err}
	}
	defer zr.Close()

	for _, f := range zr.File {
		target := filepath.Join(destDir, f.Name)
		if !isPathWithinDirectory(target, destDir) {
			return &crmerrors.FetchError{Source: archivePath, Message: fmt.Sprintf("archive entry escapes destination: %s", f.Name)}
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return &crmerrors.FetchError{Source: archivePath, Message: "could not create directory", Err: err}
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return &crmerrors.FetchError{Source: archivePath, Message: "could not create directory", Err: err}
		}
		rc, err := f.Open()
		if err != nil {
			return &crmerrors.FetchError{Source: archivePath, Message: "could not read zip entry", Err: err}
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return &crmerrors.FetchError{Source: archivePath, Message: "could not create file", Err: err}
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		closeErr := out.Close()
		if copyErr != nil {
			return &crmerrors.FetchError{Source: archivePath, Message: "could not write file", Err: copyErr}
		}
		if closeErr != nil {
			return &crmerrors.FetchError{Source: archivePath, Message: "could not close file", Err: closeErr}
		}
	}
	return nil
}
