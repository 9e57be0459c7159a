// Package errmsg provides enhanced error message formatting with
// actionable suggestions, layered on top of the typed errors in
// internal/crmerrors.
package errmsg

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
)

// Context provides additional context for error formatting.
type Context struct {
	RecipePath string // the recipe file being operated on, for suggestions
}

// Format returns a formatted error message with possible causes and
// suggestions. ctx is optional - pass nil for generic formatting.
func Format(err error, ctx *Context) string {
	if err == nil {
		return ""
	}

	var fetchErr *crmerrors.FetchError
	if errors.As(err, &fetchErr) {
		return formatFetchError(fetchErr, ctx)
	}

	var apiErr *crmerrors.BaseAPIException
	if errors.As(err, &apiErr) {
		return formatAPIError(apiErr, ctx)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Sprintf("%s (network error; check your internet connection and try again)", err.Error())
	}

	var selErr interface{ Error() string }
	if strings.Contains(err.Error(), "selector syntax error") {
		selErr = err
		return fmt.Sprintf("%s (fix the bracketed selector expression and retry)", selErr.Error())
	}

	return err.Error()
}

func formatFetchError(e *crmerrors.FetchError, ctx *Context) string {
	suggestion := "check the source URL/git reference in the recipe and retry"
	if ctx != nil && ctx.RecipePath != "" {
		return fmt.Sprintf("%s (%s; recipe: %s)", e.Error(), suggestion, ctx.RecipePath)
	}
	return fmt.Sprintf("%s (%s)", e.Error(), suggestion)
}

func formatAPIError(e *crmerrors.BaseAPIException, ctx *Context) string {
	return fmt.Sprintf("%s (the %s API may be rate-limiting or unavailable; wait and retry)", e.Error(), e.API)
}
