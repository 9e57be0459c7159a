package errmsg

import (
	"strings"
	"testing"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
)

func TestFormat_Nil(t *testing.T) {
	if got := Format(nil, nil); got != "" {
		t.Errorf("Format(nil) = %q, want empty string", got)
	}
}

func TestFormat_FetchError(t *testing.T) {
	err := &crmerrors.FetchError{Source: "/source/url", Message: "404 not found"}
	got := Format(err, &Context{RecipePath: "recipe.yaml"})
	if !strings.Contains(got, "recipe.yaml") {
		t.Errorf("expected recipe path in message, got: %s", got)
	}
	if !strings.Contains(got, "404 not found") {
		t.Errorf("expected original message preserved, got: %s", got)
	}
}

func TestFormat_APIError(t *testing.T) {
	err := &crmerrors.BaseAPIException{API: "pypi", Message: "rate limited"}
	got := Format(err, nil)
	if !strings.Contains(got, "pypi") {
		t.Errorf("expected API name in message, got: %s", got)
	}
}

func TestFormat_GenericError(t *testing.T) {
	err := &crmerrors.DuplicateKeyException{Key: "build", Line: 12}
	got := Format(err, nil)
	if !strings.Contains(got, "build") || !strings.Contains(got, "12") {
		t.Errorf("expected generic error passthrough, got: %s", got)
	}
}
