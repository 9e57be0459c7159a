package bump

import (
	"github.com/conda/conda-recipe-manager/internal/crmerrors"
	"github.com/conda/conda-recipe-manager/internal/fetch"
	"github.com/conda/conda-recipe-manager/internal/parser"
)

// UpdateHTTPURLs is spec.md Sec. 4.10's update_http_urls: for every
// HTTP fetch result that carries a corrected URL (the PyPI-correction
// path), patch the corresponding /source/.../url.
func (vb *VersionBumper) UpdateHTTPURLs(results []fetch.FetchResult) error {
	for _, r := range results {
		if _, ok := r.Fetcher.(*fetch.HTTPFetcher); !ok {
			continue
		}
		if r.UpdatedURL == "" {
			continue
		}
		_, err := vb.p.Patch(parser.PatchOp{Op: parser.OpReplace, Path: r.Path + "/url", Value: r.UpdatedURL, HasValue: true})
		if err := vb.patchOrFail("update_http_urls", err); err != nil {
			return err
		}
	}
	return nil
}

// UpdateSHA256 is spec.md Sec. 4.10's update_sha256. It first looks
// for the short-circuit case — exactly one of the fixed hash-variable
// names defined and referenced by /source/sha256 — and updates that
// variable; otherwise it patches /source/.../sha256 per HTTP fetch
// result directly.
func (vb *VersionBumper) UpdateSHA256(results []fetch.FetchResult) error {
	if name, digest, ok := vb.singleHashVariable(results); ok {
		return vb.patchOrFail("update_sha256", vb.p.SetVariable(name, digest))
	}

	for _, r := range results {
		httpFetcher, ok := r.Fetcher.(*fetch.HTTPFetcher)
		if !ok {
			continue
		}
		if httpFetcher.SHA256 == "" {
			return vb.fail(&crmerrors.VersionBumperInvalidState{Operation: "update_sha256", Message: "fetch result carries no computed digest for " + r.Path})
		}
		_, err := vb.p.Patch(parser.PatchOp{Op: parser.OpReplace, Path: r.Path + "/sha256", Value: httpFetcher.SHA256, HasValue: true})
		if err := vb.patchOrFail("update_sha256", err); err != nil {
			return err
		}
	}
	return nil
}

// singleHashVariable reports the short-circuit hash variable (name,
// new digest) when exactly one of hashVariableNames is both defined
// and referenced by /source/sha256, and there is exactly one HTTP
// fetch result to take the digest from.
func (vb *VersionBumper) singleHashVariable(results []fetch.FetchResult) (string, string, bool) {
	var found string
	for _, name := range hashVariableNames {
		if !vb.p.ContainsVariable(name) {
			continue
		}
		for _, ref := range vb.p.GetVariableReferences(name) {
			if ref.String() == "/source/sha256" {
				if found != "" {
					return "", "", false // more than one candidate: no short-circuit
				}
				found = name
			}
		}
	}
	if found == "" {
		return "", "", false
	}

	var digest string
	count := 0
	for _, r := range results {
		if httpFetcher, ok := r.Fetcher.(*fetch.HTTPFetcher); ok {
			digest = httpFetcher.SHA256
			count++
		}
	}
	if count != 1 || digest == "" {
		return "", "", false
	}
	return found, digest, true
}
