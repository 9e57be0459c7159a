package fetch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/conda/conda-recipe-manager/internal/crmerrors"
	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitFetcher owns a URL plus an optional branch/tag/rev, a scoped temp
// directory and, after Fetch, a checked-out working tree and the
// repository's tags (spec.md Sec. 4.9).
type GitFetcher struct {
	scopedDir
	URL        string
	Branch     string
	Tag        string
	Rev        string
	SourcePath string

	fetched bool
	Tags    []string
}

// NewGitFetcher reserves a scoped temp directory for a git checkout of
// url.
func NewGitFetcher(url, branch, tag, rev, sourcePath string) (*GitFetcher, error) {
	sd, err := newScopedDir("crm-fetch-git-")
	if err != nil {
		return nil, err
	}
	return &GitFetcher{scopedDir: sd, URL: url, Branch: branch, Tag: tag, Rev: rev, SourcePath: sourcePath}, nil
}

func (f *GitFetcher) Fetched() bool { return f.fetched }

// SourceCodePath returns the checked-out working tree's directory. It
// fails with FetchRequiredError until Fetch has succeeded once.
func (f *GitFetcher) SourceCodePath() (string, error) {
	if !f.fetched {
		return "", &crmerrors.FetchRequiredError{Path: f.SourcePath}
	}
	return f.Dir(), nil
}

// Fetch clones URL into the scoped directory at the requested branch
// or, failing that, tag; if a rev is set it is then checked out on
// top of that clone. It then lists the repository's tags. Cloning shells out to git, since no
// pure-Go git client is available in the retrieved dependency set;
// tag listing prefers the GitHub API (for github.com hosts) since it
// does not require a full clone.
func (f *GitFetcher) Fetch(ctx context.Context) error {
	args := []string{"clone", "--quiet", f.URL, f.Dir()}
	if f.Branch != "" {
		args = []string{"clone", "--quiet", "--branch", f.Branch, f.URL, f.Dir()}
	} else if f.Tag != "" {
		args = []string{"clone", "--quiet", "--branch", f.Tag, f.URL, f.Dir()}
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return &crmerrors.FetchError{Source: f.URL, Message: fmt.Sprintf("git clone failed: %s", strings.TrimSpace(string(out))), Err: err}
	}

	if f.Rev != "" {
		cmd := exec.CommandContext(ctx, "git", "-C", f.Dir(), "checkout", "--quiet", f.Rev)
		if out, err := cmd.CombinedOutput(); err != nil {
			return &crmerrors.FetchError{Source: f.URL, Message: fmt.Sprintf("git checkout failed: %s", strings.TrimSpace(string(out))), Err: err}
		}
	}

	tags, err := f.listTags(ctx)
	if err != nil {
		return err
	}
	f.Tags = tags

	f.fetched = true
	return nil
}

// listTags prefers the GitHub API for github.com repositories (ungrounded
// clone-independent lookup, mirroring version.Resolver.ListGitHubVersions);
// any other host falls back to a local "git tag" listing against the
// checkout that Fetch just produced.
func (f *GitFetcher) listTags(ctx context.Context) ([]string, error) {
	if owner, repo, ok := githubOwnerRepo(f.URL); ok {
		client := githubClient(ctx)
		opts := &github.ListOptions{PerPage: 100}
		tags, _, err := client.Repositories.ListTags(ctx, owner, repo, opts)
		if err == nil {
			out := make([]string, 0, len(tags))
			for _, t := range tags {
				if t.Name != nil {
					out = append(out, *t.Name)
				}
			}
			return out, nil
		}
		// fall through to local "git tag" on API failure (rate limit, network, …)
	}

	cmd := exec.CommandContext(ctx, "git", "-C", f.Dir(), "tag")
	out, err := cmd.Output()
	if err != nil {
		return nil, &crmerrors.FetchError{Source: f.URL, Message: "could not list tags", Err: err}
	}
	var tags []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			tags = append(tags, line)
		}
	}
	return tags, nil
}

// githubClient builds an authenticated client when GITHUB_TOKEN is
// set, matching version.Resolver.New's precedent.
func githubClient(ctx context.Context) *github.Client {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return github.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

func githubOwnerRepo(url string) (owner, repo string, ok bool) {
	trimmed := strings.TrimSuffix(url, ".git")
	switch {
	case strings.HasPrefix(trimmed, "https://github.com/"):
		trimmed = strings.TrimPrefix(trimmed, "https://github.com/")
	case strings.HasPrefix(trimmed, "git@github.com:"):
		trimmed = strings.TrimPrefix(trimmed, "git@github.com:")
	default:
		return "", "", false
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
