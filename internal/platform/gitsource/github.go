package gitsource

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/google/go-github/v80/github"
)

// DiffAPI is the optional provider compare capability. The fetcher prefers
// it for incremental scans and falls back to a local git diff when the
// provider has no compare endpoint or the call fails.
type DiffAPI interface {
	CompareCommits(ctx context.Context, owner, repo, base, head string) ([]ChangedFile, error)
}

// GitHubDiffAPI implements DiffAPI with the GitHub compare-commits endpoint.
type GitHubDiffAPI struct {
	client *github.Client
}

func NewGitHubDiffAPI(httpClient *http.Client) *GitHubDiffAPI {
	client := github.NewClient(httpClient)
	if token := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHubDiffAPI{client: client}
}

func (g *GitHubDiffAPI) CompareCommits(ctx context.Context, owner, repo, base, head string) ([]ChangedFile, error) {
	var files []ChangedFile
	opts := &github.ListOptions{PerPage: 100}
	for {
		cmp, resp, err := g.client.Repositories.CompareCommits(ctx, owner, repo, base, head, opts)
		if err != nil {
			return nil, err
		}
		for _, f := range cmp.Files {
			if f.GetFilename() == "" {
				continue
			}
			files = append(files, ChangedFile{
				Path:   f.GetFilename(),
				Status: githubStatus(f.GetStatus()),
			})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return files, nil
}

func githubStatus(s string) ChangeStatus {
	switch s {
	case "added":
		return ChangeAdded
	case "removed":
		return ChangeRemoved
	default:
		return ChangeModified
	}
}
