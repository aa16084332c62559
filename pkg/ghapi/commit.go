package ghapi

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// ChangedFile is one file entry of a commit.
type ChangedFile struct {
	Path string
	// Patch is the unified diff text; HasPatch is false when the server omitted it
	// (binary or very large changes).
	Patch    string
	HasPatch bool
	Status   string
}

// Commit is the detail of one commit.
type Commit struct {
	Outcome Outcome
	Repo    string
	SHA     string
	Message string
	// Parents lists parent SHAs in order; the first is the mainline parent.
	Parents []string
	Files   []ChangedFile
}

// GetCommit fetches the detail of sha in repo ("owner/name").
// A malformed repository name is reported as Empty.
func (c *Client) GetCommit(ctx context.Context, repo, sha string) (Commit, error) {
	owner, name, ok := splitRepo(repo)
	if !ok {
		return Commit{Outcome: Empty, Repo: repo, SHA: sha}, nil
	}

	result := Commit{Repo: repo, SHA: sha}

	outcome, err := c.do(ctx, EndpointCommit, func(ctx context.Context) Outcome {
		rc, resp, callErr := c.apiClient().Repositories.GetCommit(ctx, owner, name, sha, nil)

		outcome := classifyAPI(resp, callErr)
		if outcome != OK {
			return outcome
		}

		result.Message = rc.GetCommit().GetMessage()
		result.Parents = result.Parents[:0]
		result.Files = result.Files[:0]

		for _, p := range rc.Parents {
			result.Parents = append(result.Parents, p.GetSHA())
		}

		for _, f := range rc.Files {
			result.Files = append(result.Files, ChangedFile{
				Path:     f.GetFilename(),
				Patch:    f.GetPatch(),
				HasPatch: f.Patch != nil,
				Status:   f.GetStatus(),
			})
		}

		return OK
	}, attribute.String("github.repo", repo), attribute.String("github.sha", sha))

	result.Outcome = outcome

	return result, err
}
