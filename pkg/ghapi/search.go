package ghapi

import (
	"context"
	"fmt"

	"github.com/google/go-github/v68/github"
	"go.opentelemetry.io/otel/attribute"
)

// Search ordering: newest committer date first.
const (
	searchSort  = "committer-date"
	searchOrder = "desc"
)

// Hit is one commit search result.
type Hit struct {
	// Repo is the owning repository as "owner/name".
	Repo string
	SHA  string
}

// SearchPage is one page of commit search results.
type SearchPage struct {
	Outcome Outcome
	Hits    []Hit
	// Total is the total result count reported by the server.
	Total int
}

// Query builds a commit search query for keyword in language, limited to
// committer dates in dateRange ("YYYY-MM-DD..YYYY-MM-DD").
func Query(keyword, language, dateRange string) string {
	return fmt.Sprintf("%s language:%s committer-date:%s", keyword, language, dateRange)
}

// SearchCommits fetches one page of commit search results. A page without
// results is reported as Empty.
func (c *Client) SearchCommits(ctx context.Context, query string, page int) (SearchPage, error) {
	var result SearchPage

	opts := &github.SearchOptions{
		Sort:  searchSort,
		Order: searchOrder,
		ListOptions: github.ListOptions{
			Page:    page,
			PerPage: c.perPage,
		},
	}

	outcome, err := c.do(ctx, EndpointSearch, func(ctx context.Context) Outcome {
		res, resp, callErr := c.apiClient().Search.Commits(ctx, query, opts)

		outcome := classifyAPI(resp, callErr)
		if outcome != OK {
			return outcome
		}

		result = SearchPage{Total: res.GetTotal()}

		for _, item := range res.Commits {
			result.Hits = append(result.Hits, Hit{
				Repo: item.GetRepository().GetFullName(),
				SHA:  item.GetSHA(),
			})
		}

		return OK
	}, attribute.String("github.query", query), attribute.Int("github.page", page))
	if err != nil {
		return SearchPage{Outcome: outcome}, err
	}

	if outcome != OK {
		return SearchPage{Outcome: outcome}, nil
	}

	if len(result.Hits) == 0 {
		result.Outcome = Empty

		return result, nil
	}

	result.Outcome = OK

	return result, nil
}
