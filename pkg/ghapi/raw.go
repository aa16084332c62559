package ghapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
)

// Snapshot is the full text of a file at one revision.
type Snapshot struct {
	Outcome Outcome
	Text    string
}

// FetchFile fetches path at revision sha of repo from the raw content endpoint.
// A file that does not exist at that revision is reported as Empty.
// OK and Empty answers are cached.
func (c *Client) FetchFile(ctx context.Context, repo, sha, path string) (Snapshot, error) {
	key := repo + "@" + sha + ":" + path

	if c.cache != nil {
		if snap, ok := c.cache.Get(key); ok {
			c.metrics.RecordCache(ctx, true)

			return snap, nil
		}

		c.metrics.RecordCache(ctx, false)
	}

	target, err := url.JoinPath(c.rawURL, repo, sha, path)
	if err != nil {
		return Snapshot{Outcome: Empty}, nil //nolint:nilerr // an unaddressable path is simply absent
	}

	var text string

	outcome, err := c.do(ctx, EndpointRaw, func(ctx context.Context) Outcome {
		body, status, header, fetchErr := c.get(ctx, target)
		if fetchErr != nil {
			c.logger.DebugContext(ctx, "raw fetch failed", "url", target, "error", fetchErr)

			return TransientFailure
		}

		outcome := classifyStatus(status, header)
		if outcome == OK {
			text = string(body)
		}

		return outcome
	}, attribute.String("github.repo", repo), attribute.String("github.sha", sha), attribute.String("github.path", path))
	if err != nil {
		return Snapshot{Outcome: outcome}, err
	}

	snap := Snapshot{Outcome: outcome}
	if outcome == OK {
		snap.Text = text
	}

	if c.cache != nil && (outcome == OK || outcome == Empty) {
		c.cache.Add(key, snap)
	}

	return snap, nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, int, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("build request: %w", err)
	}

	for k, v := range c.rotator.Headers() {
		req.Header[k] = v
	}

	resp, err := c.raw.Do(req)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, resp.Header, fmt.Errorf("read body: %w", err)
	}

	return body, resp.StatusCode, resp.Header, nil
}
