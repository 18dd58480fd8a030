// Package gitserver resolves repository tips and commit parentage from a
// fleet of version-control endpoints.
package gitserver

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"time"

	"github.com/gupsho/sourcegraph/internal/models"
)

// discoveryLimit caps how many commits a single discovery walks backward
// from its anchor.
const discoveryLimit = 100

// Client is the version-control lookup surface the pipeline depends on.
type Client interface {
	// Head returns the repository's current tip commit, or an empty string
	// when the repository has no resolvable history.
	Head(ctx context.Context, repository string) (string, error)

	// CommitsNear returns the commit-graph fragment reachable backward from
	// the given commit, mapping each commit to its parent set.
	CommitsNear(ctx context.Context, repository, commit string) (models.CommitGraph, error)
}

// HTTPClient talks to gitserver endpoints over HTTP. The endpoint for a
// repository is chosen by consistent hashing so all workers agree.
type HTTPClient struct {
	endpoints []string
	client    *http.Client
}

// NewHTTPClient creates a client for the given endpoint addresses.
func NewHTTPClient(endpoints []string) (*HTTPClient, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no gitserver endpoints configured")
	}
	return &HTTPClient{
		endpoints: endpoints,
		client:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// addrFor picks the endpoint responsible for a repository.
func (c *HTTPClient) addrFor(repository string) string {
	h := fnv.New32a()
	h.Write([]byte(repository))
	return c.endpoints[h.Sum32()%uint32(len(c.endpoints))]
}

// Head resolves the repository's tip commit.
func (c *HTTPClient) Head(ctx context.Context, repository string) (string, error) {
	u := fmt.Sprintf("%s/repos/%s/head", c.addrFor(repository), url.PathEscape(repository))

	var payload struct {
		Commit string `json:"commit"`
	}
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return "", fmt.Errorf("resolve tip for %s: %w", repository, err)
	}
	return payload.Commit, nil
}

// CommitsNear discovers commits and their parents backward from the anchor.
func (c *HTTPClient) CommitsNear(ctx context.Context, repository, commit string) (models.CommitGraph, error) {
	u := fmt.Sprintf("%s/repos/%s/commits?anchor=%s&limit=%d",
		c.addrFor(repository), url.PathEscape(repository), url.QueryEscape(commit), discoveryLimit)

	var payload []struct {
		Commit  string   `json:"commit"`
		Parents []string `json:"parents"`
	}
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, fmt.Errorf("discover commits for %s near %s: %w", repository, commit, err)
	}

	graph := make(models.CommitGraph)
	for _, entry := range payload {
		graph.Add(entry.Commit, "")
		for _, parent := range entry.Parents {
			graph.Add(entry.Commit, parent)
		}
	}
	return graph, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, u string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// An unknown repository has no resolvable history; leave the target at
	// its zero value so Head reports an empty tip.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gitserver returned %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(into)
}
