// Package paperswithcode resolves arXiv IDs to code repository links
// through the Papers With Code API.
package paperswithcode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://paperswithcode.com/api/v1"

// Client looks up the repository linked to a paper.
type Client interface {
	RepositoryURL(ctx context.Context, arxivID string) (string, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(base string) Option {
	return func(c *httpClient) {
		c.baseURL = base
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Papers With Code client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type paperList struct {
	Results []struct {
		ID string `json:"id"`
	} `json:"results"`
}

type repoList struct {
	Results []struct {
		URL        string `json:"url"`
		Stars      int    `json:"stars"`
		IsOfficial bool   `json:"is_official"`
	} `json:"results"`
}

// RepositoryURL returns the best code link for the paper: the official
// repository with the most stars, falling back to the most-starred
// unofficial one. An unknown paper or a paper without repositories
// yields "" with no error.
func (c *httpClient) RepositoryURL(ctx context.Context, arxivID string) (string, error) {
	var papers paperList
	q := url.Values{"arxiv_id": {arxivID}}
	if err := c.getJSON(ctx, "/papers/?"+q.Encode(), &papers); err != nil {
		return "", err
	}
	if len(papers.Results) == 0 {
		return "", nil
	}

	var repos repoList
	path := "/papers/" + url.PathEscape(papers.Results[0].ID) + "/repositories/"
	if err := c.getJSON(ctx, path, &repos); err != nil {
		return "", err
	}

	best := ""
	bestStars := -1
	bestOfficial := false
	for _, r := range repos.Results {
		if r.URL == "" {
			continue
		}
		if (r.IsOfficial && !bestOfficial) ||
			(r.IsOfficial == bestOfficial && r.Stars > bestStars) {
			best = r.URL
			bestStars = r.Stars
			bestOfficial = r.IsOfficial
		}
	}
	return best, nil
}

func (c *httpClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "paperswithcode: creating request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "paperswithcode: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("paperswithcode: unexpected status %d", resp.StatusCode)
	}
	return eris.Wrap(json.NewDecoder(resp.Body).Decode(out), "paperswithcode: parsing response")
}
