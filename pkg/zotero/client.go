// Package zotero reads a user's library through the Zotero Web API v3.
package zotero

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://api.zotero.org"
	pageSize       = 100
)

// Item is a top-level library item with an abstract.
type Item struct {
	Key          string
	Title        string
	AbstractNote string
	Collections  []string
	DateAdded    time.Time
}

// Client lists the items of one Zotero library.
type Client interface {
	Items(ctx context.Context) ([]Item, error)
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
	userID  string
	apiKey  string
	http    *http.Client
}

// NewClient builds a client for the given user library.
func NewClient(userID, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		userID:  userID,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type wireItem struct {
	Key  string `json:"key"`
	Data struct {
		ItemType     string   `json:"itemType"`
		Title        string   `json:"title"`
		AbstractNote string   `json:"abstractNote"`
		Collections  []string `json:"collections"`
		DateAdded    string   `json:"dateAdded"`
	} `json:"data"`
}

// Items pages through /users/{id}/items/top and returns every item
// that carries an abstract. Attachments and notes never do, so the
// abstract filter drops them as a side effect.
func (c *httpClient) Items(ctx context.Context) ([]Item, error) {
	var items []Item
	for start := 0; ; start += pageSize {
		page, total, err := c.page(ctx, start)
		if err != nil {
			return nil, err
		}
		for _, w := range page {
			if w.Data.AbstractNote == "" {
				continue
			}
			item := Item{
				Key:          w.Key,
				Title:        w.Data.Title,
				AbstractNote: w.Data.AbstractNote,
				Collections:  w.Data.Collections,
			}
			if t, perr := time.Parse("2006-01-02T15:04:05Z", w.Data.DateAdded); perr == nil {
				item.DateAdded = t
			}
			items = append(items, item)
		}
		if start+pageSize >= total || len(page) == 0 {
			break
		}
	}
	return items, nil
}

func (c *httpClient) page(ctx context.Context, start int) ([]wireItem, int, error) {
	q := url.Values{}
	q.Set("start", strconv.Itoa(start))
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("format", "json")

	endpoint := c.baseURL + "/users/" + url.PathEscape(c.userID) + "/items/top?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "zotero: creating request")
	}
	req.Header.Set("Zotero-API-Version", "3")
	req.Header.Set("Zotero-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "zotero: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, eris.Errorf("zotero: unexpected status %d", resp.StatusCode)
	}

	total, _ := strconv.Atoi(resp.Header.Get("Total-Results"))
	var page []wireItem
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, 0, eris.Wrap(err, "zotero: parsing items page")
	}
	return page, total, nil
}
