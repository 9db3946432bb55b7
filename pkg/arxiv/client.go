// Package arxiv queries the arXiv Atom API for new submissions and
// downloads e-print source archives.
package arxiv

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultAPIBase    = "https://export.arxiv.org/api/query"
	defaultEPrintBase = "https://arxiv.org/e-print"
	defaultUserAgent  = "arxiv-digest/1.0"

	// arXiv asks automated clients to stay under one request every
	// three seconds.
	apiInterval = 3 * time.Second

	maxSourceBytes = 64 << 20
	maxPageSize    = 200
)

// Paper is one entry from the Atom feed.
type Paper struct {
	ID        string
	Title     string
	Abstract  string
	Authors   []string
	Published time.Time
}

// Client lists new submissions and fetches e-print source archives.
type Client interface {
	ListNew(ctx context.Context, categories []string, limit int) ([]Paper, error)
	Source(ctx context.Context, id string) (map[string]string, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithAPIBase overrides the Atom API endpoint.
func WithAPIBase(base string) Option {
	return func(c *httpClient) {
		c.apiBase = base
	}
}

// WithEPrintBase overrides the e-print download endpoint.
func WithEPrintBase(base string) Option {
	return func(c *httpClient) {
		c.eprintBase = base
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLimiter overrides the default request limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	apiBase    string
	eprintBase string
	http       *http.Client
	limiter    *rate.Limiter
}

// NewClient builds an arXiv client with the polite default rate limit.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		apiBase:    defaultAPIBase,
		eprintBase: defaultEPrintBase,
		http:       &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(apiInterval), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListNew returns the most recent submissions across the given
// categories, newest first, deduplicated by canonical ID.
func (c *httpClient) ListNew(ctx context.Context, categories []string, limit int) ([]Paper, error) {
	if len(categories) == 0 {
		return nil, eris.New("arxiv: no categories given")
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	terms := make([]string, 0, len(categories))
	for _, cat := range categories {
		terms = append(terms, "cat:"+cat)
	}
	query := url.Values{}
	query.Set("search_query", strings.Join(terms, "+OR+"))
	query.Set("start", "0")
	query.Set("max_results", strconv.Itoa(limit))
	query.Set("sortBy", "submittedDate")
	query.Set("sortOrder", "descending")

	// arXiv rejects percent-encoded "+" between query terms.
	rawURL := c.apiBase + "?" + strings.ReplaceAll(query.Encode(), "%2B", "+")

	body, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var feed atomFeed
	if err := xml.NewDecoder(body).Decode(&feed); err != nil {
		return nil, eris.Wrap(err, "arxiv: parsing feed")
	}

	seen := make(map[string]bool, len(feed.Entries))
	papers := make([]Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		id := CanonicalID(extractID(entry.ID))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		p := Paper{
			ID:       id,
			Title:    collapseSpace(entry.Title),
			Abstract: collapseSpace(entry.Summary),
		}
		for _, a := range entry.Authors {
			if name := strings.TrimSpace(a.Name); name != "" {
				p.Authors = append(p.Authors, name)
			}
		}
		if t, perr := time.Parse(time.RFC3339, entry.Published); perr == nil {
			p.Published = t
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// Source downloads and unpacks the e-print archive for id. A 404 means
// the paper has no source on arXiv (PDF-only submissions); that is
// reported as a nil map with no error.
func (c *httpClient) Source(ctx context.Context, id string) (map[string]string, error) {
	if id == "" {
		return nil, eris.New("arxiv: empty paper id")
	}

	body, err := c.getAllowMissing(ctx, c.eprintBase+"/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}
	defer body.Close()

	files, err := unpackTarGz(io.LimitReader(body, maxSourceBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "arxiv: unpacking source for %s", id)
	}
	return files, nil
}

func (c *httpClient) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	body, err := c.getAllowMissing(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, eris.Errorf("arxiv: %s returned 404", rawURL)
	}
	return body, nil
}

// getAllowMissing performs a rate-limited GET. A 404 yields (nil, nil).
func (c *httpClient) getAllowMissing(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "arxiv: waiting for rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "arxiv: creating request")
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "arxiv: request failed")
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, eris.Errorf("arxiv: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// unpackTarGz reads a gzipped tarball into a name-to-content map,
// skipping directories and files that are not valid UTF-8 text. Some
// e-prints are a bare gzipped file rather than a tarball; those come
// back as a single-entry map, or nil when the payload is not text
// (a PDF-only submission).
func unpackTarGz(r io.Reader) (map[string]string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	payload, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("reading gzip stream: %w", err)
	}

	files := make(map[string]string)
	tr := tar.NewReader(bytes.NewReader(payload))
	first := true
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if first {
				return singleFile(gz.Name, payload), nil
			}
			return nil, fmt.Errorf("reading tar entry: %w", err)
		}
		first = false
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", hdr.Name, err)
		}
		if !utf8.Valid(data) {
			continue
		}
		files[hdr.Name] = string(data)
	}
	return files, nil
}

// singleFile wraps a bare gzipped payload as a one-file bundle. A
// binary payload yields nil, same as a paper with no source.
func singleFile(name string, payload []byte) map[string]string {
	if !utf8.Valid(payload) {
		return nil
	}
	if name == "" {
		name = "main.tex"
	}
	return map[string]string{name: string(payload)}
}

// CanonicalID strips a trailing version suffix from an arXiv ID
// ("2401.01234v3" becomes "2401.01234").
func CanonicalID(id string) string {
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			return id[:vIdx]
		}
	}
	return id
}

// extractID pulls the arXiv ID out of an Atom entry URL
// ("http://arxiv.org/abs/2401.01234v1" becomes "2401.01234v1").
func extractID(idURL string) string {
	const marker = "/abs/"
	idx := strings.Index(idURL, marker)
	if idx < 0 {
		return ""
	}
	return idURL[idx+len(marker):]
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Atom feed wire format.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}
