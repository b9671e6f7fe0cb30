// Package heroku implements a minimal client for the Heroku Platform API.
//
// Only the release listing, release detail and slug detail endpoints are
// consumed. Responses are decoded into a stable field subset so upstream
// schema churn cannot leak into storage.
//
// Listing pagination follows the platform's range-header protocol: the
// request carries a Range header and the response's Next-Range header is the
// continuation token. The header, not the item count, is authoritative for
// continuation.
package heroku

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"releasetrack/internal/apierror"
	"releasetrack/internal/config"
)

const (
	// DefaultBaseURL is the Platform API root.
	DefaultBaseURL = "https://api.heroku.com"

	// RequestTimeout bounds every platform call so a hung connection cannot
	// stall a batch.
	RequestTimeout = 10 * time.Second

	// DefaultPageSize is the per-page item count requested while crawling.
	DefaultPageSize = 1000

	// initialRange is the opening Range header value: all releases, by id.
	initialRange = "id .."

	acceptHeader = "application/vnd.heroku+json; version=3"
)

// Release is the stable subset of a platform release object.
type Release struct {
	ID          string   `json:"id"`
	Version     int      `json:"version"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"created_at"`
	Slug        *SlugRef `json:"slug,omitempty"`
}

// SlugRef is the slug reference embedded in a release object. The listing
// only carries the id; the remaining fields are filled in from the slug
// detail endpoint by Merge.
type SlugRef struct {
	ID                string `json:"id"`
	Commit            string `json:"commit,omitempty"`
	CommitDescription string `json:"commit_description,omitempty"`
	Size              int64  `json:"size,omitempty"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

// Merge copies slug detail into the reference.
func (s *SlugRef) Merge(detail *Slug) {
	if detail == nil {
		return
	}
	s.Commit = detail.Commit
	s.CommitDescription = detail.CommitDescription
	s.Size = detail.Size
	s.UpdatedAt = detail.UpdatedAt
}

// Slug is the stable subset of a platform slug (build artifact) object.
type Slug struct {
	ID                string `json:"id"`
	Commit            string `json:"commit"`
	CommitDescription string `json:"commit_description"`
	Size              int64  `json:"size"`
	UpdatedAt         string `json:"updated_at"`
}

// Client calls the Heroku Platform API for a single app.
type Client struct {
	BaseURL string
	cfg     config.HerokuConfig
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a platform client. Credentials are checked per call, not
// here, so a client can be constructed in an unconfigured environment.
func NewClient(cfg config.HerokuConfig, logger *slog.Logger) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		cfg:     cfg,
		http:    &http.Client{Timeout: RequestTimeout},
		logger:  logger,
	}
}

func (c *Client) checkAuth() error {
	if c.cfg.APIToken == "" {
		return &apierror.AuthenticationError{Setting: "HEROKU_API_TOKEN"}
	}
	if c.cfg.AppName == "" {
		return &apierror.AuthenticationError{Setting: "HEROKU_APP_NAME"}
	}
	return nil
}

// get performs an authenticated GET against an app-scoped path and decodes
// the 2xx response body into out. Extra headers (Range) are passed through.
// The caller receives the response headers for continuation tokens.
func (c *Client) get(ctx context.Context, path string, headers map[string]string, out interface{}) (http.Header, error) {
	if err := c.checkAuth(); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/apps/%s/%s", c.BaseURL, c.cfg.AppName, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Accept", acceptHeader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &apierror.RemoteError{System: "heroku", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apierror.RemoteError{System: "heroku", StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apierror.RemoteError{
			System:     "heroku",
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, &apierror.RemoteError{System: "heroku", StatusCode: resp.StatusCode, Err: err}
	}
	return resp.Header, nil
}

// Crawl pages through the app's release listing, newest pages following the
// Next-Range continuation header, and returns at most maxCount raw releases.
func (c *Client) Crawl(ctx context.Context, maxCount, pageSize int) ([]Release, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	c.logger.Debug("crawling releases", "max_count", maxCount, "page_size", pageSize)

	var releases []Release
	nextRange := fmt.Sprintf("%s;max=%d", initialRange, pageSize)
	for nextRange != "" && len(releases) < maxCount {
		var page []Release
		headers, err := c.get(ctx, "releases", map[string]string{"Range": nextRange}, &page)
		if err != nil {
			return nil, err
		}
		releases = append(releases, page...)
		// the header, not the page length, decides whether to continue
		nextRange = headers.Get("Next-Range")
	}
	if len(releases) > maxCount {
		releases = releases[:maxCount]
	}
	return releases, nil
}

// GetRelease fetches a single release by version number.
func (c *Client) GetRelease(ctx context.Context, version int) (*Release, error) {
	var release Release
	if _, err := c.get(ctx, fmt.Sprintf("releases/%d", version), nil, &release); err != nil {
		return nil, err
	}
	return &release, nil
}

// GetSlug fetches build-artifact metadata for a slug id.
func (c *Client) GetSlug(ctx context.Context, slugID string) (*Slug, error) {
	var slug Slug
	if _, err := c.get(ctx, fmt.Sprintf("slugs/%s", slugID), nil, &slug); err != nil {
		return nil, err
	}
	return &slug, nil
}
