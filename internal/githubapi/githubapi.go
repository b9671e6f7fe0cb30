// Package githubapi wraps the GitHub releases REST API for a single
// org/repo pair.
//
// All mutating calls are building blocks for a pessimistic upsert: the caller
// GETs a release by tag and then either PATCHes the one it found or POSTs a
// new one. 404s on get and delete have absence semantics and are not errors.
//
// Payloads returned to callers are scrubbed to a stable field subset;
// callers never see the raw API shape.
package githubapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"releasetrack/internal/apierror"
	"releasetrack/internal/config"
)

// RequestTimeout bounds every GitHub call.
const RequestTimeout = 10 * time.Second

// Release is the stable subset of a GitHub release object.
type Release struct {
	ID              int64  `json:"id"`
	TagName         string `json:"tag_name"`
	TargetCommitish string `json:"target_commitish"`
	Name            string `json:"name"`
	Body            string `json:"body"`
	HTMLURL         string `json:"html_url"`
	CreatedAt       string `json:"created_at,omitempty"`
	PublishedAt     string `json:"published_at,omitempty"`
}

// CreateParams are the inputs for a release creation.
type CreateParams struct {
	TagName string
	Commit  string
	Name    string
	Body    string

	// GenerateNotes asks GitHub to auto-generate the release body from the
	// commits since the previous tag.
	GenerateNotes bool
}

// Patch holds the fields of an existing release to overwrite. Nil fields are
// left untouched.
type Patch struct {
	Name            *string
	Body            *string
	TargetCommitish *string
}

// Client calls the GitHub releases API for one repository.
type Client struct {
	cfg    config.GitHubConfig
	gh     *github.Client
	logger *slog.Logger
}

// NewClient creates a GitHub client. Credentials are checked per call so the
// client can be constructed in an unconfigured environment.
func NewClient(cfg config.GitHubConfig, logger *slog.Logger) *Client {
	var httpClient *http.Client
	if cfg.APIToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIToken})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = RequestTimeout

	return &Client{
		cfg:    cfg,
		gh:     github.NewClient(httpClient),
		logger: logger,
	}
}

// SetBaseURL points the client at a different API root. Used by tests.
func (c *Client) SetBaseURL(raw string) error {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	c.gh.BaseURL = u
	return nil
}

func (c *Client) checkAuth() error {
	for _, required := range []struct {
		value   string
		setting string
	}{
		{c.cfg.APIToken, "GITHUB_API_TOKEN"},
		{c.cfg.UserName, "GITHUB_USER_NAME"},
		{c.cfg.OrgName, "GITHUB_ORG_NAME"},
		{c.cfg.RepoName, "GITHUB_REPO_NAME"},
	} {
		if required.value == "" {
			return &apierror.AuthenticationError{Setting: required.setting}
		}
	}
	return nil
}

// GetRelease fetches a release by tag name. A 404 means the release does not
// exist and returns (nil, nil) rather than an error.
func (c *Client) GetRelease(ctx context.Context, tagName string) (*Release, error) {
	if err := c.checkAuth(); err != nil {
		return nil, err
	}
	rel, resp, err := c.gh.Repositories.GetReleaseByTag(ctx, c.cfg.OrgName, c.cfg.RepoName, tagName)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, c.remoteError(resp, err)
	}
	return scrubRelease(rel), nil
}

// CreateRelease creates a new release keyed by tag.
func (c *Client) CreateRelease(ctx context.Context, params CreateParams) (*Release, error) {
	if err := c.checkAuth(); err != nil {
		return nil, err
	}
	payload := &github.RepositoryRelease{
		TagName:              github.String(params.TagName),
		Name:                 github.String(params.Name),
		TargetCommitish:      github.String(params.Commit),
		GenerateReleaseNotes: github.Bool(params.GenerateNotes),
	}
	if params.Body != "" {
		payload.Body = github.String(params.Body)
	}
	rel, resp, err := c.gh.Repositories.CreateRelease(ctx, c.cfg.OrgName, c.cfg.RepoName, payload)
	if err != nil {
		return nil, c.remoteError(resp, err)
	}
	return scrubRelease(rel), nil
}

// UpdateRelease patches an existing release by id.
func (c *Client) UpdateRelease(ctx context.Context, releaseID int64, patch Patch) (*Release, error) {
	if err := c.checkAuth(); err != nil {
		return nil, err
	}
	payload := &github.RepositoryRelease{
		Name:            patch.Name,
		Body:            patch.Body,
		TargetCommitish: patch.TargetCommitish,
	}
	rel, resp, err := c.gh.Repositories.EditRelease(ctx, c.cfg.OrgName, c.cfg.RepoName, releaseID, payload)
	if err != nil {
		return nil, c.remoteError(resp, err)
	}
	return scrubRelease(rel), nil
}

// DeleteRelease removes a release by id. A 404 means the release is already
// absent and is treated as success.
func (c *Client) DeleteRelease(ctx context.Context, releaseID int64) error {
	if err := c.checkAuth(); err != nil {
		return err
	}
	resp, err := c.gh.Repositories.DeleteRelease(ctx, c.cfg.OrgName, c.cfg.RepoName, releaseID)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil
		}
		return c.remoteError(resp, err)
	}
	return nil
}

// GenerateReleaseNotes asks GitHub to generate release notes for a tag
// without creating or modifying any release.
func (c *Client) GenerateReleaseNotes(ctx context.Context, tagName string) (string, error) {
	if err := c.checkAuth(); err != nil {
		return "", err
	}
	opts := &github.GenerateNotesOptions{TagName: tagName}
	notes, resp, err := c.gh.Repositories.GenerateReleaseNotes(ctx, c.cfg.OrgName, c.cfg.RepoName, opts)
	if err != nil {
		return "", c.remoteError(resp, err)
	}
	return notes.Body, nil
}

// CompareURL formats the org/repo-scoped compare path for a base...head
// range. Pure string formatting, no network call.
func (c *Client) CompareURL(baseHead string) string {
	return fmt.Sprintf("%s/%s/compare/%s", c.cfg.OrgName, c.cfg.RepoName, baseHead)
}

// remoteError converts a go-github error into a RemoteError carrying the
// status code and a decoded message where one can be extracted.
func (c *Client) remoteError(resp *github.Response, err error) error {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	return &apierror.RemoteError{
		System:     "github",
		StatusCode: status,
		Message:    c.decodeAPIError(err),
		Err:        err,
	}
}

// decodeAPIError extracts a human-readable message from a GitHub client
// error. Statuses without defined decoding yield an empty string and the
// caller falls back to the raw error. Never fails: an unparseable body
// degrades to "".
func (c *Client) decodeAPIError(err error) string {
	var er *github.ErrorResponse
	if !errors.As(err, &er) || er.Response == nil {
		return ""
	}
	switch er.Response.StatusCode {
	case http.StatusBadRequest:
		return er.Message
	case http.StatusUnprocessableEntity:
		if len(er.Errors) == 0 {
			c.logger.Error("github 422 response had no parseable errors", "message", er.Message)
			return ""
		}
		lines := make([]string, 0, len(er.Errors))
		for _, e := range er.Errors {
			lines = append(lines, fmt.Sprintf("E %s.%s: %s", e.Resource, e.Field, e.Code))
		}
		return strings.Join(lines, "\n")
	case http.StatusInternalServerError:
		return fmt.Sprintf("Unknown server error: %v", err)
	}
	return ""
}

// scrubRelease reduces an API release to the declared stable subset.
func scrubRelease(rel *github.RepositoryRelease) *Release {
	scrubbed := &Release{
		ID:              rel.GetID(),
		TagName:         rel.GetTagName(),
		TargetCommitish: rel.GetTargetCommitish(),
		Name:            rel.GetName(),
		Body:            rel.GetBody(),
		HTMLURL:         rel.GetHTMLURL(),
	}
	if ts := rel.GetCreatedAt(); !ts.IsZero() {
		scrubbed.CreatedAt = ts.Format(time.RFC3339)
	}
	if ts := rel.GetPublishedAt(); !ts.IsZero() {
		scrubbed.PublishedAt = ts.Format(time.RFC3339)
	}
	return scrubbed
}
