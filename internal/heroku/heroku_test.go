package heroku

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"releasetrack/internal/apierror"
	"releasetrack/internal/config"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.HerokuConfig{APIToken: "test-token", AppName: "test-app"}
	c := NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.BaseURL = srv.URL
	return c
}

func TestClient_Crawl_Pagination(t *testing.T) {
	pages := map[string][]Release{
		"id ..;max=2": {{ID: "a", Version: 1}, {ID: "b", Version: 2}},
		"id c..;max=2": {{ID: "c", Version: 3}},
	}
	nextRanges := map[string]string{
		"id ..;max=2": "id c..;max=2",
	}

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/apps/test-app/releases" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		rng := r.Header.Get("Range")
		if next := nextRanges[rng]; next != "" {
			w.Header().Set("Next-Range", next)
		}
		json.NewEncoder(w).Encode(pages[rng])
	}))

	releases, err := c.Crawl(context.Background(), 100, 2)
	if err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}
	if len(releases) != 3 {
		t.Fatalf("len = %d, want 3", len(releases))
	}
	if releases[2].ID != "c" {
		t.Errorf("Last release = %+v", releases[2])
	}
}

func TestClient_Crawl_StopsAtMaxCount(t *testing.T) {
	calls := 0
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// always offer a continuation: only max_count stops the crawl
		w.Header().Set("Next-Range", fmt.Sprintf("id page%d..;max=2", calls))
		json.NewEncoder(w).Encode([]Release{{Version: calls * 2}, {Version: calls*2 + 1}})
	}))

	releases, err := c.Crawl(context.Background(), 3, 2)
	if err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}
	if len(releases) != 3 {
		t.Errorf("len = %d, want 3 (truncated to max count)", len(releases))
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestClient_Crawl_HeaderIsAuthoritative(t *testing.T) {
	// a short page without a Next-Range header ends the crawl even though
	// fewer than page_size items came back
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Release{{Version: 1}})
	}))

	releases, err := c.Crawl(context.Background(), 100, 50)
	if err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}
	if len(releases) != 1 {
		t.Errorf("len = %d, want 1", len(releases))
	}
}

func TestClient_MissingToken(t *testing.T) {
	c := NewClient(config.HerokuConfig{AppName: "test-app"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := c.Crawl(context.Background(), 10, 10)
	if !apierror.IsAuthentication(err) {
		t.Errorf("Expected AuthenticationError, got %v", err)
	}
}

func TestClient_RemoteError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"id":"forbidden","message":"nope"}`)
	}))

	_, err := c.GetRelease(context.Background(), 5)
	var remoteErr *apierror.RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected RemoteError, got %v", err)
	}
	if remoteErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", remoteErr.StatusCode)
	}
	if remoteErr.Message == "" {
		t.Error("Expected response body carried as message")
	}
}

func TestClient_GetRelease_Scrubs(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/apps/test-app/releases/42" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		// upstream payload carries fields beyond the stable subset
		fmt.Fprint(w, `{
			"id": "uuid-42", "version": 42, "description": "Deploy abc1234",
			"status": "succeeded", "created_at": "2023-01-01T00:00:00Z",
			"slug": {"id": "slug-42"},
			"user": {"email": "dev@example.com"},
			"addon_plan_names": ["heroku-postgresql:standard-0"]
		}`)
	}))

	release, err := c.GetRelease(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetRelease failed: %v", err)
	}

	// marshalling back yields exactly the declared subset, nothing more
	data, err := json.Marshal(release)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	want := map[string]bool{
		"id": true, "version": true, "description": true,
		"status": true, "created_at": true, "slug": true,
	}
	for key := range fields {
		if !want[key] {
			t.Errorf("Unexpected field %q survived scrubbing", key)
		}
	}
	if release.Slug == nil || release.Slug.ID != "slug-42" {
		t.Errorf("Slug = %+v", release.Slug)
	}
}

func TestClient_GetSlug(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/apps/test-app/slugs/slug-42" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{
			"id": "slug-42",
			"commit": "abc1234def5678900000000000000000000000ff",
			"commit_description": "Fix the widget",
			"size": 52428800,
			"updated_at": "2023-01-01T00:00:00Z",
			"stack": {"name": "heroku-22"}
		}`)
	}))

	slug, err := c.GetSlug(context.Background(), "slug-42")
	if err != nil {
		t.Fatalf("GetSlug failed: %v", err)
	}
	want := &Slug{
		ID:                "slug-42",
		Commit:            "abc1234def5678900000000000000000000000ff",
		CommitDescription: "Fix the widget",
		Size:              52428800,
		UpdatedAt:         "2023-01-01T00:00:00Z",
	}
	if !reflect.DeepEqual(slug, want) {
		t.Errorf("slug = %+v, want %+v", slug, want)
	}
}

func TestSlugRef_Merge(t *testing.T) {
	ref := &SlugRef{ID: "slug-1"}
	ref.Merge(&Slug{ID: "slug-1", Commit: "abc", CommitDescription: "msg", Size: 10, UpdatedAt: "t"})
	if ref.Commit != "abc" || ref.CommitDescription != "msg" || ref.Size != 10 {
		t.Errorf("merged ref = %+v", ref)
	}

	ref = &SlugRef{ID: "slug-1"}
	ref.Merge(nil)
	if ref.Commit != "" {
		t.Error("Merge(nil) must be a no-op")
	}
}
