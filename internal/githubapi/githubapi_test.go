package githubapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"releasetrack/internal/apierror"
	"releasetrack/internal/config"
)

func testConfig() config.GitHubConfig {
	return config.GitHubConfig{
		APIToken:    "test-token",
		UserName:    "octocat",
		OrgName:     "acme",
		RepoName:    "app",
		SyncEnabled: true,
	}
}

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := c.SetBaseURL(srv.URL); err != nil {
		t.Fatalf("SetBaseURL failed: %v", err)
	}
	return c
}

func TestClient_MissingCredentials(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.GitHubConfig)
	}{
		{"token", func(c *config.GitHubConfig) { c.APIToken = "" }},
		{"user", func(c *config.GitHubConfig) { c.UserName = "" }},
		{"org", func(c *config.GitHubConfig) { c.OrgName = "" }},
		{"repo", func(c *config.GitHubConfig) { c.RepoName = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			c := NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

			_, err := c.GetRelease(context.Background(), "v1")
			if !apierror.IsAuthentication(err) {
				t.Errorf("Expected AuthenticationError, got %v", err)
			}
		})
	}
}

func TestClient_GetRelease(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/app/releases/tags/v12" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{
			"id": 999, "tag_name": "v12", "target_commitish": "abc123",
			"name": "Release v12", "body": "notes", "html_url": "https://github.com/acme/app/releases/tag/v12",
			"created_at": "2023-01-01T00:00:00Z", "published_at": "2023-01-01T00:05:00Z",
			"draft": false, "author": {"login": "octocat"}
		}`)
	}))

	rel, err := c.GetRelease(context.Background(), "v12")
	if err != nil {
		t.Fatalf("GetRelease failed: %v", err)
	}
	if rel.ID != 999 || rel.TagName != "v12" || rel.TargetCommitish != "abc123" {
		t.Errorf("release = %+v", rel)
	}

	// scrubbing: marshalled payload carries exactly the declared subset
	data, _ := json.Marshal(rel)
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	want := map[string]bool{
		"id": true, "tag_name": true, "target_commitish": true, "name": true,
		"body": true, "html_url": true, "created_at": true, "published_at": true,
	}
	for key := range fields {
		if !want[key] {
			t.Errorf("Unexpected field %q survived scrubbing", key)
		}
	}
}

func TestClient_GetRelease_AbsentOn404(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	}))

	rel, err := c.GetRelease(context.Background(), "v404")
	if err != nil {
		t.Fatalf("A 404 must not be an error, got %v", err)
	}
	if rel != nil {
		t.Errorf("Expected absent release, got %+v", rel)
	}
}

func TestClient_CreateRelease(t *testing.T) {
	var received map[string]interface{}
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/acme/app/releases" {
			t.Errorf("Unexpected %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 1000, "tag_name": "v13", "target_commitish": "def456"}`)
	}))

	rel, err := c.CreateRelease(context.Background(), CreateParams{
		TagName:       "v13",
		Commit:        "def456",
		Name:          "Release v13",
		GenerateNotes: true,
	})
	if err != nil {
		t.Fatalf("CreateRelease failed: %v", err)
	}
	if rel.ID != 1000 {
		t.Errorf("ID = %d, want 1000", rel.ID)
	}
	if received["tag_name"] != "v13" || received["target_commitish"] != "def456" {
		t.Errorf("payload = %v", received)
	}
	if received["generate_release_notes"] != true {
		t.Error("Expected generate_release_notes in creation payload")
	}
}

func TestClient_UpdateRelease(t *testing.T) {
	var received map[string]interface{}
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/repos/acme/app/releases/999" {
			t.Errorf("Unexpected %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		fmt.Fprint(w, `{"id": 999, "tag_name": "v12", "body": "new notes"}`)
	}))

	body := "new notes"
	rel, err := c.UpdateRelease(context.Background(), 999, Patch{Body: &body})
	if err != nil {
		t.Fatalf("UpdateRelease failed: %v", err)
	}
	if rel.Body != "new notes" {
		t.Errorf("Body = %q", rel.Body)
	}
	if received["body"] != "new notes" {
		t.Errorf("payload = %v", received)
	}
	if _, present := received["name"]; present {
		t.Error("Nil patch fields must not be sent")
	}
}

func TestClient_DeleteRelease(t *testing.T) {
	deleted := false
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/repos/acme/app/releases/999" {
			t.Errorf("Unexpected %s %s", r.Method, r.URL.Path)
		}
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := c.DeleteRelease(context.Background(), 999); err != nil {
		t.Fatalf("DeleteRelease failed: %v", err)
	}
	if !deleted {
		t.Error("Expected DELETE request")
	}
}

func TestClient_DeleteRelease_AlreadyAbsent(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	}))

	if err := c.DeleteRelease(context.Background(), 999); err != nil {
		t.Errorf("Deleting an absent release must succeed, got %v", err)
	}
}

func TestClient_GenerateReleaseNotes(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/acme/app/releases/generate-notes" {
			t.Errorf("Unexpected %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"tag_name":"v12"`) {
			t.Errorf("payload = %s", body)
		}
		fmt.Fprint(w, `{"name": "v12", "body": "## What's Changed\n* Fix the widget"}`)
	}))

	notes, err := c.GenerateReleaseNotes(context.Background(), "v12")
	if err != nil {
		t.Fatalf("GenerateReleaseNotes failed: %v", err)
	}
	if !strings.Contains(notes, "Fix the widget") {
		t.Errorf("notes = %q", notes)
	}
}

func TestClient_ErrorDecoding422(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{
			"message": "Validation Failed",
			"errors": [
				{"resource": "Release", "field": "tag_name", "code": "already_exists"},
				{"resource": "Release", "field": "target_commitish", "code": "invalid"}
			]
		}`)
	}))

	_, err := c.CreateRelease(context.Background(), CreateParams{TagName: "v12", Commit: "abc"})
	var remoteErr *apierror.RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected RemoteError, got %v", err)
	}
	if remoteErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode = %d", remoteErr.StatusCode)
	}
	wantLines := []string{
		"E Release.tag_name: already_exists",
		"E Release.target_commitish: invalid",
	}
	for _, line := range wantLines {
		if !strings.Contains(remoteErr.Message, line) {
			t.Errorf("Message %q missing %q", remoteErr.Message, line)
		}
	}
}

func TestClient_ErrorDecoding400(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message": "Problems parsing JSON"}`)
	}))

	_, err := c.CreateRelease(context.Background(), CreateParams{TagName: "v12", Commit: "abc"})
	var remoteErr *apierror.RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected RemoteError, got %v", err)
	}
	if remoteErr.Message != "Problems parsing JSON" {
		t.Errorf("Message = %q", remoteErr.Message)
	}
}

func TestClient_ErrorDecoding_UnparseableBodyDegrades(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `not json at all`)
	}))

	_, err := c.CreateRelease(context.Background(), CreateParams{TagName: "v12", Commit: "abc"})
	var remoteErr *apierror.RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected RemoteError, got %v", err)
	}
	// decoding degrades to empty; the raw error is still attached
	if remoteErr.Message != "" {
		t.Errorf("Message = %q, want empty", remoteErr.Message)
	}
	if remoteErr.Err == nil {
		t.Error("Expected underlying error to be preserved")
	}
}

func TestClient_CompareURL(t *testing.T) {
	c := NewClient(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	got := c.CompareURL("aaaaaa...bbbbbb")
	if got != "acme/app/compare/aaaaaa...bbbbbb" {
		t.Errorf("CompareURL = %q", got)
	}
}
