package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"releasetrack/internal/apierror"
	"releasetrack/internal/release"

	"github.com/go-chi/chi/v5"
)

// releaseView is the JSON shape returned for a single release.
type releaseView struct {
	Version       int    `json:"version"`
	Type          string `json:"type"`
	Description   string `json:"description,omitempty"`
	Status        string `json:"status,omitempty"`
	TagName       string `json:"tag_name,omitempty"`
	ShortCommit   string `json:"short_commit,omitempty"`
	DiffRange     string `json:"diff_range,omitempty"`
	ParentVersion *int   `json:"parent_version,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	PulledAt      string `json:"pulled_at,omitempty"`
	PushedAt      string `json:"pushed_at,omitempty"`
	Synced        bool   `json:"synced"`
	GitHubURL     string `json:"github_url,omitempty"`
}

func viewOf(r *release.Release) releaseView {
	return releaseView{
		Version:       r.Version,
		Type:          string(r.Type),
		Description:   r.Description,
		Status:        r.Status,
		TagName:       r.TagName(),
		ShortCommit:   r.ShortCommit(),
		DiffRange:     r.DiffRange(),
		ParentVersion: r.ParentVersion,
		CreatedAt:     formatTime(r.CreatedAt),
		PulledAt:      formatTime(r.PulledAt),
		PushedAt:      formatTime(r.PushedAt),
		Synced:        r.IsSynced(),
		GitHubURL:     r.GitHubReleaseURL(),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// HandleHealth responds to health checks.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// HandleListReleases returns stored releases in ascending version order.
// The optional "missing" query parameter selects a backfill scan (parent,
// pulled or pushed); "max" caps the listing.
func (s *Server) HandleListReleases(w http.ResponseWriter, r *http.Request) {
	q := release.ListQuery{
		Missing: r.URL.Query().Get("missing"),
		Limit:   queryInt(r, "max", 0),
	}
	releases, err := s.Tracker.List(r.Context(), q)
	if err != nil {
		s.respondError(w, err)
		return
	}
	views := make([]releaseView, 0, len(releases))
	for _, rel := range releases {
		views = append(views, viewOf(rel))
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(views),
		"releases": views,
	})
}

// HandleGetRelease returns one release by version.
func (s *Server) HandleGetRelease(w http.ResponseWriter, r *http.Request) {
	rel, ok := s.loadRelease(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, viewOf(rel))
}

// HandleReleaseAction runs a single operation against one release.
// Supported actions: pull, push, sync, update-parent, delete, notes.
func (s *Server) HandleReleaseAction(w http.ResponseWriter, r *http.Request) {
	rel, ok := s.loadRelease(w, r)
	if !ok {
		return
	}

	var err error
	switch action := chi.URLParam(r, "action"); action {
	case "pull":
		err = s.Tracker.Pull(r.Context(), rel)
	case "push":
		err = s.Tracker.Push(r.Context(), rel)
	case "sync":
		err = s.Tracker.Sync(r.Context(), rel)
	case "update-parent":
		err = s.Tracker.UpdateParent(r.Context(), rel)
	case "delete":
		err = s.Tracker.DeleteFromHost(r.Context(), rel)
	case "notes":
		err = s.Tracker.UpdateReleaseNotes(r.Context(), rel)
	default:
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown action: " + action})
		return
	}
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, viewOf(rel))
}

// HandleBatch runs a named operation across stored releases and reports the
// succeeded/failed/ignored counts. "force" re-processes records whose
// idempotency markers are already set; "max" overrides the batch ceiling.
func (s *Server) HandleBatch(w http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")
	opts := release.BatchOptions{
		Force:    queryBool(r, "force"),
		MaxCount: queryInt(r, "max", 0),
	}
	results, err := s.Tracker.RunBatch(r.Context(), operation, opts)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, results)
}

// HandleCrawl ingests new releases from the platform listing.
func (s *Server) HandleCrawl(w http.ResponseWriter, r *http.Request) {
	results, err := s.Tracker.Crawl(r.Context(), queryInt(r, "max", 0))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, results)
}

// HandleRegister self-registers the currently running release from dyno
// runtime metadata.
func (s *Server) HandleRegister(w http.ResponseWriter, r *http.Request) {
	rel, err := s.Tracker.RegisterCurrent(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, viewOf(rel))
}

// loadRelease resolves the version URL parameter to a stored record.
func (s *Server) loadRelease(w http.ResponseWriter, r *http.Request) (*release.Release, bool) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid version number"})
		return nil, false
	}
	rel, err := s.Tracker.Get(r.Context(), version)
	if err != nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return nil, false
	}
	return rel, true
}

// respondError maps the error taxonomy onto HTTP statuses.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var (
		authErr    *apierror.AuthenticationError
		remoteErr  *apierror.RemoteError
		preErr     *release.PreconditionError
		invalidErr *release.ValidationError
	)
	switch {
	case errors.As(err, &authErr):
		status = http.StatusServiceUnavailable
	case errors.As(err, &remoteErr):
		status = http.StatusBadGateway
	case errors.As(err, &preErr):
		status = http.StatusConflict
	case errors.As(err, &invalidErr):
		status = http.StatusBadRequest
	}
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func queryBool(r *http.Request, key string) bool {
	v := r.URL.Query().Get(key)
	return v == "1" || v == "true" || v == "yes"
}
