package release

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"releasetrack/internal/githubapi"
	"releasetrack/internal/heroku"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory Store keyed by version.
type fakeStore struct {
	records map[int]*Release
	updates int
}

func newFakeStore(records ...*Release) *fakeStore {
	s := &fakeStore{records: make(map[int]*Release)}
	for _, r := range records {
		s.records[r.Version] = r
	}
	return s
}

func (s *fakeStore) Insert(ctx context.Context, r *Release) error {
	if _, exists := s.records[r.Version]; exists {
		return fmt.Errorf("v%d: %w", r.Version, ErrDuplicateVersion)
	}
	r.ID = int64(len(s.records) + 1)
	s.records[r.Version] = r
	return nil
}

func (s *fakeStore) Update(ctx context.Context, r *Release) error {
	if _, exists := s.records[r.Version]; !exists {
		return fmt.Errorf("no release with version %d", r.Version)
	}
	s.records[r.Version] = r
	s.updates++
	return nil
}

func (s *fakeStore) Get(ctx context.Context, version int) (*Release, error) {
	return s.records[version], nil
}

func (s *fakeStore) LatestDeploymentBefore(ctx context.Context, version int) (*Release, error) {
	var parent *Release
	for v, r := range s.records {
		if v >= version || !r.IsDeploymentLike() {
			continue
		}
		if parent == nil || v > parent.Version {
			parent = r
		}
	}
	return parent, nil
}

func (s *fakeStore) List(ctx context.Context, q ListQuery) ([]*Release, error) {
	var releases []*Release
	for _, r := range s.records {
		switch q.Missing {
		case "parent":
			if r.ParentVersion != nil || !r.IsDeploymentLike() {
				continue
			}
		case "pulled":
			if r.PulledAt != nil {
				continue
			}
		case "pushed":
			if r.PushedAt != nil {
				continue
			}
		}
		releases = append(releases, r)
	}
	sort.Slice(releases, func(i, j int) bool { return releases[i].Version < releases[j].Version })
	if q.Limit > 0 && len(releases) > q.Limit {
		releases = releases[:q.Limit]
	}
	return releases, nil
}

func (s *fakeStore) Versions(ctx context.Context) (map[int]bool, error) {
	versions := make(map[int]bool)
	for v := range s.records {
		versions[v] = true
	}
	return versions, nil
}

// fakePlatform is an in-memory PlatformClient.
type fakePlatform struct {
	crawled  []heroku.Release
	releases map[int]*heroku.Release
	slugs    map[string]*heroku.Slug
	err      error

	getReleaseCalls int
	getSlugCalls    int
}

func (p *fakePlatform) Crawl(ctx context.Context, maxCount, pageSize int) ([]heroku.Release, error) {
	if p.err != nil {
		return nil, p.err
	}
	if len(p.crawled) > maxCount {
		return p.crawled[:maxCount], nil
	}
	return p.crawled, nil
}

func (p *fakePlatform) GetRelease(ctx context.Context, version int) (*heroku.Release, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.getReleaseCalls++
	r, ok := p.releases[version]
	if !ok {
		return nil, fmt.Errorf("no fake release for version %d", version)
	}
	copied := *r
	if r.Slug != nil {
		slugCopy := *r.Slug
		copied.Slug = &slugCopy
	}
	return &copied, nil
}

func (p *fakePlatform) GetSlug(ctx context.Context, slugID string) (*heroku.Slug, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.getSlugCalls++
	s, ok := p.slugs[slugID]
	if !ok {
		return nil, fmt.Errorf("no fake slug %s", slugID)
	}
	return s, nil
}

// fakeHost is an in-memory HostClient keyed by tag name.
type fakeHost struct {
	releases map[string]*githubapi.Release
	nextID   int64
	notes    string
	err      error

	creates    int
	updates    int
	deletes    int
	notesCalls int
	lastCreate githubapi.CreateParams
	lastPatch  githubapi.Patch
}

func newFakeHost() *fakeHost {
	return &fakeHost{releases: make(map[string]*githubapi.Release), nextID: 1000}
}

func (h *fakeHost) GetRelease(ctx context.Context, tagName string) (*githubapi.Release, error) {
	if h.err != nil {
		return nil, h.err
	}
	return h.releases[tagName], nil
}

func (h *fakeHost) CreateRelease(ctx context.Context, params githubapi.CreateParams) (*githubapi.Release, error) {
	if h.err != nil {
		return nil, h.err
	}
	h.creates++
	h.lastCreate = params
	h.nextID++
	rel := &githubapi.Release{
		ID:              h.nextID,
		TagName:         params.TagName,
		TargetCommitish: params.Commit,
		Name:            params.Name,
		Body:            params.Body,
		HTMLURL:         fmt.Sprintf("https://github.com/acme/app/releases/tag/%s", params.TagName),
	}
	h.releases[params.TagName] = rel
	return rel, nil
}

func (h *fakeHost) UpdateRelease(ctx context.Context, releaseID int64, patch githubapi.Patch) (*githubapi.Release, error) {
	if h.err != nil {
		return nil, h.err
	}
	h.updates++
	h.lastPatch = patch
	for _, rel := range h.releases {
		if rel.ID == releaseID {
			if patch.Name != nil {
				rel.Name = *patch.Name
			}
			if patch.Body != nil {
				rel.Body = *patch.Body
			}
			if patch.TargetCommitish != nil {
				rel.TargetCommitish = *patch.TargetCommitish
			}
			return rel, nil
		}
	}
	return nil, fmt.Errorf("no fake github release with id %d", releaseID)
}

func (h *fakeHost) DeleteRelease(ctx context.Context, releaseID int64) error {
	if h.err != nil {
		return h.err
	}
	h.deletes++
	for tag, rel := range h.releases {
		if rel.ID == releaseID {
			delete(h.releases, tag)
			return nil
		}
	}
	// absent release deletes are success
	return nil
}

func (h *fakeHost) GenerateReleaseNotes(ctx context.Context, tagName string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	h.notesCalls++
	return h.notes, nil
}
