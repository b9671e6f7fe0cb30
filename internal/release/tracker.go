package release

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"releasetrack/internal/apierror"
	"releasetrack/internal/config"
	"releasetrack/internal/githubapi"
	"releasetrack/internal/heroku"
)

// Store is the durable keyed store of Release records.
type Store interface {
	// Insert stores a new record, returning ErrDuplicateVersion when a
	// record with the same version already exists.
	Insert(ctx context.Context, r *Release) error

	// Update rewrites the mutable fields of an existing record.
	Update(ctx context.Context, r *Release) error

	// Get returns the record for a version, parent hydrated, or nil when
	// no such record exists.
	Get(ctx context.Context, version int) (*Release, error)

	// LatestDeploymentBefore returns the deployment-like record with the
	// greatest version strictly less than version, or nil when none exists.
	LatestDeploymentBefore(ctx context.Context, version int) (*Release, error)

	// List returns records matching q in ascending version order.
	List(ctx context.Context, q ListQuery) ([]*Release, error)

	// Versions returns the set of stored version numbers.
	Versions(ctx context.Context) (map[int]bool, error)
}

// ListQuery filters a store listing. Results are always ordered by
// ascending version.
type ListQuery struct {
	// Missing selects backfill scans: "parent", "pulled" or "pushed"
	// restricts the listing to records where that field is unset. Empty
	// means no filter.
	Missing string

	// Limit caps the number of records returned. Zero means no cap.
	Limit int
}

// PlatformClient fetches release data from the hosting platform.
type PlatformClient interface {
	Crawl(ctx context.Context, maxCount, pageSize int) ([]heroku.Release, error)
	GetRelease(ctx context.Context, version int) (*heroku.Release, error)
	GetSlug(ctx context.Context, slugID string) (*heroku.Slug, error)
}

// HostClient mirrors releases to the source host.
type HostClient interface {
	GetRelease(ctx context.Context, tagName string) (*githubapi.Release, error)
	CreateRelease(ctx context.Context, params githubapi.CreateParams) (*githubapi.Release, error)
	UpdateRelease(ctx context.Context, releaseID int64, patch githubapi.Patch) (*githubapi.Release, error)
	DeleteRelease(ctx context.Context, releaseID int64) error
	GenerateReleaseNotes(ctx context.Context, tagName string) (string, error)
}

// Tracker drives the per-record reconciliation operations.
type Tracker struct {
	store    Store
	platform PlatformClient
	host     HostClient
	cfg      *config.Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewTracker creates a tracker over the given collaborators.
func NewTracker(store Store, platform PlatformClient, host HostClient, cfg *config.Config, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:    store,
		platform: platform,
		host:     host,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Pull fetches fresh release and slug data from the platform and merges it
// into the record. Never trusts stale cached fields. Sets PulledAt.
func (t *Tracker) Pull(ctx context.Context, r *Release) error {
	if r.Version == 0 {
		return &PreconditionError{Version: r.Version, Field: "version"}
	}
	t.logger.Debug("pulling release from heroku", "version", r.Version)

	raw, err := t.platform.GetRelease(ctx, r.Version)
	if err != nil {
		return err
	}
	if raw.Slug != nil && raw.Slug.ID != "" {
		slug, err := t.platform.GetSlug(ctx, raw.Slug.ID)
		if err != nil {
			return err
		}
		raw.Slug.Merge(slug)
	}
	if err := r.applyPlatform(raw); err != nil {
		return err
	}
	now := t.now()
	r.PulledAt = &now
	return t.store.Update(ctx, r)
}

// applyPlatform merges a scrubbed platform payload into the record.
func (r *Release) applyPlatform(raw *heroku.Release) error {
	releaseType, _, err := Classify(raw.Description)
	if err != nil {
		return err
	}
	r.Status = raw.Status
	r.Description = raw.Description
	r.Type = releaseType
	if created, err := time.Parse(time.RFC3339, raw.CreatedAt); err == nil {
		r.CreatedAt = &created
	}
	if raw.Slug != nil {
		r.SlugID = raw.Slug.ID
		if raw.Slug.Commit != "" {
			r.Commit = raw.Slug.Commit
		}
		if raw.Slug.CommitDescription != "" {
			r.CommitDescription = raw.Slug.CommitDescription
		}
	}
	r.Heroku = raw
	return nil
}

// UpdateParent recomputes and persists the record's lineage link: the
// deployment-like record with the greatest version strictly below this one.
// Non-deployment-like records always resolve to no parent. Absence of an
// earlier deployment is not an error.
func (t *Tracker) UpdateParent(ctx context.Context, r *Release) error {
	parent, err := t.resolveParent(ctx, r)
	if err != nil {
		return err
	}
	r.Parent = parent
	r.ParentVersion = nil
	if parent != nil {
		r.ParentVersion = &parent.Version
	}
	return t.store.Update(ctx, r)
}

func (t *Tracker) resolveParent(ctx context.Context, r *Release) (*Release, error) {
	if !r.IsDeploymentLike() {
		return nil, nil
	}
	return t.store.LatestDeploymentBefore(ctx, r.Version)
}

// Push mirrors the record to GitHub with a pessimistic upsert: GET by tag,
// PATCH the release if it exists, otherwise POST a new one. Sets PushedAt.
//
// Release-notes auto-generation is only requested when the parent has itself
// been pushed; generating notes against an unpushed parent would pull the
// entire prior commit history into the body.
func (t *Tracker) Push(ctx context.Context, r *Release) error {
	if !t.cfg.GitHub.SyncEnabled {
		return &apierror.AuthenticationError{Setting: "GITHUB_SYNC_ENABLED"}
	}
	tagName := r.TagName()
	if tagName == "" {
		return &PreconditionError{Version: r.Version, Field: "tag_name"}
	}
	if r.Commit == "" {
		return &PreconditionError{Version: r.Version, Field: "commit"}
	}
	if err := t.hydrateParent(ctx, r); err != nil {
		return err
	}
	t.logger.Debug("pushing release to github", "version", r.Version, "tag", tagName)

	existing, err := t.host.GetRelease(ctx, tagName)
	if err != nil {
		return err
	}
	name := r.ReleaseName()
	if existing != nil {
		updated, err := t.host.UpdateRelease(ctx, existing.ID, githubapi.Patch{
			Name:            &name,
			TargetCommitish: &r.Commit,
		})
		if err != nil {
			return err
		}
		r.GitHub = updated
	} else {
		generateNotes := r.Parent != nil && r.Parent.PushedAt != nil
		created, err := t.host.CreateRelease(ctx, githubapi.CreateParams{
			TagName:       tagName,
			Commit:        r.Commit,
			Name:          name,
			GenerateNotes: generateNotes,
		})
		if err != nil {
			return err
		}
		r.GitHub = created
	}
	now := t.now()
	r.PushedAt = &now
	return t.store.Update(ctx, r)
}

// hydrateParent loads the parent record when only its version is known.
func (t *Tracker) hydrateParent(ctx context.Context, r *Release) error {
	if r.Parent != nil || r.ParentVersion == nil {
		return nil
	}
	parent, err := t.store.Get(ctx, *r.ParentVersion)
	if err != nil {
		return err
	}
	r.Parent = parent
	return nil
}

// Sync pulls from Heroku, refreshes lineage, then pushes to GitHub. Pull
// must complete before push is attempted: push depends on freshly-pulled
// commit data.
func (t *Tracker) Sync(ctx context.Context, r *Release) error {
	if err := t.Pull(ctx, r); err != nil {
		return err
	}
	if err := t.UpdateParent(ctx, r); err != nil {
		return err
	}
	return t.Push(ctx, r)
}

// DeleteFromHost removes the GitHub release and clears the local push
// markers. A record with no GitHub release id is already absent remotely and
// this is a no-op. This is the only operation that rolls back a sync marker.
func (t *Tracker) DeleteFromHost(ctx context.Context, r *Release) error {
	releaseID := r.GitHubReleaseID()
	if releaseID == 0 {
		return nil
	}
	if err := t.host.DeleteRelease(ctx, releaseID); err != nil {
		return err
	}
	r.GitHub = nil
	r.PushedAt = nil
	return t.store.Update(ctx, r)
}

// UpdateReleaseNotes regenerates the GitHub release notes and re-pushes the
// body and name. Useful when a release drifts out of sync or the notes
// format changes. Fails when the release was never pushed.
func (t *Tracker) UpdateReleaseNotes(ctx context.Context, r *Release) error {
	releaseID := r.GitHubReleaseID()
	if r.PushedAt == nil || releaseID == 0 {
		return &PreconditionError{Version: r.Version, Field: "pushed_at"}
	}
	body, err := t.host.GenerateReleaseNotes(ctx, r.TagName())
	if err != nil {
		return err
	}
	name := r.ReleaseName()
	updated, err := t.host.UpdateRelease(ctx, releaseID, githubapi.Patch{
		Name: &name,
		Body: &body,
	})
	if err != nil {
		return err
	}
	r.GitHub = updated
	return t.store.Update(ctx, r)
}

// Get loads a single record by version. Returns an error when the version
// is unknown.
func (t *Tracker) Get(ctx context.Context, version int) (*Release, error) {
	r, err := t.store.Get(ctx, version)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("release v%d not found", version)
	}
	return r, nil
}

// List returns stored records in ascending version order.
func (t *Tracker) List(ctx context.Context, q ListQuery) ([]*Release, error) {
	return t.store.List(ctx, q)
}
