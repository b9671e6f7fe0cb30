// Package release implements the release reconciliation engine.
//
// A Release mirrors one Heroku platform release and, for deployment-like
// releases, a corresponding tagged GitHub release. The engine classifies
// incoming releases, links each deployment to its chronological predecessor,
// pulls enriched metadata from the platform, pushes tags to GitHub with a
// pessimistic upsert, and drives batch operations over many records with
// per-record failure isolation.
package release

import (
	"fmt"
	"time"

	"releasetrack/internal/githubapi"
	"releasetrack/internal/heroku"
)

// ShortCommitWidth is the fixed prefix length used when rendering commit
// hashes in tag ranges and display strings.
const ShortCommitWidth = 8

const releaseNameTimeFormat = "2 Jan 2006 15:04"

// Type tags a release with the kind of platform event it records.
type Type string

const (
	TypeDeployment Type = "DEPLOYMENT" // slug deployment
	TypePromotion  Type = "PROMOTION"  // pipeline promotion
	TypeRollback   Type = "ROLLBACK"   // release rollback
	TypeAddOn      Type = "ADD_ON"     // add-on change
	TypeEnvVars    Type = "ENV_VARS"   // config var change
	TypeOther      Type = "OTHER"      // anything else
)

// deploymentTypes are the types that represent new code reaching the app.
// Only these participate in lineage and GitHub syncing.
var deploymentTypes = map[Type]bool{
	TypeDeployment: true,
	TypePromotion:  true,
}

// Release is one tracked platform release.
type Release struct {
	ID int64 // storage row id, 0 until inserted

	// Version is the platform-assigned release number. Unique, immutable,
	// and the natural ordering key for lineage.
	Version int

	Description       string
	Type              Type
	Commit            string // full or short commit hash, "" when n/a
	CommitDescription string
	Status            string
	SlugID            string

	CreatedAt *time.Time // platform-side creation time
	PulledAt  *time.Time // last successful pull from Heroku
	PushedAt  *time.Time // last successful push to GitHub

	// ParentVersion is the version of the chronologically nearest preceding
	// deployment-like release. Stored by value to keep the lineage chain an
	// acyclic pointer-free structure.
	ParentVersion *int

	// Parent is the hydrated parent record. Populated by the store and the
	// tracker; never persisted directly.
	Parent *Release

	// Raw scrubbed snapshots of the last API responses, kept for audit and
	// debug display.
	Heroku *heroku.Release
	GitHub *githubapi.Release
}

func (r *Release) String() string {
	return fmt.Sprintf("release v%d", r.Version)
}

// IsDeploymentLike reports whether this release represents new code reaching
// the app (deployment or promotion).
func (r *Release) IsDeploymentLike() bool {
	return deploymentTypes[r.Type]
}

// TagName returns the GitHub tag for this release, or "" for release types
// that are never pushed.
func (r *Release) TagName() string {
	if r.IsDeploymentLike() {
		return fmt.Sprintf("v%d", r.Version)
	}
	return ""
}

// ShortCommit returns a fixed-width prefix of the commit hash.
func (r *Release) ShortCommit() string {
	if len(r.Commit) > ShortCommitWidth {
		return r.Commit[:ShortCommitWidth]
	}
	return r.Commit
}

// DiffRange forms the base...head reference used to request a comparison
// from GitHub. Empty unless both this release and its parent carry a commit.
func (r *Release) DiffRange() string {
	if r.Commit == "" || r.Parent == nil || r.Parent.Commit == "" {
		return ""
	}
	return fmt.Sprintf("%s...%s", r.Parent.ShortCommit(), r.ShortCommit())
}

// IsSynced reports whether the release has been both pulled and pushed.
func (r *Release) IsSynced() bool {
	return r.PulledAt != nil && r.PushedAt != nil
}

// ReleaseName is the human-readable name pushed to GitHub.
func (r *Release) ReleaseName() string {
	if !r.IsDeploymentLike() {
		return ""
	}
	if r.CreatedAt != nil {
		return fmt.Sprintf("Release %s - %s", r.TagName(), r.CreatedAt.Format(releaseNameTimeFormat))
	}
	return fmt.Sprintf("Release %s", r.TagName())
}

// HerokuReleaseID returns the platform-side release id, "" when never pulled.
func (r *Release) HerokuReleaseID() string {
	if r.Heroku == nil {
		return ""
	}
	return r.Heroku.ID
}

// GitHubReleaseID returns the GitHub-side release id, 0 when never pushed.
func (r *Release) GitHubReleaseID() int64 {
	if r.GitHub == nil {
		return 0
	}
	return r.GitHub.ID
}

// GitHubReleaseURL returns the GitHub release page URL, "" when never pushed.
func (r *Release) GitHubReleaseURL() string {
	if r.GitHub == nil {
		return ""
	}
	return r.GitHub.HTMLURL
}

// SlugSize returns the build artifact size in bytes, 0 when unknown.
func (r *Release) SlugSize() int64 {
	if r.Heroku == nil || r.Heroku.Slug == nil {
		return 0
	}
	return r.Heroku.Slug.Size
}
