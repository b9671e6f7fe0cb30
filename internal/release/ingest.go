package release

import (
	"context"
	"strconv"
	"strings"
	"time"

	"releasetrack/internal/apierror"
	"releasetrack/internal/heroku"
)

// Crawl pages through the platform release listing and ingests every release
// not already stored. Already-stored versions are counted as ignored;
// per-release ingestion failures (including racing duplicate inserts) are
// logged and counted, never fatal.
func (t *Tracker) Crawl(ctx context.Context, maxCount int) (BatchResults, error) {
	if maxCount <= 0 {
		maxCount = t.cfg.MaxBatchCount
	}
	raw, err := t.platform.Crawl(ctx, maxCount, heroku.DefaultPageSize)
	if err != nil {
		return BatchResults{}, err
	}
	existing, err := t.store.Versions(ctx)
	if err != nil {
		return BatchResults{}, err
	}

	var results BatchResults
	for i := range raw {
		if existing[raw[i].Version] {
			results.Ignored++
			continue
		}
		if _, err := t.ingest(ctx, &raw[i]); err != nil {
			results.Failed++
			t.logger.Error("failed to ingest release",
				"version", raw[i].Version,
				"error", err)
			continue
		}
		results.Succeeded++
	}
	t.logger.Info("crawl complete",
		"crawled", len(raw),
		"created", results.Succeeded,
		"failed", results.Failed,
		"skipped", results.Ignored)
	return results, nil
}

// ingest builds a Release from a raw platform listing payload and inserts
// it. Slug deployments are enriched with slug detail so the stored commit is
// the full-length hash GitHub needs, and deployment-like releases get their
// parent resolved at creation.
func (t *Tracker) ingest(ctx context.Context, raw *heroku.Release) (*Release, error) {
	releaseType, commit, err := Classify(raw.Description)
	if err != nil {
		return nil, err
	}

	commitDescription := ""
	if releaseType == TypeDeployment && raw.Slug != nil && raw.Slug.ID != "" {
		slug, err := t.platform.GetSlug(ctx, raw.Slug.ID)
		if err != nil {
			return nil, err
		}
		raw.Slug.Merge(slug)
		commitDescription = slug.CommitDescription
		// the description only carries the short hash; GitHub needs the
		// full-length one for some API operations
		commit = slug.Commit
	}

	r := &Release{
		Version:           raw.Version,
		Description:       raw.Description,
		Type:              releaseType,
		Commit:            commit,
		CommitDescription: commitDescription,
		Status:            raw.Status,
		Heroku:            raw,
	}
	if raw.Slug != nil {
		r.SlugID = raw.Slug.ID
	}
	if created, err := time.Parse(time.RFC3339, raw.CreatedAt); err == nil {
		r.CreatedAt = &created
	}
	if r.IsDeploymentLike() {
		parent, err := t.store.LatestDeploymentBefore(ctx, r.Version)
		if err != nil {
			return nil, err
		}
		r.Parent = parent
		if parent != nil {
			r.ParentVersion = &parent.Version
		}
	}
	if err := t.store.Insert(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// RegisterCurrent creates a skeleton record for the release currently
// running, from the dyno runtime metadata the platform injects into the
// process environment. Fails before any store write when the metadata is
// incomplete.
func (t *Tracker) RegisterCurrent(ctx context.Context) (*Release, error) {
	meta := t.cfg.Runtime
	for _, required := range []struct {
		value   string
		setting string
	}{
		{meta.ReleaseVersion, "HEROKU_RELEASE_VERSION"},
		{meta.ReleaseCreatedAt, "HEROKU_RELEASE_CREATED_AT"},
		{meta.SlugCommit, "HEROKU_SLUG_COMMIT"},
		{meta.SlugDescription, "HEROKU_SLUG_DESCRIPTION"},
	} {
		if required.value == "" {
			return nil, &apierror.AuthenticationError{Setting: required.setting}
		}
	}

	version, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(meta.ReleaseVersion), "v"))
	if err != nil {
		return nil, &ValidationError{Reason: "malformed HEROKU_RELEASE_VERSION: " + meta.ReleaseVersion}
	}
	releaseType, _, err := Classify(meta.SlugDescription)
	if err != nil {
		return nil, err
	}

	r := &Release{
		Version:           version,
		Type:              releaseType,
		Commit:            meta.SlugCommit,
		CommitDescription: meta.SlugDescription,
	}
	if created, err := time.Parse(time.RFC3339, meta.ReleaseCreatedAt); err == nil {
		r.CreatedAt = &created
	}
	if err := t.store.Insert(ctx, r); err != nil {
		return nil, err
	}
	if err := t.UpdateParent(ctx, r); err != nil {
		return nil, err
	}
	t.logger.Info("registered current release", "version", r.Version, "type", r.Type)
	return r, nil
}
