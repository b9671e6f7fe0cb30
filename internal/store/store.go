// Package store persists Release records in SQLite.
//
// The version column carries a uniqueness constraint: duplicate-insert
// attempts fail cleanly with release.ErrDuplicateVersion rather than
// corrupting state, which is the only safety net the single-writer design
// requires. Parent linkage is stored by value (the parent's version number)
// and hydrated one level deep on read.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"releasetrack/internal/githubapi"
	"releasetrack/internal/heroku"
	"releasetrack/internal/release"
)

// Store is a SQLite-backed release.Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS releases (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			release_type TEXT NOT NULL DEFAULT 'OTHER',
			commit_hash TEXT NOT NULL DEFAULT '',
			commit_description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			slug_id TEXT NOT NULL DEFAULT '',
			created_at TEXT,
			pulled_at TEXT,
			pushed_at TEXT,
			parent_version INTEGER,
			heroku_payload TEXT,
			github_payload TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_releases_type_version
		ON releases(release_type, version DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

const releaseColumns = `id, version, description, release_type, commit_hash,
	commit_description, status, slug_id, created_at, pulled_at, pushed_at,
	parent_version, heroku_payload, github_payload`

// deploymentTypeFilter matches the deployment-like release types.
const deploymentTypeFilter = `release_type IN ('DEPLOYMENT', 'PROMOTION')`

// Insert stores a new record and fills in its row id.
func (s *Store) Insert(ctx context.Context, r *release.Release) error {
	herokuJSON, githubJSON, err := marshalPayloads(r)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO releases
		(version, description, release_type, commit_hash, commit_description,
		 status, slug_id, created_at, pulled_at, pushed_at, parent_version,
		 heroku_payload, github_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.Version,
		r.Description,
		string(r.Type),
		r.Commit,
		r.CommitDescription,
		r.Status,
		r.SlugID,
		formatTime(r.CreatedAt),
		formatTime(r.PulledAt),
		formatTime(r.PushedAt),
		r.ParentVersion,
		herokuJSON,
		githubJSON,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("v%d: %w", r.Version, release.ErrDuplicateVersion)
		}
		return fmt.Errorf("failed to insert release: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	r.ID = id
	return nil
}

// Update rewrites the mutable fields of an existing record, keyed by
// version.
func (s *Store) Update(ctx context.Context, r *release.Release) error {
	herokuJSON, githubJSON, err := marshalPayloads(r)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE releases SET
			description = ?,
			release_type = ?,
			commit_hash = ?,
			commit_description = ?,
			status = ?,
			slug_id = ?,
			created_at = ?,
			pulled_at = ?,
			pushed_at = ?,
			parent_version = ?,
			heroku_payload = ?,
			github_payload = ?
		WHERE version = ?
	`,
		r.Description,
		string(r.Type),
		r.Commit,
		r.CommitDescription,
		r.Status,
		r.SlugID,
		formatTime(r.CreatedAt),
		formatTime(r.PulledAt),
		formatTime(r.PushedAt),
		r.ParentVersion,
		herokuJSON,
		githubJSON,
		r.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update release: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no release with version %d", r.Version)
	}
	return nil
}

// Get returns the record for a version, parent hydrated one level deep, or
// nil when no such record exists.
func (s *Store) Get(ctx context.Context, version int) (*release.Release, error) {
	r, err := s.getShallow(ctx, version)
	if err != nil || r == nil {
		return r, err
	}
	if err := s.hydrateParent(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) getShallow(ctx context.Context, version int) (*release.Release, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+releaseColumns+` FROM releases WHERE version = ?`, version)
	r, err := scanRelease(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query release: %w", err)
	}
	return r, nil
}

// LatestDeploymentBefore returns the deployment-like record with the
// greatest version strictly below version, or nil when none exists.
func (s *Store) LatestDeploymentBefore(ctx context.Context, version int) (*release.Release, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+releaseColumns+`
		FROM releases
		WHERE `+deploymentTypeFilter+` AND version < ?
		ORDER BY version DESC
		LIMIT 1
	`, version)
	r, err := scanRelease(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query parent release: %w", err)
	}
	return r, nil
}

// List returns records matching q in ascending version order.
func (s *Store) List(ctx context.Context, q release.ListQuery) ([]*release.Release, error) {
	query := `SELECT ` + releaseColumns + ` FROM releases`
	switch q.Missing {
	case "":
	case "parent":
		query += ` WHERE parent_version IS NULL AND ` + deploymentTypeFilter
	case "pulled":
		query += ` WHERE pulled_at IS NULL`
	case "pushed":
		query += ` WHERE pushed_at IS NULL`
	default:
		return nil, fmt.Errorf("unknown backfill filter %q", q.Missing)
	}
	query += ` ORDER BY version ASC`

	var args []interface{}
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query releases: %w", err)
	}
	defer rows.Close()

	var releases []*release.Release
	for rows.Next() {
		r, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan release: %w", err)
		}
		releases = append(releases, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	for _, r := range releases {
		if err := s.hydrateParent(ctx, r); err != nil {
			return nil, err
		}
	}
	return releases, nil
}

// Versions returns the set of stored version numbers.
func (s *Store) Versions(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM releases`)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer rows.Close()

	versions := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return versions, nil
}

// hydrateParent loads the parent record one level deep. A dangling
// parent_version (parent row since removed) resets to no parent.
func (s *Store) hydrateParent(ctx context.Context, r *release.Release) error {
	if r.ParentVersion == nil {
		return nil
	}
	parent, err := s.getShallow(ctx, *r.ParentVersion)
	if err != nil {
		return err
	}
	if parent == nil {
		r.ParentVersion = nil
		return nil
	}
	r.Parent = parent
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRelease(s scanner) (*release.Release, error) {
	var (
		r             release.Release
		releaseType   string
		createdAt     sql.NullString
		pulledAt      sql.NullString
		pushedAt      sql.NullString
		parentVersion sql.NullInt64
		herokuJSON    sql.NullString
		githubJSON    sql.NullString
	)
	err := s.Scan(
		&r.ID,
		&r.Version,
		&r.Description,
		&releaseType,
		&r.Commit,
		&r.CommitDescription,
		&r.Status,
		&r.SlugID,
		&createdAt,
		&pulledAt,
		&pushedAt,
		&parentVersion,
		&herokuJSON,
		&githubJSON,
	)
	if err != nil {
		return nil, err
	}
	r.Type = release.Type(releaseType)
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.PulledAt, err = parseTime(pulledAt); err != nil {
		return nil, err
	}
	if r.PushedAt, err = parseTime(pushedAt); err != nil {
		return nil, err
	}
	if parentVersion.Valid {
		v := int(parentVersion.Int64)
		r.ParentVersion = &v
	}
	if herokuJSON.Valid && herokuJSON.String != "" {
		var payload heroku.Release
		if err := json.Unmarshal([]byte(herokuJSON.String), &payload); err != nil {
			return nil, fmt.Errorf("failed to decode heroku payload: %w", err)
		}
		r.Heroku = &payload
	}
	if githubJSON.Valid && githubJSON.String != "" {
		var payload githubapi.Release
		if err := json.Unmarshal([]byte(githubJSON.String), &payload); err != nil {
			return nil, fmt.Errorf("failed to decode github payload: %w", err)
		}
		r.GitHub = &payload
	}
	return &r, nil
}

func marshalPayloads(r *release.Release) (herokuJSON, githubJSON *string, err error) {
	if r.Heroku != nil {
		data, err := json.Marshal(r.Heroku)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode heroku payload: %w", err)
		}
		s := string(data)
		herokuJSON = &s
	}
	if r.GitHub != nil {
		data, err := json.Marshal(r.GitHub)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode github payload: %w", err)
		}
		s := string(data)
		githubJSON = &s
	}
	return herokuJSON, githubJSON, nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func parseTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	return &t, nil
}
