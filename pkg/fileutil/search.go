// Package fileutil holds small filesystem helpers shared by the CLI.
package fileutil

import (
	"os"
	"path/filepath"
)

// DefaultConfigPaths returns the locations searched for a configuration file
// when none is given explicitly, in priority order: working directory, the
// user's config directory, then the system-wide directory.
func DefaultConfigPaths(filename string) []string {
	paths := []string{filepath.Join(".", filename)}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "releasetrack", filename))
	}
	paths = append(paths, filepath.Join("/etc", "releasetrack", filename))
	return paths
}

// FindConfigOptional searches the default locations for a configuration file.
// Returns "" when none exists; configuration files are optional.
func FindConfigOptional(filename string) string {
	return FirstExisting(DefaultConfigPaths(filename))
}

// FirstExisting returns the first path that exists as a regular file, or ""
// when none do.
func FirstExisting(paths []string) string {
	for _, path := range paths {
		if FileExists(path) {
			return path
		}
	}
	return ""
}

// FileExists reports whether path exists and is a regular file. Directories
// return false.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
