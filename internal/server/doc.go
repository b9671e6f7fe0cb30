// Package server implements the HTTP trigger surface for releasetrack.
//
// This package provides:
//   - Per-release operator actions (pull, push, sync, update-parent,
//     delete, notes)
//   - Batch endpoints reporting succeeded/failed/ignored counts
//   - Crawl and self-registration triggers
//   - Health and release listing endpoints for monitoring
//   - Structured logging of all HTTP requests and per-IP rate limiting
//
// No business logic lives here: handlers decode input, call the release
// tracker and map the error taxonomy onto HTTP statuses.
package server
