package release

import (
	"context"
	"fmt"
)

// Batch operation names accepted by RunBatch.
const (
	OpPull         = "pull"
	OpPush         = "push"
	OpSync         = "sync"
	OpUpdateParent = "update-parent"
	OpUpdateNotes  = "update-notes"
)

// BatchResults counts the per-record outcomes of a batch run.
type BatchResults struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Ignored   int `json:"ignored"`
}

// BatchOptions tune a batch run.
type BatchOptions struct {
	// Force disables the already-pulled/pushed/synced skip predicates so
	// records are reprocessed even when their idempotency markers are set.
	Force bool

	// MaxCount caps the number of records processed. Zero falls back to
	// the configured batch ceiling.
	MaxCount int
}

type batchOperation struct {
	run  func(ctx context.Context, r *Release) error
	skip func(r *Release, force bool) bool
}

func (t *Tracker) batchOperations() map[string]batchOperation {
	return map[string]batchOperation{
		OpUpdateParent: {
			run:  t.UpdateParent,
			skip: func(r *Release, _ bool) bool { return !r.IsDeploymentLike() },
		},
		OpPull: {
			run:  t.Pull,
			skip: func(r *Release, force bool) bool { return !force && r.PulledAt != nil },
		},
		OpPush: {
			run:  t.Push,
			skip: func(r *Release, force bool) bool { return !force && r.PushedAt != nil },
		},
		OpSync: {
			run:  t.Sync,
			skip: func(r *Release, force bool) bool { return !force && r.IsSynced() },
		},
		OpUpdateNotes: {
			run:  t.UpdateReleaseNotes,
			skip: func(r *Release, _ bool) bool { return !r.IsDeploymentLike() },
		},
	}
}

// RunBatch applies a named operation across stored records in ascending
// version order, truncated to the batch ceiling. Lineage-sensitive
// operations need earlier records processed before later ones, hence the
// forced ordering.
//
// One record's failure never aborts the batch: failures are logged, counted
// and the run continues with the next record.
func (t *Tracker) RunBatch(ctx context.Context, operation string, opts BatchOptions) (BatchResults, error) {
	op, ok := t.batchOperations()[operation]
	if !ok {
		return BatchResults{}, fmt.Errorf("unknown batch operation %q", operation)
	}

	maxCount := opts.MaxCount
	if maxCount <= 0 {
		maxCount = t.cfg.MaxBatchCount
	}
	records, err := t.store.List(ctx, ListQuery{Limit: maxCount})
	if err != nil {
		return BatchResults{}, err
	}

	var results BatchResults
	for _, r := range records {
		if op.skip(r, opts.Force) {
			results.Ignored++
			continue
		}
		if err := op.run(ctx, r); err != nil {
			results.Failed++
			t.logger.Error("batch operation failed",
				"operation", operation,
				"version", r.Version,
				"error", err)
			continue
		}
		results.Succeeded++
	}
	t.logger.Info("batch complete",
		"operation", operation,
		"succeeded", results.Succeeded,
		"failed", results.Failed,
		"ignored", results.Ignored)
	return results, nil
}
