package evict

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/hortopan/maxdirsize/internal/scan"
)

// Result summarizes one eviction pass.
type Result struct {
	// BytesFreed and FilesRemoved count deletions performed by this pass.
	BytesFreed   int64
	FilesRemoved int

	// Vanished counts candidates another actor removed first. Their size is
	// subtracted from Remaining exactly once but not credited to BytesFreed.
	Vanished int

	// Failed counts candidates that could not be removed and still occupy
	// space.
	Failed int

	// Remaining is the running total after the pass.
	Remaining int64
}

// Evictor deletes the oldest files from a snapshot until the tree fits under
// a byte threshold.
type Evictor struct {
	Log logrus.FieldLogger

	// DryRun performs the full selection and accounting without touching the
	// filesystem.
	DryRun bool
}

// Run removes files from snap, oldest modification time first with ties
// broken lexically by path, until the running total is at or below maxBytes
// or every candidate has been considered. A candidate that fails to delete is
// skipped and never blocks the ones after it.
func (e *Evictor) Run(ctx context.Context, snap scan.Snapshot, maxBytes int64) (Result, error) {
	res := Result{Remaining: snap.TotalSize}
	if snap.TotalSize <= maxBytes {
		return res, nil
	}

	candidates := make([]scan.FileEntry, len(snap.Files))
	copy(candidates, snap.Files)
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ModTime.Equal(candidates[j].ModTime) {
			return candidates[i].Path < candidates[j].Path
		}
		return candidates[i].ModTime.Before(candidates[j].ModTime)
	})

	for _, file := range candidates {
		if res.Remaining <= maxBytes {
			break
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if e.DryRun {
			e.logger().Infof("dry-run: would remove %s (%d bytes)", file.Path, file.Size)
			res.Remaining -= file.Size
			res.BytesFreed += file.Size
			res.FilesRemoved++
			continue
		}

		err := os.Remove(file.Path)
		switch {
		case err == nil:
			res.Remaining -= file.Size
			res.BytesFreed += file.Size
			res.FilesRemoved++
			e.logger().Debugf("removed %s (%d bytes)", file.Path, file.Size)
		case errors.Is(err, fs.ErrNotExist):
			// Another actor beat us to it. The space is gone either way, so
			// subtract the size once and keep going.
			res.Remaining -= file.Size
			res.Vanished++
			e.logger().Debugf("already gone: %s", file.Path)
		default:
			res.Failed++
			e.logger().WithError(err).Warnf("cannot remove %s", file.Path)
		}
	}

	return res, nil
}

func (e *Evictor) logger() logrus.FieldLogger {
	if e.Log != nil {
		return e.Log
	}
	return logrus.StandardLogger()
}
