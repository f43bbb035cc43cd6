package sweep

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/hortopan/maxdirsize/internal/config"
	"github.com/hortopan/maxdirsize/internal/evict"
	"github.com/hortopan/maxdirsize/internal/scan"
)

// Sweeper drives the scan-aggregate-evict cycle on a fixed interval. A single
// goroutine runs the loop, so cycles never overlap: a tick that fires while a
// cycle is still in progress is simply the next receive after it finishes.
type Sweeper struct {
	cfg     config.Config
	log     logrus.FieldLogger
	scanner *scan.Scanner
	evictor *evict.Evictor
}

// New builds a Sweeper from an already validated configuration.
func New(cfg config.Config, log logrus.FieldLogger) *Sweeper {
	return &Sweeper{
		cfg:     cfg,
		log:     log,
		scanner: &scan.Scanner{Log: log, Exclude: cfg.Exclude},
		evictor: &evict.Evictor{Log: log, DryRun: cfg.DryRun},
	}
}

// Run executes one cycle immediately, then one per interval, until ctx is
// cancelled. Cycle failures are logged and confined to the cycle; Run itself
// only returns on shutdown, and returns nil.
func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.cfg.Interval()
	s.log.Infof("sweeping %s every %s, limit %s",
		s.cfg.Directory, interval, humanize.IBytes(uint64(s.cfg.MaxBytes())))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.Sweep(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep performs a single cycle: scan the tree, and if it is over the limit,
// evict oldest-first until it fits. Any failure is confined to this cycle;
// the next tick starts from a fresh scan.
func (s *Sweeper) Sweep(ctx context.Context) evict.Result {
	start := time.Now()

	snap, err := s.scanner.Scan(ctx, s.cfg.Directory)
	if err != nil {
		s.log.WithError(err).Errorf("scan %s failed, skipping cycle", s.cfg.Directory)
		s.logSummary(snap, evict.Result{}, start)
		return evict.Result{}
	}

	res, err := s.evictor.Run(ctx, snap, s.cfg.MaxBytes())
	if err != nil {
		// Only cancellation reaches here; per-file failures are absorbed by
		// the evictor.
		s.log.WithError(err).Debug("cycle interrupted")
		return res
	}

	if s.cfg.PruneEmptyDirs && res.FilesRemoved > 0 && !s.cfg.DryRun {
		s.pruneEmptyDirs(ctx)
	}

	s.logSummary(snap, res, start)

	return res
}

func (s *Sweeper) logSummary(snap scan.Snapshot, res evict.Result, start time.Time) {
	s.log.WithFields(logrus.Fields{
		"total":   humanize.IBytes(uint64(snap.TotalSize)),
		"freed":   humanize.IBytes(uint64(res.BytesFreed)),
		"removed": res.FilesRemoved,
		"skipped": snap.Skipped,
		"elapsed": time.Since(start).Round(time.Millisecond).String(),
	}).Info("cycle complete")
}

// pruneEmptyDirs removes directories left empty under the root, deepest
// first so parents become prunable in the same pass. The root itself is
// never removed. Removal of a directory a writer just repopulated fails
// with ENOTEMPTY and is silently left alone.
func (s *Sweeper) pruneEmptyDirs(ctx context.Context) {
	var dirs []string
	_ = filepath.WalkDir(s.cfg.Directory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != s.cfg.Directory {
			dirs = append(dirs, path)
		}
		return nil
	})

	sort.Slice(dirs, func(i, j int) bool {
		return len(dirs[i]) > len(dirs[j])
	})

	for _, dir := range dirs {
		if ctx.Err() != nil {
			return
		}
		if err := os.Remove(dir); err == nil {
			s.log.Debugf("pruned empty directory %s", dir)
		}
	}
}
