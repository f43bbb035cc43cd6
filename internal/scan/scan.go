package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"
)

// FileEntry describes one regular file observed during a scan. Entries are
// immutable and discarded at the end of the cycle that produced them.
type FileEntry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Snapshot is the set of files captured by a single scan pass, together with
// their combined size. TotalSize always equals the sum of the entry sizes at
// the moment the snapshot was taken; the tree itself may have moved on since.
type Snapshot struct {
	Files     []FileEntry
	TotalSize int64
	Skipped   int
}

// SumSize returns the combined size of the given entries. An empty slice sums
// to zero.
func SumSize(entries []FileEntry) int64 {
	var total int64
	for _, entry := range entries {
		total += entry.Size
	}
	return total
}

// Scanner walks a directory tree and captures metadata for every regular file
// in it. Symlinks and other non-regular entries (sockets, devices, FIFOs) are
// opaque: they are neither followed, counted, nor ever deleted.
type Scanner struct {
	Log logrus.FieldLogger

	// Exclude holds doublestar patterns matched against the slash-separated
	// path relative to the scan root. Matching files and directories are
	// invisible to the snapshot.
	Exclude []string
}

// Scan traverses root and returns a snapshot of all reachable regular files.
// Entries that vanish or become unreadable mid-scan are skipped with a
// warning; only a failure on the root itself fails the scan.
func (s *Scanner) Scan(ctx context.Context, root string) (Snapshot, error) {
	info, err := os.Stat(root)
	if err != nil {
		return Snapshot{}, fmt.Errorf("stat root %s: %w", root, err)
	}
	if !info.IsDir() {
		return Snapshot{}, fmt.Errorf("root %s is not a directory", root)
	}

	var snap Snapshot

	// Explicit work-list so deep trees cannot grow the call stack.
	dirs := []string{root}

	for len(dirs) > 0 {
		dir := dirs[len(dirs)-1]
		dirs = dirs[:len(dirs)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			if dir == root {
				return Snapshot{}, fmt.Errorf("read root %s: %w", root, err)
			}
			s.logger().WithError(err).Warnf("skipping unreadable directory %s", dir)
			snap.Skipped++
			continue
		}

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return Snapshot{}, err
			}

			path := filepath.Join(dir, entry.Name())
			if s.excluded(root, path) {
				continue
			}

			if entry.IsDir() {
				dirs = append(dirs, path)
				continue
			}
			if !entry.Type().IsRegular() {
				continue
			}

			fi, err := entry.Info()
			if err != nil {
				// Vanished or became unreadable between ReadDir and stat.
				s.logger().WithError(err).Warnf("skipping %s", path)
				snap.Skipped++
				continue
			}

			snap.Files = append(snap.Files, FileEntry{
				Path:    path,
				Size:    fi.Size(),
				ModTime: fi.ModTime(),
			})
			snap.TotalSize += fi.Size()
		}
	}

	return snap, nil
}

func (s *Scanner) excluded(root, path string) bool {
	if len(s.Exclude) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range s.Exclude {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func (s *Scanner) logger() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}
