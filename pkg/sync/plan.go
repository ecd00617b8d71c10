package sync

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Classification describes how a relative path differs between the sources
// and the destination.
type Classification string

const (
	// New files exist in a source but not in the destination.
	New Classification = "new"

	// Changed files exist in both places, but the destination is out of date.
	Changed Classification = "changed"

	// Unchanged files are already up to date in the destination.
	Unchanged Classification = "unchanged"

	// Orphaned files exist in the destination, but in none of the sources.
	Orphaned Classification = "orphaned"
)

// Action is a single entry of a plan.
type Action struct {
	// Path is relative to the destination.
	Path  string
	Class Classification

	// Source is the file that should be copied. It's empty for orphans.
	Source SourceFile

	// Destination is the absolute path of the file in the destination.
	Destination string

	// Size is the size of the file that would be copied, or of the orphan.
	Size int64
}

// compareOptions control how files are compared.
type compareOptions struct {
	// checksum enables comparing contents when the size and modification
	// time match.
	checksum bool

	// modTimeWindow is how far apart modification times can be while still
	// being considered equal.
	modTimeWindow time.Duration

	workers int
}

// diff classifies every path in `source` and `dest`. It never modifies the
// filesystem. The returned actions are sorted by path.
// * Files that don't exist in the destination are new.
// * Files whose size or modification time differ are changed, as are files
//   whose contents differ if checksums are enabled.
// * Files in the destination that aren't in any source are orphaned.
func diff(ctx context.Context, source, dest Snapshot, destRoot string, opts compareOptions) (
	[]Action, error) {

	var actions []Action
	for path, src := range source {
		actions = append(actions, Action{
			Path:        path,
			Source:      src,
			Destination: filepath.Join(destRoot, path),
			Size:        src.Size,
		})
	}

	for path, curr := range dest {
		if _, ok := source[path]; !ok {
			actions = append(actions, Action{
				Path:        path,
				Class:       Orphaned,
				Destination: curr.ContentsPath,
				Size:        curr.Size,
			})
		}
	}

	sort.Slice(actions, func(i, j int) bool {
		return actions[i].Path < actions[j].Path
	})

	// Comparisons only read, so they're safe to run in parallel. Each worker
	// writes to its own element of `actions`.
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.workers, 1))
	for i := range actions {
		if actions[i].Class == Orphaned {
			continue
		}

		action := &actions[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			curr, ok := dest[action.Path]
			action.Class = classify(action.Source, curr, ok, opts)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return actions, nil
}

func classify(src, curr SourceFile, exists bool, opts compareOptions) Classification {
	if !exists {
		return New
	}

	if src.Size != curr.Size || !src.SameModTime(curr.FileAttributes, opts.modTimeWindow) {
		return Changed
	}

	if !opts.checksum {
		return Unchanged
	}

	srcHash, err := HashFile(src.ContentsPath)
	if err != nil {
		log.WithError(err).WithField("path", src.ContentsPath).Debug(
			"Failed to hash source file. Assuming it changed.")
		return Changed
	}

	currHash, err := HashFile(curr.ContentsPath)
	if err != nil {
		log.WithError(err).WithField("path", curr.ContentsPath).Debug(
			"Failed to hash destination file. Assuming it changed.")
		return Changed
	}

	if srcHash != currHash {
		return Changed
	}
	return Unchanged
}
