package sync

import (
	"context"
	"io"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/sidkik/smartsync/pkg/errors"
)

// Variables mocked for unit testing.
var (
	copyFile   = copyFileImpl
	removeFile = func(path string) error { return fs.Remove(path) }
)

// An applier carries out a single action of a plan.
type applier interface {
	apply(Action) (Outcome, error)
}

// previewApplier is used for dry runs. It never touches the filesystem.
type previewApplier struct{}

func (previewApplier) apply(Action) (Outcome, error) {
	return Planned, nil
}

// diskApplier makes the destination match the plan.
type diskApplier struct{}

func (diskApplier) apply(action Action) (Outcome, error) {
	switch action.Class {
	case New, Changed:
		if err := copyFile(action.Source.ContentsPath, action.Destination); err != nil {
			return Failed, err
		}
		return Copied, nil
	case Orphaned:
		if err := removeFile(action.Destination); err != nil {
			return Failed, errors.WithContext(err, "remove orphan")
		}
		return Deleted, nil
	}
	return Skipped, nil
}

// applyAll runs `actions` through `a`. Each relative path appears in the plan
// exactly once, so no two workers ever write the same destination file.
// Failures are recorded in the results rather than stopping the other
// actions.
func applyAll(ctx context.Context, actions []Action, a applier, orphans OrphanPolicy,
	workers int, logger *log.Entry) []FileResult {

	results := make([]FileResult, len(actions))

	var g errgroup.Group
	g.SetLimit(max(workers, 1))
	for i, action := range actions {
		results[i] = FileResult{
			Path:    action.Path,
			Class:   action.Class,
			Outcome: Skipped,
			Size:    action.Size,
		}

		if !needsApply(action, orphans) {
			continue
		}

		result := &results[i]
		g.Go(func() error {
			// Stop starting new copies once the run is cancelled. Copies that
			// already started finish, so nothing is left half written.
			if err := ctx.Err(); err != nil {
				result.Outcome = Failed
				result.Err = errors.CopyFailed{Path: action.Path, Err: err}
				return nil
			}

			outcome, err := a.apply(action)
			result.Outcome = outcome
			if err != nil {
				result.Err = errors.CopyFailed{Path: action.Path, Err: err}
				logger.WithError(err).WithField("path", action.Path).Warn("Failed to sync file")
			}
			return nil
		})
	}

	// The workers never return errors.
	_ = g.Wait()
	return results
}

func needsApply(action Action, orphans OrphanPolicy) bool {
	switch action.Class {
	case New, Changed:
		return true
	case Orphaned:
		return orphans == OrphanDelete
	}
	return false
}

// copyFileImpl copies the contents, mode and modification time of `src` to
// `dst`. The contents are written to a temporary file in the destination
// directory that's renamed over `dst` once complete.
func copyFileImpl(src, dst string) error {
	dstParent := filepath.Dir(dst)
	dstParentExists, err := afero.DirExists(fs, dstParent)
	if err != nil {
		return errors.WithContext(err, "check if parent exists")
	}

	if !dstParentExists {
		if err := fs.MkdirAll(dstParent, 0755); err != nil {
			return errors.WithContext(err, "make parent")
		}
	}

	srcFile, err := fs.Open(src)
	if err != nil {
		return errors.WithContext(err, "open source")
	}
	defer srcFile.Close()

	fileInfo, err := srcFile.Stat()
	if err != nil {
		return errors.WithContext(err, "stat")
	}

	tmpFile, err := afero.TempFile(fs, dstParent, "."+filepath.Base(dst)+".smartsync-")
	if err != nil {
		return errors.WithContext(err, "open destination")
	}
	tmpPath := tmpFile.Name()

	// After a successful rename this is a no-op.
	defer fs.Remove(tmpPath)

	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		tmpFile.Close()
		return errors.WithContext(err, "copy")
	}

	if err := tmpFile.Close(); err != nil {
		return errors.WithContext(err, "close destination")
	}

	if err := fs.Chmod(tmpPath, fileInfo.Mode()); err != nil {
		return errors.WithContext(err, "set file mode")
	}

	// Change the modification time as the last step before the rename so
	// that it doesn't get reset by other file operations.
	if err := fs.Chtimes(tmpPath, time.Now(), fileInfo.ModTime()); err != nil {
		return errors.WithContext(err, "set file modtime")
	}

	if err := fs.Rename(tmpPath, dst); err != nil {
		return errors.WithContext(err, "rename into place")
	}
	return nil
}
