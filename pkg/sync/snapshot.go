package sync

import (
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/smartsync/pkg/errors"
)

// A SourceFile is a regular file inside one of a sync job's sources.
type SourceFile struct {
	// ContentsPath is the path to the file that can be opened by the
	// smartsync process.
	ContentsPath string

	// RelativePath is where the file lives relative to its source root, and
	// therefore relative to the destination.
	// For example, a file would have a ContentsPath of `/home/u/docs/a/b.txt`
	// and RelativePath of `a/b.txt` if it's in the source `/home/u/docs`.
	RelativePath string

	// Root is the source the file was found in.
	Root string

	FileAttributes
}

// Snapshot is a collection of files keyed by their relative path.
type Snapshot map[string]SourceFile

// SnapshotSources walks each source in order. When the same relative path
// exists in several sources, the file from the source listed last wins.
func SnapshotSources(sources []string) (Snapshot, error) {
	files := Snapshot{}
	for _, source := range sources {
		snapshot, err := snapshotTree(source)
		if err != nil {
			return nil, errors.WithContext(err, "snapshot "+source)
		}

		for path, f := range snapshot {
			if prev, ok := files[path]; ok {
				log.WithFields(log.Fields{
					"path":       path,
					"overridden": prev.Root,
					"winner":     f.Root,
				}).Debug("Two sources contain the same file. Using the later source.")
			}
			files[path] = f
		}
	}
	return files, nil
}

// SnapshotDestination returns the files currently at `dest`. A destination
// that doesn't exist yet is empty.
func SnapshotDestination(dest string) (Snapshot, error) {
	exists, err := afero.Exists(fs, dest)
	if err != nil {
		return nil, errors.WithContext(err, "stat destination")
	}

	if !exists {
		return Snapshot{}, nil
	}
	return snapshotTree(dest)
}

// resolveRoot follows `root` if it's a symlink. afero.Walk doesn't follow a
// symlinked root, so walking the link itself would find nothing.
func resolveRoot(root string) (string, error) {
	lstater, ok := fs.(afero.Lstater)
	if !ok {
		return root, nil
	}

	fi, lstatCalled, err := lstater.LstatIfPossible(root)
	if err != nil {
		return "", errors.WithContext(err, "lstat")
	}

	if !lstatCalled || fi.Mode()&os.ModeSymlink == 0 {
		return root, nil
	}

	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", errors.WithContext(err, "resolve symlink")
	}

	log.WithFields(log.Fields{
		"path":   root,
		"target": resolved,
	}).Debug("Following symlinked root")
	return resolved, nil
}

// snapshotTree returns the regular files beneath `root`. If `root` is itself a
// file, the snapshot contains just that file under its base name. A symlinked
// root is followed, but links beneath it aren't.
func snapshotTree(root string) (Snapshot, error) {
	resolved, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	fi, err := fs.Stat(resolved)
	if err != nil {
		return nil, errors.WithContext(err, "open path")
	}

	files := Snapshot{}
	if !fi.IsDir() {
		if !fi.Mode().IsRegular() {
			return files, nil
		}

		name := filepath.Base(root)
		files[name] = SourceFile{
			ContentsPath:   resolved,
			RelativePath:   name,
			Root:           root,
			FileAttributes: attributesOf(fi),
		}
		return files, nil
	}

	err = afero.Walk(fs, resolved, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if fi.IsDir() {
			return nil
		}

		if !fi.Mode().IsRegular() {
			log.WithField("path", path).Debug("Skipping file that isn't a regular file")
			return nil
		}

		relativePath, err := filepath.Rel(resolved, path)
		if err != nil {
			return errors.WithContext(err, "normalized path")
		}

		files[relativePath] = SourceFile{
			ContentsPath:   path,
			RelativePath:   relativePath,
			Root:           root,
			FileAttributes: attributesOf(fi),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
