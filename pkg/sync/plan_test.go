package sync

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotSources(t *testing.T) {
	fs = afero.NewMemMapFs()
	writeFiles(t,
		mockFile{path: "/a/shared", contents: "a"},
		mockFile{path: "/a/dir/only-a", contents: "only a"},
		mockFile{path: "/b/shared", contents: "bb"},
		mockFile{path: "/single", contents: "single"},
	)
	require.NoError(t, fs.MkdirAll("/a/empty-dir", 0755))

	snapshot, err := SnapshotSources([]string{"/a", "/b", "/single"})
	require.NoError(t, err)

	attrs := func(size int64) FileAttributes {
		return FileAttributes{Size: size, Mode: 0644, ModTime: oldTime}
	}
	exp := Snapshot{
		"shared": {ContentsPath: "/b/shared", RelativePath: "shared", Root: "/b",
			FileAttributes: attrs(2)},
		"dir/only-a": {ContentsPath: "/a/dir/only-a", RelativePath: "dir/only-a", Root: "/a",
			FileAttributes: attrs(6)},
		"single": {ContentsPath: "/single", RelativePath: "single", Root: "/single",
			FileAttributes: attrs(6)},
	}

	require.Len(t, snapshot, len(exp))
	for path, expFile := range exp {
		actual, ok := snapshot[path]
		require.True(t, ok, path)
		assert.Equal(t, expFile.ContentsPath, actual.ContentsPath, path)
		assert.Equal(t, expFile.RelativePath, actual.RelativePath, path)
		assert.Equal(t, expFile.Root, actual.Root, path)
		assert.Equal(t, expFile.Size, actual.Size, path)
		assert.True(t, expFile.ModTime.Equal(actual.ModTime), path)
	}
}

func TestSnapshotDestinationMissing(t *testing.T) {
	fs = afero.NewMemMapFs()

	snapshot, err := SnapshotDestination("/backup")
	assert.NoError(t, err)
	assert.Empty(t, snapshot)
}

func TestDiff(t *testing.T) {
	fs = afero.NewMemMapFs()
	writeFiles(t,
		mockFile{path: "/src/same-contents", contents: "same"},
		mockFile{path: "/dst/same-contents", contents: "same"},
		mockFile{path: "/src/diff-contents", contents: "abcd"},
		mockFile{path: "/dst/diff-contents", contents: "wxyz"},
	)

	at := func(path string, size int64, modTime time.Time) SourceFile {
		return SourceFile{
			ContentsPath:   path,
			FileAttributes: FileAttributes{Size: size, ModTime: modTime},
		}
	}
	source := Snapshot{
		"added":         at("/src/added", 1, oldTime),
		"diff-size":     at("/src/diff-size", 2, oldTime),
		"diff-modtime":  at("/src/diff-modtime", 1, oldTime.Add(time.Minute)),
		"same-contents": at("/src/same-contents", 4, oldTime),
		"diff-contents": at("/src/diff-contents", 4, oldTime),
	}
	dest := Snapshot{
		"diff-size":     at("/dst/diff-size", 1, oldTime),
		"diff-modtime":  at("/dst/diff-modtime", 1, oldTime),
		"same-contents": at("/dst/same-contents", 4, oldTime),
		"diff-contents": at("/dst/diff-contents", 4, oldTime),
		"removed":       at("/dst/removed", 7, oldTime),
	}

	classes := func(actions []Action) map[string]Classification {
		res := map[string]Classification{}
		for _, action := range actions {
			res[action.Path] = action.Class
		}
		return res
	}

	actions, err := diff(context.Background(), source, dest, "/dst", compareOptions{workers: 2})
	require.NoError(t, err)
	assert.Equal(t, map[string]Classification{
		"added":         New,
		"diff-size":     Changed,
		"diff-modtime":  Changed,
		"same-contents": Unchanged,
		"diff-contents": Unchanged,
		"removed":       Orphaned,
	}, classes(actions))

	var paths []string
	for _, action := range actions {
		paths = append(paths, action.Path)
	}
	assert.Equal(t, []string{
		"added", "diff-contents", "diff-modtime", "diff-size", "removed", "same-contents",
	}, paths)

	assert.Equal(t, Action{
		Path:        "removed",
		Class:       Orphaned,
		Destination: "/dst/removed",
		Size:        7,
	}, actions[4])
	assert.Equal(t, "/dst/added", actions[0].Destination)

	actions, err = diff(context.Background(), source, dest, "/dst",
		compareOptions{checksum: true, workers: 2})
	require.NoError(t, err)
	assert.Equal(t, Changed, classes(actions)["diff-contents"])
	assert.Equal(t, Unchanged, classes(actions)["same-contents"])
}

func TestClassifyUnreadableFileIsChanged(t *testing.T) {
	fs = afero.NewMemMapFs()

	file := SourceFile{
		ContentsPath:   "/does-not-exist",
		FileAttributes: FileAttributes{Size: 1, ModTime: oldTime},
	}
	assert.Equal(t, Changed, classify(file, file, true, compareOptions{checksum: true}))
	assert.Equal(t, Unchanged, classify(file, file, true, compareOptions{}))
	assert.Equal(t, New, classify(file, SourceFile{}, false, compareOptions{}))
}

func TestSameModTime(t *testing.T) {
	a := FileAttributes{ModTime: oldTime}
	b := FileAttributes{ModTime: oldTime.Add(-time.Second)}

	assert.True(t, a.SameModTime(a, 0))
	assert.False(t, a.SameModTime(b, 0))
	assert.True(t, a.SameModTime(b, time.Second))
	assert.True(t, b.SameModTime(a, time.Second))
}

func TestHashFile(t *testing.T) {
	fs = afero.NewMemMapFs()
	writeFiles(t,
		mockFile{path: "/one", contents: "contents"},
		mockFile{path: "/two", contents: "contents"},
		mockFile{path: "/three", contents: "different"},
	)

	one, err := HashFile("/one")
	require.NoError(t, err)
	two, err := HashFile("/two")
	require.NoError(t, err)
	three, err := HashFile("/three")
	require.NoError(t, err)

	assert.Equal(t, one, two)
	assert.NotEqual(t, one, three)

	_, err = HashFile("/missing")
	assert.Error(t, err)
}
