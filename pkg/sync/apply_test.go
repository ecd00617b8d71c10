package sync

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/smartsync/pkg/errors"
)

func TestCopyFile(t *testing.T) {
	fs = afero.NewMemMapFs()
	modTime := oldTime.Add(42 * time.Minute)
	writeFiles(t,
		mockFile{path: "/src/file", contents: "new contents", modTime: modTime},
		mockFile{path: "/dst/file", contents: "old"},
	)
	require.NoError(t, fs.Chmod("/src/file", 0600))

	require.NoError(t, copyFile("/src/file", "/dst/file"))
	require.NoError(t, copyFile("/src/file", "/dst/nested/dir/file"))

	for _, path := range []string{"/dst/file", "/dst/nested/dir/file"} {
		contents, err := afero.ReadFile(fs, path)
		require.NoError(t, err)
		assert.Equal(t, "new contents", string(contents))

		fi, err := fs.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())
		assert.True(t, modTime.Equal(fi.ModTime()))
	}

	// The temporary file is renamed away.
	entries, err := afero.ReadDir(fs, "/dst")
	require.NoError(t, err)
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	assert.ElementsMatch(t, []string{"file", "nested"}, names)

	assert.Error(t, copyFile("/src/missing", "/dst/missing"))
}

func TestDiskApplier(t *testing.T) {
	fs = afero.NewMemMapFs()
	writeFiles(t,
		mockFile{path: "/src/a", contents: "a"},
		mockFile{path: "/dst/orphan", contents: "orphan"},
	)

	outcome, err := diskApplier{}.apply(Action{
		Path:        "a",
		Class:       New,
		Source:      SourceFile{ContentsPath: "/src/a"},
		Destination: "/dst/a",
	})
	assert.NoError(t, err)
	assert.Equal(t, Copied, outcome)

	outcome, err = diskApplier{}.apply(Action{Path: "orphan", Class: Orphaned, Destination: "/dst/orphan"})
	assert.NoError(t, err)
	assert.Equal(t, Deleted, outcome)

	exists, err := afero.Exists(fs, "/dst/orphan")
	require.NoError(t, err)
	assert.False(t, exists)

	outcome, err = diskApplier{}.apply(Action{Path: "gone", Class: Orphaned, Destination: "/dst/gone"})
	assert.Error(t, err)
	assert.Equal(t, Failed, outcome)
}

func TestReports(t *testing.T) {
	copyErr := errors.CopyFailed{Path: "b", Err: errors.New("permission denied")}
	job := &JobReport{
		Job: "docs",
		Files: []FileResult{
			{Path: "a", Class: New, Outcome: Copied, Size: 10},
			{Path: "b", Class: Changed, Outcome: Failed, Size: 20, Err: copyErr},
			{Path: "c", Class: Unchanged, Outcome: Skipped, Size: 30},
			{Path: "d", Class: Orphaned, Outcome: Skipped, Size: 40},
		},
		Err: errors.RunFailed{Device: "laptop", Job: "docs", Failures: []errors.CopyFailed{copyErr}},
	}

	assert.False(t, job.Succeeded())
	assert.Equal(t, 1, job.Count(Orphaned))
	assert.Equal(t, int64(10), job.BytesCopied())
	assert.Equal(t, []errors.CopyFailed{copyErr}, job.Failures())
	assert.Equal(t, []FileResult{job.Files[0], job.Files[1]}, job.Actions())

	ok := &JobReport{Job: "pics"}
	device := DeviceReport{Device: "laptop", Jobs: []*JobReport{job, ok}}
	assert.Equal(t, []*JobReport{job}, device.Failed())
	assert.EqualError(t, device.Err(), job.Err.Error())

	assert.NoError(t, (&DeviceReport{Jobs: []*JobReport{ok}}).Err())
}
