package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/smartsync/pkg/errors"
)

func mockHomedir() {
	homedirExpand = func(path string) (string, error) {
		if strings.HasPrefix(path, "~") {
			return "/home/u" + strings.TrimPrefix(path, "~"), nil
		}
		return path, nil
	}
}

func TestDefaultPaths(t *testing.T) {
	mockHomedir()

	t.Setenv(RegistryPathEnvKey, "")
	paths, err := DefaultPaths("")
	require.NoError(t, err)
	assert.Equal(t, Paths{Registry: "/home/u/.smartsync.yaml"}, paths)

	t.Setenv(RegistryPathEnvKey, "~/registries/env.yaml")
	paths, err = DefaultPaths("")
	require.NoError(t, err)
	assert.Equal(t, Paths{Registry: "/home/u/registries/env.yaml"}, paths)

	paths, err = DefaultPaths("/etc/smartsync.yaml")
	require.NoError(t, err)
	assert.Equal(t, Paths{Registry: "/etc/smartsync.yaml"}, paths)
}

func TestExpandRelativePath(t *testing.T) {
	mockHomedir()

	wd, err := os.Getwd()
	require.NoError(t, err)

	path, err := ExpandPath("backups/home.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "backups/home.yaml"), path)
}

func TestResolveBackup(t *testing.T) {
	fs = afero.NewMemMapFs()
	mockHomedir()

	paths := Paths{Registry: "/home/u/.smartsync.yaml"}
	registry, err := paths.LoadRegistry()
	require.NoError(t, err)
	require.NoError(t, registry.Register("home", "~/backups/home.yaml"))
	require.NoError(t, registry.Register("gone", "/deleted.yaml"))
	require.NoError(t, paths.SaveRegistry(registry))
	require.NoError(t, SaveBackup(NewBackup(), "/home/u/backups/home.yaml"))

	path, err := paths.ResolveBackup("home")
	assert.NoError(t, err)
	assert.Equal(t, "/home/u/backups/home.yaml", path)

	path, err = paths.ResolveBackup("/srv/other.yaml")
	assert.NoError(t, err)
	assert.Equal(t, "/srv/other.yaml", path)

	_, err = paths.ResolveBackup("gone")
	assert.Equal(t, errors.ConfigNotReadable{
		Path: "/deleted.yaml",
		Err:  errors.FileNotFound{Path: "/deleted.yaml"},
	}, err)
}

func TestResolveBackupWithBrokenRegistry(t *testing.T) {
	fs = afero.NewMemMapFs()
	mockHomedir()

	paths := Paths{Registry: "/home/u/.smartsync.yaml"}
	require.NoError(t, afero.WriteFile(fs, paths.Registry, []byte("backups: [oops"), 0644))
	require.NoError(t, SaveBackup(NewBackup(), "/srv/backup.yaml"))
	require.NoError(t, afero.WriteFile(fs, "backup.yaml", []byte("version: 1"), 0644))

	// Paths don't need the registry.
	path, err := paths.ResolveBackup("/srv/backup.yaml")
	assert.NoError(t, err)
	assert.Equal(t, "/srv/backup.yaml", path)

	path, err = paths.ResolveBackup("~/backup.yaml")
	assert.NoError(t, err)
	assert.Equal(t, "/home/u/backup.yaml", path)

	// A bare ref that exists on disk falls back to being a path.
	path, err = paths.ResolveBackup("backup.yaml")
	assert.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, "backup.yaml", filepath.Base(path))

	// Names still need a readable registry.
	_, err = paths.ResolveBackup("home")
	var notReadable errors.RegistryNotReadable
	assert.True(t, errors.As(err, &notReadable))
}
