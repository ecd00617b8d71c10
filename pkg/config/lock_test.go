package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bobg/flock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/smartsync/pkg/errors"
)

func mockLocker(lockDur, timeout time.Duration) func() {
	oldLocker, oldTimeout, oldRetry := locker, lockTimeout, lockRetryInterval
	locker = flock.Locker{LockDur: lockDur}
	lockTimeout = timeout
	lockRetryInterval = 10 * time.Millisecond
	return func() {
		locker, lockTimeout, lockRetryInterval = oldLocker, oldTimeout, oldRetry
	}
}

func TestLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "backup.yaml")

	unlock, err := Lock(path)
	require.NoError(t, err)

	_, err = os.Stat(LockPath(path))
	assert.NoError(t, err, "the lock file should exist")
	_, err = os.Stat(LockPath(path) + ".lock")
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, unlock())
	assert.NoError(t, unlock(), "unlocking twice is harmless")
	_, err = os.Stat(LockPath(path))
	assert.True(t, os.IsNotExist(err), "the lock file should be removed")

	// The lock can be taken again once released.
	unlock, err = Lock(path)
	require.NoError(t, err)
	assert.NoError(t, unlock())
}

func TestLockContention(t *testing.T) {
	defer mockLocker(time.Minute, 50*time.Millisecond)()
	path := filepath.Join(t.TempDir(), "backup.yaml")

	unlock, err := Lock(path)
	require.NoError(t, err)

	_, err = Lock(path)
	assert.Equal(t, errors.ConfigInUse{Path: path}, err)
	assert.Contains(t, errors.GetPrintableMessage(errors.WithContext(err, "lock")),
		"is in use by another smartsync process")

	// A waiting process gets the lock once it's released.
	lockTimeout = 5 * time.Second
	release := unlock
	go func() {
		time.Sleep(100 * time.Millisecond)
		assert.NoError(t, release())
	}()
	unlock, err = Lock(path)
	require.NoError(t, err)
	assert.NoError(t, unlock())
}

func TestLockIsRefreshed(t *testing.T) {
	defer mockLocker(300*time.Millisecond, 0)()
	path := filepath.Join(t.TempDir(), "backup.yaml")

	unlock, err := Lock(path)
	require.NoError(t, err)
	defer unlock()

	// Held for well past LockDur, the lock must not look abandoned.
	time.Sleep(time.Second)
	_, err = Lock(path)
	assert.Equal(t, errors.ConfigInUse{Path: path}, err)
}

func TestLockTakesOverExpiredLock(t *testing.T) {
	defer mockLocker(time.Minute, 0)()
	path := filepath.Join(t.TempDir(), "backup.yaml")

	// Left behind by a process that died without unlocking.
	require.NoError(t, os.WriteFile(LockPath(path), nil, 0644))
	stale := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(LockPath(path), stale, stale))

	unlock, err := Lock(path)
	require.NoError(t, err)
	assert.NoError(t, unlock())
}

func TestUpdateBackup(t *testing.T) {
	fs = afero.NewOsFs()
	path := filepath.Join(t.TempDir(), "backup.yaml")

	err := UpdateBackup(path, func(backup *Backup) error {
		_, err := backup.AddDevice("laptop")
		return err
	})
	require.NoError(t, err)

	backup, err := LoadBackup(path)
	require.NoError(t, err)
	_, err = backup.Device("laptop")
	assert.NoError(t, err)

	// A failed update leaves the file alone.
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	err = UpdateBackup(path, func(backup *Backup) error {
		if _, err := backup.AddDevice("phone"); err != nil {
			return err
		}
		_, err := backup.AddDevice("laptop")
		return err
	})
	assert.Equal(t, errors.DuplicateDevice{Device: "laptop"}, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestUpdateRegistry(t *testing.T) {
	fs = afero.NewOsFs()
	paths := Paths{Registry: filepath.Join(t.TempDir(), ".smartsync.yaml")}

	err := paths.UpdateRegistry(func(registry *Registry) error {
		return registry.Register("home", "/backups/home.yaml")
	})
	require.NoError(t, err)

	registry, err := paths.LoadRegistry()
	require.NoError(t, err)
	path, err := registry.Lookup("home")
	require.NoError(t, err)
	assert.Equal(t, "/backups/home.yaml", path)
}
