package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bobg/flock"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/smartsync/pkg/errors"
)

// Mocked for unit testing.
var (
	// locker serializes smartsync processes working on the same
	// configuration. It only coordinates processes that take the lock;
	// editing the document by hand bypasses it. A lock that isn't refreshed
	// within LockDur is considered abandoned and may be taken over.
	locker = flock.Locker{LockDur: time.Minute}

	lockTimeout       = 10 * time.Second
	lockRetryInterval = 100 * time.Millisecond
)

// LockPath returns the path of the lock file guarding `path`.
func LockPath(path string) string {
	return path + ".lock"
}

// Lock takes an advisory lock on the configuration at `path`. If another
// process holds it, Lock retries for up to lockTimeout before giving up with
// errors.ConfigInUse. The lock is refreshed in the background until the
// returned function releases it.
func Lock(path string) (unlock func() error, err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.WithContext(err, "make parent")
	}

	deadline := time.Now().Add(lockTimeout)
	for {
		err := locker.Lock(path)
		if err == nil {
			break
		}
		if !errors.Is(err, flock.ErrLocked) {
			return nil, errors.WithContext(err, "lock")
		}
		if !time.Now().Before(deadline) {
			return nil, errors.ConfigInUse{Path: path}
		}
		log.WithField("path", path).Debug("Waiting for configuration lock")
		time.Sleep(lockRetryInterval)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		refreshLock(path, stop)
	}()

	var once sync.Once
	var unlockErr error
	return func() error {
		once.Do(func() {
			close(stop)
			<-done
			unlockErr = locker.Unlock(path)
		})
		return unlockErr
	}, nil
}

// refreshLock keeps the lock on `path` from expiring until `stop` is closed.
func refreshLock(path string, stop <-chan struct{}) {
	ticker := time.NewTicker(max(locker.LockDur/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := locker.Refresh(path); err != nil {
				log.WithError(err).WithField("path", path).Warn(
					"Failed to refresh configuration lock")
			}
		}
	}
}

// UpdateBackup loads the backup configuration at `path` under its lock, applies
// `update`, and saves the result. Nothing is written if `update` fails.
func UpdateBackup(path string, update func(*Backup) error) (err error) {
	unlock, err := Lock(path)
	if err != nil {
		return errors.WithContext(err, "lock backup configuration")
	}
	defer func() {
		if unlockErr := unlock(); unlockErr != nil && err == nil {
			err = errors.WithContext(unlockErr, "unlock backup configuration")
		}
	}()

	backup, err := LoadBackup(path)
	if err != nil {
		return err
	}

	if err := update(backup); err != nil {
		return err
	}
	return SaveBackup(backup, path)
}

// UpdateRegistry is UpdateBackup for the registry.
func (p Paths) UpdateRegistry(update func(*Registry) error) (err error) {
	unlock, err := Lock(p.Registry)
	if err != nil {
		return errors.WithContext(err, "lock registry")
	}
	defer func() {
		if unlockErr := unlock(); unlockErr != nil && err == nil {
			err = errors.WithContext(unlockErr, "unlock registry")
		}
	}()

	registry, err := p.LoadRegistry()
	if err != nil {
		return err
	}

	if err := update(registry); err != nil {
		return err
	}
	return p.SaveRegistry(registry)
}
