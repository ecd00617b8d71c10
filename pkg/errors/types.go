package errors

import (
	"fmt"
	"strings"
)

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// ConfigNotReadable is returned when a backup configuration exists but
// couldn't be read or parsed.
type ConfigNotReadable struct {
	Path string
	Err  error
}

func (err ConfigNotReadable) Error() string {
	return fmt.Sprintf("backup configuration %q is not readable: %s", err.Path, err.Err)
}

func (err ConfigNotReadable) Unwrap() error {
	return err.Err
}

// RegistryNotReadable is returned when the registry exists but couldn't be
// read or parsed.
type RegistryNotReadable struct {
	Path string
	Err  error
}

func (err RegistryNotReadable) Error() string {
	return fmt.Sprintf("registry %q is not readable: %s", err.Path, err.Err)
}

func (err RegistryNotReadable) Unwrap() error {
	return err.Err
}

// DeviceNotFound is returned when no device has the requested name.
type DeviceNotFound struct {
	Device string
}

func (err DeviceNotFound) Error() string {
	return fmt.Sprintf("no device named %q found", err.Device)
}

// SyncJobNotFound is returned when the device exists, but doesn't have a
// sync job with the requested name.
type SyncJobNotFound struct {
	Device, Job string
}

func (err SyncJobNotFound) Error() string {
	return fmt.Sprintf("no backup named %q found on device %q", err.Job, err.Device)
}

// DuplicateDevice is returned when adding a device whose name is taken.
type DuplicateDevice struct {
	Device string
}

func (err DuplicateDevice) Error() string {
	return fmt.Sprintf("device %q already exists", err.Device)
}

// DuplicateSyncJob is returned when adding or renaming a sync job to a name
// that's already used within the device.
type DuplicateSyncJob struct {
	Device, Job string
}

func (err DuplicateSyncJob) Error() string {
	return fmt.Sprintf("backup %q already exists on device %q", err.Job, err.Device)
}

// DuplicateBackupName is returned when registering a name that's already in
// the registry.
type DuplicateBackupName struct {
	Name string
}

func (err DuplicateBackupName) Error() string {
	return fmt.Sprintf("backup %q is already registered", err.Name)
}

// BackupNotRegistered is returned when a registry lookup misses.
type BackupNotRegistered struct {
	Name string
}

func (err BackupNotRegistered) Error() string {
	return fmt.Sprintf("no backup named %q in the registry", err.Name)
}

// ConfigInUse is returned when another smartsync process holds the lock on a
// configuration for longer than we're willing to wait.
type ConfigInUse struct {
	Path string
}

func (err ConfigInUse) Error() string {
	return fmt.Sprintf("configuration %q is in use by another smartsync process", err.Path)
}

// FriendlyMessage hides the contexts the lock error was wrapped in.
func (err ConfigInUse) FriendlyMessage() string {
	return err.Error() + ". Try again once it finishes."
}

// AmbiguousName is returned when a hand edited document contains several
// entities sharing a name that must be unique.
type AmbiguousName struct {
	// Kind is either "device" or "backup".
	Kind  string
	Name  string
	Count int
}

func (err AmbiguousName) Error() string {
	return fmt.Sprintf("%d entries of kind %s are named %q; names must be unique",
		err.Count, err.Kind, err.Name)
}

// InvalidDestination is returned when a destination can't be used for a
// sync job, e.g. because it overlaps one of the job's sources.
type InvalidDestination struct {
	Device, Job string
	Destination string
	Reason      string
}

func (err InvalidDestination) Error() string {
	return fmt.Sprintf("invalid destination %q for backup %q on device %q: %s",
		err.Destination, err.Job, err.Device, err.Reason)
}

// DestinationOverlap is returned for sync jobs on the same device whose
// destinations are equal or nested.
type DestinationOverlap struct {
	Device string
	Job    string
	Other  string
}

func (err DestinationOverlap) Error() string {
	return fmt.Sprintf("destination of backup %q overlaps backup %q on device %q",
		err.Job, err.Other, err.Device)
}

// SourceMissing is returned when a configured source doesn't exist at run
// time.
type SourceMissing struct {
	Device, Job string
	Path        string
}

func (err SourceMissing) Error() string {
	return fmt.Sprintf("source %q of backup %q on device %q does not exist",
		err.Path, err.Job, err.Device)
}

// CopyFailed records a single file that couldn't be copied. It's collected
// into run reports rather than aborting the run.
type CopyFailed struct {
	Path string
	Err  error
}

func (err CopyFailed) Error() string {
	return fmt.Sprintf("copy %q: %s", err.Path, err.Err)
}

func (err CopyFailed) Unwrap() error {
	return err.Err
}

// RunFailed is returned for a sync job that had at least one CopyFailed.
type RunFailed struct {
	Device, Job string
	Failures    []CopyFailed
}

func (err RunFailed) Error() string {
	var paths []string
	for _, f := range err.Failures {
		paths = append(paths, f.Path)
	}
	return fmt.Sprintf("backup %q on device %q failed to copy %d file(s): %s",
		err.Job, err.Device, len(err.Failures), strings.Join(paths, ", "))
}
