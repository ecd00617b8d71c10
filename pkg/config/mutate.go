package config

import (
	"path/filepath"
	"strings"

	"github.com/sidkik/smartsync/pkg/errors"
)

// The mutations below only ever touch the in-memory document. Each one
// validates everything up front, so a failed call leaves the Backup exactly
// as it was.

// AddDevice adds an empty device.
func (b *Backup) AddDevice(name string) (*Device, error) {
	if name == "" {
		return nil, errors.MissingFieldError{Field: "device name"}
	}

	for _, device := range b.Devices {
		if device.Name == name {
			return nil, errors.DuplicateDevice{Device: name}
		}
	}

	b.Devices = append(b.Devices, Device{
		ID:       newID(),
		Name:     name,
		SyncJobs: []SyncJob{},
	})
	return &b.Devices[len(b.Devices)-1], nil
}

// AddSyncJob adds a sync job to `device`.
func (b *Backup) AddSyncJob(device, name string, sources []string, destination string) (
	*SyncJob, error) {

	d, err := b.Device(device)
	if err != nil {
		return nil, err
	}

	switch {
	case name == "":
		return nil, errors.MissingFieldError{Field: "backup name"}
	case destination == "":
		return nil, errors.MissingFieldError{Field: "destination"}
	case len(sources) == 0:
		return nil, errors.MissingFieldError{Field: "sources"}
	}

	for _, job := range d.SyncJobs {
		if job.Name == name {
			return nil, errors.DuplicateSyncJob{Device: device, Job: name}
		}
	}

	job := SyncJob{
		ID:          newID(),
		Name:        name,
		Destination: filepath.Clean(destination),
	}
	for _, src := range sources {
		job.Sources = appendSource(job.Sources, src)
	}

	if err := ValidateDestination(device, name, job.Destination, job.Sources); err != nil {
		return nil, err
	}

	d.SyncJobs = append(d.SyncJobs, job)
	return &d.SyncJobs[len(d.SyncJobs)-1], nil
}

// RenameSyncJob renames the sync job `name` on `device`.
func (b *Backup) RenameSyncJob(device, name, newName string) error {
	d, job, err := b.resolve(device, name)
	if err != nil {
		return err
	}

	if newName == "" {
		return errors.MissingFieldError{Field: "new name"}
	}

	if newName == name {
		return nil
	}

	for _, other := range d.SyncJobs {
		if other.Name == newName {
			return errors.DuplicateSyncJob{Device: device, Job: newName}
		}
	}

	job.Name = newName
	return nil
}

// SetDestination changes where the sync job `name` on `device` copies to.
func (b *Backup) SetDestination(device, name, destination string) error {
	_, job, err := b.resolve(device, name)
	if err != nil {
		return err
	}

	if destination == "" {
		return errors.MissingFieldError{Field: "destination"}
	}

	destination = filepath.Clean(destination)
	if err := ValidateDestination(device, name, destination, job.Sources); err != nil {
		return err
	}

	job.Destination = destination
	return nil
}

// AddSource adds a source to the sync job `name` on `device`. Adding a source
// that's already configured is a no-op.
func (b *Backup) AddSource(device, name, source string) error {
	_, job, err := b.resolve(device, name)
	if err != nil {
		return err
	}

	if source == "" {
		return errors.MissingFieldError{Field: "source"}
	}

	sources := appendSource(append([]string{}, job.Sources...), source)
	if err := ValidateDestination(device, name, job.Destination, sources); err != nil {
		return err
	}

	job.Sources = sources
	return nil
}

func (b *Backup) resolve(device, name string) (*Device, *SyncJob, error) {
	d, err := b.Device(device)
	if err != nil {
		return nil, nil, err
	}

	job, err := d.SyncJob(name)
	if err != nil {
		return nil, nil, err
	}
	return d, job, nil
}

func appendSource(sources []string, source string) []string {
	source = filepath.Clean(source)
	for _, existing := range sources {
		if existing == source {
			return sources
		}
	}
	return append(sources, source)
}

// ValidateDestination checks that `destination` is neither one of `sources`,
// nor nested inside one, nor a parent of one. Any of those would make a run
// copy its own output.
func ValidateDestination(device, job, destination string, sources []string) error {
	for _, src := range sources {
		var reason string
		switch {
		case Contains(src, destination) && Contains(destination, src):
			reason = "it is the same path as source " + src
		case Contains(src, destination):
			reason = "it is inside source " + src
		case Contains(destination, src):
			reason = "it contains source " + src
		default:
			continue
		}

		return errors.InvalidDestination{
			Device:      device,
			Job:         job,
			Destination: destination,
			Reason:      reason,
		}
	}
	return nil
}

// Contains returns true if `path` is either equal to `parent`, or a child of
// it. Relative and absolute paths never contain each other.
func Contains(parent, path string) bool {
	if filepath.IsAbs(parent) != filepath.IsAbs(path) {
		return false
	}

	relativePath, err := filepath.Rel(filepath.Clean(parent), filepath.Clean(path))
	if err != nil {
		return false
	}
	return relativePath != ".." && !strings.HasPrefix(relativePath, ".."+string(filepath.Separator))
}
