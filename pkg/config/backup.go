package config

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/smartsync/pkg/errors"
)

const (
	// InitialBackupVersion is the first version of the backup configuration.
	// Documents that do not specify a version default to this version.
	InitialBackupVersion = "v1alpha1"

	// SupportedBackupVersion is the version of the backup configuration
	// understood by this binary.
	SupportedBackupVersion = "v1alpha1"
)

// Backup is a backup configuration document. It describes what gets backed
// up to each device.
type Backup struct {
	Version string   `json:"version,omitempty"`
	Devices []Device `json:"devices"`
}

// Device is a backup target, such as an external disk. Each device has its
// own set of sync jobs.
type Device struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	SyncJobs []SyncJob `json:"sync_jobs"`
}

// SyncJob maps a set of sources onto a single destination directory.
type SyncJob struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Destination string   `json:"destination"`
	Sources     []string `json:"sources"`

	// LastRun is the start time of the last successful run. It's nil until
	// the job has completed once.
	LastRun *time.Time `json:"last_run,omitempty"`
}

func (b Backup) getVersion() string {
	return b.Version
}

// NewBackup returns an empty backup configuration.
func NewBackup() *Backup {
	return &Backup{Version: SupportedBackupVersion, Devices: []Device{}}
}

// LoadBackup parses the backup configuration at `path`. A missing file is
// not an error: an empty configuration is returned so that the first use of
// a path works without an explicit init.
func LoadBackup(path string) (*Backup, error) {
	backup := &Backup{Version: InitialBackupVersion}
	err := parseDocument(path, backup, SupportedBackupVersion)
	if _, ok := err.(errors.FileNotFound); ok {
		log.WithField("path", path).Debug("Backup configuration doesn't exist. Using an empty one.")
		return NewBackup(), nil
	}
	if err != nil {
		return nil, errors.ConfigNotReadable{Path: path, Err: err}
	}

	if backup.Devices == nil {
		backup.Devices = []Device{}
	}
	backup.assignIDs()
	return backup, nil
}

// SaveBackup atomically writes `backup` to `path`.
func SaveBackup(backup *Backup, path string) error {
	backup.Version = SupportedBackupVersion
	backup.assignIDs()
	if err := writeDocument(path, backup); err != nil {
		return errors.WithContext(err, "write backup configuration")
	}
	return nil
}

// InitBackup makes sure a backup configuration exists at `path`. Existing
// configurations are rewritten unchanged.
func InitBackup(path string) (*Backup, error) {
	backup, err := LoadBackup(path)
	if err != nil {
		return nil, err
	}

	if err := SaveBackup(backup, path); err != nil {
		return nil, err
	}
	return backup, nil
}

// assignIDs gives an identifier to devices and sync jobs that were written
// by hand without one.
func (b *Backup) assignIDs() {
	for i := range b.Devices {
		device := &b.Devices[i]
		if device.ID == "" {
			device.ID = newID()
		}
		for j := range device.SyncJobs {
			if device.SyncJobs[j].ID == "" {
				device.SyncJobs[j].ID = newID()
			}
		}
	}
}

// newID is mocked in unit tests.
var newID = func() string {
	return uuid.New().String()
}

// Device returns the device named `name`. Names are unique by construction,
// but a hand edited document may break that, in which case the lookup fails
// rather than guessing.
func (b *Backup) Device(name string) (*Device, error) {
	idx, count := -1, 0
	for i, device := range b.Devices {
		if device.Name == name {
			idx = i
			count++
		}
	}

	switch count {
	case 0:
		return nil, errors.DeviceNotFound{Device: name}
	case 1:
		return &b.Devices[idx], nil
	default:
		return nil, errors.AmbiguousName{Kind: "device", Name: name, Count: count}
	}
}

// DeviceByID returns the device with the given identifier.
func (b *Backup) DeviceByID(id string) (*Device, bool) {
	for i := range b.Devices {
		if b.Devices[i].ID == id {
			return &b.Devices[i], true
		}
	}
	return nil, false
}

// SyncJob returns the sync job named `name`.
func (d *Device) SyncJob(name string) (*SyncJob, error) {
	idx, count := -1, 0
	for i, job := range d.SyncJobs {
		if job.Name == name {
			idx = i
			count++
		}
	}

	switch count {
	case 0:
		return nil, errors.SyncJobNotFound{Device: d.Name, Job: name}
	case 1:
		return &d.SyncJobs[idx], nil
	default:
		return nil, errors.AmbiguousName{Kind: "backup", Name: name, Count: count}
	}
}

// SyncJobByID returns the sync job with the given identifier.
func (d *Device) SyncJobByID(id string) (*SyncJob, bool) {
	for i := range d.SyncJobs {
		if d.SyncJobs[i].ID == id {
			return &d.SyncJobs[i], true
		}
	}
	return nil, false
}

// RecordRun marks the sync job identified by `deviceID` and `jobID` as having
// succeeded in a run starting at `start`. Identifiers stay stable across
// renames, so a run is recorded against the right job even if the document
// was edited while it ran. It returns whether LastRun changed.
func (b *Backup) RecordRun(deviceID, jobID string, start time.Time) bool {
	device, ok := b.DeviceByID(deviceID)
	if !ok {
		return false
	}
	job, ok := device.SyncJobByID(jobID)
	if !ok {
		return false
	}
	return job.MarkRun(start)
}

// MarkRun records that a run starting at `start` succeeded. LastRun never
// moves backwards. It returns whether LastRun changed.
func (j *SyncJob) MarkRun(start time.Time) bool {
	start = start.UTC().Round(0)
	if j.LastRun != nil && !start.After(*j.LastRun) {
		return false
	}
	j.LastRun = &start
	return true
}
