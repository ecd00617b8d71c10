package config

import (
	"iter"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/smartsync/pkg/errors"
)

const (
	// InitialRegistryVersion is the first version of the registry. Registries
	// that do not specify a version default to this version.
	InitialRegistryVersion = "v1alpha1"

	// SupportedRegistryVersion is the version of the registry understood by
	// this binary.
	SupportedRegistryVersion = "v1alpha1"
)

// Registry maps backup names to the paths of their configurations. It
// doesn't own the configurations: they can be edited, moved or deleted
// independently, which leaves a dangling entry behind.
type Registry struct {
	Version string          `json:"version,omitempty"`
	Backups []RegistryEntry `json:"backups"`
}

// RegistryEntry is a single name to path mapping. Entries are kept as a list
// so that the registry preserves insertion order.
type RegistryEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (r Registry) getVersion() string {
	return r.Version
}

// LoadRegistry parses the registry at `path`. A missing registry is treated
// as an empty one.
func LoadRegistry(path string) (*Registry, error) {
	registry := &Registry{Version: InitialRegistryVersion}
	err := parseDocument(path, registry, SupportedRegistryVersion)
	if _, ok := err.(errors.FileNotFound); ok {
		log.WithField("path", path).Debug("Registry doesn't exist. Using an empty one.")
		return &Registry{Version: SupportedRegistryVersion, Backups: []RegistryEntry{}}, nil
	}
	if err != nil {
		return nil, errors.RegistryNotReadable{Path: path, Err: err}
	}

	if registry.Backups == nil {
		registry.Backups = []RegistryEntry{}
	}
	return registry, nil
}

// SaveRegistry atomically writes `registry` to `path`.
func SaveRegistry(registry *Registry, path string) error {
	registry.Version = SupportedRegistryVersion
	if err := writeDocument(path, registry); err != nil {
		return errors.WithContext(err, "write registry")
	}
	return nil
}

// Register adds a backup to the registry. The same configuration may be
// registered under several names, but each name may only be used once.
func (r *Registry) Register(name, path string) error {
	if name == "" {
		return errors.MissingFieldError{Field: "backup name"}
	}
	if path == "" {
		return errors.MissingFieldError{Field: "path"}
	}
	if looksLikePath(name) {
		return errors.NewFriendlyError(
			"backup name %q can't start with ~ or contain a path separator", name)
	}

	for _, entry := range r.Backups {
		if entry.Name == name {
			return errors.DuplicateBackupName{Name: name}
		}
	}

	r.Backups = append(r.Backups, RegistryEntry{Name: name, Path: path})
	return nil
}

// Lookup returns the configuration path registered under `name`. It doesn't
// check that the configuration still exists.
func (r *Registry) Lookup(name string) (string, error) {
	for _, entry := range r.Backups {
		if entry.Name == name {
			return entry.Path, nil
		}
	}
	return "", errors.BackupNotRegistered{Name: name}
}

// All iterates over the registered (name, path) pairs in the order they were
// registered. The sequence can be ranged over any number of times.
func (r *Registry) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, entry := range r.Backups {
			if !yield(entry.Name, entry.Path) {
				return
			}
		}
	}
}
