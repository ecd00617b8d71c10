package config

import (
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/smartsync/pkg/errors"
)

const (
	// DefaultRegistryPath is where the registry lives unless overridden.
	DefaultRegistryPath = "~/.smartsync.yaml"

	// RegistryPathEnvKey is the environment variable that overrides the
	// registry location.
	RegistryPathEnvKey = "SMARTSYNC_REGISTRY"
)

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// Paths carries the resolved locations of the files smartsync works with.
// It's built once by the CLI and handed to everything that needs the
// registry, so tests can point it anywhere.
type Paths struct {
	Registry string
}

// DefaultPaths resolves the registry location from `override` if it's set,
// then the environment, and finally DefaultRegistryPath.
func DefaultPaths(override string) (Paths, error) {
	path := override
	if path == "" {
		path = os.Getenv(RegistryPathEnvKey)
	}
	if path == "" {
		path = DefaultRegistryPath
	}

	expanded, err := ExpandPath(path)
	if err != nil {
		return Paths{}, errors.WithContext(err, "expand registry path")
	}
	return Paths{Registry: expanded}, nil
}

// ExpandPath expands a leading `~` and makes `path` absolute.
func ExpandPath(path string) (string, error) {
	expanded, err := homedirExpand(path)
	if err != nil {
		return "", errors.WithContext(err, "expand homedir")
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", errors.WithContext(err, "absolute path")
	}
	return abs, nil
}

// LoadRegistry loads the registry these paths point at.
func (p Paths) LoadRegistry() (*Registry, error) {
	return LoadRegistry(p.Registry)
}

// SaveRegistry saves the registry these paths point at.
func (p Paths) SaveRegistry(registry *Registry) error {
	return SaveRegistry(registry, p.Registry)
}

// ResolveBackup turns `ref` into the path of a backup configuration. `ref`
// is either the name of a registered backup, or a path. Refs that look like
// paths never consult the registry, so a broken registry doesn't get in the
// way of explicit paths. Registered configurations must exist: a registry
// entry whose target is gone is reported as unreadable.
func (p Paths) ResolveBackup(ref string) (string, error) {
	if looksLikePath(ref) {
		return ExpandPath(ref)
	}

	registry, err := p.LoadRegistry()
	if err != nil {
		if exists, _ := afero.Exists(fs, ref); exists {
			log.WithError(err).WithField("ref", ref).Warn(
				"Failed to load registry. Treating the backup as a path.")
			return ExpandPath(ref)
		}
		return "", err
	}

	path, err := registry.Lookup(ref)
	if err != nil {
		log.WithField("ref", ref).Debug("Not a registered backup name. Treating it as a path.")
		return ExpandPath(ref)
	}

	path, err = ExpandPath(path)
	if err != nil {
		return "", err
	}

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return "", errors.WithContext(err, "stat")
	}
	if !exists {
		return "", errors.ConfigNotReadable{Path: path, Err: errors.FileNotFound{Path: path}}
	}
	return path, nil
}

// looksLikePath returns whether `ref` can only be a path. Registered names
// can't contain path separators.
func looksLikePath(ref string) bool {
	return strings.HasPrefix(ref, "~") || strings.ContainsRune(ref, '/') ||
		strings.ContainsRune(ref, filepath.Separator)
}
