package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"

	"github.com/sidkik/smartsync/pkg/errors"
)

// parseConfigErrTemplate is a template for when smartsync fails to parse yaml
// documents. This can happen for a multitude of reasons, including
// extraneous fields and incorrect field types. However, the yaml library
// constructs errors in a way that loses context, and so we can only pass the
// error message on.
const parseConfigErrTemplate = "Configuration file could not be parsed. " +
	"Please review %q.\n" +
	"Common pitfalls include:\n" +
	" - Using the wrong types for fields\n" +
	" - Having extra fields inside the config file\n\n" +
	"For reference, here is the error from the parser:\n" +
	"%s"

type document interface {
	getVersion() string
}

type incompatibleVersionError struct {
	path, exp, actual string
}

func (err incompatibleVersionError) Error() string {
	return err.FriendlyMessage()
}

func (err incompatibleVersionError) FriendlyMessage() string {
	return fmt.Sprintf("The configuration file %q is incompatible "+
		"with this version of smartsync.\n"+
		"Expected version %q, but got %q.", err.path, err.exp, err.actual)
}

// parseDocument reads the yaml document at `path` into `doc`. It returns
// errors.FileNotFound if there's nothing at `path`.
func parseDocument(path string, doc document, expVersion string) error {
	docBytes, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.FileNotFound{Path: path}
		}
		return errors.WithContext(err, "read file")
	}

	if err := yaml.Unmarshal(docBytes, doc); err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}

	if doc.getVersion() != expVersion {
		return incompatibleVersionError{path, expVersion, doc.getVersion()}
	}

	// Do a strict unmarshal to check for any extra fields. We do a non-strict
	// unmarshal first so that we can catch version errors before erroring on
	// extra fields.
	err = yaml.UnmarshalStrict(docBytes, doc, yaml.DisallowUnknownFields)
	if err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}
	return nil
}

// writeDocument atomically replaces the file at `path` with the yaml
// encoding of `doc`. The contents are written to a temporary file in the
// same directory, then renamed over `path`, so a crash never leaves a
// truncated document behind.
func writeDocument(path string, doc interface{}) error {
	yamlBytes, err := yaml.Marshal(doc)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return errors.WithContext(err, "make parent")
	}

	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return errors.WithContext(err, "create temp file")
	}

	// Best effort cleanup if anything below fails. After a successful rename
	// the temp path no longer exists, and the removal is a no-op.
	defer fs.Remove(tmp.Name())

	if _, err := tmp.Write(yamlBytes); err != nil {
		tmp.Close()
		return errors.WithContext(err, "write")
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.WithContext(err, "sync")
	}

	if err := tmp.Close(); err != nil {
		return errors.WithContext(err, "close")
	}

	if err := fs.Chmod(tmp.Name(), 0644); err != nil {
		return errors.WithContext(err, "set file mode")
	}

	if err := fs.Rename(tmp.Name(), path); err != nil {
		return errors.WithContext(err, "rename")
	}
	return nil
}
