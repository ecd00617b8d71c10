package sync

import (
	"crypto/sha512"
	"encoding/base64"
	"io"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/sidkik/smartsync/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// FileAttributes contains the metadata used to decide whether a destination
// file is out of date.
type FileAttributes struct {
	// Size is the length of the file in bytes.
	Size int64

	// Mode is the file mode of the file.
	Mode os.FileMode

	// ModTime is the time of the last file modification.
	ModTime time.Time
}

func attributesOf(fi os.FileInfo) FileAttributes {
	return FileAttributes{
		Size:    fi.Size(),
		Mode:    fi.Mode(),
		ModTime: fi.ModTime(),
	}
}

// SameModTime returns whether the modification times are within `window` of
// each other. A zero window requires an exact match.
func (f FileAttributes) SameModTime(other FileAttributes, window time.Duration) bool {
	diff := f.ModTime.Sub(other.ModTime)
	if diff < 0 {
		diff = -diff
	}
	return diff <= window
}

// HashFile returns the sha512 hash of the file at the given path.
func HashFile(path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", errors.WithContext(err, "open")
	}
	defer f.Close()

	hasher := sha512.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", errors.WithContext(err, "read")
	}

	return base64.StdEncoding.EncodeToString(hasher.Sum(nil)), nil
}
