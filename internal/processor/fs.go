package processor

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// DirSize returns the total size of the regular files under path. A missing
// path has size 0. A plain file reports its own size.
func DirSize(path string) (int64, error) {
	var total int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	return total, err
}

// RemovePath deletes a file or a directory tree. Missing paths are not an error.
func RemovePath(path string) error {
	if path == "" {
		return nil
	}
	err := os.RemoveAll(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Exists reports whether anything is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
