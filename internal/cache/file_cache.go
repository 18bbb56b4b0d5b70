package cache

import (
	"net/url"
	"os"
	"path/filepath"
)

// FileCache stores course structure documents as JSON blobs on disk.
// It implements course.DocumentCache.
type FileCache struct {
	Dir string
}

func (f *FileCache) path(id string) string {
	// Course keys carry ':' and '+', escape them so the key is a single safe file name
	return filepath.Join(f.Dir, url.PathEscape(id)+".json")
}

func (f *FileCache) Get(id string) ([]byte, error) {
	return os.ReadFile(f.path(id))
}

func (f *FileCache) Put(id string, data []byte) error {
	// Ensure the directory exists
	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return err
	}

	// Write to a temp file first so a crash never leaves a torn document behind
	tmp, err := os.CreateTemp(f.Dir, ".course-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path(id))
}

func (f *FileCache) Exists(id string) bool {
	_, err := os.Stat(f.path(id))
	return err == nil
}

func (f *FileCache) Delete(id string) error {
	err := os.Remove(f.path(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
