package extraction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrExtractionFailed wraps every extractor failure
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrUnsafeArchivePath marks an entry that would land outside the destination
	ErrUnsafeArchivePath = errors.New("archive entry escapes destination")
	// ErrNoExtractor means no registered extractor recognises the file
	ErrNoExtractor = errors.New("no extractor for file")
)

// Extractor defines the behavior for extracting compress archives
type Extractor interface {
	// Extract extracts the archive at the given path to the destination directory.
	// Returns the list of extracted file paths, or an error if extration fails.
	Extract(ctx context.Context, archivePath string, destDir string) ([]string, error)

	// CanExtract checks if this extractor can handle the given file.
	CanExtract(filename string) (bool, error)

	// Returns the human-readable name of this extractor (e.g. "ZIP", "unzip")
	Name() string
}

// safeJoin resolves an archive entry name below destDir, rejecting absolute
// names and anything that climbs out with "..".
func safeJoin(destDir, name string) (string, error) {
	clean := filepath.FromSlash(strings.ReplaceAll(name, "\\", "/"))
	if filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" {
		return "", fmt.Errorf("%w: %s", ErrUnsafeArchivePath, name)
	}

	target := filepath.Join(destDir, clean)
	rel, err := filepath.Rel(destDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeArchivePath, name)
	}
	return target, nil
}

// listFiles returns every regular file under dir.
func listFiles(ctx context.Context, dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return err
		}

		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}
