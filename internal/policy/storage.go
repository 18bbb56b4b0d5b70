package policy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/openedx/edxoffline/internal/domain"
)

// DownloadSizeFactor is the free space required per queued byte. Archives
// briefly exist twice on disk while they are extracted.
const DownloadSizeFactor = 2

// DiskSpace reports the bytes available to unprivileged writers on the
// filesystem holding path.
type DiskSpace interface {
	FreeBytes(path string) (uint64, error)
}

// OSDiskSpace asks the operating system. Paths that do not exist yet are
// resolved to their closest existing parent.
type OSDiskSpace struct{}

func (OSDiskSpace) FreeBytes(path string) (uint64, error) {
	for {
		free, err := freeBytes(path)
		if err == nil || !os.IsNotExist(err) {
			return free, err
		}
		parent := filepath.Dir(path)
		if parent == path {
			return 0, err
		}
		path = parent
	}
}

// FixedDiskSpace reports a fixed amount of free space.
type FixedDiskSpace uint64

func (f FixedDiskSpace) FreeBytes(string) (uint64, error) { return uint64(f), nil }

// AllowStorage returns ErrInsufficientStorage when dir cannot hold need bytes
// with DownloadSizeFactor headroom. A platform that cannot report free space
// never refuses.
func (c *Checker) AllowStorage(dir string, need int64) error {
	c.mu.RLock()
	space := c.storage
	c.mu.RUnlock()
	if space == nil || need <= 0 {
		return nil
	}

	free, err := space.FreeBytes(dir)
	if errors.Is(err, errors.ErrUnsupported) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check free storage in %s: %w", dir, err)
	}

	required := uint64(need) * DownloadSizeFactor
	if free < required {
		return fmt.Errorf("%w: %s needed, %s free", domain.ErrInsufficientStorage,
			humanize.Bytes(required), humanize.Bytes(free))
	}
	return nil
}

func (c *Checker) SetDiskSpace(d DiskSpace) {
	c.mu.Lock()
	c.storage = d
	c.mu.Unlock()
}
