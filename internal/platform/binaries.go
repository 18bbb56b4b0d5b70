package platform

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/openedx/edxoffline/internal/infra/config"
	"github.com/openedx/edxoffline/internal/infra/logger"
)

// OptionalExtractorBinaries lists system extractors that can be used instead
// of the built-in ones.
var OptionalExtractorBinaries = map[string]string{
	"unzip": "ZIP",
}

// ValidateDependencies creates the directories the app writes to and reports
// optional binaries that are missing.
func ValidateDependencies(cfg *config.Config, log *logger.Logger) error {
	dirs := []string{cfg.Download.OutDir, cfg.Course.CacheDir}
	if cfg.Store.Driver == "sqlite" || cfg.Store.Driver == "" {
		dirs = append(dirs, filepath.Dir(cfg.Store.SQLitePath))
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	if !cfg.Extraction.UseSystemUnzip {
		return nil
	}
	for bin, formatName := range OptionalExtractorBinaries {
		if _, err := exec.LookPath(bin); err != nil {
			log.Info("%s not found, %s archives will use the built-in extractor", bin, formatName)
		}
	}
	return nil
}
