package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openedx/edxoffline/internal/infra/config"
	"github.com/openedx/edxoffline/internal/infra/logger"
)

func TestValidateDependenciesCreatesDirs(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{
		Download:   config.DownloadConfig{OutDir: filepath.Join(root, "out")},
		Course:     config.CourseConfig{CacheDir: filepath.Join(root, "cache", "courses")},
		Store:      config.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(root, "db", "ledger.db")},
		Extraction: config.ExtractionConfig{UseSystemUnzip: true},
	}

	if err := ValidateDependencies(cfg, logger.Nop()); err != nil {
		t.Fatalf("ValidateDependencies: %v", err)
	}
	for _, dir := range []string{"out", "cache/courses", "db"} {
		if info, err := os.Stat(filepath.Join(root, dir)); err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", dir, err)
		}
	}
}

func TestValidateDependenciesFailsOnFile(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Download: config.DownloadConfig{OutDir: filepath.Join(blocker, "out")},
		Store:    config.StoreConfig{Driver: "memory"},
	}
	if err := ValidateDependencies(cfg, logger.Nop()); err == nil {
		t.Fatal("expected error when out dir cannot be created")
	}
}
