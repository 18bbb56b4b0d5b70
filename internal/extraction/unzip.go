package extraction

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/klauspost/compress/zip"
)

// CLIUnzip shells out to the system unzip binary.
type CLIUnzip struct {
	BinaryPath string
}

func NewCLIUnzip() (*CLIUnzip, error) {
	path, err := exec.LookPath("unzip")
	if err != nil {
		return nil, fmt.Errorf("unzip binary not found in PATH: %w", err)
	}
	return &CLIUnzip{BinaryPath: path}, nil
}

// Name returns the extractor name
func (u *CLIUnzip) Name() string {
	return "unzip"
}

// CanExtract checks if the file is a ZIP archive
func (u *CLIUnzip) CanExtract(filePath string) (bool, error) {
	isZip, err := hasZipSignature(filePath)
	if err != nil {
		return false, fmt.Errorf("failed to verify ZIP signature: %w", err)
	}
	return isZip, nil
}

// Extract extracts the ZIP archive to the destination directory
func (u *CLIUnzip) Extract(ctx context.Context, archivePath string, destDir string) ([]string, error) {
	// unzip only warns about traversal entries, so the listing is checked first
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrExtractionFailed, archivePath, err)
	}
	err = validateEntries(r.File, destDir)
	r.Close()
	if err != nil {
		return nil, err
	}

	// unzip -o <archive> -d <destination>
	// -o = overwrite existing files
	// -q = quiet mode
	cmd := exec.CommandContext(ctx, u.BinaryPath, "-o", "-q", archivePath, "-d", destDir)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: unzip: %v\nOutput: %s", ErrExtractionFailed, err, string(output))
	}

	return listFiles(ctx, destDir)
}
