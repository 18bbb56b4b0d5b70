package extraction

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ZIP file signatures (magic bytes)
var zipSignatures = [][]byte{
	{0x50, 0x4B, 0x03, 0x04}, // Standard ZIP
	{0x50, 0x4B, 0x05, 0x06}, // Empty ZIP
	{0x50, 0x4B, 0x07, 0x08}, // Spanned ZIP
}

// NativeZip extracts ZIP archives in-process.
type NativeZip struct{}

func NewNativeZip() *NativeZip { return &NativeZip{} }

// Name returns the extractor name
func (z *NativeZip) Name() string {
	return "ZIP"
}

// CanExtract checks the magic bytes; downloaded archives are named by hash so
// the extension alone is not trusted.
func (z *NativeZip) CanExtract(filePath string) (bool, error) {
	isZip, err := hasZipSignature(filePath)
	if err != nil {
		return false, fmt.Errorf("failed to verify ZIP signature: %w", err)
	}
	return isZip, nil
}

// Extract unpacks every entry below destDir. Entries escaping destDir and
// symbolic links abort the extraction.
func (z *NativeZip) Extract(ctx context.Context, archivePath string, destDir string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrExtractionFailed, filepath.Base(archivePath), err)
	}
	defer r.Close()

	if err := validateEntries(r.File, destDir); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create extraction dir: %w", err)
	}

	var paths []string
	for _, f := range r.File {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		target, _ := safeJoin(destDir, f.Name)
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			if err := os.MkdirAll(target, 0755); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrExtractionFailed, f.Name, err)
		}
		paths = append(paths, target)
	}

	return paths, nil
}

func validateEntries(files []*zip.File, destDir string) error {
	for _, f := range files {
		if _, err := safeJoin(destDir, f.Name); err != nil {
			return err
		}
		if f.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: symlink %s", ErrUnsafeArchivePath, f.Name)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	return dst.Close()
}

// hasZipSignature checks if the file has a valid ZIP magic byte signature
func hasZipSignature(filePath string) (bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	header := make([]byte, 4)
	n, err := io.ReadFull(file, header)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if n < 4 {
		return false, nil
	}

	// Check against known ZIP signatures
	for _, sig := range zipSignatures {
		if bytes.Equal(header, sig) {
			return true, nil
		}
	}

	return false, nil
}
