// Package processor finalizes a completed transfer: media files are measured,
// archives are unpacked next to themselves and the archive is dropped.
package processor

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/openedx/edxoffline/internal/domain"
	"github.com/openedx/edxoffline/internal/extraction"
	"github.com/openedx/edxoffline/internal/infra/logger"
)

// UnzippedSuffix is appended to an archive path to name its extraction directory.
const UnzippedSuffix = "-unzipped"

// Detector picks an extractor for a downloaded file.
type Detector interface {
	Detect(path string) (extraction.Extractor, error)
}

type Processor struct {
	logger   *logger.Logger
	detector Detector
}

func New(l *logger.Logger, d Detector) *Processor {
	if l == nil {
		l = logger.Nop()
	}
	return &Processor{logger: l, detector: d}
}

// ExtractedPath returns where an archive at archivePath is unpacked.
func ExtractedPath(archivePath string) string {
	return archivePath + UnzippedSuffix
}

// Finalize turns a transferred record into its downloaded form. On error the
// record must not be marked downloaded; any half-extracted directory is gone.
func (p *Processor) Finalize(ctx context.Context, rec domain.DownloadRecord) (domain.DownloadRecord, error) {
	if rec.Kind == domain.ContentArchive {
		return p.finalizeArchive(ctx, rec)
	}

	info, err := os.Stat(rec.LocalPath)
	if err != nil {
		return rec, fmt.Errorf("stat %s: %w", rec.LocalPath, err)
	}

	rec.ByteSize = info.Size()
	rec.State = domain.StateDownloaded
	return rec, nil
}

func (p *Processor) finalizeArchive(ctx context.Context, rec domain.DownloadRecord) (domain.DownloadRecord, error) {
	archive := rec.LocalPath
	dest := ExtractedPath(archive)

	// A leftover from an interrupted run would mix stale files into the result
	if err := RemovePath(dest); err != nil {
		return rec, fmt.Errorf("clear %s: %w", dest, err)
	}

	extractor, err := p.detector.Detect(archive)
	if err != nil {
		return rec, fmt.Errorf("%w: %v", extraction.ErrExtractionFailed, err)
	}

	files, err := extractor.Extract(ctx, archive, dest)
	if err != nil {
		if rerr := RemovePath(dest); rerr != nil {
			p.logger.Warn("Failed to remove partial extraction %s: %v", dest, rerr)
		}
		if errors.Is(err, context.Canceled) {
			return rec, err
		}
		if !errors.Is(err, extraction.ErrExtractionFailed) {
			err = fmt.Errorf("%w: %w", extraction.ErrExtractionFailed, err)
		}
		return rec, err
	}

	size, err := DirSize(dest)
	if err != nil {
		RemovePath(dest)
		return rec, fmt.Errorf("measure %s: %w", dest, err)
	}

	if err := os.Remove(archive); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("Failed to delete archive %s after extraction: %v", archive, err)
	}

	p.logger.Debug("Extracted %d files from %s with %s", len(files), archive, extractor.Name())

	rec.LocalPath = dest
	rec.ByteSize = size
	rec.State = domain.StateDownloaded
	return rec, nil
}
