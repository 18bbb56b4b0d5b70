// Package mapper turns downloadable content nodes into download records.
// It performs no I/O: the same inputs always produce the same record.
package mapper

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/openedx/edxoffline/internal/course"
	"github.com/openedx/edxoffline/internal/domain"
)

const (
	defaultMediaExt   = "mp4"
	defaultArchiveExt = "zip"
)

// fallbackOrder is tried after the preferred tier.
var fallbackOrder = []domain.EncodingTier{
	domain.TierMobileLow,
	domain.TierMobileHigh,
	domain.TierDesktopMP4,
	domain.TierFallback,
	domain.TierHLS,
}

// Mapper builds download records. The zero value is ready to use.
type Mapper struct{}

func New() *Mapper { return &Mapper{} }

// BuildDescriptor returns the record for node, stored under targetFolder.
// It returns false when the node is not downloadable or has no usable URL;
// that is a normal skip, not an error.
func (m *Mapper) BuildDescriptor(node *domain.ContentNode, targetFolder, courseID string, pref domain.VideoQuality) (*domain.DownloadRecord, bool) {
	if node == nil || node.Download == nil {
		return nil, false
	}
	spec := node.Download

	var (
		sourceURL string
		size      = spec.ByteSize
		ext       string
	)

	switch spec.Kind {
	case domain.ContentArchive:
		if !course.IsNetworkURL(spec.SourceURL) {
			return nil, false
		}
		sourceURL = spec.SourceURL
		ext = defaultArchiveExt
	default:
		v, ok := SelectVariant(spec, pref)
		if ok {
			sourceURL = v.URL
			if v.ByteSize > 0 {
				size = v.ByteSize
			}
		} else if course.IsNetworkURL(spec.SourceURL) {
			sourceURL = spec.SourceURL
		} else {
			return nil, false
		}
		ext = extension(sourceURL, defaultMediaExt)
	}

	kind := spec.Kind
	if kind == "" {
		kind = domain.ContentMedia
	}

	return &domain.DownloadRecord{
		ID:           node.ID,
		DisplayTitle: node.DisplayName,
		CourseID:     courseID,
		ByteSize:     size,
		LocalPath:    filepath.Join(targetFolder, domain.HashURL(sourceURL)+"."+ext),
		SourceURL:    sourceURL,
		Kind:         kind,
		State:        domain.StateWaiting,
		RevisionTag:  spec.RevisionTag,
	}, true
}

// PlannedSize is the byte size BuildDescriptor records for spec under pref, so
// totals shown before a download match what is fetched.
func PlannedSize(spec *domain.DownloadSpec, pref domain.VideoQuality) int64 {
	if spec == nil {
		return 0
	}
	if spec.Kind != domain.ContentArchive {
		if v, ok := SelectVariant(spec, pref); ok && v.ByteSize > 0 {
			return v.ByteSize
		}
	}
	return spec.ByteSize
}

// PreferredTier maps a quality preference onto an encoding tier. Auto has none.
func PreferredTier(q domain.VideoQuality) (domain.EncodingTier, bool) {
	switch q {
	case domain.Quality360p:
		return domain.TierMobileLow, true
	case domain.Quality540p:
		return domain.TierMobileHigh, true
	case domain.Quality720p:
		return domain.TierDesktopMP4, true
	}
	return "", false
}

// SelectVariant picks the encoded variant to download for pref, falling back
// through the remaining tiers. Only network URLs qualify, and the fallback tier
// is skipped when it is an HLS playlist.
func SelectVariant(spec *domain.DownloadSpec, pref domain.VideoQuality) (domain.EncodedVariant, bool) {
	byTier := make(map[domain.EncodingTier]domain.EncodedVariant, len(spec.Variants))
	for _, v := range spec.Variants {
		if _, dup := byTier[v.Tier]; !dup {
			byTier[v.Tier] = v
		}
	}

	order := fallbackOrder
	if tier, ok := PreferredTier(pref); ok {
		order = append([]domain.EncodingTier{tier}, fallbackOrder...)
	}

	for _, tier := range order {
		v, ok := byTier[tier]
		if !ok || !course.IsNetworkURL(v.URL) {
			continue
		}
		if tier == domain.TierFallback && course.IsHLS(v.URL) {
			continue
		}
		return v, true
	}
	return domain.EncodedVariant{}, false
}

func extension(raw, def string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return def
	}
	ext := strings.TrimPrefix(path.Ext(u.Path), ".")
	if ext == "" {
		return def
	}
	return strings.ToLower(ext)
}
