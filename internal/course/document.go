package course

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/openedx/edxoffline/internal/domain"
)

// Document is the wire form of a course structure as served by the blocks API.
type Document struct {
	ID     string                   `json:"id"`
	Name   string                   `json:"name"`
	Root   string                   `json:"root"`
	Blocks map[string]BlockDocument `json:"blocks"`
}

type BlockDocument struct {
	ID              string           `json:"id"`
	BlockID         string           `json:"block_id"`
	Type            string           `json:"type"`
	DisplayName     string           `json:"display_name"`
	Descendants     []string         `json:"descendants"`
	Completion      float64          `json:"completion"`
	StudentViewData *StudentViewData `json:"student_view_data,omitempty"`
	OfflineDownload *OfflineDownload `json:"offline_download,omitempty"`
}

type StudentViewData struct {
	OnlyOnWeb     bool                  `json:"only_on_web"`
	EncodedVideos map[string]*VideoInfo `json:"encoded_videos,omitempty"`
}

type VideoInfo struct {
	URL      string `json:"url"`
	FileSize int64  `json:"file_size"`
}

// OfflineDownload is the archive bundle offered for non-video blocks.
type OfflineDownload struct {
	FileURL      string `json:"file_url"`
	LastModified string `json:"last_modified"`
	FileSize     int64  `json:"file_size"`
}

// variantTiers is the order variants are recorded in. youtube is not downloadable.
var variantTiers = []domain.EncodingTier{
	domain.TierMobileLow,
	domain.TierMobileHigh,
	domain.TierDesktopMP4,
	domain.TierFallback,
	domain.TierHLS,
}

// Parse decodes a course structure document into a validated Tree. When the
// document carries no id, courseID is used.
func Parse(data []byte, courseID string) (*Tree, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTree, err)
	}
	if doc.ID == "" {
		doc.ID = courseID
	}
	return doc.Tree()
}

// Tree converts the document into domain nodes.
func (d *Document) Tree() (*Tree, error) {
	if d.Root == "" {
		return nil, fmt.Errorf("%w: document has no root", domain.ErrInvalidTree)
	}

	nodes := make([]domain.ContentNode, 0, len(d.Blocks))
	for key, b := range d.Blocks {
		id := b.ID
		if id == "" {
			id = key
		}
		nodes = append(nodes, b.node(id))
	}
	return NewTree(d.ID, d.Root, nodes)
}

func (b BlockDocument) node(id string) domain.ContentNode {
	n := domain.ContentNode{
		ID:          id,
		Kind:        domain.ParseNodeKind(b.Type),
		DisplayName: b.DisplayName,
		Completion:  b.Completion,
	}

	if len(b.Descendants) > 0 {
		n.Children = append([]string(nil), b.Descendants...)
		return n
	}
	n.Download = b.downloadSpec(n.Kind)
	return n
}

func (b BlockDocument) downloadSpec(kind domain.NodeKind) *domain.DownloadSpec {
	if kind == domain.KindVideo {
		if b.StudentViewData == nil || b.StudentViewData.OnlyOnWeb {
			return nil
		}
		var variants []domain.EncodedVariant
		for _, tier := range variantTiers {
			v := b.StudentViewData.EncodedVideos[string(tier)]
			if v == nil || v.URL == "" {
				continue
			}
			variants = append(variants, domain.EncodedVariant{Tier: tier, URL: v.URL, ByteSize: v.FileSize})
		}
		if len(variants) == 0 {
			return nil
		}
		spec := &domain.DownloadSpec{Kind: domain.ContentMedia, Variants: variants}
		for _, v := range variants {
			if IsNetworkURL(v.URL) && !IsHLS(v.URL) {
				spec.SourceURL = v.URL
				spec.ByteSize = v.ByteSize
				break
			}
		}
		return spec
	}

	if b.OfflineDownload == nil || b.OfflineDownload.FileURL == "" {
		return nil
	}
	return &domain.DownloadSpec{
		SourceURL:   b.OfflineDownload.FileURL,
		ByteSize:    b.OfflineDownload.FileSize,
		Kind:        domain.ContentArchive,
		RevisionTag: b.OfflineDownload.LastModified,
	}
}

// IsNetworkURL reports whether raw is an absolute http(s) URL.
func IsNetworkURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// IsHLS reports whether raw points at an HLS playlist.
func IsHLS(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(raw), ".m3u8")
	}
	return strings.EqualFold(path.Ext(u.Path), ".m3u8")
}
