package domain

import "strings"

// NodeKind is the category of a node in a course content tree.
type NodeKind string

const (
	KindCourse     NodeKind = "course"
	KindChapter    NodeKind = "chapter"
	KindSequential NodeKind = "sequential"
	KindVertical   NodeKind = "vertical"

	KindVideo      NodeKind = "video"
	KindHTML       NodeKind = "html"
	KindProblem    NodeKind = "problem"
	KindDiscussion NodeKind = "discussion"
	KindOther      NodeKind = "other"
)

// ParseNodeKind maps a block type string from the content API onto a NodeKind.
// Unknown leaf types map to KindOther.
func ParseNodeKind(s string) NodeKind {
	k := NodeKind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch k {
	case KindCourse, KindChapter, KindSequential, KindVertical,
		KindVideo, KindHTML, KindProblem, KindDiscussion:
		return k
	case "section":
		return KindChapter
	case "subsection":
		return KindSequential
	case "unit":
		return KindVertical
	default:
		return KindOther
	}
}

// IsContainer reports whether nodes of this kind hold other nodes.
func (k NodeKind) IsContainer() bool {
	switch k {
	case KindCourse, KindChapter, KindSequential, KindVertical:
		return true
	}
	return false
}

// ContentKind tells the engine how a downloaded file is finalized.
type ContentKind string

const (
	ContentMedia   ContentKind = "media"
	ContentArchive ContentKind = "archive"
)

// VideoQuality is a user preference over encoded video tiers.
type VideoQuality string

const (
	QualityAuto VideoQuality = "auto"
	Quality360p VideoQuality = "360p"
	Quality540p VideoQuality = "540p"
	Quality720p VideoQuality = "720p"
)

// ParseVideoQuality falls back to QualityAuto for anything unrecognised.
func ParseVideoQuality(s string) VideoQuality {
	switch q := VideoQuality(strings.ToLower(strings.TrimSpace(s))); q {
	case Quality360p, Quality540p, Quality720p:
		return q
	default:
		return QualityAuto
	}
}

// EncodingTier names one of the encodings a video block can be served in.
type EncodingTier string

const (
	TierMobileLow  EncodingTier = "mobile_low"
	TierMobileHigh EncodingTier = "mobile_high"
	TierDesktopMP4 EncodingTier = "desktop_mp4"
	TierFallback   EncodingTier = "fallback"
	TierHLS        EncodingTier = "hls"
)

// EncodedVariant is a single downloadable encoding of a media leaf.
type EncodedVariant struct {
	Tier     EncodingTier `json:"tier"`
	URL      string       `json:"url"`
	ByteSize int64        `json:"file_size"`
}

// DownloadSpec describes how a leaf can be cached. It only exists as part of a
// ContentNode and is never persisted on its own.
type DownloadSpec struct {
	SourceURL   string           `json:"source_url"`
	ByteSize    int64            `json:"byte_size"` // 0 when unknown
	Kind        ContentKind      `json:"kind"`
	RevisionTag string           `json:"revision_tag,omitempty"`
	Variants    []EncodedVariant `json:"variants,omitempty"`
}

// ContentNode is a block in a course content tree.
type ContentNode struct {
	ID          string        `json:"id"`
	Kind        NodeKind      `json:"type"`
	DisplayName string        `json:"display_name"`
	Children    []string      `json:"children,omitempty"`
	Download    *DownloadSpec `json:"download,omitempty"`
	Completion  float64       `json:"completion"`
}

// IsLeaf reports whether the node has no children.
func (n *ContentNode) IsLeaf() bool { return len(n.Children) == 0 }

// IsDownloadable reports whether the node carries a download spec.
func (n *ContentNode) IsDownloadable() bool { return n.Download != nil }

// IsCompleted reports pedagogical completion, unrelated to download state.
func (n *ContentNode) IsCompleted() bool { return n.Completion >= 1.0 }
