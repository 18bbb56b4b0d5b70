package domain

// DownloadState is the persisted state of a DownloadRecord. StateNotDownloaded
// is implied by the absence of a record and is never written to the ledger.
type DownloadState string

const (
	StateNotDownloaded DownloadState = "not_downloaded"
	StateWaiting       DownloadState = "waiting"
	StateDownloading   DownloadState = "downloading"
	StateDownloaded    DownloadState = "downloaded"
)

// IsWaitingOrDownloading reports whether the record is still in the pipeline.
func (s DownloadState) IsWaitingOrDownloading() bool {
	return s == StateWaiting || s == StateDownloading
}

// IsDownloaded reports whether the record reached its terminal success state.
func (s DownloadState) IsDownloaded() bool { return s == StateDownloaded }

// Valid reports whether s may be persisted.
func (s DownloadState) Valid() bool {
	switch s {
	case StateWaiting, StateDownloading, StateDownloaded:
		return true
	}
	return false
}

// DownloadRecord is one row of the download ledger, keyed by content id.
type DownloadRecord struct {
	ID           string        `json:"id"`
	DisplayTitle string        `json:"title"`
	CourseID     string        `json:"course_id"`
	ByteSize     int64         `json:"size"`
	LocalPath    string        `json:"path"`
	SourceURL    string        `json:"url"`
	Kind         ContentKind   `json:"kind"`
	State        DownloadState `json:"state"`
	RevisionTag  string        `json:"revision_tag,omitempty"`
}

// WithState returns a copy of r in the given state.
func (r DownloadRecord) WithState(s DownloadState) DownloadRecord {
	r.State = s
	return r
}
