package domain

// ProgressChanged is emitted while a transfer is running. BytesRead is
// non-decreasing for a given id; BytesDelta is the growth since the previous
// event for that id.
type ProgressChanged struct {
	ID         string `json:"id"`
	BytesDelta int64  `json:"bytes_delta"`
	BytesRead  int64  `json:"bytes_read"`
	TotalBytes int64  `json:"total_bytes"` // -1 when unknown
}

// ItemFailed is emitted when one record fails transfer or post-processing.
// Cancellations never produce it.
type ItemFailed struct {
	BatchID string         `json:"batch_id"`
	Record  DownloadRecord `json:"record"`
	Reason  string         `json:"reason"`
}

// DownloadFailed is emitted once the queue drains and at least one item failed.
type DownloadFailed struct {
	BatchIDs []string         `json:"batch_ids"`
	Records  []DownloadRecord `json:"records"`
}

// MessageLevel classifies a user-facing message.
type MessageLevel string

const (
	MessageInfo  MessageLevel = "info"
	MessageError MessageLevel = "error"
)

// Message is a human-readable notice produced by the caller layer.
type Message struct {
	Level MessageLevel `json:"level"`
	Text  string       `json:"text"`
}
