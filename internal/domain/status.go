package domain

// AggregateStatus is the derived download rollup for one node of a content
// tree. It is recomputed from the ledger and never persisted.
type AggregateStatus struct {
	State            DownloadState `json:"state"`
	DownloadingCount int           `json:"downloading_count"`
	DownloadedCount  int           `json:"downloaded_count"`
	TotalCount       int           `json:"total_count"`
	RemainingBytes   int64         `json:"remaining_bytes"`
	TotalBytes       int64         `json:"total_bytes"`
}
