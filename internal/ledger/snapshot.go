package ledger

import (
	"sort"

	"github.com/openedx/edxoffline/internal/domain"
)

// Snapshot is an immutable copy of the whole ledger at one point in time.
type Snapshot struct {
	records []domain.DownloadRecord
	byID    map[string]int
}

func newSnapshot(recs []domain.DownloadRecord) Snapshot {
	s := Snapshot{
		records: recs,
		byID:    make(map[string]int, len(recs)),
	}
	for i, r := range recs {
		s.byID[r.ID] = i
	}
	return s
}

// NewSnapshot builds a snapshot from records, mostly for tests. The slice is copied.
func NewSnapshot(recs ...domain.DownloadRecord) Snapshot {
	return newSnapshot(append([]domain.DownloadRecord(nil), recs...))
}

func (s Snapshot) Len() int { return len(s.records) }

// Get returns the record for id.
func (s Snapshot) Get(id string) (domain.DownloadRecord, bool) {
	i, ok := s.byID[id]
	if !ok {
		return domain.DownloadRecord{}, false
	}
	return s.records[i], true
}

// State returns the state for id, StateNotDownloaded when there is no record.
func (s Snapshot) State(id string) domain.DownloadState {
	if r, ok := s.Get(id); ok {
		return r.State
	}
	return domain.StateNotDownloaded
}

// Records returns a copy of every record ordered by id.
func (s Snapshot) Records() []domain.DownloadRecord {
	return append([]domain.DownloadRecord(nil), s.records...)
}

// Filter returns the records for which keep is true.
func (s Snapshot) Filter(keep func(domain.DownloadRecord) bool) []domain.DownloadRecord {
	var out []domain.DownloadRecord
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// InProgress returns the waiting and downloading records.
func (s Snapshot) InProgress() []domain.DownloadRecord {
	return s.Filter(func(r domain.DownloadRecord) bool { return r.State.IsWaitingOrDownloading() })
}

// ForCourse returns the records belonging to courseID.
func (s Snapshot) ForCourse(courseID string) []domain.DownloadRecord {
	return s.Filter(func(r domain.DownloadRecord) bool { return r.CourseID == courseID })
}

// apply returns s with upserts written and deletes removed, still ordered by id.
func (s Snapshot) apply(upserts []domain.DownloadRecord, deletes []string) Snapshot {
	byID := make(map[string]domain.DownloadRecord, len(s.records)+len(upserts))
	for _, r := range s.records {
		byID[r.ID] = r
	}
	for _, r := range upserts {
		byID[r.ID] = r
	}
	for _, id := range deletes {
		delete(byID, id)
	}
	out := make([]domain.DownloadRecord, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return newSnapshot(out)
}
