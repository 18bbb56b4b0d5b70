package store

import (
	"database/sql"

	"github.com/openedx/edxoffline/internal/domain"
)

// recordDBO maps to the download_records table
type recordDBO struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	CourseID    string         `db:"course_id"`
	Size        int64          `db:"size"`
	Path        string         `db:"path"`
	URL         string         `db:"url"`
	Kind        string         `db:"kind"`
	State       string         `db:"state"`
	RevisionTag sql.NullString `db:"revision_tag"`
}

// Mapper: DBO to Domain DownloadRecord
func (r *recordDBO) ToDomain() domain.DownloadRecord {
	return domain.DownloadRecord{
		ID:           r.ID,
		DisplayTitle: r.Title,
		CourseID:     r.CourseID,
		ByteSize:     r.Size,
		LocalPath:    r.Path,
		SourceURL:    r.URL,
		Kind:         domain.ContentKind(r.Kind),
		State:        domain.DownloadState(r.State),
		RevisionTag:  r.RevisionTag.String,
	}
}

// Mapper: Domain DownloadRecord to DBO
func (r *recordDBO) FromDomain(rec domain.DownloadRecord) {
	r.ID = rec.ID
	r.Title = rec.DisplayTitle
	r.CourseID = rec.CourseID
	r.Size = rec.ByteSize
	r.Path = rec.LocalPath
	r.URL = rec.SourceURL
	r.Kind = string(rec.Kind)
	if r.Kind == "" {
		r.Kind = string(domain.ContentMedia)
	}
	r.State = string(rec.State)
	r.RevisionTag = sql.NullString{String: rec.RevisionTag, Valid: rec.RevisionTag != ""}
}

func (r *recordDBO) scanTargets() []any {
	return []any{&r.ID, &r.Title, &r.CourseID, &r.Size, &r.Path, &r.URL, &r.Kind, &r.State, &r.RevisionTag}
}

const recordColumns = "id, title, course_id, size, path, url, kind, state, revision_tag"
