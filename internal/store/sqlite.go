package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openedx/edxoffline/internal/domain"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {

	dbDir := filepath.Dir(dbPath)

	// Ensure the database directory exists
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open the metadata db
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Ping makes sure the file is actually accessible and the DSN is valid
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	if err := migrateSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, recs ...domain.DownloadRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO download_records (` + recordColumns + `, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
              ON CONFLICT(id) DO UPDATE SET
                title = excluded.title,
                course_id = excluded.course_id,
                size = excluded.size,
                path = excluded.path,
                url = excluded.url,
                kind = excluded.kind,
                state = excluded.state,
                revision_tag = excluded.revision_tag,
                updated_at = CURRENT_TIMESTAMP`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range recs {
		var dbo recordDBO
		dbo.FromDomain(rec)
		if _, err := stmt.ExecContext(ctx,
			dbo.ID, dbo.Title, dbo.CourseID, dbo.Size, dbo.Path,
			dbo.URL, dbo.Kind, dbo.State, dbo.RevisionTag,
		); err != nil {
			return fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (domain.DownloadRecord, bool, error) {
	query := `SELECT ` + recordColumns + ` FROM download_records WHERE id = ? LIMIT 1`

	var dbo recordDBO
	err := s.db.QueryRowContext(ctx, query, id).Scan(dbo.scanTargets()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DownloadRecord{}, false, nil
		}
		return domain.DownloadRecord{}, false, fmt.Errorf("failed to fetch record: %w", err)
	}
	return dbo.ToDomain(), true, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM download_records WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete record %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) All(ctx context.Context) ([]domain.DownloadRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM download_records ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}
	defer rows.Close()

	var recs []domain.DownloadRecord
	for rows.Next() {
		var dbo recordDBO
		if err := rows.Scan(dbo.scanTargets()...); err != nil {
			return nil, err
		}
		recs = append(recs, dbo.ToDomain())
	}
	return recs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
