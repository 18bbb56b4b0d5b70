package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/openedx/edxoffline/internal/domain"
)

// PostgresStore keeps the ledger in a shared PostgreSQL database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	// golang-migrate speaks database/sql, so it gets a view over the same pool
	db := stdlib.OpenDBFromPool(pool)
	err = migratePostgres(db)
	db.Close()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, recs ...domain.DownloadRecord) error {
	if len(recs) == 0 {
		return nil
	}

	const query = `INSERT INTO download_records (` + recordColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			course_id = EXCLUDED.course_id,
			size = EXCLUDED.size,
			path = EXCLUDED.path,
			url = EXCLUDED.url,
			kind = EXCLUDED.kind,
			state = EXCLUDED.state,
			revision_tag = EXCLUDED.revision_tag,
			updated_at = now()`

	batch := &pgx.Batch{}
	for _, rec := range recs {
		var dbo recordDBO
		dbo.FromDomain(rec)
		batch.Queue(query, dbo.ID, dbo.Title, dbo.CourseID, dbo.Size, dbo.Path,
			dbo.URL, dbo.Kind, dbo.State, dbo.RevisionTag)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (s *PostgresStore) Get(ctx context.Context, id string) (domain.DownloadRecord, bool, error) {
	var dbo recordDBO
	err := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM download_records WHERE id = $1`, id).Scan(dbo.scanTargets()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DownloadRecord{}, false, nil
		}
		return domain.DownloadRecord{}, false, fmt.Errorf("failed to fetch record: %w", err)
	}
	return dbo.ToDomain(), true, nil
}

func (s *PostgresStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM download_records WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

func (s *PostgresStore) All(ctx context.Context) ([]domain.DownloadRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+recordColumns+` FROM download_records ORDER BY id ASC`)
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

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
