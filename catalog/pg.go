package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/choiway/photomerge/photo"
)

// PgMirror copies run and photo records into Postgres for libraries shared
// across machines.
type PgMirror struct {
	pool *pgxpool.Pool
}

func ConnectPg(ctx context.Context, url string) (*PgMirror, error) {
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	m := &PgMirror{pool: pool}
	if err := m.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return m, nil
}

func (m *PgMirror) Close() {
	m.pool.Close()
}

func (m *PgMirror) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS photomerge_runs (
			uuid TEXT PRIMARY KEY,
			inserted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			target TEXT NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS photomerge_photos (
			id BIGSERIAL PRIMARY KEY,
			inserted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			run_uuid TEXT NOT NULL REFERENCES photomerge_runs(uuid),
			md5_hash TEXT NOT NULL,
			source_path TEXT NOT NULL,
			path TEXT,
			date_taken TIMESTAMPTZ,
			date_source TEXT,
			status TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := m.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}

	return nil
}

func (m *PgMirror) StartRun(ctx context.Context, run *Run) error {
	_, err := m.pool.Exec(ctx,
		`INSERT INTO photomerge_runs (uuid, target, status) VALUES ($1, $2, $3)`,
		run.UUID, run.Target, RunStarted)
	if err != nil {
		return fmt.Errorf("postgres insert run: %w", err)
	}
	return nil
}

func (m *PgMirror) RecordPhoto(ctx context.Context, run *Run, p photo.Photo) error {
	var dateTaken interface{}
	if !p.DateTaken.IsZero() {
		dateTaken = p.DateTaken
	}

	_, err := m.pool.Exec(ctx,
		`INSERT INTO photomerge_photos (run_uuid, md5_hash, source_path, path, date_taken, date_source, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.UUID, p.Hash, p.SourcePath, p.CurrentPath(), dateTaken, string(p.DateSource), p.Status)
	if err != nil {
		return fmt.Errorf("postgres insert photo: %w", err)
	}
	return nil
}

func (m *PgMirror) FinishRun(ctx context.Context, run *Run, status string) error {
	_, err := m.pool.Exec(ctx,
		`UPDATE photomerge_runs SET status = $1, updated_at = now() WHERE uuid = $2`,
		status, run.UUID)
	if err != nil {
		return fmt.Errorf("postgres update run: %w", err)
	}
	return nil
}
