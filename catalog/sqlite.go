package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // Import go-sqlite3 library

	"github.com/choiway/photomerge/photo"
)

// Store is the local SQLite catalog.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog at path and makes sure the
// tables exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.Init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// OpenReadOnly opens an existing catalog without creating or changing it.
// A missing file returns an error wrapping fs.ErrNotExist.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
		"id" integer NOT NULL PRIMARY KEY AUTOINCREMENT,
		"uuid" TEXT NOT NULL UNIQUE,
		"inserted_at" DATETIME,
		"updated_at" DATETIME,
		"target" TEXT,
		"status" TEXT
	  );`,
		`CREATE TABLE IF NOT EXISTS photos (
		"id" integer NOT NULL PRIMARY KEY AUTOINCREMENT,
		"inserted_at" DATETIME,
		"run_id" integer REFERENCES runs(id),
		"md5_hash" TEXT,
		"source_path" TEXT,
		"path" TEXT,
		"dir" TEXT,
		"source_filename" TEXT,
		"date_taken" DATETIME,
		"date_source" TEXT,
		"status" TEXT
	  );`,
		`CREATE INDEX IF NOT EXISTS photos_md5_hash ON photos(md5_hash);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init catalog: %w", err)
		}
	}

	return nil
}

func (s *Store) StartRun(ctx context.Context, run *Run) error {
	q := `
	INSERT INTO runs(
		inserted_at,
		updated_at,
		uuid,
		target,
		status
	) values(CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, ?, ?, ?)
	`
	stmt, err := s.db.PrepareContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, run.UUID, run.Target, RunStarted)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return err
	}
	run.Status = RunStarted

	return nil
}

func (s *Store) FinishRun(ctx context.Context, run *Run, status string) error {
	q := `UPDATE runs
		SET status = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	if _, err := s.db.ExecContext(ctx, q, status, run.ID); err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	run.Status = status

	return nil
}

func (s *Store) RecordPhoto(ctx context.Context, run *Run, p photo.Photo) error {
	q := `
	INSERT INTO photos(
		inserted_at,
		run_id,
		md5_hash,
		source_path,
		path,
		dir,
		source_filename,
		date_taken,
		date_source,
		status
	) values(CURRENT_TIMESTAMP, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var dateTaken interface{}
	if !p.DateTaken.IsZero() {
		dateTaken = p.DateTaken
	}

	_, err := s.db.ExecContext(ctx, q,
		run.ID,
		p.Hash,
		p.SourcePath,
		p.CurrentPath(),
		filepath.Base(filepath.Dir(p.SourcePath)),
		filepath.Base(p.SourcePath),
		dateTaken,
		string(p.DateSource),
		p.Status,
	)
	if err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}

	return nil
}

// CheckIfHashExists reports whether a completed run already brought content
// with this hash into target.
func (s *Store) CheckIfHashExists(ctx context.Context, target, hash string) (bool, error) {
	q := `SELECT EXISTS (
		SELECT 1 FROM photos p JOIN runs r ON p.run_id = r.id
		WHERE r.target = ? AND r.status = ? AND p.md5_hash = ? AND p.status IN (?, ?)
	);`

	var exists int
	err := s.db.QueryRowContext(ctx, q, target, RunCompleted, hash, photo.StatusCopied, photo.StatusRenamed).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists == 1, nil
}

// KnownHashes returns every hash completed runs copied into target.
func (s *Store) KnownHashes(ctx context.Context, target string) (*photo.Set, error) {
	q := `SELECT DISTINCT p.md5_hash FROM photos p JOIN runs r ON p.run_id = r.id
		WHERE r.target = ? AND r.status = ? AND p.status IN (?, ?)`

	rows, err := s.db.QueryContext(ctx, q, target, RunCompleted, photo.StatusCopied, photo.StatusRenamed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := photo.NewSet()
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		set.Insert(h)
	}

	return set, rows.Err()
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	q := `SELECT r.id, r.uuid, r.target, r.status, r.inserted_at, r.updated_at,
		(SELECT COUNT(*) FROM photos p WHERE p.run_id = r.id)
		FROM runs r ORDER BY r.id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.UUID, &r.Target, &r.Status, &r.InsertedAt, &r.UpdatedAt, &r.Photos); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}
