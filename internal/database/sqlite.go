package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"cfgpush/internal/cfgpush"
	"cfgpush/internal/database/migrations"
	"cfgpush/internal/model"
)

// ErrNotFound is returned when an arrival record does not exist.
var ErrNotFound = errors.New("arrival not found")

// SQLiteDatabase implements cfgpush.Database on SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

var _ cfgpush.Database = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase opens the database at path ("" or ":memory:" for an
// in-memory ledger). The schema is not touched; see NewDatabaseFromConfig.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing, already configured connection.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to ":memory:" is its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Migrate brings the schema up to date.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations returns an error if the schema is not at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// DB returns the underlying connection.
func (s *SQLiteDatabase) DB() *sql.DB {
	return s.db
}

func (s *SQLiteDatabase) CreateArrival(id, path string, detectedAt time.Time) (*model.ArrivalRecord, error) {
	rec := &model.ArrivalRecord{
		ID:         id,
		Path:       path,
		DetectedAt: detectedAt.UTC(),
		Status:     model.StatusPending,
	}

	_, err := s.db.Exec(
		`INSERT INTO arrivals (id, path, detected_at, status) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Path, rec.DetectedAt, rec.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting arrival %s: %w", id, err)
	}
	return rec, nil
}

func (s *SQLiteDatabase) FinishArrival(rec *model.ArrivalRecord) error {
	var finished sql.NullTime
	if rec.FinishedAt.Valid {
		finished = sql.NullTime{Time: rec.FinishedAt.Time.UTC(), Valid: true}
	}

	res, err := s.db.Exec(
		`UPDATE arrivals
		    SET identifier = ?, finished_at = ?, status = ?, outcome = ?,
		        status_code = ?, created_path = ?, archive_key = ?
		  WHERE id = ?`,
		rec.Identifier, finished, rec.Status, rec.Outcome,
		rec.StatusCode, rec.CreatedPath, rec.ArchiveKey, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("updating arrival %s: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating arrival %s: %w", rec.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("updating arrival %s: %w", rec.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteDatabase) ListArrivals(limit int) ([]*model.ArrivalRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.Query(
		`SELECT id, path, identifier, detected_at, finished_at, status, outcome,
		        status_code, created_path, archive_key
		   FROM arrivals
		  ORDER BY detected_at DESC, rowid DESC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing arrivals: %w", err)
	}
	defer rows.Close()

	var out []*model.ArrivalRecord
	for rows.Next() {
		rec := &model.ArrivalRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.Path, &rec.Identifier, &rec.DetectedAt, &rec.FinishedAt,
			&rec.Status, &rec.Outcome, &rec.StatusCode, &rec.CreatedPath, &rec.ArchiveKey,
		); err != nil {
			return nil, fmt.Errorf("scanning arrival: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing arrivals: %w", err)
	}
	return out, nil
}

// GetArrival returns the record with the given ID.
func (s *SQLiteDatabase) GetArrival(id string) (*model.ArrivalRecord, error) {
	rec := &model.ArrivalRecord{}
	err := s.db.QueryRow(
		`SELECT id, path, identifier, detected_at, finished_at, status, outcome,
		        status_code, created_path, archive_key
		   FROM arrivals WHERE id = ?`,
		id,
	).Scan(
		&rec.ID, &rec.Path, &rec.Identifier, &rec.DetectedAt, &rec.FinishedAt,
		&rec.Status, &rec.Outcome, &rec.StatusCode, &rec.CreatedPath, &rec.ArchiveKey,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting arrival %s: %w", id, err)
	}
	return rec, nil
}

func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}
