package database

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cfgpush/internal/model"
)

// newTestDB creates an in-memory ledger with the schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestSQLiteDatabase_CreateArrival(t *testing.T) {
	db := newTestDB(t)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rec, err := db.CreateArrival("a1", "/srv/ftp/x/y/switch01.gz", at)
	if err != nil {
		t.Fatalf("CreateArrival() error = %v", err)
	}
	if rec.Status != model.StatusPending {
		t.Errorf("Status = %q, want %q", rec.Status, model.StatusPending)
	}

	got, err := db.GetArrival("a1")
	if err != nil {
		t.Fatalf("GetArrival() error = %v", err)
	}
	if got.Path != "/srv/ftp/x/y/switch01.gz" {
		t.Errorf("Path = %q", got.Path)
	}
	if !got.DetectedAt.Equal(at) {
		t.Errorf("DetectedAt = %v, want %v", got.DetectedAt, at)
	}
	if got.FinishedAt.Valid {
		t.Error("FinishedAt.Valid = true for pending arrival")
	}

	if _, err := db.CreateArrival("a1", "/other.gz", at); err == nil {
		t.Error("CreateArrival() with duplicate id expected error")
	}
}

func TestSQLiteDatabase_FinishArrival(t *testing.T) {
	db := newTestDB(t)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rec, err := db.CreateArrival("a1", "/srv/ftp/switch01.gz", at)
	if err != nil {
		t.Fatalf("CreateArrival() error = %v", err)
	}

	rec.Identifier = "switch01"
	rec.Status = model.StatusFailed
	rec.Outcome = "HttpError"
	rec.StatusCode = 503
	rec.CreatedPath = true
	rec.ArchiveKey = "switch01/abc"
	rec.FinishedAt = sql.NullTime{Time: at.Add(31 * time.Second), Valid: true}

	if err := db.FinishArrival(rec); err != nil {
		t.Fatalf("FinishArrival() error = %v", err)
	}

	got, err := db.GetArrival("a1")
	if err != nil {
		t.Fatalf("GetArrival() error = %v", err)
	}
	if got.Identifier != "switch01" || got.Status != model.StatusFailed || got.Outcome != "HttpError" {
		t.Errorf("got %+v", got)
	}
	if got.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want 503", got.StatusCode)
	}
	if !got.CreatedPath {
		t.Error("CreatedPath = false, want true")
	}
	if got.ArchiveKey != "switch01/abc" {
		t.Errorf("ArchiveKey = %q", got.ArchiveKey)
	}
	if !got.FinishedAt.Valid || !got.FinishedAt.Time.Equal(at.Add(31*time.Second)) {
		t.Errorf("FinishedAt = %v", got.FinishedAt)
	}
}

func TestSQLiteDatabase_FinishArrival_Missing(t *testing.T) {
	db := newTestDB(t)

	err := db.FinishArrival(&model.ArrivalRecord{ID: "nope", Status: model.StatusSuccess})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("FinishArrival() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteDatabase_ListArrivals(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a1", "a2", "a3"} {
		if _, err := db.CreateArrival(id, "/srv/"+id+".gz", base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("CreateArrival() error = %v", err)
		}
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{name: "all", limit: 0, want: []string{"a3", "a2", "a1"}},
		{name: "limited", limit: 2, want: []string{"a3", "a2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListArrivals(tt.limit)
			if err != nil {
				t.Fatalf("ListArrivals() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, rec := range got {
				if rec.ID != tt.want[i] {
					t.Errorf("got[%d].ID = %q, want %q", i, rec.ID, tt.want[i])
				}
			}
		})
	}
}

func TestSQLiteDatabase_GetArrival_NotFound(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.GetArrival("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetArrival() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteDatabase_FilePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	db, err := NewSQLiteDatabase(path)
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if _, err := db.CreateArrival("a1", "/srv/a.gz", time.Now()); err != nil {
		t.Fatalf("CreateArrival() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteDatabase(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	if err := reopened.CheckMigrations(); err != nil {
		t.Errorf("CheckMigrations() error = %v", err)
	}
	if _, err := reopened.GetArrival("a1"); err != nil {
		t.Errorf("GetArrival() after reopen error = %v", err)
	}
}
