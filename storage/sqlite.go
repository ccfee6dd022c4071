package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/iabalyuk/advisorbot/model"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLite is a persistent advisor directory backed by a SQLite database
type SQLite struct {
	db     *sql.DB
	dbPath string
	log    zerolog.Logger
}

// NewSQLite opens (creating if needed) the database at dbPath
func NewSQLite(dbPath string, log zerolog.Logger) (*SQLite, error) {
	if dbPath == "" {
		dbPath = "advisors.db"
	}
	if dir := filepath.Dir(dbPath); dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLite{
		db:     db,
		dbPath: dbPath,
		log:    log.With().Str("component", "sqlite").Str("path", dbPath).Logger(),
	}, nil
}

// createTables creates the necessary tables in the database.
// name_fold/field_fold hold lower-cased copies: SQLite's lower() and LIKE only
// fold ASCII, so Cyrillic matching is done on values folded in Go.
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS advisors (
			id TEXT PRIMARY KEY,
			last_name TEXT NOT NULL,
			research_field TEXT NOT NULL DEFAULT '',
			name_fold TEXT NOT NULL,
			field_fold TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			bachelors_limit INTEGER NOT NULL DEFAULT 0,
			masters_limit INTEGER NOT NULL DEFAULT 0,
			phd_limit INTEGER NOT NULL DEFAULT 0,
			office_hours TEXT NOT NULL DEFAULT '{}',
			calendar TEXT NOT NULL DEFAULT '{}',
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create advisors table: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Import upserts advisors in a single transaction
func (s *SQLite) Import(ctx context.Context, advisors []model.Advisor) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO advisors (id, last_name, research_field, name_fold, field_fold, email, phone,
			bachelors_limit, masters_limit, phd_limit, office_hours, calendar, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			last_name = excluded.last_name,
			research_field = excluded.research_field,
			name_fold = excluded.name_fold,
			field_fold = excluded.field_fold,
			email = excluded.email,
			phone = excluded.phone,
			bachelors_limit = excluded.bachelors_limit,
			masters_limit = excluded.masters_limit,
			phd_limit = excluded.phd_limit,
			office_hours = excluded.office_hours,
			calendar = excluded.calendar,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range advisors {
		hours, err := json.Marshal(a.OfficeHours)
		if err != nil {
			return fmt.Errorf("failed to marshal office hours of %s: %w", a.ID, err)
		}
		cal, err := json.Marshal(a.Calendar)
		if err != nil {
			return fmt.Errorf("failed to marshal calendar of %s: %w", a.ID, err)
		}
		_, err = stmt.ExecContext(ctx, string(a.ID), a.Name, a.ResearchField,
			strings.ToLower(a.Name), strings.ToLower(a.ResearchField), a.Email, a.Phone,
			a.BachelorLimit, a.MasterLimit, a.PhDLimit, string(hours), string(cal))
		if err != nil {
			return fmt.Errorf("failed to insert advisor %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	s.log.Info().Int("count", len(advisors)).Msg("Imported advisors")
	return nil
}

// Search implements directory.Backend. Results are ordered by id.
func (s *SQLite) Search(ctx context.Context, predicate string) ([]model.Advisor, error) {
	query := `SELECT id, last_name, research_field, email, phone, bachelors_limit, masters_limit,
		phd_limit, office_hours, calendar FROM advisors`
	var args []interface{}
	if predicate != "" {
		needle := strings.ToLower(predicate)
		query += ` WHERE instr(name_fold, ?) > 0 OR instr(field_fold, ?) > 0`
		args = append(args, needle, needle)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query advisors: %w", err)
	}
	defer rows.Close()

	advisors := []model.Advisor{}
	for rows.Next() {
		var a model.Advisor
		var id, hours, cal string
		if err := rows.Scan(&id, &a.Name, &a.ResearchField, &a.Email, &a.Phone,
			&a.BachelorLimit, &a.MasterLimit, &a.PhDLimit, &hours, &cal); err != nil {
			return nil, fmt.Errorf("failed to scan advisor row: %w", err)
		}
		a.ID = model.AdvisorID(id)
		if err := json.Unmarshal([]byte(hours), &a.OfficeHours); err != nil {
			return nil, &model.DataError{Key: id, Reason: "invalid office_hours column", Err: err}
		}
		if err := json.Unmarshal([]byte(cal), &a.Calendar); err != nil {
			return nil, &model.DataError{Key: id, Reason: "invalid calendar column", Err: err}
		}
		advisors = append(advisors, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating advisor rows: %w", err)
	}
	return advisors, nil
}

// Count returns the number of stored advisors
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM advisors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count advisors: %w", err)
	}
	return n, nil
}
