package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Store keeps a snapshot of the latest shelter report in a SQLite database.
// It implements pipeline.Sink.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Run describes one saved report.
type Run struct {
	GeneratedAt time.Time
	Shelters    int
	TotalVisits int
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Name() string { return "sqlite" }

// Save replaces the shelter_visits snapshot with records in one transaction
// and appends a report_runs row.
func (s *Store) Save(ctx context.Context, records []domain.ShelterRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM shelter_visits`); err != nil {
		return fmt.Errorf("clear shelter_visits: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO shelter_visits (position, name, visits, dataset, type, lat, lon, reference, geo_source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	total := 0
	for i, rec := range records {
		var lat, lon sql.NullFloat64
		if rec.Geo != nil {
			lat = sql.NullFloat64{Float64: rec.Geo.Lat, Valid: true}
			lon = sql.NullFloat64{Float64: rec.Geo.Lon, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, i, rec.Name, rec.VisitCount,
			nullString(rec.Dataset), nullString(rec.Type), lat, lon, rec.Reference, nullString(rec.GeoSource),
		); err != nil {
			return fmt.Errorf("insert %q: %w", rec.Name, err)
		}
		total += rec.VisitCount
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO report_runs (generated_at, shelters, total_visits) VALUES (?, ?, ?)`,
		domain.Now().Format(time.RFC3339), len(records), total,
	); err != nil {
		return fmt.Errorf("insert report run: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("sqlite snapshot saved", "shelters", len(records), "total_visits", total)
	return nil
}

// List returns the stored snapshot in report order.
func (s *Store) List(ctx context.Context) ([]domain.ShelterRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, visits, dataset, type, lat, lon, reference, geo_source
		FROM shelter_visits ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query shelter_visits: %w", err)
	}
	defer rows.Close()

	var out []domain.ShelterRecord
	for rows.Next() {
		var (
			rec                     domain.ShelterRecord
			dataset, typ, geoSource sql.NullString
			lat, lon                sql.NullFloat64
		)
		if err := rows.Scan(&rec.Name, &rec.VisitCount, &dataset, &typ, &lat, &lon, &rec.Reference, &geoSource); err != nil {
			return nil, fmt.Errorf("scan shelter_visits: %w", err)
		}
		rec.Dataset = dataset.String
		rec.Type = typ.String
		rec.GeoSource = geoSource.String
		if lat.Valid && lon.Valid {
			rec.Geo = &domain.Geo{Lat: lat.Float64, Lon: lon.Float64}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LastRun returns the most recent report_runs row, or false if none exists.
func (s *Store) LastRun(ctx context.Context) (Run, bool, error) {
	var (
		run Run
		ts  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT generated_at, shelters, total_visits FROM report_runs ORDER BY id DESC LIMIT 1`,
	).Scan(&ts, &run.Shelters, &run.TotalVisits)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("query report_runs: %w", err)
	}
	run.GeneratedAt, err = time.Parse(time.RFC3339, ts)
	if err != nil {
		return Run{}, false, fmt.Errorf("parse generated_at %q: %w", ts, err)
	}
	return run, true, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
