package refdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration

	"github.com/halverson/dockeval/internal/domain/model"
)

const defaultBusyTimeoutMS = 5000

// SQLiteStore persists the reference collection in a SQLite file. Records
// are stored as JSON documents keyed by flight ID; rowid keeps first-append
// order, and superseding an ID updates the row in place so ordering is
// stable across re-evaluations.
type SQLiteStore struct {
	db            *sql.DB
	busyTimeoutMS int
}

// SQLiteOption applies a configuration option to the SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithBusyTimeout sets the SQLite busy timeout in milliseconds.
func WithBusyTimeout(ms int) SQLiteOption {
	return func(s *SQLiteStore) {
		if ms > 0 {
			s.busyTimeoutMS = ms
		}
	}
}

// NewSQLiteStore opens (and if needed bootstraps) a reference database
// file.
func NewSQLiteStore(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	s := &SQLiteStore{busyTimeoutMS: defaultBusyTimeoutMS}
	for _, opt := range opts {
		opt(s)
	}

	dsn := path
	if !strings.Contains(dsn, "_busy_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn = fmt.Sprintf("%s%s_busy_timeout=%d", dsn, sep, s.busyTimeoutMS)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStoreBackend, path, err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	s.db = db
	return s, nil
}

func createTables(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS flights (
		flight_id       TEXT PRIMARY KEY,
		catalog_version TEXT NOT NULL,
		record          TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("%w: create tables: %v", ErrStoreBackend, err)
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)

// Append upserts a record; conflicts on the flight ID update the existing
// row without changing its rowid, preserving first-append order.
func (s *SQLiteStore) Append(ctx context.Context, rec model.MetricRecord) error {
	if rec.FlightID == "" {
		return ErrMissingID
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode record %s: %v", ErrStoreBackend, rec.FlightID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flights (flight_id, catalog_version, record)
		VALUES (?, ?, ?)
		ON CONFLICT(flight_id) DO UPDATE SET
			catalog_version = excluded.catalog_version,
			record          = excluded.record
	`, rec.FlightID, rec.CatalogVersion, string(doc))
	if err != nil {
		return fmt.Errorf("%w: append %s: %v", ErrStoreBackend, rec.FlightID, err)
	}
	return nil
}

// All reads every record in append order. SQLite's transaction isolation
// gives the reader a consistent snapshot relative to concurrent appends.
func (s *SQLiteStore) All(ctx context.Context) ([]model.MetricRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM flights ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: read all: %v", ErrStoreBackend, err)
	}
	defer rows.Close()

	var out []model.MetricRecord
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("%w: scan record: %v", ErrStoreBackend, err)
		}
		var rec model.MetricRecord
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return nil, fmt.Errorf("%w: decode record: %v", ErrStoreBackend, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read all: %v", ErrStoreBackend, err)
	}
	return out, nil
}

// Get returns one record by flight ID.
func (s *SQLiteStore) Get(ctx context.Context, flightID string) (model.MetricRecord, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM flights WHERE flight_id = ?`, flightID).Scan(&doc)
	if err == sql.ErrNoRows {
		return model.MetricRecord{}, ErrNotFound
	}
	if err != nil {
		return model.MetricRecord{}, fmt.Errorf("%w: get %s: %v", ErrStoreBackend, flightID, err)
	}
	var rec model.MetricRecord
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return model.MetricRecord{}, fmt.Errorf("%w: decode %s: %v", ErrStoreBackend, flightID, err)
	}
	return rec, nil
}

// Count reports the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flights`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrStoreBackend, err)
	}
	return n, nil
}

// ReplaceAll swaps the collection inside one transaction so concurrent
// readers see either the old contents or the new, never a mix.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, recs []model.MetricRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin rebuild: %v", ErrStoreBackend, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM flights`); err != nil {
		return fmt.Errorf("%w: clear flights: %v", ErrStoreBackend, err)
	}
	for _, rec := range recs {
		if rec.FlightID == "" {
			return ErrMissingID
		}
		doc, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("%w: encode record %s: %v", ErrStoreBackend, rec.FlightID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO flights (flight_id, catalog_version, record)
			VALUES (?, ?, ?)
			ON CONFLICT(flight_id) DO UPDATE SET
				catalog_version = excluded.catalog_version,
				record          = excluded.record
		`, rec.FlightID, rec.CatalogVersion, string(doc)); err != nil {
			return fmt.Errorf("%w: insert %s: %v", ErrStoreBackend, rec.FlightID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit rebuild: %v", ErrStoreBackend, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
