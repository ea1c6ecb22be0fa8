package readinglog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store keeps a history of pipeline readings in SQLite, one row per
// completed cycle.
type Store struct {
	db      *sql.DB
	started time.Time
}

// Open creates or opens the database at path and ensures the schema
// exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open readings db: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, started: time.Now()}, nil
}

func createTables(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TEXT NOT NULL,
	elapsed_s REAL NOT NULL,
	distance_cm REAL NOT NULL,
	distance_raw_cm REAL NOT NULL,
	voltage_v REAL NOT NULL,
	voltage_std REAL NOT NULL,
	kalman_p REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_readings_ts ON readings (ts);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create readings schema: %w", err)
	}
	return nil
}

// Insert appends one record. An empty timestamp is stamped with the
// current time; a zero elapsed value is measured from when the store
// was opened.
func (s *Store) Insert(r Record) error {
	if r.Timestamp == "" {
		r.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if r.ElapsedS == 0 {
		r.ElapsedS = time.Since(s.started).Seconds()
	}

	_, err := s.db.Exec(
		`INSERT INTO readings (ts, elapsed_s, distance_cm, distance_raw_cm, voltage_v, voltage_std, kalman_p)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Timestamp, r.ElapsedS, r.DistanceCM, r.DistanceRawCM, r.VoltageV, r.VoltageStd, r.KalmanP,
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, ts, elapsed_s, distance_cm, distance_raw_cm, voltage_v, voltage_std, kalman_p
		 FROM readings ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent readings: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.ElapsedS, &r.DistanceCM, &r.DistanceRawCM, &r.VoltageV, &r.VoltageStd, &r.KalmanP); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of stored readings.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM readings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
