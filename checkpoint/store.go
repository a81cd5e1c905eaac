// Package checkpoint persists mission checkpoints in SQLite, so that a run can
// be resumed from any segment entry.
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mrs "github.com/ThibaultBS/MRS-Missions"

	// SQLite driver
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no checkpoint matches.
var ErrNotFound = errors.New("checkpoint not found")

const schema = `CREATE TABLE IF NOT EXISTS checkpoints (
	mission     TEXT    NOT NULL,
	met         REAL    NOT NULL,
	segment     INTEGER NOT NULL,
	propagation INTEGER NOT NULL,
	r           TEXT    NOT NULL,
	v           TEXT    NOT NULL,
	fuel        TEXT    NOT NULL,
	created_at  TEXT    NOT NULL,
	PRIMARY KEY (mission, met)
)`

// Store is a SQLite checkpoint store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the store at path. Use ":memory:" for a transient store.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection: every connection to :memory: is a new database.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores the checkpoints of a mission, replacing those at the same MET.
func (s *Store) Save(ctx context.Context, mission string, cps []mrs.Checkpoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO checkpoints
		(mission, met, segment, propagation, r, v, fuel, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, cp := range cps {
		r, err := json.Marshal(cp.R)
		if err != nil {
			return err
		}
		v, err := json.Marshal(cp.V)
		if err != nil {
			return err
		}
		fuel, err := json.Marshal(cp.Fuel)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, mission, cp.MET, cp.Segment, cp.Propagation, string(r), string(v), string(fuel), now); err != nil {
			return fmt.Errorf("failed to save checkpoint at MET %g: %w", cp.MET, err)
		}
	}
	return tx.Commit()
}

// Load returns the checkpoint of a mission at the given MET.
func (s *Store) Load(ctx context.Context, mission string, met float64) (*mrs.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `SELECT met, segment, propagation, r, v, fuel FROM checkpoints
		WHERE mission = ? AND met = ?`, mission, met)
	cp, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: mission %q at MET %g", ErrNotFound, mission, met)
	}
	return cp, err
}

// List returns the checkpoints of a mission by increasing MET.
func (s *Store) List(ctx context.Context, mission string) ([]mrs.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT met, segment, propagation, r, v, fuel FROM checkpoints
		WHERE mission = ? ORDER BY met`, mission)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()
	var cps []mrs.Checkpoint
	for rows.Next() {
		cp, err := scan(rows)
		if err != nil {
			return nil, err
		}
		cps = append(cps, *cp)
	}
	return cps, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scan(row scanner) (*mrs.Checkpoint, error) {
	var cp mrs.Checkpoint
	var r, v, fuel string
	if err := row.Scan(&cp.MET, &cp.Segment, &cp.Propagation, &r, &v, &fuel); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(r), &cp.R); err != nil {
		return nil, fmt.Errorf("corrupted position at MET %g: %w", cp.MET, err)
	}
	if err := json.Unmarshal([]byte(v), &cp.V); err != nil {
		return nil, fmt.Errorf("corrupted velocity at MET %g: %w", cp.MET, err)
	}
	if err := json.Unmarshal([]byte(fuel), &cp.Fuel); err != nil {
		return nil, fmt.Errorf("corrupted fuel at MET %g: %w", cp.MET, err)
	}
	return &cp, nil
}
