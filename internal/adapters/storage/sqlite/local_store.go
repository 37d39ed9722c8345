// Package sqlite guarda el estado local del calendario (roster, preferencias,
// grilla y contadores) en un archivo SQLite del dispositivo.
//
// Cada scope ocupa cinco filas, una por bucket, con el payload en JSON. Save
// reescribe los cinco buckets en una sola transacción.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cattery-breeding/internal/domain/schedule"

	_ "modernc.org/sqlite"
)

const (
	bucketRoster          = "roster"
	bucketDefaultDuration = "default_duration"
	bucketCalendarView    = "calendar_view"
	bucketSchedule        = "schedule"
	bucketMatingChecks    = "mating_checks"
)

var buckets = []string{bucketRoster, bucketDefaultDuration, bucketCalendarView, bucketSchedule, bucketMatingChecks}

type LocalStore struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open crea el archivo y la tabla si no existen.
func Open(path string) (*LocalStore, error) {
	if path == "" {
		path = "cattery-local.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// un solo escritor
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS local_state (
		scope TEXT NOT NULL,
		bucket TEXT NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (scope, bucket)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create local_state table: %w", err)
	}
	return &LocalStore{db: db, path: path}, nil
}

func (s *LocalStore) Close() error { return s.db.Close() }

func (s *LocalStore) Path() string { return s.path }

func (s *LocalStore) Load(ctx context.Context, scope string) (schedule.State, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM local_state WHERE scope = ?`, scope)
	if err != nil {
		return schedule.State{}, false, fmt.Errorf("select local_state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var st schedule.State
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return schedule.State{}, false, fmt.Errorf("scan: %w", err)
		}
		found = true

		var dst any
		switch bucket {
		case bucketRoster:
			dst = &st.Roster
		case bucketDefaultDuration:
			dst = &st.DefaultDuration
		case bucketCalendarView:
			dst = &st.View
		case bucketSchedule:
			dst = &st.Entries
		case bucketMatingChecks:
			dst = &st.Tally
		default:
			continue
		}
		if err := json.Unmarshal(payload, dst); err != nil {
			return schedule.State{}, false, fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	if err := rows.Err(); err != nil {
		return schedule.State{}, false, err
	}
	return st, found, nil
}

func (s *LocalStore) Save(ctx context.Context, scope string, st schedule.State) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, bucket := range buckets {
		var data []byte
		switch bucket {
		case bucketRoster:
			data, err = json.Marshal(st.Roster)
		case bucketDefaultDuration:
			data, err = json.Marshal(st.DefaultDuration)
		case bucketCalendarView:
			data, err = json.Marshal(st.View)
		case bucketSchedule:
			data, err = json.Marshal(st.Entries)
		case bucketMatingChecks:
			data, err = json.Marshal(st.Tally)
		}
		if err != nil {
			return fmt.Errorf("encode %s: %w", bucket, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO local_state(scope,bucket,payload) VALUES(?,?,?) ON CONFLICT(scope,bucket) DO UPDATE SET payload=excluded.payload`,
			scope, bucket, data,
		); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	return tx.Commit()
}
