package spool

import (
	"database/sql"
	"encoding/json"
	"fmt"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/hwdebug/rtlserver/vtime"
)

// SQLiteBackend persists a Spool's samples to a SQLite database as they
// are appended, and can reload them on startup, giving the timeline
// durability across process restarts.
//
// Grounded on tracing/sqlite.go's SQLiteTraceWriter: a prepared insert
// statement, a batched buffer flushed inside a transaction, and a plain
// sql.DB embedding for the reader side.
type SQLiteBackend struct {
	db        *sql.DB
	statement *sql.Stmt

	buffered  []Sample
	batchSize int
}

// NewSQLiteBackend opens (creating if necessary) the SQLite database at
// path and prepares its sample table and insert statement.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("spool: open %s: %w", path, err)
	}

	b := &SQLiteBackend{db: db, batchSize: 1000}
	if err := b.createTable(); err != nil {
		db.Close()
		return nil, err
	}
	if err := b.prepareStatement(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) createTable() error {
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS samples (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			time        INTEGER NOT NULL,
			complete    INTEGER NOT NULL,
			values_json TEXT NOT NULL,
			diags_json  TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("spool: create samples table: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) prepareStatement() error {
	stmt, err := b.db.Prepare(`INSERT INTO samples (time, complete, values_json, diags_json) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("spool: prepare insert: %w", err)
	}
	b.statement = stmt
	return nil
}

// Append buffers sample for durable storage, flushing the buffer once it
// reaches batchSize.
func (b *SQLiteBackend) Append(sample Sample) error {
	b.buffered = append(b.buffered, sample)
	if len(b.buffered) >= b.batchSize {
		return b.Flush()
	}
	return nil
}

// Flush writes every buffered sample inside one transaction.
func (b *SQLiteBackend) Flush() error {
	if len(b.buffered) == 0 {
		return nil
	}

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("spool: begin transaction: %w", err)
	}

	stmt := tx.Stmt(b.statement)
	for _, sample := range b.buffered {
		valuesJSON, err := json.Marshal(sample.Values)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("spool: marshal sample values: %w", err)
		}
		diagsJSON, err := json.Marshal(sample.Diagnostics)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("spool: marshal sample diagnostics: %w", err)
		}

		complete := 0
		if sample.Complete {
			complete = 1
		}
		if _, err := stmt.Exec(uint64(sample.Time), complete, string(valuesJSON), string(diagsJSON)); err != nil {
			tx.Rollback()
			return fmt.Errorf("spool: insert sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("spool: commit transaction: %w", err)
	}
	b.buffered = nil
	return nil
}

// LoadAll reads every persisted sample back in insertion order, for
// restoring a Spool's in-memory timeline on startup.
func (b *SQLiteBackend) LoadAll() ([]Sample, error) {
	rows, err := b.db.Query(`SELECT time, complete, values_json, diags_json FROM samples ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("spool: query samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var (
			t          uint64
			complete   int
			valuesJSON string
			diagsJSON  string
		)
		if err := rows.Scan(&t, &complete, &valuesJSON, &diagsJSON); err != nil {
			return nil, fmt.Errorf("spool: scan sample: %w", err)
		}

		sample := Sample{Time: vtime.Time(t), Complete: complete != 0}
		if err := json.Unmarshal([]byte(valuesJSON), &sample.Values); err != nil {
			return nil, fmt.Errorf("spool: unmarshal sample values: %w", err)
		}
		if err := json.Unmarshal([]byte(diagsJSON), &sample.Diagnostics); err != nil {
			return nil, fmt.Errorf("spool: unmarshal sample diagnostics: %w", err)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// Close flushes any buffered samples and closes the database connection.
func (b *SQLiteBackend) Close() error {
	if err := b.Flush(); err != nil {
		return err
	}
	return b.db.Close()
}
