package lds

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/fieldops/fieldsync/internal/errors"
	"github.com/fieldops/fieldsync/internal/logging"
)

// SQLiteStore is the durable Backend, a single SQLite database holding all
// partitions.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the store under dataDir and applies pending
// schema migrations. Open is idempotent. Failures are wrapped as
// STORAGE_UNAVAILABLE so callers can degrade to memory-only operation
// instead of crashing.
func Open(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrStorageUnavailable, "failed to create data directory", err)
	}

	dbPath := filepath.Join(dataDir, "fieldsync.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorageUnavailable, "failed to open database", err)
	}

	// SQLite supports a single writer; serialize access through one
	// connection to avoid SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrap(errors.ErrStorageUnavailable, "failed to apply pragma", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrStorageUnavailable, "failed to connect to database", err)
	}

	migrator := NewMigrator(db)
	if err := migrator.Up(); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrStorageUnavailable, "schema migration failed", err)
	}

	version, err := migrator.CurrentVersion()
	if err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrStorageUnavailable, "failed to read schema version", err)
	}

	logging.Info("Local durable store opened",
		map[string]interface{}{"path": dbPath, "schema_version": version})

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Put upserts a record by primary key.
func (s *SQLiteStore) Put(ctx context.Context, partition string, doc Document) error {
	if err := checkPartition(partition); err != nil {
		return err
	}
	if doc.Key == "" {
		return errors.New(errors.ErrInvalid, "document key is empty")
	}

	query := `
	INSERT INTO documents (partition, key, payload)
	VALUES (?, ?, ?)
	ON CONFLICT (partition, key) DO UPDATE SET payload = excluded.payload
	`
	if _, err := s.db.ExecContext(ctx, query, partition, doc.Key, string(doc.Payload)); err != nil {
		return fmt.Errorf("put %s/%s: %w", partition, doc.Key, err)
	}
	return nil
}

// Get returns a record by primary key; the boolean reports presence.
func (s *SQLiteStore) Get(ctx context.Context, partition, key string) (Document, bool, error) {
	if err := checkPartition(partition); err != nil {
		return Document{}, false, err
	}

	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM documents WHERE partition = ? AND key = ?",
		partition, key).Scan(&payload)
	if err == sql.ErrNoRows {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, fmt.Errorf("get %s/%s: %w", partition, key, err)
	}
	return Document{Key: key, Payload: []byte(payload)}, true, nil
}

// GetAll returns every record in the partition, empty slice if none.
func (s *SQLiteStore) GetAll(ctx context.Context, partition string) ([]Document, error) {
	if err := checkPartition(partition); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT key, payload FROM documents WHERE partition = ?", partition)
	if err != nil {
		return nil, fmt.Errorf("getAll %s: %w", partition, err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// GetByIndex returns records whose top-level payload field equals value.
func (s *SQLiteStore) GetByIndex(ctx context.Context, partition, field, value string) ([]Document, error) {
	if err := checkPartition(partition); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT key, payload FROM documents WHERE partition = ? AND json_extract(payload, '$.' || ?) = ?",
		partition, field, value)
	if err != nil {
		return nil, fmt.Errorf("getByIndex %s.%s: %w", partition, field, err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// Delete removes a record; absent keys are a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, partition, key string) error {
	if err := checkPartition(partition); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE partition = ? AND key = ?", partition, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", partition, key, err)
	}
	return nil
}

// Clear removes all records in the partition.
func (s *SQLiteStore) Clear(ctx context.Context, partition string) error {
	if err := checkPartition(partition); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE partition = ?", partition); err != nil {
		return fmt.Errorf("clear %s: %w", partition, err)
	}
	return nil
}

// NextSequence atomically increments and returns the partition's durable
// auto-increment counter.
func (s *SQLiteStore) NextSequence(ctx context.Context, partition string) (int64, error) {
	if err := checkPartition(partition); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("nextSequence %s: %w", partition, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sequences (partition, next_value) VALUES (?, 1)
		ON CONFLICT (partition) DO UPDATE SET next_value = next_value + 1
	`, partition); err != nil {
		return 0, fmt.Errorf("nextSequence %s: %w", partition, err)
	}

	var value int64
	if err := tx.QueryRowContext(ctx,
		"SELECT next_value FROM sequences WHERE partition = ?", partition).Scan(&value); err != nil {
		return 0, fmt.Errorf("nextSequence %s: %w", partition, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("nextSequence %s: %w", partition, err)
	}
	return value, nil
}

func collectDocuments(rows *sql.Rows) ([]Document, error) {
	docs := []Document{}
	for rows.Next() {
		var key, payload string
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, err
		}
		docs = append(docs, Document{Key: key, Payload: []byte(payload)})
	}
	return docs, rows.Err()
}
