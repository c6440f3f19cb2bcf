package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/realmbind/internal/schema"
	"github.com/roach88/realmbind/internal/wire"
)

// Snapshot is the committed state of one file.
type Snapshot struct {
	Path       string
	SchemaHash string
	Schema     *schema.Set
	// NextID is the last object id handed out.
	NextID int64
	// Version counts commits.
	Version int64
	// Rows are ordered by id.
	Rows []Row
}

// Row is one stored object. Link values are wire.Object, list values are
// wire.Array of wire.Object.
type Row struct {
	ID     int64
	Type   string
	Values map[string]wire.Value
}

// Save replaces the stored state of snap.Path.
func (s *Store) Save(ctx context.Context, snap *Snapshot) (err error) {
	schemaJSON, err := json.Marshal(snap.Schema)
	if err != nil {
		return fmt.Errorf("save %s: encode schema: %w", snap.Path, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save %s: %w", snap.Path, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO realm_files (path, schema_hash, schema_json, next_id, version)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			schema_hash = excluded.schema_hash,
			schema_json = excluded.schema_json,
			next_id     = excluded.next_id,
			version     = excluded.version
	`, snap.Path, snap.SchemaHash, string(schemaJSON), snap.NextID, snap.Version); err != nil {
		return fmt.Errorf("save %s: %w", snap.Path, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM objects WHERE path = ?`, snap.Path); err != nil {
		return fmt.Errorf("save %s: %w", snap.Path, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO objects (path, id, type, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("save %s: %w", snap.Path, err)
	}
	defer stmt.Close()

	for _, row := range snap.Rows {
		os, ok := snap.Schema.Get(row.Type)
		if !ok {
			return fmt.Errorf("save %s: object %d has unknown type %q", snap.Path, row.ID, row.Type)
		}
		data, encErr := encodeRow(os, row.Values)
		if encErr != nil {
			return fmt.Errorf("save %s: object %s#%d: %w", snap.Path, row.Type, row.ID, encErr)
		}
		if _, err = stmt.ExecContext(ctx, snap.Path, row.ID, row.Type, data); err != nil {
			return fmt.Errorf("save %s: %w", snap.Path, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("save %s: commit: %w", snap.Path, err)
	}
	return nil
}

// Load reads the stored state of path. The bool is false when the file has
// never been saved.
func (s *Store) Load(ctx context.Context, path string) (*Snapshot, bool, error) {
	snap := &Snapshot{Path: path}
	var schemaJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT schema_hash, schema_json, next_id, version
		FROM realm_files WHERE path = ?
	`, path).Scan(&snap.SchemaHash, &schemaJSON, &snap.NextID, &snap.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", path, err)
	}

	snap.Schema = &schema.Set{}
	if err := json.Unmarshal([]byte(schemaJSON), snap.Schema); err != nil {
		return nil, false, fmt.Errorf("load %s: decode schema: %w", path, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, data FROM objects
		WHERE path = ?
		ORDER BY id ASC
	`, path)
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			row  Row
			data []byte
		)
		if err := rows.Scan(&row.ID, &row.Type, &data); err != nil {
			return nil, false, fmt.Errorf("load %s: %w", path, err)
		}
		os, ok := snap.Schema.Get(row.Type)
		if !ok {
			return nil, false, fmt.Errorf("load %s: object %d has unknown type %q", path, row.ID, row.Type)
		}
		if row.Values, err = decodeRow(os, data); err != nil {
			return nil, false, fmt.Errorf("load %s: object %s#%d: %w", path, row.Type, row.ID, err)
		}
		snap.Rows = append(snap.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("load %s: %w", path, err)
	}
	return snap, true, nil
}
