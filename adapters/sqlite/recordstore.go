package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldbase/fieldbase/domain/record"
	"github.com/fieldbase/fieldbase/ports"
)

// RecordStore implements ports.RecordStore using SQLite. Payloads are stored
// as one JSON document per row; the executor queries into them with
// json_extract.
type RecordStore struct {
	db *DB
}

// NewRecordStore creates a new SQLite record store.
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

// Create stores a new record.
func (s *RecordStore) Create(ctx context.Context, rec record.Record) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("encode record data: %w", err)
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, workspace_id, collection_id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.WorkspaceID, rec.CollectionID, string(data), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// Get retrieves a record by ID within a workspace.
func (s *RecordStore) Get(ctx context.Context, workspaceID, id string) (record.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, collection_id, data, created_at, updated_at
		FROM records
		WHERE workspace_id = ? AND id = ?
	`, workspaceID, id)

	var (
		rec  record.Record
		data string
	)
	err := row.Scan(&rec.ID, &rec.WorkspaceID, &rec.CollectionID, &data, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return record.Record{}, storeErr(err)
	}
	if err := json.Unmarshal([]byte(data), &rec.Data); err != nil {
		return record.Record{}, fmt.Errorf("decode record data: %w", err)
	}
	return rec, nil
}

// List returns records of a collection, newest first.
func (s *RecordStore) List(ctx context.Context, workspaceID, collectionID string, limit, offset int) ([]record.Record, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, collection_id, data, created_at, updated_at
		FROM records
		WHERE workspace_id = ? AND collection_id = ?
		ORDER BY created_at DESC, id ASC
		LIMIT ? OFFSET ?
	`, workspaceID, collectionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []record.Record
	for rows.Next() {
		var (
			rec  record.Record
			data string
		)
		if err := rows.Scan(&rec.ID, &rec.WorkspaceID, &rec.CollectionID, &data,
			&rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &rec.Data); err != nil {
			return nil, fmt.Errorf("decode record data: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Update merges the record's payload over the stored one.
func (s *RecordStore) Update(ctx context.Context, rec record.Record) error {
	current, err := s.Get(ctx, rec.WorkspaceID, rec.ID)
	if err != nil {
		return err
	}

	merged := current.Data
	if merged == nil {
		merged = make(map[string]any)
	}
	for key, val := range rec.Data {
		if val == nil {
			delete(merged, key)
			continue
		}
		merged[key] = val
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode record data: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE records
		SET data = ?, updated_at = ?
		WHERE workspace_id = ? AND id = ?
	`, string(data), time.Now().UTC(), rec.WorkspaceID, rec.ID)
	if err != nil {
		return storeErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// Delete removes a record.
func (s *RecordStore) Delete(ctx context.Context, workspaceID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM records WHERE workspace_id = ? AND id = ?
	`, workspaceID, id)
	if err != nil {
		return storeErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

var _ ports.RecordStore = (*RecordStore)(nil)
