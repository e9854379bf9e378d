package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/fieldbase/fieldbase/domain/schema"
	"github.com/fieldbase/fieldbase/ports"
)

// CollectionStore implements ports.CollectionStore using SQLite.
type CollectionStore struct {
	db *DB
}

// NewCollectionStore creates a new SQLite collection store.
func NewCollectionStore(db *DB) *CollectionStore {
	return &CollectionStore{db: db}
}

// Create stores a new collection at version 1.
func (s *CollectionStore) Create(ctx context.Context, col schema.Collection) error {
	now := time.Now().UTC()
	if col.CreatedAt.IsZero() {
		col.CreatedAt = now
	}
	if col.UpdatedAt.IsZero() {
		col.UpdatedAt = now
	}
	if col.Version == 0 {
		col.Version = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (id, workspace_id, slug, name, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, col.ID, col.WorkspaceID, col.Slug, col.Name, col.Version, col.CreatedAt, col.UpdatedAt)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// Get retrieves a collection by ID.
func (s *CollectionStore) Get(ctx context.Context, id string) (schema.Collection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, slug, name, version, created_at, updated_at
		FROM collections
		WHERE id = ?
	`, id)
	return scanCollection(row)
}

// GetBySlug retrieves a collection by slug within a workspace.
func (s *CollectionStore) GetBySlug(ctx context.Context, workspaceID, slug string) (schema.Collection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, slug, name, version, created_at, updated_at
		FROM collections
		WHERE workspace_id = ? AND slug = ?
	`, workspaceID, slug)
	return scanCollection(row)
}

// List returns all collections in a workspace.
func (s *CollectionStore) List(ctx context.Context, workspaceID string) ([]schema.Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, slug, name, version, created_at, updated_at
		FROM collections
		WHERE workspace_id = ?
		ORDER BY name ASC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []schema.Collection
	for rows.Next() {
		var col schema.Collection
		if err := rows.Scan(&col.ID, &col.WorkspaceID, &col.Slug, &col.Name,
			&col.Version, &col.CreatedAt, &col.UpdatedAt); err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// Update replaces mutable attributes and bumps the version counter.
func (s *CollectionStore) Update(ctx context.Context, col schema.Collection) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE collections
		SET slug = ?, name = ?, version = version + 1, updated_at = ?
		WHERE id = ?
	`, col.Slug, col.Name, time.Now().UTC(), col.ID)
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

// Delete removes a collection. Fields and records cascade.
func (s *CollectionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id)
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

// BumpVersion increments a collection's version without touching anything
// else (used when its fields mutate).
func (s *CollectionStore) BumpVersion(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE collections SET version = version + 1, updated_at = ? WHERE id = ?
	`, time.Now().UTC(), id)
	return err
}

func scanCollection(row *sql.Row) (schema.Collection, error) {
	var col schema.Collection
	err := row.Scan(&col.ID, &col.WorkspaceID, &col.Slug, &col.Name,
		&col.Version, &col.CreatedAt, &col.UpdatedAt)
	if err != nil {
		return schema.Collection{}, storeErr(err)
	}
	return col, nil
}

var _ ports.CollectionStore = (*CollectionStore)(nil)
