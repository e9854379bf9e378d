package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fieldbase/fieldbase/domain/schema"
	"github.com/fieldbase/fieldbase/ports"
	"github.com/mattn/go-sqlite3"
)

// storeErr maps driver errors to the portable store sentinels.
func storeErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ports.ErrNotFound
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return ports.ErrDuplicate
	}
	return err
}

// WorkspaceStore implements ports.WorkspaceStore using SQLite.
type WorkspaceStore struct {
	db *DB
}

// NewWorkspaceStore creates a new SQLite workspace store.
func NewWorkspaceStore(db *DB) *WorkspaceStore {
	return &WorkspaceStore{db: db}
}

// Create stores a new workspace.
func (s *WorkspaceStore) Create(ctx context.Context, ws schema.Workspace) error {
	now := time.Now().UTC()
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = now
	}
	if ws.UpdatedAt.IsZero() {
		ws.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, slug, name, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ws.ID, ws.Slug, ws.Name, ws.Active, ws.CreatedAt, ws.UpdatedAt)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// Get retrieves a workspace by ID.
func (s *WorkspaceStore) Get(ctx context.Context, id string) (schema.Workspace, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, is_active, created_at, updated_at
		FROM workspaces
		WHERE id = ?
	`, id)
	return scanWorkspace(row)
}

// GetBySlug retrieves a workspace by slug.
func (s *WorkspaceStore) GetBySlug(ctx context.Context, slug string) (schema.Workspace, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, is_active, created_at, updated_at
		FROM workspaces
		WHERE slug = ?
	`, slug)
	return scanWorkspace(row)
}

// Update modifies a workspace.
func (s *WorkspaceStore) Update(ctx context.Context, ws schema.Workspace) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE workspaces
		SET slug = ?, name = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`, ws.Slug, ws.Name, ws.Active, time.Now().UTC(), ws.ID)
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

func scanWorkspace(row *sql.Row) (schema.Workspace, error) {
	var ws schema.Workspace
	err := row.Scan(&ws.ID, &ws.Slug, &ws.Name, &ws.Active, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return schema.Workspace{}, storeErr(err)
	}
	return ws, nil
}

var _ ports.WorkspaceStore = (*WorkspaceStore)(nil)
