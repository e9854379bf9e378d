package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldbase/fieldbase/domain/composition"
	"github.com/fieldbase/fieldbase/ports"
)

// CompositionStore implements ports.CompositionStore using SQLite. Configs
// round-trip through their JSON form, which preserves unknown keys.
type CompositionStore struct {
	db *DB
}

// NewCompositionStore creates a new SQLite composition store.
func NewCompositionStore(db *DB) *CompositionStore {
	return &CompositionStore{db: db}
}

// Create stores a new composition.
func (s *CompositionStore) Create(ctx context.Context, comp composition.Composition) error {
	configJSON, err := json.Marshal(comp.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	now := time.Now().UTC()
	if comp.CreatedAt.IsZero() {
		comp.CreatedAt = now
	}
	if comp.UpdatedAt.IsZero() {
		comp.UpdatedAt = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO compositions (id, workspace_id, slug, name, config, access_level, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, comp.ID, comp.WorkspaceID, comp.Slug, comp.Name, string(configJSON),
		comp.AccessLevel, comp.Active, comp.CreatedAt, comp.UpdatedAt)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// Get retrieves a composition by ID.
func (s *CompositionStore) Get(ctx context.Context, id string) (composition.Composition, error) {
	return s.getWhere(ctx, `id = ?`, id)
}

// GetBySlug retrieves a composition by slug within a workspace.
func (s *CompositionStore) GetBySlug(ctx context.Context, workspaceID, slug string) (composition.Composition, error) {
	return s.getWhere(ctx, `workspace_id = ? AND slug = ?`, workspaceID, slug)
}

func (s *CompositionStore) getWhere(ctx context.Context, where string, args ...any) (composition.Composition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, slug, name, config, access_level, is_active, created_at, updated_at
		FROM compositions
		WHERE `+where, args...)

	var (
		comp       composition.Composition
		configJSON string
	)
	err := row.Scan(&comp.ID, &comp.WorkspaceID, &comp.Slug, &comp.Name,
		&configJSON, &comp.AccessLevel, &comp.Active, &comp.CreatedAt, &comp.UpdatedAt)
	if err != nil {
		return composition.Composition{}, storeErr(err)
	}
	if err := json.Unmarshal([]byte(configJSON), &comp.Config); err != nil {
		return composition.Composition{}, fmt.Errorf("decode config: %w", err)
	}
	return comp, nil
}

// List returns all compositions in a workspace.
func (s *CompositionStore) List(ctx context.Context, workspaceID string) ([]composition.Composition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, slug, name, config, access_level, is_active, created_at, updated_at
		FROM compositions
		WHERE workspace_id = ?
		ORDER BY name ASC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comps []composition.Composition
	for rows.Next() {
		var (
			comp       composition.Composition
			configJSON string
		)
		if err := rows.Scan(&comp.ID, &comp.WorkspaceID, &comp.Slug, &comp.Name,
			&configJSON, &comp.AccessLevel, &comp.Active, &comp.CreatedAt, &comp.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(configJSON), &comp.Config); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		comps = append(comps, comp)
	}
	return comps, rows.Err()
}

// Update replaces a composition; the config is never partially applied.
func (s *CompositionStore) Update(ctx context.Context, comp composition.Composition) error {
	configJSON, err := json.Marshal(comp.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE compositions
		SET slug = ?, name = ?, config = ?, access_level = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`, comp.Slug, comp.Name, string(configJSON), comp.AccessLevel, comp.Active,
		time.Now().UTC(), comp.ID)
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

// Delete removes a composition.
func (s *CompositionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM compositions WHERE id = ?`, id)
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

var _ ports.CompositionStore = (*CompositionStore)(nil)
