package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fieldbase/fieldbase/domain/schema"
	"github.com/fieldbase/fieldbase/ports"
)

// FieldStore implements ports.FieldStore using SQLite. Default values and
// per-type options are stored as JSON.
type FieldStore struct {
	db *DB
}

// NewFieldStore creates a new SQLite field store.
func NewFieldStore(db *DB) *FieldStore {
	return &FieldStore{db: db}
}

// Create stores a new field definition.
func (s *FieldStore) Create(ctx context.Context, f schema.Field) error {
	defaultJSON, optionsJSON, err := encodeFieldJSON(f)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fields (id, collection_id, slug, name, field_type,
		                    is_required, is_unique, default_value, options, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.CollectionID, f.Slug, f.Name, string(f.Type),
		f.Required, f.Unique, defaultJSON, optionsJSON, f.SortOrder)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// Get retrieves a field by ID.
func (s *FieldStore) Get(ctx context.Context, id string) (schema.Field, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, collection_id, slug, name, field_type,
		       is_required, is_unique, default_value, options, sort_order
		FROM fields
		WHERE id = ?
	`, id)

	f, err := scanField(row.Scan)
	if err != nil {
		return schema.Field{}, storeErr(err)
	}
	return f, nil
}

// ListByCollection returns a collection's fields in sort order.
func (s *FieldStore) ListByCollection(ctx context.Context, collectionID string) ([]schema.Field, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collection_id, slug, name, field_type,
		       is_required, is_unique, default_value, options, sort_order
		FROM fields
		WHERE collection_id = ?
		ORDER BY sort_order ASC, slug ASC
	`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []schema.Field
	for rows.Next() {
		f, err := scanField(rows.Scan)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

// Update modifies a field definition.
func (s *FieldStore) Update(ctx context.Context, f schema.Field) error {
	defaultJSON, optionsJSON, err := encodeFieldJSON(f)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE fields
		SET slug = ?, name = ?, field_type = ?, is_required = ?, is_unique = ?,
		    default_value = ?, options = ?, sort_order = ?
		WHERE id = ?
	`, f.Slug, f.Name, string(f.Type), f.Required, f.Unique,
		defaultJSON, optionsJSON, f.SortOrder, f.ID)
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

// Delete removes a field definition.
func (s *FieldStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM fields WHERE id = ?`, id)
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

func encodeFieldJSON(f schema.Field) (defaultJSON sql.NullString, optionsJSON string, err error) {
	if f.Default != nil {
		b, err := json.Marshal(f.Default)
		if err != nil {
			return sql.NullString{}, "", fmt.Errorf("encode default value: %w", err)
		}
		defaultJSON = sql.NullString{String: string(b), Valid: true}
	}

	b, err := json.Marshal(f.Options)
	if err != nil {
		return sql.NullString{}, "", fmt.Errorf("encode options: %w", err)
	}
	return defaultJSON, string(b), nil
}

func scanField(scan func(...any) error) (schema.Field, error) {
	var (
		f           schema.Field
		fieldType   string
		defaultJSON sql.NullString
		optionsJSON string
	)
	err := scan(&f.ID, &f.CollectionID, &f.Slug, &f.Name, &fieldType,
		&f.Required, &f.Unique, &defaultJSON, &optionsJSON, &f.SortOrder)
	if err != nil {
		return schema.Field{}, err
	}

	f.Type = schema.FieldType(fieldType)
	if defaultJSON.Valid {
		if err := json.Unmarshal([]byte(defaultJSON.String), &f.Default); err != nil {
			return schema.Field{}, fmt.Errorf("decode default value: %w", err)
		}
	}
	if optionsJSON != "" {
		if err := json.Unmarshal([]byte(optionsJSON), &f.Options); err != nil {
			return schema.Field{}, fmt.Errorf("decode options: %w", err)
		}
	}
	return f, nil
}

var _ ports.FieldStore = (*FieldStore)(nil)
