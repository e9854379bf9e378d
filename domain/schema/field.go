// Package schema defines the user-authored data model: workspaces,
// collections, and their typed field definitions. Collections and fields are
// data, not Go types — they are created and mutated at runtime by workspace
// owners, so everything here is a value type consumed by the record validator
// and the composition compiler.
package schema

import "time"

// FieldType represents the type of a collection field.
type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeTextarea    FieldType = "textarea"
	FieldTypeNumber      FieldType = "number"
	FieldTypeBoolean     FieldType = "boolean"
	FieldTypeDate        FieldType = "date"
	FieldTypeDatetime    FieldType = "datetime"
	FieldTypeSelect      FieldType = "select"
	FieldTypeMultiSelect FieldType = "multi_select"
	FieldTypeRelation    FieldType = "relation"
	FieldTypeJSON        FieldType = "json"
)

// Known reports whether t is one of the supported field types.
// Unknown types are tolerated (forward compatibility) but skip validation.
func (t FieldType) Known() bool {
	switch t {
	case FieldTypeText, FieldTypeTextarea, FieldTypeNumber, FieldTypeBoolean,
		FieldTypeDate, FieldTypeDatetime, FieldTypeSelect, FieldTypeMultiSelect,
		FieldTypeRelation, FieldTypeJSON:
		return true
	}
	return false
}

// Numeric reports whether values of this type order numerically.
// Date and datetime values are ISO-8601 strings and order lexicographically,
// which is the same ordering, so range operators are allowed on them too.
func (t FieldType) Numeric() bool {
	switch t {
	case FieldTypeNumber, FieldTypeDate, FieldTypeDatetime:
		return true
	}
	return false
}

// Choice is one allowed value of a select or multi-select field.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// FieldOptions carries per-type constraints. Only the options matching the
// field's type are consulted; the rest are ignored.
type FieldOptions struct {
	// Text / textarea
	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`

	// Number
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`

	// Select / multi-select
	Choices []Choice `json:"choices,omitempty"`

	// Relation
	RelatedCollectionID string `json:"relatedCollectionId,omitempty"`
}

// HasChoice reports whether value is an allowed choice.
func (o FieldOptions) HasChoice(value string) bool {
	for _, c := range o.Choices {
		if c.Value == value {
			return true
		}
	}
	return false
}

// Field is one typed column definition within a collection.
type Field struct {
	ID           string       `json:"id"`
	CollectionID string       `json:"collectionId"`
	Slug         string       `json:"slug"`
	Name         string       `json:"name"`
	Type         FieldType    `json:"type"`
	Required     bool         `json:"isRequired"`
	Unique       bool         `json:"isUnique"`
	Default      any          `json:"defaultValue,omitempty"`
	Options      FieldOptions `json:"options"`
	SortOrder    int          `json:"sortOrder"`
}

// Collection is a named, slugged container of fields within a workspace.
// Version increments on every mutating update (optimistic-concurrency hint).
type Collection struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Workspace is the tenant boundary. Every collection, record, and
// composition belongs to exactly one workspace.
type Workspace struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Active    bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FieldSet is a snapshot of one collection's fields, as served by the schema
// registry. Lookup is by slug.
type FieldSet struct {
	Collection Collection
	Fields     []Field

	bySlug map[string]Field
}

// NewFieldSet builds a FieldSet with its slug index.
func NewFieldSet(col Collection, fields []Field) *FieldSet {
	fs := &FieldSet{Collection: col, Fields: fields, bySlug: make(map[string]Field, len(fields))}
	for _, f := range fields {
		fs.bySlug[f.Slug] = f
	}
	return fs
}

// Lookup returns the field with the given slug.
func (fs *FieldSet) Lookup(slug string) (Field, bool) {
	f, ok := fs.bySlug[slug]
	return f, ok
}
