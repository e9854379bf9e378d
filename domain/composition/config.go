// Package composition holds the declarative query model: the user-authored
// config, the compiler that turns it into an injection-safe query plan, and
// the plan itself. Compilation is pure and deterministic; executing a plan is
// an adapter concern.
package composition

import (
	"encoding/json"
	"time"
)

// Op is a filter operator. The set is closed; the compiler matches
// exhaustively so adding an operator is a single-point change.
type Op string

const (
	OpEq       Op = "eq"
	OpNeq      Op = "neq"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpContains Op = "contains"
	OpIn       Op = "in"
)

// Valid reports whether o is a recognized operator.
func (o Op) Valid() bool {
	switch o {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpContains, OpIn:
		return true
	}
	return false
}

// Ordering reports whether o compares by order and therefore needs an
// orderable (numeric or date) field type.
func (o Op) Ordering() bool {
	switch o {
	case OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// AggFunc is an aggregation function.
type AggFunc string

const (
	AggCount AggFunc = "count"
	AggSum   AggFunc = "sum"
	AggAvg   AggFunc = "avg"
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
)

// Valid reports whether f is a recognized aggregation function.
func (f AggFunc) Valid() bool {
	switch f {
	case AggCount, AggSum, AggAvg, AggMin, AggMax:
		return true
	}
	return false
}

// JoinType is a join flavor. Only inner, left, and right are accepted.
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
)

// Valid reports whether t is a recognized join type.
func (t JoinType) Valid() bool {
	switch t {
	case JoinInner, JoinLeft, JoinRight:
		return true
	}
	return false
}

// JoinOn names the two sides of a join condition by field slug.
type JoinOn struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Join declares one joined collection.
type Join struct {
	Collection string   `json:"collection"`
	Type       JoinType `json:"type"`
	On         JoinOn   `json:"on"`
}

// Filter declares one predicate. Exactly one of Value and Param is set:
// a literal value, or the name of a parameter bound at execution time.
type Filter struct {
	Field string `json:"field"`
	Op    Op     `json:"operator"`
	Value any    `json:"value,omitempty"`
	Param string `json:"param,omitempty"`
}

// Aggregation declares one aggregate output column. Field may be empty for
// count (count of rows).
type Aggregation struct {
	Field string  `json:"field,omitempty"`
	Func  AggFunc `json:"function"`
	Alias string  `json:"alias"`
}

// Sort declares one ordering clause. Field names a projected column or an
// aggregation alias. Direction defaults to ascending.
type Sort struct {
	Field     string `json:"field"`
	Direction string `json:"direction,omitempty"` // "asc" or "desc"
}

// Config is the declarative query a composition persists. The known clauses
// form a closed schema; unknown top-level keys are preserved verbatim in
// Extra so configs round-trip losslessly through save/load.
type Config struct {
	From         string        `json:"from"`
	Joins        []Join        `json:"joins,omitempty"`
	Filters      []Filter      `json:"filters,omitempty"`
	GroupBy      []string      `json:"groupBy,omitempty"`
	Aggregations []Aggregation `json:"aggregations,omitempty"`
	Select       []string      `json:"select,omitempty"`
	Sort         []Sort        `json:"sort,omitempty"`
	Limit        *int          `json:"limit,omitempty"`

	// Extra holds forward-compatible keys outside the closed schema.
	Extra map[string]json.RawMessage `json:"-"`
}

// configKnown mirrors Config for plain (de)serialization of the known keys.
type configKnown struct {
	From         string        `json:"from"`
	Joins        []Join        `json:"joins,omitempty"`
	Filters      []Filter      `json:"filters,omitempty"`
	GroupBy      []string      `json:"groupBy,omitempty"`
	Aggregations []Aggregation `json:"aggregations,omitempty"`
	Select       []string      `json:"select,omitempty"`
	Sort         []Sort        `json:"sort,omitempty"`
	Limit        *int          `json:"limit,omitempty"`
}

var knownConfigKeys = map[string]bool{
	"from": true, "joins": true, "filters": true, "groupBy": true,
	"aggregations": true, "select": true, "sort": true, "limit": true,
}

// UnmarshalJSON decodes the known clauses and stashes everything else.
func (c *Config) UnmarshalJSON(data []byte) error {
	var known configKnown
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = Config{
		From:         known.From,
		Joins:        known.Joins,
		Filters:      known.Filters,
		GroupBy:      known.GroupBy,
		Aggregations: known.Aggregations,
		Select:       known.Select,
		Sort:         known.Sort,
		Limit:        known.Limit,
	}
	for key, val := range raw {
		if knownConfigKeys[key] {
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]json.RawMessage)
		}
		c.Extra[key] = val
	}
	return nil
}

// MarshalJSON re-emits the known clauses merged with the preserved extras.
// A known clause always wins over a same-named extra.
func (c Config) MarshalJSON() ([]byte, error) {
	knownJSON, err := json.Marshal(configKnown{
		From:         c.From,
		Joins:        c.Joins,
		Filters:      c.Filters,
		GroupBy:      c.GroupBy,
		Aggregations: c.Aggregations,
		Select:       c.Select,
		Sort:         c.Sort,
		Limit:        c.Limit,
	})
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return knownJSON, nil
	}

	merged := make(map[string]json.RawMessage, len(c.Extra)+8)
	for key, val := range c.Extra {
		merged[key] = val
	}
	var knownMap map[string]json.RawMessage
	if err := json.Unmarshal(knownJSON, &knownMap); err != nil {
		return nil, err
	}
	for key, val := range knownMap {
		merged[key] = val
	}
	return json.Marshal(merged)
}

// Composition is a saved, declarative read query exposed as an endpoint.
type Composition struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Config      Config    `json:"config"`
	AccessLevel string    `json:"accessLevel"` // access.Level value
	Active      bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
