package record

import "time"

// Record is one row of data within a collection. Data is an open mapping of
// field slug to value; the validator decides what is allowed in it.
type Record struct {
	ID           string         `json:"id"`
	WorkspaceID  string         `json:"workspaceId"`
	CollectionID string         `json:"collectionId"`
	Data         map[string]any `json:"data"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}
