package domain

import (
	"time"

	"github.com/google/uuid"
)

// Dataset represents a dataset whose versions feed experiments
type Dataset struct {
	ID          uuid.UUID `json:"id"`
	ProjectID   uuid.UUID `json:"projectId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// Aggregated fields (populated by resolvers)
	VersionCount int64 `json:"versionCount,omitempty"`
}

// DatasetVersion represents an immutable snapshot of a dataset's items
type DatasetVersion struct {
	ID        uuid.UUID `json:"id"`
	DatasetID uuid.UUID `json:"datasetId"`
	Version   int       `json:"version"`
	ItemCount int64     `json:"itemCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// DatasetItem is one row of a dataset version, structured as a list of
// conversational turns each holding named field entries. The pipeline
// reads items but never writes them.
type DatasetItem struct {
	ID               uuid.UUID `json:"id"`
	DatasetVersionID uuid.UUID `json:"datasetVersionId"`
	Turns            []Turn    `json:"turns"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Turn is one conversational turn of a dataset item
type Turn struct {
	FieldDataList []FieldData `json:"fieldDataList"`
}

// FieldData is one named field entry within a turn
type FieldData struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Field returns the content of the named field from the first turn,
// or "" when absent. Lookup is by display name with key as fallback,
// matching how the extraction pipeline maps fields.
func (i *DatasetItem) Field(name string) string {
	if len(i.Turns) == 0 {
		return ""
	}
	for _, fd := range i.Turns[0].FieldDataList {
		if fd.Name == name || (fd.Name == "" && fd.Key == name) {
			return fd.Content
		}
	}
	return ""
}

// DatasetFilter represents filter options for querying datasets
type DatasetFilter struct {
	ProjectID uuid.UUID
	Name      *string
}
