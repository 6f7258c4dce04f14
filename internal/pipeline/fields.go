package pipeline

import (
	"fmt"

	"github.com/evalforge/evalforge/api/internal/domain"
)

// reservedTurnsKey must never surface as an extracted field name. Seeing
// it means the item's turn structure leaked through unparsed.
const reservedTurnsKey = "turns"

// ExtractFields pulls named fields out of a dataset item's turn
// structure. Only the first turn is consulted; later turns are ignored.
// The mapping is keyed by field display name, falling back to the raw
// key when no name is set; entries lacking both are skipped. Missing or
// empty turns yield an empty mapping, not an error.
func ExtractFields(item *domain.DatasetItem) (map[string]string, error) {
	fields := make(map[string]string)
	if item == nil || len(item.Turns) == 0 {
		return fields, nil
	}

	for _, fd := range item.Turns[0].FieldDataList {
		name := fd.Name
		if name == "" {
			name = fd.Key
		}
		if name == "" {
			continue
		}
		fields[name] = fd.Content
	}

	if _, ok := fields[reservedTurnsKey]; ok {
		return nil, fmt.Errorf("item %s: reserved field name %q extracted, turn structure was not parsed", item.ID, reservedTurnsKey)
	}

	return fields, nil
}
