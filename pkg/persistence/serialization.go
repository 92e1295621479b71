package persistence

import (
	"encoding/json"
	"fmt"
	"sort"
)

// MarshalBuildRecord serializes a BuildRecord to JSON bytes.
func MarshalBuildRecord(record *BuildRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot marshal nil BuildRecord")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal BuildRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalBuildRecord deserializes a BuildRecord from JSON bytes.
func UnmarshalBuildRecord(data []byte) (*BuildRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var record BuildRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to BuildRecord: %w", err)
	}

	return &record, nil
}

// SortBuilds orders records by creation time, then ID
func SortBuilds(records []*BuildRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID.String() < records[j].ID.String()
	})
}
