package persistence

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrBuildNotFound is returned by FindBuild for an unknown ID
var ErrBuildNotFound = errors.New("build not found")

// FindBuild loads the build with the given ID string
func FindBuild(a IBuildArchive, id string) (*BuildRecord, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid build id %q: %w", id, err)
	}
	record, err := a.LoadBuild(parsed)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrBuildNotFound, id)
	}
	return record, nil
}

// PruneBuilds deletes the oldest builds so at most keep remain. The latest
// build is never deleted. Returns the deleted IDs.
func PruneBuilds(a IBuildArchive, keep int) ([]uuid.UUID, error) {
	if keep < 1 {
		return nil, fmt.Errorf("keep must be at least 1, got %d", keep)
	}
	builds, err := a.ListBuilds()
	if err != nil {
		return nil, err
	}
	latest, err := a.GetLatestBuild()
	if err != nil {
		return nil, err
	}

	excess := len(builds) - keep
	deleted := make([]uuid.UUID, 0)
	for _, record := range builds {
		if excess <= 0 {
			break
		}
		if latest != nil && record.ID == latest.ID {
			continue
		}
		if err := a.DeleteBuild(record.ID); err != nil {
			return deleted, fmt.Errorf("failed to delete build %s: %w", record.ID, err)
		}
		deleted = append(deleted, record.ID)
		excess--
	}
	return deleted, nil
}
