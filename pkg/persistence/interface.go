package persistence

import "github.com/google/uuid"

// IBuildArchive stores the history of tree builds. tree.json only holds the
// most recent build; the archive keeps every root that was submitted.
// All implementations must be thread-safe.
type IBuildArchive interface {
	// SaveBuild persists a build record keyed by its ID.
	// Saving the same ID twice overwrites the earlier record.
	SaveBuild(record *BuildRecord) error

	// LoadBuild retrieves a build by ID.
	// Returns nil if the build doesn't exist, error only on storage failure.
	LoadBuild(id uuid.UUID) (*BuildRecord, error)

	// ListBuilds returns all builds sorted by creation time (ascending).
	// Returns empty slice if no builds exist.
	ListBuilds() ([]*BuildRecord, error)

	// DeleteBuild removes a build. Idempotent.
	DeleteBuild(id uuid.UUID) error

	// SetLatestBuild marks the build whose root is currently on-chain
	SetLatestBuild(id uuid.UUID) error

	// GetLatestBuild returns the build marked latest, or nil when none is set
	GetLatestBuild() (*BuildRecord, error)

	// Close cleanly shuts down the archive. Idempotent.
	Close() error

	// HealthCheck verifies the archive is operational
	HealthCheck() error
}
