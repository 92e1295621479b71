package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/twinbase/twinbase-dlt/pkg/merkle"
)

// BuildRecord is one archived tree build
type BuildRecord struct {
	ID uuid.UUID `json:"id"`

	Root common.Hash `json:"root"`

	// TxHash of the setRootHash transaction; zero for dry runs
	TxHash common.Hash `json:"txHash"`

	// TargetContract received the root
	TargetContract string `json:"targetContract,omitempty"`

	LeafCount int    `json:"leafCount"`
	Format    string `json:"format"`

	// Dump is the tree.json content of the build
	Dump json.RawMessage `json:"dump"`

	CreatedAt time.Time `json:"createdAt"`
}

// NewBuildRecord captures tree under a fresh random ID
func NewBuildRecord(tree *merkle.StandardTree, txHash common.Hash, targetContract string) (*BuildRecord, error) {
	if tree == nil {
		return nil, fmt.Errorf("cannot archive nil tree")
	}
	dump, err := json.Marshal(tree.Dump())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tree dump: %w", err)
	}
	return &BuildRecord{
		ID:             uuid.New(),
		Root:           tree.Root(),
		TxHash:         txHash,
		TargetContract: targetContract,
		LeafCount:      tree.Len(),
		Format:         merkle.StandardFormat,
		Dump:           dump,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// Tree reconstructs and validates the archived tree
func (r *BuildRecord) Tree() (*merkle.StandardTree, error) {
	return merkle.LoadJSON(r.Dump)
}

// IsDryRun reports whether the build was never submitted
func (r *BuildRecord) IsDryRun() bool {
	return r.TxHash == (common.Hash{})
}
