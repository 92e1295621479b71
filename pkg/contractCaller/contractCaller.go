package contractCaller

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/twinbase/twinbase-dlt/pkg/types"
)

// ErrTwinNotFound is returned by GetTwin when the registry has no record for the id
var ErrTwinNotFound = errors.New("twin not found in registry")

// ErrReadOnly is returned by write methods of a caller built without a signer
var ErrReadOnly = errors.New("contract caller has no transaction signer")

type IContractCaller interface {
	// TwinRegistry reads
	GetTwins(ctx context.Context) ([]types.Twin, error)

	GetTwin(ctx context.Context, id string) (*types.Twin, error)

	VerifyTwinHash(ctx context.Context, id string, hash [32]byte) (bool, error)

	// TwinRegistry writes. A zero gasLimit lets the signer estimate it.
	PostTwinHash(ctx context.Context, id string, hash [32]byte, gasLimit uint64) (*ethereumTypes.Receipt, error)

	// Root hash on the named contract (TwinRegistry or RootHashRegistry)
	SetRootHash(ctx context.Context, contractName string, root [32]byte) (*ethereumTypes.Receipt, error)

	GetRootHash(ctx context.Context, contractName string) ([32]byte, error)

	// RootHashRegistry proof check for a twin hash
	VerifyHash(ctx context.Context, proof [][32]byte, hash [32]byte) (bool, error)

	// GetFromAddress returns the signing account, or the zero address when read-only
	GetFromAddress() common.Address
}
