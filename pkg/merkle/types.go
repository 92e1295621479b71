package merkle

import (
	"errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// StandardFormat is the dump format identifier, compatible with the
// OpenZeppelin standard merkle tree.
const StandardFormat = "standard-v1"

var (
	ErrEmptyTree     = errors.New("cannot build merkle tree from empty leaf set")
	ErrInvalidFormat = errors.New("invalid merkle tree dump")
	ErrLeafNotFound  = errors.New("leaf not found in merkle tree")
)

// StandardTree is a binary merkle tree over ABI-encoded leaf values.
//
// Layout follows the array representation: nodes are stored in tree, the root
// at index 0, the children of node i at 2i+1 and 2i+2, leaves in the last
// len(values) slots. Pairs are hashed commutatively, so proofs carry no
// left/right flags.
type StandardTree struct {
	tree         []common.Hash
	values       []ValueEntry
	leafEncoding []string
	args         abi.Arguments

	// leafIndex maps a leaf hash to its index in values
	leafIndex map[common.Hash]int
}

// ValueEntry is one leaf value and its position in the tree array
type ValueEntry struct {
	Value     []string `json:"value"`
	TreeIndex int      `json:"treeIndex"`
}

// Dump is the serialized form of a StandardTree
type Dump struct {
	Format       string        `json:"format"`
	LeafEncoding []string      `json:"leafEncoding"`
	Tree         []common.Hash `json:"tree"`
	Values       []ValueEntry  `json:"values"`
}

// Options control tree construction
type Options struct {
	// SortLeaves orders leaves by leaf hash before placement, which makes the
	// root independent of input order.
	SortLeaves bool
}

func DefaultOptions() Options {
	return Options{SortLeaves: true}
}
