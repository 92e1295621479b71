package merkle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Bytes32Encoding is the leaf encoding used for twin hashes
var Bytes32Encoding = []string{"bytes32"}

// Of builds a standard merkle tree from leaf values encoded with leafEncoding.
//
// Leaf hash is keccak256(keccak256(abi.encode(value...))), matching the
// double-hashed leaves verified by OpenZeppelin's MerkleProof in Solidity.
func Of(values [][]string, leafEncoding []string, opts Options) (*StandardTree, error) {
	if len(values) == 0 {
		return nil, ErrEmptyTree
	}

	args, err := newArguments(leafEncoding)
	if err != nil {
		return nil, err
	}

	type hashedValue struct {
		valueIndex int
		hash       common.Hash
	}

	hashed := make([]hashedValue, len(values))
	for i, v := range values {
		h, err := leafHash(args, v)
		if err != nil {
			return nil, fmt.Errorf("failed to hash leaf %d: %w", i, err)
		}
		hashed[i] = hashedValue{valueIndex: i, hash: h}
	}

	if opts.SortLeaves {
		sort.SliceStable(hashed, func(i, j int) bool {
			return bytes.Compare(hashed[i].hash[:], hashed[j].hash[:]) < 0
		})
	}

	leaves := make([]common.Hash, len(hashed))
	for i, hv := range hashed {
		leaves[i] = hv.hash
	}
	tree := makeTree(leaves)

	entries := make([]ValueEntry, len(values))
	for i, v := range values {
		entries[i] = ValueEntry{Value: append([]string(nil), v...)}
	}
	for leafPos, hv := range hashed {
		entries[hv.valueIndex].TreeIndex = len(tree) - 1 - leafPos
	}

	return newStandardTree(tree, entries, leafEncoding, args)
}

// OfHashes builds a tree over single-element bytes32 leaves
func OfHashes(hashes [][32]byte, opts Options) (*StandardTree, error) {
	values := make([][]string, 0, len(hashes))
	for _, h := range hashes {
		values = append(values, []string{common.Hash(h).Hex()})
	}
	return Of(values, Bytes32Encoding, opts)
}

func newStandardTree(tree []common.Hash, values []ValueEntry, leafEncoding []string, args abi.Arguments) (*StandardTree, error) {
	t := &StandardTree{
		tree:         tree,
		values:       values,
		leafEncoding: append([]string(nil), leafEncoding...),
		args:         args,
		leafIndex:    make(map[common.Hash]int, len(values)),
	}

	for i, v := range values {
		h, err := leafHash(t.args, v.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to hash value %d: %w", i, err)
		}
		t.leafIndex[h] = i
	}
	return t, nil
}

// Root returns the merkle root
func (t *StandardTree) Root() common.Hash {
	return t.tree[0]
}

// Len returns the number of leaf values
func (t *StandardTree) Len() int {
	return len(t.values)
}

func (t *StandardTree) LeafEncoding() []string {
	return append([]string(nil), t.leafEncoding...)
}

// LeafHash computes the leaf hash for value under the tree's encoding
func (t *StandardTree) LeafHash(value []string) (common.Hash, error) {
	return leafHash(t.args, value)
}

// Entries yields every leaf value with its value index, in insertion order.
// The sequence is finite and may be ranged over any number of times.
func (t *StandardTree) Entries() iter.Seq2[int, []string] {
	return func(yield func(int, []string) bool) {
		for i, v := range t.values {
			if !yield(i, append([]string(nil), v.Value...)) {
				return
			}
		}
	}
}

// At returns the value at valueIndex
func (t *StandardTree) At(valueIndex int) ([]string, error) {
	if valueIndex < 0 || valueIndex >= len(t.values) {
		return nil, fmt.Errorf("value index %d out of bounds (tree has %d values)", valueIndex, len(t.values))
	}
	return append([]string(nil), t.values[valueIndex].Value...), nil
}

// IndexOf returns the value index of value, or ErrLeafNotFound
func (t *StandardTree) IndexOf(value []string) (int, error) {
	h, err := t.LeafHash(value)
	if err != nil {
		return 0, err
	}
	i, ok := t.leafIndex[h]
	if !ok {
		return 0, ErrLeafNotFound
	}
	return i, nil
}

// GetProof returns the sibling hashes from the leaf at valueIndex up to the root.
// A single-leaf tree yields an empty, non-nil proof.
func (t *StandardTree) GetProof(valueIndex int) ([]common.Hash, error) {
	if valueIndex < 0 || valueIndex >= len(t.values) {
		return nil, fmt.Errorf("value index %d out of bounds (tree has %d values)", valueIndex, len(t.values))
	}

	i := t.values[valueIndex].TreeIndex
	if !isLeafNode(t.tree, i) {
		return nil, fmt.Errorf("%w: index %d is not a leaf", ErrInvalidFormat, i)
	}

	proof := make([]common.Hash, 0)
	for i > 0 {
		proof = append(proof, t.tree[siblingIndex(i)])
		i = parentIndex(i)
	}
	return proof, nil
}

// GetProofForValue looks the value up and returns its proof
func (t *StandardTree) GetProofForValue(value []string) ([]common.Hash, error) {
	i, err := t.IndexOf(value)
	if err != nil {
		return nil, err
	}
	return t.GetProof(i)
}

// Verify checks proof for the value at valueIndex against the tree root
func (t *StandardTree) Verify(valueIndex int, proof []common.Hash) (bool, error) {
	value, err := t.At(valueIndex)
	if err != nil {
		return false, err
	}
	leaf, err := t.LeafHash(value)
	if err != nil {
		return false, err
	}
	return VerifyProof(t.Root(), leaf, proof), nil
}

// Validate recomputes every internal node and leaf hash and checks them
// against the stored tree.
func (t *StandardTree) Validate() error {
	if len(t.tree) == 0 {
		return fmt.Errorf("%w: empty tree", ErrInvalidFormat)
	}
	if len(t.values) == 0 {
		return fmt.Errorf("%w: no values", ErrInvalidFormat)
	}
	for i, v := range t.values {
		if !isLeafNode(t.tree, v.TreeIndex) {
			return fmt.Errorf("%w: value %d points at non-leaf index %d", ErrInvalidFormat, i, v.TreeIndex)
		}
		h, err := t.LeafHash(v.Value)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		if h != t.tree[v.TreeIndex] {
			return fmt.Errorf("%w: value %d does not match leaf at index %d", ErrInvalidFormat, i, v.TreeIndex)
		}
	}
	for i := len(t.tree) - 1; i >= 0; i-- {
		if !isInternalNode(t.tree, i) {
			continue
		}
		if t.tree[i] != hashPair(t.tree[leftChildIndex(i)], t.tree[rightChildIndex(i)]) {
			return fmt.Errorf("%w: node %d does not match its children", ErrInvalidFormat, i)
		}
	}
	return nil
}

// Dump returns the serializable form of the tree
func (t *StandardTree) Dump() *Dump {
	values := make([]ValueEntry, len(t.values))
	for i, v := range t.values {
		values[i] = ValueEntry{Value: append([]string(nil), v.Value...), TreeIndex: v.TreeIndex}
	}
	return &Dump{
		Format:       StandardFormat,
		LeafEncoding: t.LeafEncoding(),
		Tree:         append([]common.Hash(nil), t.tree...),
		Values:       values,
	}
}

func (t *StandardTree) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Dump())
}

// Load reconstructs a tree from a dump and validates its integrity
func Load(d *Dump) (*StandardTree, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil dump", ErrInvalidFormat)
	}
	if d.Format != StandardFormat {
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidFormat, d.Format)
	}
	if len(d.Tree) == 0 || len(d.Values) == 0 {
		return nil, fmt.Errorf("%w: empty tree", ErrInvalidFormat)
	}
	if len(d.Tree) != 2*len(d.Values)-1 {
		return nil, fmt.Errorf("%w: %d nodes for %d values", ErrInvalidFormat, len(d.Tree), len(d.Values))
	}

	values := make([]ValueEntry, len(d.Values))
	for i, v := range d.Values {
		values[i] = ValueEntry{Value: append([]string(nil), v.Value...), TreeIndex: v.TreeIndex}
	}

	args, err := newArguments(d.LeafEncoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	t, err := newStandardTree(append([]common.Hash(nil), d.Tree...), values, d.LeafEncoding, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadJSON parses a JSON dump
func LoadJSON(data []byte) (*StandardTree, error) {
	var d Dump
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return Load(&d)
}

// VerifyProof reports whether proof reconstructs root from leaf
func VerifyProof(root, leaf common.Hash, proof []common.Hash) bool {
	return ProcessProof(leaf, proof) == root
}

// ProcessProof folds proof into leaf with the commutative pair hash
func ProcessProof(leaf common.Hash, proof []common.Hash) common.Hash {
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed
}

// Bytes32LeafHash is the leaf hash of a single bytes32 value
func Bytes32LeafHash(value [32]byte) common.Hash {
	inner := crypto.Keccak256(value[:])
	return crypto.Keccak256Hash(inner)
}

func leafHash(args abi.Arguments, value []string) (common.Hash, error) {
	if len(value) != len(args) {
		return common.Hash{}, fmt.Errorf("expected %d leaf values, got %d", len(args), len(value))
	}
	converted := make([]interface{}, len(value))
	for i, s := range value {
		v, err := convertValue(args[i].Type, s)
		if err != nil {
			return common.Hash{}, err
		}
		converted[i] = v
	}
	encoded, err := args.Pack(converted...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to abi encode leaf: %w", err)
	}
	return crypto.Keccak256Hash(crypto.Keccak256(encoded)), nil
}

// hashPair computes keccak256 of the two hashes in ascending byte order
func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	data := make([]byte, 64)
	copy(data[0:32], a[:])
	copy(data[32:64], b[:])
	return crypto.Keccak256Hash(data)
}
