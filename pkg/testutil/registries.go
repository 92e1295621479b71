package testutil

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/twinbase/twinbase-dlt/pkg/contracts"
	"github.com/twinbase/twinbase-dlt/pkg/merkle"
	"github.com/twinbase/twinbase-dlt/pkg/types"
)

// TwinRegistrySim simulates the twin record registry. When Minter is set,
// state-changing calls from any other account revert.
type TwinRegistrySim struct {
	Minter common.Address

	mu    sync.Mutex
	order []string
	twins map[string][32]byte
	root  [32]byte
}

func NewTwinRegistrySim(minter common.Address) *TwinRegistrySim {
	return &TwinRegistrySim{
		Minter: minter,
		twins:  make(map[string][32]byte),
	}
}

// Put stores a twin directly, bypassing transactions
func (s *TwinRegistrySim) Put(id string, hash [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(id, hash)
}

func (s *TwinRegistrySim) put(id string, hash [32]byte) {
	if _, ok := s.twins[id]; !ok {
		s.order = append(s.order, id)
	}
	s.twins[id] = hash
}

func (s *TwinRegistrySim) Twins() []types.Twin {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Twin, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, types.Twin{Id: id, Hash: s.twins[id]})
	}
	return out
}

func (s *TwinRegistrySim) Root() [32]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

func (s *TwinRegistrySim) Call(_ common.Address, method *abi.Method, args []interface{}) ([]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch method.Name {
	case contracts.MethodGetTwins:
		out := make([]types.Twin, 0, len(s.order))
		for _, id := range s.order {
			out = append(out, types.Twin{Id: id, Hash: s.twins[id]})
		}
		return []interface{}{out}, nil
	case contracts.MethodGetTwin:
		id := args[0].(string)
		hash, ok := s.twins[id]
		if !ok {
			return nil, fmt.Errorf("%w: twin %s does not exist", ErrRevert, id)
		}
		return []interface{}{types.Twin{Id: id, Hash: hash}}, nil
	case contracts.MethodVerifyTwinHash:
		id := args[0].(string)
		hash := args[1].([32]byte)
		stored, ok := s.twins[id]
		return []interface{}{ok && stored == hash}, nil
	case contracts.MethodGetRootHash:
		return []interface{}{s.root}, nil
	}
	return nil, fmt.Errorf("%w: %s is not a view method", ErrRevert, method.Name)
}

func (s *TwinRegistrySim) Transact(from common.Address, method *abi.Method, args []interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Minter != (common.Address{}) && from != s.Minter {
		return fmt.Errorf("%w: %s is not the minter", ErrRevert, from.Hex())
	}

	switch method.Name {
	case contracts.MethodPostTwinHash:
		s.put(args[0].(string), args[1].([32]byte))
		return nil
	case contracts.MethodSetRootHash:
		s.root = args[0].([32]byte)
		return nil
	}
	return fmt.Errorf("%w: unsupported method %s", ErrRevert, method.Name)
}

// RootHashRegistrySim simulates the root hash registry. verifyHash hashes the
// given twin hash into a standard bytes32 leaf and checks the proof against
// the stored root.
type RootHashRegistrySim struct {
	Owner common.Address

	mu   sync.Mutex
	root [32]byte
}

func NewRootHashRegistrySim(owner common.Address) *RootHashRegistrySim {
	return &RootHashRegistrySim{Owner: owner}
}

func (s *RootHashRegistrySim) SetRoot(root [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
}

func (s *RootHashRegistrySim) Root() [32]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

func (s *RootHashRegistrySim) Call(_ common.Address, method *abi.Method, args []interface{}) ([]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch method.Name {
	case contracts.MethodVerifyHash:
		rawProof := args[0].([][32]byte)
		leaf := args[1].([32]byte)
		proof := make([]common.Hash, len(rawProof))
		for i, p := range rawProof {
			proof[i] = p
		}
		ok := merkle.VerifyProof(s.root, merkle.Bytes32LeafHash(leaf), proof)
		return []interface{}{ok}, nil
	case contracts.MethodGetRootHash:
		return []interface{}{s.root}, nil
	}
	return nil, fmt.Errorf("%w: %s is not a view method", ErrRevert, method.Name)
}

func (s *RootHashRegistrySim) Transact(from common.Address, method *abi.Method, args []interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Owner != (common.Address{}) && from != s.Owner {
		return fmt.Errorf("%w: %s is not the owner", ErrRevert, from.Hex())
	}
	if method.Name != contracts.MethodSetRootHash {
		return fmt.Errorf("%w: unsupported method %s", ErrRevert, method.Name)
	}
	s.root = args[0].([32]byte)
	return nil
}
