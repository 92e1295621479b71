package util

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// HashText returns keccak256 of the utf-8 bytes of s, the same digest
// Solidity produces for keccak256(abi.encodePacked(s)).
func HashText(s string) common.Hash {
	return crypto.Keccak256Hash([]byte(s))
}

// ParseHash decodes a 0x-prefixed 32 byte hex string
func ParseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid hash %q: expected %d bytes, got %d", s, common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}

// HashesToHex renders hashes as 0x-prefixed hex strings
func HashesToHex(hashes []common.Hash) []string {
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.Hex()
	}
	return out
}
