package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// Twin is a digital twin record as stored in the TwinRegistry contract.
type Twin struct {
	Id   string
	Hash [32]byte
}

// HashHex returns the twin hash as a 0x-prefixed hex string.
func (t *Twin) HashHex() string {
	return common.Hash(t.Hash).Hex()
}

// TwinHashes extracts the hashes of the given twins, preserving order
func TwinHashes(twins []Twin) [][32]byte {
	hashes := make([][32]byte, 0, len(twins))
	for _, t := range twins {
		hashes = append(hashes, t.Hash)
	}
	return hashes
}
