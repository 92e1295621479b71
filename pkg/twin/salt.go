package twin

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/twinbase/twinbase-dlt/pkg/util"
)

// NewSalt returns the keccak256 hex digest of 32 random bytes written as a
// 0x-prefixed hex string.
func NewSalt() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return util.HashText("0x" + hex.EncodeToString(b[:])).Hex(), nil
}
