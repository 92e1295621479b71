// Package contracts carries the default ABI definitions of the registry
// contracts. contract-info.json may override them per deployment.
package contracts

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	TwinRegistry     = "TwinRegistry"
	RootHashRegistry = "RootHashRegistry"
)

// Method names used against the registries
const (
	MethodGetTwins       = "getTwins"
	MethodGetTwin        = "getTwin"
	MethodVerifyTwinHash = "verifyTwinHash"
	MethodPostTwinHash   = "postTwinHash"
	MethodSetRootHash    = "setRootHash"
	MethodGetRootHash    = "getRootHash"
	MethodVerifyHash     = "verifyHash"
)

//go:embed abi/*.json
var abiFiles embed.FS

// DefaultABIJSON returns the embedded ABI JSON for the named contract.
func DefaultABIJSON(name string) ([]byte, error) {
	data, err := abiFiles.ReadFile(fmt.Sprintf("abi/%s.json", name))
	if err != nil {
		return nil, fmt.Errorf("no default ABI for contract %q", name)
	}
	return data, nil
}

// ParseABI parses raw when non-empty, otherwise the embedded ABI for name.
func ParseABI(name string, raw []byte) (*abi.ABI, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		var err error
		raw, err = DefaultABIJSON(name)
		if err != nil {
			return nil, err
		}
	}

	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI for %s: %w", name, err)
	}
	return &parsed, nil
}

// RequireMethods checks that the ABI exposes every listed method.
func RequireMethods(name string, parsed *abi.ABI, methods ...string) error {
	for _, m := range methods {
		if _, ok := parsed.Methods[m]; !ok {
			return fmt.Errorf("contract %s ABI has no method %q", name, m)
		}
	}
	return nil
}
