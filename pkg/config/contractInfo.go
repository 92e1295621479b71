package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/twinbase/twinbase-dlt/pkg/contracts"
	"github.com/twinbase/twinbase-dlt/pkg/util"
)

const (
	TwinRegistryName     = contracts.TwinRegistry
	RootHashRegistryName = contracts.RootHashRegistry
)

var ErrContractNotFound = errors.New("contract not found in contract info")

// ContractInfo is one entry of contract-info.json
type ContractInfo struct {
	ABI     json.RawMessage `json:"abi,omitempty"`
	Node    string          `json:"node"`
	Address string          `json:"address"`
	Minter  string          `json:"minter,omitempty"`
	Name    string          `json:"name,omitempty"`
}

func (ci *ContractInfo) Validate(name string) error {
	var allErrors field.ErrorList
	path := field.NewPath(name)

	if ci.Node == "" {
		allErrors = append(allErrors, field.Required(path.Child("node"), "node url is required"))
	}
	if ci.Address == "" {
		allErrors = append(allErrors, field.Required(path.Child("address"), "address is required"))
	} else if !common.IsHexAddress(ci.Address) {
		allErrors = append(allErrors, field.Invalid(path.Child("address"), ci.Address, "must be a hex address"))
	}
	if ci.Minter != "" && !common.IsHexAddress(ci.Minter) {
		allErrors = append(allErrors, field.Invalid(path.Child("minter"), ci.Minter, "must be a hex address"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func (ci *ContractInfo) GetAddress() common.Address {
	return common.HexToAddress(ci.Address)
}

// ParsedABI returns the configured ABI, or the embedded default for name when
// the entry carries none.
func (ci *ContractInfo) ParsedABI(name string) (*abi.ABI, error) {
	return contracts.ParseABI(name, ci.ABI)
}

// ContractInfoFile maps contract names to their deployment info
type ContractInfoFile map[string]*ContractInfo

// Get returns the named entry after validating it
func (f ContractInfoFile) Get(name string) (*ContractInfo, error) {
	info, ok := f[name]
	if !ok || info == nil {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, name)
	}
	if err := info.Validate(name); err != nil {
		return nil, fmt.Errorf("invalid contract info for %s: %w", name, err)
	}
	return info, nil
}

// ParseContractInfo decodes contract-info.json content
func ParseContractInfo(data []byte) (ContractInfoFile, error) {
	var f ContractInfoFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse contract info: %w", err)
	}
	if len(f) == 0 {
		return nil, fmt.Errorf("contract info contains no contracts")
	}
	return f, nil
}

// maxContractInfoBytes bounds contract-info.json, which carries two ABIs
const maxContractInfoBytes = 4 << 20

// LoadContractInfo reads contract-info.json from a file path or an http(s) URL.
func LoadContractInfo(ctx context.Context, location string) (ContractInfoFile, error) {
	data, err := util.ReadLocation(ctx, location, maxContractInfoBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read contract info: %w", err)
	}
	return ParseContractInfo(data)
}
