package testutil

import (
	"crypto/ecdsa"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/config"
	"github.com/twinbase/twinbase-dlt/pkg/contracts"
)

// Well known development keys (anvil / hardhat accounts 0 and 1)
const (
	MinterPrivateKey   = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	OutsiderPrivateKey = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	FakeNodeUrl        = "http://127.0.0.1:7545"
)

var (
	TwinRegistryAddress     = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	RootHashRegistryAddress = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
)

func MustKey(t testing.TB, hexKey string) *ecdsa.PrivateKey {
	key, err := crypto.HexToECDSA(hexKey[2:])
	require.NoError(t, err)
	return key
}

func AddressOf(t testing.TB, hexKey string) common.Address {
	return crypto.PubkeyToAddress(MustKey(t, hexKey).PublicKey)
}

// Registries is a fake chain with both registries deployed and the minter
// key authorized on each
type Registries struct {
	Chain            *FakeChain
	TwinRegistry     *TwinRegistrySim
	RootHashRegistry *RootHashRegistrySim
	Minter           common.Address
	ContractInfo     config.ContractInfoFile
}

func NewRegistries(t testing.TB, logger *zap.Logger) *Registries {
	minter := AddressOf(t, MinterPrivateKey)

	twinABI, err := contracts.ParseABI(contracts.TwinRegistry, nil)
	require.NoError(t, err)
	rootABI, err := contracts.ParseABI(contracts.RootHashRegistry, nil)
	require.NoError(t, err)

	fc := NewFakeChain(logger)
	twinSim := NewTwinRegistrySim(minter)
	rootSim := NewRootHashRegistrySim(minter)
	fc.Deploy(TwinRegistryAddress, twinABI, twinSim)
	fc.Deploy(RootHashRegistryAddress, rootABI, rootSim)

	return &Registries{
		Chain:            fc,
		TwinRegistry:     twinSim,
		RootHashRegistry: rootSim,
		Minter:           minter,
		ContractInfo: config.ContractInfoFile{
			contracts.TwinRegistry: {
				Node:    FakeNodeUrl,
				Address: TwinRegistryAddress.Hex(),
				Minter:  minter.Hex(),
				Name:    contracts.TwinRegistry,
			},
			contracts.RootHashRegistry: {
				Node:    FakeNodeUrl,
				Address: RootHashRegistryAddress.Hex(),
				Name:    contracts.RootHashRegistry,
			},
		},
	}
}

// WriteContractInfo writes the contract info to dir and returns its path
func (r *Registries) WriteContractInfo(t testing.TB, dir string) string {
	data, err := json.MarshalIndent(r.ContractInfo, "", "    ")
	require.NoError(t, err)
	path := filepath.Join(dir, "contract-info.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
