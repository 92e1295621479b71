package merkle

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

func newArguments(leafEncoding []string) (abi.Arguments, error) {
	if len(leafEncoding) == 0 {
		return nil, fmt.Errorf("leaf encoding cannot be empty")
	}
	args := make(abi.Arguments, 0, len(leafEncoding))
	for _, enc := range leafEncoding {
		typ, err := abi.NewType(enc, "", nil)
		if err != nil {
			return nil, fmt.Errorf("unsupported leaf encoding %q: %w", enc, err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args, nil
}

// convertValue turns the string form of a leaf value into the Go value the
// ABI encoder expects for typ.
func convertValue(typ abi.Type, s string) (interface{}, error) {
	switch typ.T {
	case abi.FixedBytesTy:
		if typ.Size != 32 {
			return nil, fmt.Errorf("unsupported fixed bytes size %d", typ.Size)
		}
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("invalid bytes32 %q: %w", s, err)
		}
		if len(b) != 32 {
			return nil, fmt.Errorf("invalid bytes32 %q: got %d bytes", s, len(b))
		}
		var out [32]byte
		copy(out[:], b)
		return out, nil
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid address %q", s)
		}
		return common.HexToAddress(s), nil
	case abi.UintTy, abi.IntTy:
		n, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		if n.Sign() < 0 && (typ.T == abi.UintTy || typ.Size <= 64) {
			return nil, fmt.Errorf("negative value %q not supported for %s", s, typ.String())
		}
		if typ.Size > 64 {
			return n, nil
		}
		return abi.ReadInteger(typ, common.LeftPadBytes(n.Bytes(), 32))
	case abi.BoolTy:
		switch strings.ToLower(s) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("invalid bool %q", s)
	case abi.StringTy:
		return s, nil
	case abi.BytesTy:
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("invalid bytes %q: %w", s, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unsupported leaf type %s", typ.String())
}
