package deploy

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ConvertArgs converts string arguments to the Go values the ABI packer
// expects for inputs.
func ConvertArgs(inputs abi.Arguments, args []string) ([]any, error) {
	if len(inputs) != len(args) {
		return nil, fmt.Errorf("constructor takes %d arguments, got %d", len(inputs), len(args))
	}

	out := make([]any, len(args))
	for i, in := range inputs {
		v, err := convertArg(in.Type, args[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s %s): %w", i, in.Type.String(), in.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

func convertArg(t abi.Type, s string) (any, error) {
	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("%q is not a hex address", s)
		}
		return common.HexToAddress(s), nil
	case abi.UintTy, abi.IntTy:
		n, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("%q is not an integer", s)
		}
		return sizedInt(t, n)
	case abi.BoolTy:
		return strconv.ParseBool(s)
	case abi.StringTy:
		return s, nil
	case abi.BytesTy:
		return common.FromHex(s), nil
	case abi.FixedBytesTy:
		b := common.FromHex(s)
		if len(b) != t.Size {
			return nil, fmt.Errorf("want %d bytes, got %d", t.Size, len(b))
		}
		v := reflect.New(t.GetType()).Elem()
		reflect.Copy(v, reflect.ValueOf(b))
		return v.Interface(), nil
	default:
		return nil, fmt.Errorf("unsupported argument type %s", t.String())
	}
}

// sizedInt returns n as the Go type the packer uses for t. Sizes other
// than 8, 16, 32 and 64 bits are packed from *big.Int.
func sizedInt(t abi.Type, n *big.Int) (any, error) {
	if t.T == abi.UintTy && n.Sign() < 0 {
		return nil, fmt.Errorf("%s is negative for uint%d", n, t.Size)
	}
	bits := n.BitLen()
	if t.T == abi.IntTy {
		if n.Sign() < 0 {
			// two's complement: -2^(k-1) fits in k bits
			bits = new(big.Int).Sub(new(big.Int).Neg(n), big.NewInt(1)).BitLen()
		}
		bits++
	}
	if bits > t.Size {
		return nil, fmt.Errorf("%s overflows %s", n, t.String())
	}

	switch t.Size {
	case 8, 16, 32, 64:
	default:
		return n, nil
	}

	if t.T == abi.UintTy {
		u := n.Uint64()
		switch t.Size {
		case 8:
			return uint8(u), nil
		case 16:
			return uint16(u), nil
		case 32:
			return uint32(u), nil
		default:
			return u, nil
		}
	}

	i := n.Int64()
	switch t.Size {
	case 8:
		return int8(i), nil
	case 16:
		return int16(i), nil
	case 32:
		return int32(i), nil
	default:
		return i, nil
	}
}
