package caller

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/fystack/contract-bridge/internal/abi"
	"github.com/fystack/contract-bridge/internal/rpc/evm"
	"github.com/fystack/contract-bridge/pkg/common/logger"
)

// Option table keys.
const (
	OptGas      = "gas"
	OptGasPrice = "gas-price"
	OptValue    = "value"
	OptNonce    = "nonce"
)

// CallOptions overrides node defaults for one call. Nil fields are left to
// the node.
type CallOptions struct {
	Gas      *uint256.Int
	GasPrice *uint256.Int
	Value    *uint256.Int
	Nonce    *uint256.Int
}

// ParseCallOptions reads a key/value table whose values are big-endian
// buffers. Unknown keys are logged and ignored.
func ParseCallOptions(table map[string][]byte) (CallOptions, error) {
	var o CallOptions
	for k, v := range table {
		var dst **uint256.Int
		switch k {
		case OptGas:
			dst = &o.Gas
		case OptGasPrice:
			dst = &o.GasPrice
		case OptValue:
			dst = &o.Value
		case OptNonce:
			dst = &o.Nonce
		default:
			logger.Warn("Ignoring unknown call option", "key", k)
			continue
		}
		u, err := abi.UintFromBuffer(v)
		if err != nil {
			return CallOptions{}, fmt.Errorf("option %s: %w", k, err)
		}
		*dst = u
	}
	return o, nil
}

// Table renders the set fields as 32-byte big-endian buffers.
func (o CallOptions) Table() map[string][]byte {
	out := map[string][]byte{}
	for k, v := range map[string]*uint256.Int{
		OptGas: o.Gas, OptGasPrice: o.GasPrice, OptValue: o.Value, OptNonce: o.Nonce,
	} {
		if v != nil {
			b := v.Bytes32()
			out[k] = b[:]
		}
	}
	return out
}

func (o CallOptions) apply(msg *evm.CallMsg) {
	msg.Gas = hexBig(o.Gas)
	msg.GasPrice = hexBig(o.GasPrice)
	msg.Value = hexBig(o.Value)
	msg.Nonce = hexBig(o.Nonce)
}

func hexBig(u *uint256.Int) *hexutil.Big {
	if u == nil {
		return nil
	}
	return (*hexutil.Big)(u.ToBig())
}

// word renders a node quantity as a 32-byte big-endian buffer.
func word(b *big.Int) []byte {
	var out [32]byte
	if b != nil {
		u, _ := uint256.FromBig(b)
		out = u.Bytes32()
	}
	return out[:]
}
