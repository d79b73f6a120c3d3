package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/fystack/contract-bridge/internal/caller"
)

// parseArgs reads a JSON array into dynamic values. Hex strings with an even
// number of digits become byte buffers, integers that fit become int64 and
// larger ones big-endian byte buffers. Other strings pass through, and the
// codec reads a textual uint256 as hex.
func parseArgs(s string) ([]any, error) {
	if strings.TrimSpace(s) == "" {
		return []any{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON array: %w", err)
	}
	seq, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("arguments must be a JSON array, got %T", raw)
	}
	return lo.Map(seq, func(v any, _ int) any { return toHost(v) }), nil
}

func toHost(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if n, ok := new(big.Int).SetString(x.String(), 10); ok && n.Sign() > 0 {
			return n.Bytes()
		}
		return x.String()
	case string:
		if strings.HasPrefix(x, "0x") {
			if b, err := hexutil.Decode(x); err == nil {
				return b
			}
		}
		return x
	case []any:
		return lo.Map(x, func(e any, _ int) any { return toHost(e) })
	default:
		return v
	}
}

// render turns byte buffers into hex strings for JSON output.
func render(v any) any {
	switch x := v.(type) {
	case []byte:
		return hexutil.Encode(x)
	case []any:
		return lo.Map(x, func(e any, _ int) any { return render(e) })
	case map[string]any:
		return lo.MapValues(x, func(e any, _ string) any { return render(e) })
	case map[string][]byte:
		return lo.MapValues(x, func(e []byte, _ string) any { return hexutil.Encode(e) })
	default:
		return v
	}
}

func printJSON(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(render(v)); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// parseUint accepts decimal or 0x-prefixed hex.
func parseUint(s string) (*uint256.Int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := strings.TrimLeft(s[2:], "0")
		if digits == "" && len(s) > 2 {
			digits = "0"
		}
		return uint256.FromHex("0x" + digits)
	}
	return uint256.FromDecimal(s)
}

// ethToWei converts a decimal ether amount such as "0.25" to wei.
func ethToWei(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid ether amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid ether amount %q: negative", s)
	}
	wei := d.Shift(18)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("invalid ether amount %q: more than 18 decimals", s)
	}
	u, overflow := uint256.FromBig(wei.BigInt())
	if overflow {
		return nil, fmt.Errorf("invalid ether amount %q: overflow", s)
	}
	return u, nil
}

// weiAmounts renders a wei quantity in wei, gwei and ether.
func weiAmounts(wei *big.Int) map[string]string {
	d := decimal.NewFromBigInt(wei, 0)
	return map[string]string{
		"wei":   d.String(),
		"gwei":  d.Shift(-9).String(),
		"ether": d.Shift(-18).String(),
	}
}

// TxOptions are the gas and value overrides shared by the call commands.
type TxOptions struct {
	Gas      string `help:"Gas limit." name:"gas"`
	GasPrice string `help:"Gas price in wei." name:"gas-price"`
	Value    string `help:"Value in wei." name:"value" xor:"value"`
	ValueEth string `help:"Value in ether, e.g. 0.5." name:"value-eth" xor:"value"`
	Nonce    string `help:"Transaction nonce." name:"nonce"`
}

// CallOptions converts the flags to the option table and parses it.
func (o TxOptions) CallOptions() (caller.CallOptions, error) {
	table := map[string][]byte{}
	put := func(key, raw string, parse func(string) (*uint256.Int, error)) error {
		if raw == "" {
			return nil
		}
		u, err := parse(raw)
		if err != nil {
			return fmt.Errorf("--%s: %w", key, err)
		}
		b := u.Bytes32()
		table[key] = b[:]
		return nil
	}
	for _, f := range []struct {
		key, raw string
		parse    func(string) (*uint256.Int, error)
	}{
		{caller.OptGas, o.Gas, parseUint},
		{caller.OptGasPrice, o.GasPrice, parseUint},
		{caller.OptValue, o.Value, parseUint},
		{caller.OptValue, o.ValueEth, ethToWei},
		{caller.OptNonce, o.Nonce, parseUint},
	} {
		if err := put(f.key, f.raw, f.parse); err != nil {
			return caller.CallOptions{}, err
		}
	}
	return caller.ParseCallOptions(table)
}
