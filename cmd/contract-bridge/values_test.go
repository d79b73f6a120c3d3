package main

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	args, err := parseArgs(`["0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", 7, "0x1", true, [1, "115792089237316195423570985008687907853269984665640564039457584007913129639935"]]`)
	require.NoError(t, err)
	require.Len(t, args, 5)
	assert.Len(t, args[0], 20)
	assert.Equal(t, int64(7), args[1])
	assert.Equal(t, "0x1", args[2], "odd-length hex stays a string")
	assert.Equal(t, true, args[3])
	assert.Equal(t, []any{int64(1), bytes.Repeat([]byte{0xff}, 32)}, args[4], "numbers past int64 become big-endian buffers")

	empty, err := parseArgs("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = parseArgs(`{"a":1}`)
	assert.Error(t, err)
}

func TestParseArgs_LargeNumberEncodesAsUint(t *testing.T) {
	args, err := parseArgs(`[18446744073709551616]`)
	require.NoError(t, err)
	require.Len(t, args, 1)
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0, 0}, args[0])
}

func TestPrintJSONRendersBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]any{"hash": []byte{0xab}, "list": []any{[]byte{1}}}))
	assert.JSONEq(t, `{"hash":"0xab","list":["0x01"]}`, buf.String())
}

func TestTxOptions(t *testing.T) {
	opts, err := TxOptions{Gas: "21000", GasPrice: "0x3b9aca00", ValueEth: "0.5"}.CallOptions()
	require.NoError(t, err)
	assert.Equal(t, uint64(21000), opts.Gas.Uint64())
	assert.Equal(t, uint64(1_000_000_000), opts.GasPrice.Uint64())
	assert.Equal(t, "500000000000000000", opts.Value.Dec())
	assert.Nil(t, opts.Nonce)

	_, err = TxOptions{ValueEth: "0.0000000000000000001"}.CallOptions()
	assert.Error(t, err)
	_, err = TxOptions{Gas: "lots"}.CallOptions()
	assert.Error(t, err)
}

func TestWeiAmounts(t *testing.T) {
	out := weiAmounts(big.NewInt(1_500_000_000))
	assert.Equal(t, "1500000000", out["wei"])
	assert.Equal(t, "1.5", out["gwei"])
	assert.Equal(t, "0.0000000015", out["ether"])
}
