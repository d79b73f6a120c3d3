package caller

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/contract-bridge/internal/abi"
	"github.com/fystack/contract-bridge/internal/rpc"
)


func TestQueries(t *testing.T) {
	srv := httpNode(t, func(method string, params []json.RawMessage) (any, *rpc.RPCError) {
		switch method {
		case "eth_blockNumber":
			return "0x10", nil
		case "eth_gasPrice":
			return "0x3b9aca00", nil
		case "eth_getBlockByNumber":
			if string(params[0]) == `"0x63"` {
				return nil, nil
			}
			return json.RawMessage(`{"number":"0x10",
			  "hash":"0x3333333333333333333333333333333333333333333333333333333333333333",
			  "parentHash":"0x4444444444444444444444444444444444444444444444444444444444444444",
			  "timestamp":"0x5",
			  "transactions":["0x1111111111111111111111111111111111111111111111111111111111111111"]}`), nil
		case "eth_getTransactionByHash":
			return json.RawMessage(`{
			  "hash":"0x1111111111111111111111111111111111111111111111111111111111111111",
			  "from":"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed","to":null,
			  "input":"0x","gas":"0x5208","gasPrice":"0x1","value":"0x2","nonce":"0x3"}`), nil
		case "eth_getStorageAt":
			return "0x2a", nil
		case "eth_sendRawTransaction":
			return txHash, nil
		}
		return nil, &rpc.RPCError{Code: -32601, Message: "method not found"}
	})
	conn := connTo(t, srv.URL)
	c := New()
	ctx := context.Background()

	n, err := c.CurrentBlock(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), n)

	price, err := c.GasPrice(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), price.Uint64())

	block, err := c.Block(ctx, conn, nil, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), block["number"])
	txs := block["transactions"].([]any)
	require.Len(t, txs, 1)
	assert.Len(t, txs[0], 32)

	missing := uint64(99)
	_, err = c.Block(ctx, conn, &missing, false)
	assert.ErrorIs(t, err, ErrNotFound)

	tx, err := c.Transaction(ctx, conn, hexutil.MustDecode(txHash))
	require.NoError(t, err)
	assert.NotContains(t, tx, "to")
	assert.Equal(t, wordOf(2), tx["value"])
	assert.Equal(t, wordOf(3), tx["nonce"])

	_, err = c.Transaction(ctx, conn, []byte{1, 2})
	assert.ErrorIs(t, err, abi.ErrTypeMismatch)

	slot, err := c.Storage(ctx, conn, tokenAddr, []byte{0}, nil)
	require.NoError(t, err)
	assert.Equal(t, wordOf(0x2a), slot)

	_, err = c.Storage(ctx, conn, "0xbad", nil, nil)
	assert.ErrorIs(t, err, abi.ErrInvalidAddress)

	hash, err := c.SendRaw(ctx, conn, []byte{0xf8})
	require.NoError(t, err)
	assert.Equal(t, hexutil.MustDecode(txHash), hash)
}
