package evm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/contract-bridge/internal/rpc"
)

// fakeNode answers each method with a canned raw JSON result.
func fakeNode(t *testing.T, results map[string]string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, ok := results[req.Method]
		if !ok {
			json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0", "id": req.ID,
				"error": map[string]any{"code": -32601, "message": "method not found"},
			})
			return
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":` + jsonNumber(req.ID) + `,"result":` + result + `}`))
	}))
	t.Cleanup(srv.Close)
	return NewClient(rpc.NewHTTPClient(srv.URL, nil, 5*time.Second, nil))
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestClient_Scalars(t *testing.T) {
	c := fakeNode(t, map[string]string{
		"eth_blockNumber":         `"0x1b4"`,
		"eth_gasPrice":            `"0x3b9aca00"`,
		"eth_chainId":             `"0x1"`,
		"eth_getTransactionCount": `"0x7"`,
		"eth_estimateGas":         `"0x5208"`,
	})
	ctx := context.Background()

	n, err := c.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(436), n)

	price, err := c.GasPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000), price.Int64())

	id, err := c.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id.Int64())

	nonce, err := c.PendingNonceAt(ctx, common.Address{})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), nonce)

	gas, err := c.EstimateGas(ctx, CallMsg{})
	require.NoError(t, err)
	assert.Equal(t, int64(21000), gas.Int64())
}

func TestClient_CallAndMissingMethod(t *testing.T) {
	c := fakeNode(t, map[string]string{"eth_call": `"0x00000000000000000000000000000000000000000000000000000000000003e8"`})

	out, err := c.Call(context.Background(), CallMsg{Data: []byte{0xa9, 0x05, 0x9c, 0xbb}}, BlockTag(nil))
	require.NoError(t, err)
	require.Len(t, out, 32)
	assert.Equal(t, byte(0xe8), out[31])

	_, err = c.TransactionByHash(context.Background(), common.Hash{})
	var rpcErr *rpc.RPCError
	assert.ErrorAs(t, err, &rpcErr)
}

func TestClient_NullResults(t *testing.T) {
	c := fakeNode(t, map[string]string{
		"eth_getTransactionReceipt": `null`,
		"eth_getBlockByNumber":      `null`,
		"eth_getTransactionByHash":  `null`,
	})
	ctx := context.Background()

	r, err := c.TransactionReceipt(ctx, common.Hash{})
	require.NoError(t, err)
	assert.Nil(t, r)

	b, err := c.BlockByNumber(ctx, "latest", false)
	require.NoError(t, err)
	assert.Nil(t, b)

	tx, err := c.TransactionByHash(ctx, common.Hash{})
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestClient_Receipt(t *testing.T) {
	c := fakeNode(t, map[string]string{
		"eth_getTransactionReceipt": `{
			"transactionHash":"0x1111111111111111111111111111111111111111111111111111111111111111",
			"transactionIndex":"0x2",
			"blockHash":"0x2222222222222222222222222222222222222222222222222222222222222222",
			"blockNumber":"0x10",
			"gasUsed":"0x5208",
			"effectiveGasPrice":"0x3b9aca00",
			"status":"0x1",
			"logs":[]}`,
	})

	r, err := c.TransactionReceipt(context.Background(), common.Hash{})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.True(t, r.Mined())
	assert.Equal(t, uint64(2), uint64(r.TransactionIndex))
	assert.Equal(t, uint64(16), uint64(*r.BlockNumber))
	assert.Equal(t, uint64(1), uint64(*r.Status))
	assert.Equal(t, "0.000021", r.Fee().String())
}

func TestClient_BlockTransactions(t *testing.T) {
	c := fakeNode(t, map[string]string{
		"eth_getBlockByNumber": `{
			"number":"0x10","hash":"0x3333333333333333333333333333333333333333333333333333333333333333",
			"parentHash":"0x4444444444444444444444444444444444444444444444444444444444444444",
			"timestamp":"0x5",
			"transactions":[{
				"hash":"0x1111111111111111111111111111111111111111111111111111111111111111",
				"from":"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
				"to":null,"input":"0x","gas":"0x5208","gasPrice":"0x1",
				"value":"0xde0b6b3a7640000","nonce":"0x0"}]}`,
	})

	b, err := c.BlockByNumber(context.Background(), BlockTag(ptr(uint64(16))), true)
	require.NoError(t, err)
	txs, err := b.FullTransactions()
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Nil(t, txs[0].To)
	assert.Equal(t, "1000000000000000000", txs[0].Value.ToInt().String())

	_, err = b.TxHashes()
	assert.Error(t, err, "full objects are not hashes")
}

func TestClient_StorageAtPads(t *testing.T) {
	c := fakeNode(t, map[string]string{"eth_getStorageAt": `"0x01"`})
	out, err := c.StorageAt(context.Background(), common.Address{}, common.Hash{}, "latest")
	require.NoError(t, err)
	require.Len(t, out, 32)
	assert.Equal(t, byte(1), out[31])
}

func TestClient_SubscribeLogsNeedsStreaming(t *testing.T) {
	c := fakeNode(t, nil)
	_, err := c.SubscribeLogs(context.Background(), LogFilter{})
	assert.ErrorIs(t, err, rpc.ErrUnsupportedTransport)
}

func TestBlockTag(t *testing.T) {
	assert.Equal(t, "latest", BlockTag(nil))
	assert.Equal(t, "0x10", BlockTag(ptr(uint64(16))))
}

func ptr[T any](v T) *T { return &v }
