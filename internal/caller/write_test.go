package caller

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/contract-bridge/internal/abi"
	"github.com/fystack/contract-bridge/internal/rpc"
)

const txHash = "0x1111111111111111111111111111111111111111111111111111111111111111"

const minedReceipt = `{
  "transactionHash":"0x1111111111111111111111111111111111111111111111111111111111111111",
  "transactionIndex":"0x2",
  "blockHash":"0x2222222222222222222222222222222222222222222222222222222222222222",
  "blockNumber":"0x10",
  "gasUsed":"0x5208",
  "status":"0x1",
  "logs":[]}`

type memorySink struct {
	mu       sync.Mutex
	receipts []*Receipt
}

func (s *memorySink) SaveReceipt(_ context.Context, r *Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, r)
	return nil
}

func TestWrite_ExternalAccountWaitsForConfirmations(t *testing.T) {
	var (
		receiptPolls atomic.Int32
		head         atomic.Uint64
	)
	head.Store(0x10)
	sent := make(chan callObject, 1)

	srv := httpNode(t, func(method string, params []json.RawMessage) (any, *rpc.RPCError) {
		switch method {
		case "eth_sendTransaction":
			sent <- decodeCall(params)
			return txHash, nil
		case "eth_getTransactionReceipt":
			if receiptPolls.Add(1) == 1 {
				return nil, nil
			}
			return json.RawMessage(minedReceipt), nil
		case "eth_blockNumber":
			return hexutil.EncodeUint64(head.Add(1) - 1), nil
		}
		return nil, &rpc.RPCError{Code: -32601, Message: "method not found"}
	})
	token := newToken(t, connTo(t, srv.URL))
	sink := &memorySink{}
	c := New(WithPollInterval(5*time.Millisecond), WithReceiptSink(sink))

	confirmations := uint64(2)
	receipt, err := c.Write(context.Background(), token, WriteRequest{
		Method:        "transfer",
		Args:          []any{holderB, "1000"},
		Auth:          ExternalAccount(holderA),
		Confirmations: &confirmations,
	})
	require.NoError(t, err)

	call := <-sent
	require.NotNil(t, call.From)
	assert.Equal(t, common.HexToAddress(holderA), *call.From)
	assert.Equal(t, "0xa9059cbb", hexutil.Encode(call.Data[:4]))

	assert.Equal(t, common.HexToHash(txHash), common.Hash(receipt.TransactionHash))
	assert.Equal(t, uint64(2), receipt.TransactionIndex)
	require.NotNil(t, receipt.BlockNumber)
	assert.Equal(t, uint64(16), *receipt.BlockNumber)
	assert.Equal(t, uint64(21000), receipt.GasUsed.Uint64())
	assert.GreaterOrEqual(t, head.Load()-1, uint64(18))

	require.Len(t, sink.receipts, 1)
	assert.Same(t, receipt, sink.receipts[0])
}

func TestWrite_SigningKeySignsLocally(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)
	chainID := big.NewInt(1337)

	submitted := make(chan *types.Transaction, 1)
	srv := httpNode(t, func(method string, params []json.RawMessage) (any, *rpc.RPCError) {
		switch method {
		case "eth_getTransactionCount":
			return "0x3", nil
		case "eth_gasPrice":
			return "0x3b9aca00", nil
		case "eth_estimateGas":
			return "0x5208", nil
		case "eth_chainId":
			return hexutil.EncodeBig(chainID), nil
		case "eth_sendRawTransaction":
			var raw hexutil.Bytes
			_ = json.Unmarshal(params[0], &raw)
			tx := new(types.Transaction)
			if err := tx.UnmarshalBinary(raw); err != nil {
				return nil, &rpc.RPCError{Code: -32602, Message: err.Error()}
			}
			submitted <- tx
			return tx.Hash().Hex(), nil
		case "eth_getTransactionReceipt":
			return json.RawMessage(minedReceipt), nil
		case "eth_blockNumber":
			return "0x10", nil
		}
		return nil, &rpc.RPCError{Code: -32601, Message: "method not found"}
	})
	token := newToken(t, connTo(t, srv.URL))

	keyBytes := crypto.FromECDSA(key)
	noWait := uint64(0)
	_, err = New(WithPollInterval(5*time.Millisecond)).Write(context.Background(), token, WriteRequest{
		Method:        "transfer",
		Args:          []any{holderB, 7},
		Auth:          SigningKey(keyBytes),
		Confirmations: &noWait,
	})
	require.NoError(t, err)
	assert.Equal(t, make([]byte, len(keyBytes)), keyBytes, "key material is zeroed")

	tx := <-submitted
	sender, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	require.NoError(t, err)
	assert.Equal(t, from, sender)
	assert.Equal(t, uint64(3), tx.Nonce())
	assert.Equal(t, uint64(21000), tx.Gas())
	assert.Equal(t, common.HexToAddress(tokenAddr), *tx.To())
	assert.Equal(t, "0xa9059cbb", hexutil.Encode(tx.Data()[:4]))
}

func TestWrite_SigningKeyScrubbedOnEncodingError(t *testing.T) {
	token := newToken(t, connTo(t, httpNode(t, balances(nil)).URL))
	key := SigningKey{1, 2, 3, 4}

	_, err := New().Write(context.Background(), token, WriteRequest{
		Method: "transfer", Args: []any{"nope", 1}, Auth: key,
	})
	assert.Error(t, err)
	assert.Equal(t, SigningKey{0, 0, 0, 0}, key)
}

func TestWrite_RejectsOverrideBeyond64Bits(t *testing.T) {
	var calls atomic.Int32
	token := newToken(t, connTo(t, httpNode(t, balances(&calls)).URL))
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 64)

	for name, opts := range map[string]CallOptions{
		"nonce": {Nonce: huge},
		"gas":   {Gas: huge},
	} {
		t.Run(name, func(t *testing.T) {
			key, err := crypto.GenerateKey()
			require.NoError(t, err)
			raw := SigningKey(crypto.FromECDSA(key))

			_, err = New().Write(context.Background(), token, WriteRequest{
				Method: "transfer", Args: []any{holderB, 1}, Auth: raw, Options: opts,
			})
			assert.ErrorIs(t, err, abi.ErrUnsupportedConversion)
			assert.Equal(t, make(SigningKey, len(raw)), raw)
		})
	}
	assert.Zero(t, calls.Load())
}

func TestWrite_CancelledWhilePending(t *testing.T) {
	srv := httpNode(t, func(method string, params []json.RawMessage) (any, *rpc.RPCError) {
		if method == "eth_sendTransaction" {
			return txHash, nil
		}
		return nil, nil
	})
	token := newToken(t, connTo(t, srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(WithPollInterval(5*time.Millisecond)).Write(ctx, token, WriteRequest{
		Method: "transfer", Args: []any{holderB, 1}, Auth: ExternalAccount(holderA),
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWrite_RequiresAuth(t *testing.T) {
	token := newToken(t, connTo(t, httpNode(t, balances(nil)).URL))
	_, err := New().Write(context.Background(), token, WriteRequest{Method: "transfer", Args: []any{holderB, 1}})
	assert.ErrorIs(t, err, ErrUnsupportedAuth)
}

func TestReceipt_Table(t *testing.T) {
	n := uint64(16)
	r := &Receipt{TransactionIndex: 2, BlockNumber: &n}
	r.TransactionHash[31] = 1

	table := r.Table()
	assert.Equal(t, wordOf(1), table["transaction_hash"])
	assert.Equal(t, uint64(2), table["transaction_index"])
	assert.Equal(t, uint64(16), table["block_number"])
	assert.NotContains(t, table, "block_hash")
	assert.NotContains(t, table, "gas_used")
	assert.NotContains(t, table, "status")
}
