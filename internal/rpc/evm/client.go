package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fystack/contract-bridge/internal/rpc"
)

// Client speaks the eth_* namespace over any transport.
type Client struct {
	rpc.Transport
}

func NewClient(t rpc.Transport) *Client {
	return &Client{Transport: t}
}

// BlockTag renders a block selector: "latest" for nil, hex otherwise.
func BlockTag(number *uint64) string {
	if number == nil {
		return "latest"
	}
	return hexutil.EncodeUint64(*number)
}

// call runs method and decodes its result into out. It reports false when the
// node answered null.
func (c *Client) call(ctx context.Context, method string, params any, out any) (bool, error) {
	resp, err := c.CallRPC(ctx, method, params)
	if err != nil {
		return false, fmt.Errorf("%s failed: %w", method, err)
	}
	if resp.IsNull() {
		return false, nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s result: %w", method, err)
	}
	return true, nil
}

func (c *Client) mustCall(ctx context.Context, method string, params any, out any) error {
	found, err := c.call(ctx, method, params, out)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s returned null", method)
	}
	return nil
}

// BlockNumber returns the current head.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := c.mustCall(ctx, "eth_blockNumber", nil, &n); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	var p hexutil.Big
	if err := c.mustCall(ctx, "eth_gasPrice", nil, &p); err != nil {
		return nil, err
	}
	return p.ToInt(), nil
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := c.mustCall(ctx, "eth_chainId", nil, &id); err != nil {
		return nil, err
	}
	return id.ToInt(), nil
}

// PendingNonceAt counts the account's transactions including pending ones.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var n hexutil.Uint64
	if err := c.mustCall(ctx, "eth_getTransactionCount", []any{account, "pending"}, &n); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// CallRequest builds the eth_call request for msg without sending it, so
// several calls can share one batch.
func (c *Client) CallRequest(msg CallMsg, block string) *rpc.RPCRequest {
	return rpc.NewRequest(c, "eth_call", []any{msg, block})
}

// DecodeCallResult extracts the return data of an eth_call response.
func DecodeCallResult(resp *rpc.RPCResponse) ([]byte, error) {
	if resp == nil {
		return nil, rpc.ErrMissingResponse
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.IsNull() {
		return nil, nil
	}
	var out hexutil.Bytes
	if err := json.Unmarshal(resp.Result, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal eth_call result: %w", err)
	}
	return out, nil
}

func (c *Client) Call(ctx context.Context, msg CallMsg, block string) ([]byte, error) {
	resp, err := c.CallRPC(ctx, "eth_call", []any{msg, block})
	if err != nil {
		return nil, fmt.Errorf("eth_call failed: %w", err)
	}
	return DecodeCallResult(resp)
}

func (c *Client) EstimateGas(ctx context.Context, msg CallMsg) (*big.Int, error) {
	var gas hexutil.Big
	if err := c.mustCall(ctx, "eth_estimateGas", []any{msg}, &gas); err != nil {
		return nil, err
	}
	return gas.ToInt(), nil
}

// SendTransaction asks the node to sign with an account it holds.
func (c *Client) SendTransaction(ctx context.Context, msg CallMsg) (common.Hash, error) {
	var h common.Hash
	err := c.mustCall(ctx, "eth_sendTransaction", []any{msg}, &h)
	return h, err
}

func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var h common.Hash
	err := c.mustCall(ctx, "eth_sendRawTransaction", []any{hexutil.Bytes(raw)}, &h)
	return h, err
}

// TransactionReceipt returns nil without error while the transaction is
// still pending.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*TxnReceipt, error) {
	var r TxnReceipt
	found, err := c.call(ctx, "eth_getTransactionReceipt", []any{hash}, &r)
	if err != nil || !found {
		return nil, err
	}
	return &r, nil
}

// BlockByNumber returns nil without error for unknown blocks.
func (c *Client) BlockByNumber(ctx context.Context, block string, full bool) (*Block, error) {
	var b Block
	found, err := c.call(ctx, "eth_getBlockByNumber", []any{block, full}, &b)
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

// TransactionByHash returns nil without error for unknown transactions.
func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (*Txn, error) {
	var tx Txn
	found, err := c.call(ctx, "eth_getTransactionByHash", []any{hash}, &tx)
	if err != nil || !found {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) StorageAt(ctx context.Context, account common.Address, slot common.Hash, block string) ([]byte, error) {
	var out hexutil.Bytes
	if err := c.mustCall(ctx, "eth_getStorageAt", []any{account, slot, block}, &out); err != nil {
		return nil, err
	}
	return common.LeftPadBytes(out, common.HashLength), nil
}

// SubscribeLogs opens a logs subscription. HTTP transports cannot push and
// fail with rpc.ErrUnsupportedTransport.
func (c *Client) SubscribeLogs(ctx context.Context, filter LogFilter) (*rpc.Subscription, error) {
	sub, ok := c.Transport.(rpc.Subscriber)
	if !ok {
		return nil, rpc.ErrUnsupportedTransport
	}
	return sub.Subscribe(ctx, "eth", "logs", filter)
}
