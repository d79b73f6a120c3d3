package caller

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/fystack/contract-bridge/internal/abi"
	"github.com/fystack/contract-bridge/internal/node"
	"github.com/fystack/contract-bridge/internal/rpc/evm"
)

func (c *Caller) CurrentBlock(ctx context.Context, conn *node.Conn) (uint64, error) {
	var n uint64
	err := c.timed(ctx, conn, "current-block", func(ctx context.Context, client *evm.Client) error {
		var err error
		n, err = client.BlockNumber(ctx)
		return err
	})
	return n, err
}

func (c *Caller) GasPrice(ctx context.Context, conn *node.Conn) (*uint256.Int, error) {
	var price *big.Int
	err := c.timed(ctx, conn, "gas-price", func(ctx context.Context, client *evm.Client) error {
		var err error
		price, err = client.GasPrice(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	u, _ := uint256.FromBig(price)
	return u, nil
}

// Block fetches a block by number, latest when number is nil. With full the
// transactions are rendered as tables, otherwise as 32-byte hashes.
func (c *Caller) Block(ctx context.Context, conn *node.Conn, number *uint64, full bool) (map[string]any, error) {
	var b *evm.Block
	err := c.timed(ctx, conn, "block", func(ctx context.Context, client *evm.Client) error {
		var err error
		b, err = client.BlockByNumber(ctx, evm.BlockTag(number), full)
		return err
	})
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("block %s: %w", evm.BlockTag(number), ErrNotFound)
	}

	var txs []any
	if full {
		list, err := b.FullTransactions()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRPCFailure, err)
		}
		for i := range list {
			txs = append(txs, txTable(&list[i]))
		}
	} else {
		hashes, err := b.TxHashes()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRPCFailure, err)
		}
		for _, h := range hashes {
			txs = append(txs, h.Bytes())
		}
	}
	if txs == nil {
		txs = []any{}
	}
	return map[string]any{
		"number":       uint64(b.Number),
		"hash":         b.Hash.Bytes(),
		"parent_hash":  b.ParentHash.Bytes(),
		"timestamp":    uint64(b.Timestamp),
		"transactions": txs,
	}, nil
}

func (c *Caller) Transaction(ctx context.Context, conn *node.Conn, hash []byte) (map[string]any, error) {
	if len(hash) != common.HashLength {
		return nil, fmt.Errorf("%w: transaction hash must be %d bytes, got %d", abi.ErrTypeMismatch, common.HashLength, len(hash))
	}
	var tx *evm.Txn
	err := c.timed(ctx, conn, "transaction", func(ctx context.Context, client *evm.Client) error {
		var err error
		tx, err = client.TransactionByHash(ctx, common.BytesToHash(hash))
		return err
	})
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction %x: %w", hash, ErrNotFound)
	}
	return txTable(tx), nil
}

func txTable(tx *evm.Txn) map[string]any {
	t := map[string]any{
		"hash":  tx.Hash.Bytes(),
		"from":  tx.From.Bytes(),
		"input": append([]byte{}, tx.Input...),
		"gas":   word(tx.Gas.ToInt()),
		"value": word(tx.Value.ToInt()),
		"nonce": word(new(big.Int).SetUint64(uint64(tx.Nonce))),
	}
	if tx.To != nil {
		t["to"] = tx.To.Bytes()
	}
	if tx.GasPrice != nil {
		t["gas_price"] = word(tx.GasPrice.ToInt())
	}
	if tx.BlockHash != nil {
		t["block_hash"] = tx.BlockHash.Bytes()
	}
	if tx.BlockNumber != nil {
		t["block_number"] = uint64(*tx.BlockNumber)
	}
	if tx.TransactionIndex != nil {
		t["transaction_index"] = uint64(*tx.TransactionIndex)
	}
	return t
}

// Storage reads one 32-byte storage slot. Slots shorter than 32 bytes are
// left-padded.
func (c *Caller) Storage(ctx context.Context, conn *node.Conn, address string, slot []byte, block *uint64) ([]byte, error) {
	addr, err := abi.ParseAddress(address)
	if err != nil {
		return nil, err
	}
	if len(slot) > common.HashLength {
		return nil, fmt.Errorf("%w: storage slot exceeds 32 bytes", abi.ErrTypeMismatch)
	}
	var out []byte
	err = c.timed(ctx, conn, "storage", func(ctx context.Context, client *evm.Client) error {
		var err error
		out, err = client.StorageAt(ctx, common.Address(addr), common.BytesToHash(slot), evm.BlockTag(block))
		return err
	})
	return out, err
}

// SendRaw submits an already signed transaction and returns its hash.
func (c *Caller) SendRaw(ctx context.Context, conn *node.Conn, raw []byte) ([]byte, error) {
	var hash common.Hash
	err := c.timed(ctx, conn, "send-raw", func(ctx context.Context, client *evm.Client) error {
		var err error
		hash, err = client.SendRawTransaction(ctx, raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return hash.Bytes(), nil
}
