package evm

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

const WEI_PER_ETH = 1e18

type (
	// CallMsg is the parameter object of eth_call, eth_estimateGas and
	// eth_sendTransaction. Nil fields are omitted so the node fills them.
	CallMsg struct {
		From     *common.Address `json:"from,omitempty"`
		To       *common.Address `json:"to,omitempty"`
		Gas      *hexutil.Big    `json:"gas,omitempty"`
		GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
		Value    *hexutil.Big    `json:"value,omitempty"`
		Nonce    *hexutil.Big    `json:"nonce,omitempty"`
		Data     hexutil.Bytes   `json:"data,omitempty"`
	}

	Block struct {
		Number       hexutil.Uint64    `json:"number"`
		Hash         common.Hash       `json:"hash"`
		ParentHash   common.Hash       `json:"parentHash"`
		Timestamp    hexutil.Uint64    `json:"timestamp"`
		Transactions []json.RawMessage `json:"transactions"`
	}

	Txn struct {
		Hash             common.Hash     `json:"hash"`
		From             common.Address  `json:"from"`
		To               *common.Address `json:"to"`
		Input            hexutil.Bytes   `json:"input"`
		Gas              hexutil.Big     `json:"gas"`
		GasPrice         *hexutil.Big    `json:"gasPrice"`
		Value            hexutil.Big     `json:"value"`
		Nonce            hexutil.Uint64  `json:"nonce"`
		BlockHash        *common.Hash    `json:"blockHash"`
		BlockNumber      *hexutil.Uint64 `json:"blockNumber"`
		TransactionIndex *hexutil.Uint64 `json:"transactionIndex"`
	}

	TxnReceipt struct {
		TransactionHash   common.Hash     `json:"transactionHash"`
		TransactionIndex  hexutil.Uint64  `json:"transactionIndex"`
		BlockHash         *common.Hash    `json:"blockHash"`
		BlockNumber       *hexutil.Uint64 `json:"blockNumber"`
		GasUsed           *hexutil.Big    `json:"gasUsed"`
		EffectiveGasPrice *hexutil.Big    `json:"effectiveGasPrice"`
		Status            *hexutil.Uint64 `json:"status"`
		Logs              []Log           `json:"logs"`
	}

	Log struct {
		Address          common.Address  `json:"address"`
		Topics           []common.Hash   `json:"topics"`
		Data             hexutil.Bytes   `json:"data"`
		BlockHash        *common.Hash    `json:"blockHash"`
		BlockNumber      *hexutil.Uint64 `json:"blockNumber"`
		TransactionHash  *common.Hash    `json:"transactionHash"`
		TransactionIndex *hexutil.Uint64 `json:"transactionIndex"`
		LogIndex         *hexutil.Uint64 `json:"logIndex"`
		Removed          *bool           `json:"removed"`
	}

	// LogFilter is the criteria object of a logs subscription.
	LogFilter struct {
		Address []common.Address `json:"address,omitempty"`
		Topics  [][]common.Hash  `json:"topics,omitempty"`
	}
)

// TxHashes returns the transaction list of a block fetched without full
// transaction objects.
func (b *Block) TxHashes() ([]common.Hash, error) {
	out := make([]common.Hash, len(b.Transactions))
	for i, raw := range b.Transactions {
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			return nil, fmt.Errorf("transaction %d is not a hash: %w", i, err)
		}
	}
	return out, nil
}

// FullTransactions decodes a block fetched with full transaction objects.
func (b *Block) FullTransactions() ([]Txn, error) {
	out := make([]Txn, len(b.Transactions))
	for i, raw := range b.Transactions {
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	return out, nil
}

// Mined reports whether the receipt belongs to a block.
func (r *TxnReceipt) Mined() bool {
	return r != nil && r.BlockNumber != nil
}

// Fee is gasUsed * effectiveGasPrice in ETH, or zero when the node omitted
// either field.
func (r *TxnReceipt) Fee() decimal.Decimal {
	if r == nil || r.GasUsed == nil || r.EffectiveGasPrice == nil {
		return decimal.Zero
	}
	wei := new(big.Int).Mul(r.GasUsed.ToInt(), r.EffectiveGasPrice.ToInt())
	return decimal.NewFromBigInt(wei, 0).Div(decimal.NewFromInt(WEI_PER_ETH))
}
