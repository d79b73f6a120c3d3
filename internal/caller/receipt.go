package caller

import (
	"github.com/holiman/uint256"

	"github.com/fystack/contract-bridge/internal/rpc/evm"
)

// Receipt is the outcome of a confirmed write. Block fields are nil for
// receipts the node reports without them.
type Receipt struct {
	TransactionHash  [32]byte     `json:"transaction_hash"`
	TransactionIndex uint64       `json:"transaction_index"`
	BlockHash        *[32]byte    `json:"block_hash,omitempty"`
	BlockNumber      *uint64      `json:"block_number,omitempty"`
	GasUsed          *uint256.Int `json:"gas_used,omitempty"`
	Status           *uint64      `json:"status,omitempty"`
}

func newReceipt(r *evm.TxnReceipt) *Receipt {
	out := &Receipt{
		TransactionHash:  r.TransactionHash,
		TransactionIndex: uint64(r.TransactionIndex),
	}
	if r.BlockHash != nil {
		h := [32]byte(*r.BlockHash)
		out.BlockHash = &h
	}
	if r.BlockNumber != nil {
		n := uint64(*r.BlockNumber)
		out.BlockNumber = &n
	}
	if r.GasUsed != nil {
		out.GasUsed, _ = uint256.FromBig(r.GasUsed.ToInt())
	}
	if r.Status != nil {
		s := uint64(*r.Status)
		out.Status = &s
	}
	return out
}

// Table renders the receipt with hashes as byte buffers and gas as a 32-byte
// big-endian buffer. Absent fields are left out.
func (r *Receipt) Table() map[string]any {
	t := map[string]any{
		"transaction_hash":  append([]byte(nil), r.TransactionHash[:]...),
		"transaction_index": r.TransactionIndex,
	}
	if r.BlockHash != nil {
		t["block_hash"] = append([]byte(nil), r.BlockHash[:]...)
	}
	if r.BlockNumber != nil {
		t["block_number"] = *r.BlockNumber
	}
	if r.GasUsed != nil {
		b := r.GasUsed.Bytes32()
		t["gas_used"] = b[:]
	}
	if r.Status != nil {
		t["status"] = *r.Status
	}
	return t
}

// EventLog is one log delivered to an EventWaiter.
type EventLog struct {
	Address          [20]byte   `json:"address"`
	Data             []byte     `json:"data"`
	Topics           [][32]byte `json:"topics"`
	BlockHash        *[32]byte  `json:"block_hash,omitempty"`
	BlockNumber      *uint64    `json:"block_number,omitempty"`
	TransactionHash  *[32]byte  `json:"transaction_hash,omitempty"`
	TransactionIndex *uint64    `json:"transaction_index,omitempty"`
	Removed          *bool      `json:"removed,omitempty"`
}

func newEventLog(l *evm.Log) *EventLog {
	out := &EventLog{
		Address: l.Address,
		Data:    append([]byte{}, l.Data...),
		Topics:  make([][32]byte, len(l.Topics)),
		Removed: l.Removed,
	}
	for i, t := range l.Topics {
		out.Topics[i] = t
	}
	if l.BlockHash != nil {
		h := [32]byte(*l.BlockHash)
		out.BlockHash = &h
	}
	if l.BlockNumber != nil {
		n := uint64(*l.BlockNumber)
		out.BlockNumber = &n
	}
	if l.TransactionHash != nil {
		h := [32]byte(*l.TransactionHash)
		out.TransactionHash = &h
	}
	if l.TransactionIndex != nil {
		n := uint64(*l.TransactionIndex)
		out.TransactionIndex = &n
	}
	return out
}

func (l *EventLog) Table() map[string]any {
	topics := make([]any, len(l.Topics))
	for i, t := range l.Topics {
		topics[i] = append([]byte(nil), t[:]...)
	}
	t := map[string]any{
		"address": append([]byte(nil), l.Address[:]...),
		"data":    append([]byte{}, l.Data...),
		"topics":  topics,
	}
	if l.BlockHash != nil {
		t["block_hash"] = append([]byte(nil), l.BlockHash[:]...)
	}
	if l.BlockNumber != nil {
		t["block_number"] = *l.BlockNumber
	}
	if l.TransactionHash != nil {
		t["transaction_hash"] = append([]byte(nil), l.TransactionHash[:]...)
	}
	if l.TransactionIndex != nil {
		t["transaction_index"] = *l.TransactionIndex
	}
	if l.Removed != nil {
		t["removed"] = *l.Removed
	}
	return t
}
