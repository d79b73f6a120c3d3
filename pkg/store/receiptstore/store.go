package receiptstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fystack/contract-bridge/internal/caller"
	"github.com/fystack/contract-bridge/pkg/kvstore"
)

const (
	receiptsPrefix = "receipts"
	hashIndex      = "receipt_hashes"
)

var ErrNotFound = errors.New("receipt not found")

// Record is the stored form of a confirmed write.
type Record struct {
	Hash        string    `json:"hash"`
	Index       uint64    `json:"index"`
	BlockHash   string    `json:"block_hash,omitempty"`
	BlockNumber *uint64   `json:"block_number,omitempty"`
	GasUsed     string    `json:"gas_used,omitempty"`
	Status      *uint64   `json:"status,omitempty"`
	SavedAt     time.Time `json:"saved_at"`
}

func receiptKey(block uint64, hash string) string {
	return fmt.Sprintf("%s/%020d/%s", receiptsPrefix, block, hash)
}

func hashKey(hash string) string {
	return fmt.Sprintf("%s/%s", hashIndex, strings.ToLower(hash))
}

type Store interface {
	caller.ReceiptSink
	Get(hash string) (*Record, error)
	// Latest returns up to limit records, newest block first.
	Latest(limit int) ([]*Record, error)
	Close() error
}

type receiptStore struct {
	store kvstore.KVStore
	now   func() time.Time
}

func New(store kvstore.KVStore) Store {
	return &receiptStore{store: store, now: time.Now}
}

func (s *receiptStore) SaveReceipt(_ context.Context, r *caller.Receipt) error {
	if r == nil {
		return errors.New("receipt is required")
	}
	rec := &Record{
		Hash:        hexutil.Encode(r.TransactionHash[:]),
		Index:       r.TransactionIndex,
		BlockNumber: r.BlockNumber,
		Status:      r.Status,
		SavedAt:     s.now().UTC(),
	}
	if r.BlockHash != nil {
		rec.BlockHash = hexutil.Encode(r.BlockHash[:])
	}
	if r.GasUsed != nil {
		rec.GasUsed = r.GasUsed.Dec()
	}

	var block uint64
	if r.BlockNumber != nil {
		block = *r.BlockNumber
	}
	key := receiptKey(block, rec.Hash)
	if err := s.store.SetAny(key, rec); err != nil {
		return fmt.Errorf("save receipt %s: %w", rec.Hash, err)
	}
	return s.store.Set(hashKey(rec.Hash), []byte(key))
}

func (s *receiptStore) Get(hash string) (*Record, error) {
	key, err := s.store.Get(hashKey(hash))
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	found, err := s.store.GetAny(string(key), &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *receiptStore) Latest(limit int) ([]*Record, error) {
	pairs, err := s.store.List(receiptsPrefix + "/")
	if err != nil {
		return nil, err
	}
	slices.Reverse(pairs)
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}

	out := make([]*Record, 0, len(pairs))
	for _, p := range pairs {
		var rec Record
		if err := kvstore.JSON.Unmarshal(p.Value, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", p.Key, err)
		}
		out = append(out, &rec)
	}
	return out, nil
}

func (s *receiptStore) Close() error {
	return s.store.Close()
}
