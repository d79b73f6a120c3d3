package kvstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

type BadgerStore struct {
	db     *badger.DB
	prefix string
	codec  Codec
}

var _ KVStore = (*BadgerStore)(nil)

// NewBadgerStore opens a store at path. An empty path keeps everything in
// memory.
func NewBadgerStore(path string, prefix string, codec Codec) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	if codec == nil {
		codec = JSON
	}
	return &BadgerStore{db: db, prefix: prefix, codec: codec}, nil
}

func (b *BadgerStore) fullKey(k string) ([]byte, error) {
	if k == "" {
		return nil, ErrKeyEmpty
	}
	if b.prefix != "" {
		return []byte(b.prefix + "/" + k), nil
	}
	return []byte(k), nil
}

func (b *BadgerStore) Get(key string) ([]byte, error) {
	k, err := b.fullKey(key)
	if err != nil {
		return nil, err
	}

	var val []byte
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	return val, err
}

func (b *BadgerStore) Set(key string, value []byte) error {
	k, err := b.fullKey(key)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, value)
	})
}

func (b *BadgerStore) SetAny(key string, value any) error {
	if err := checkKeyAndValue(key, value); err != nil {
		return err
	}
	data, err := b.codec.Marshal(value)
	if err != nil {
		return err
	}
	return b.Set(key, data)
}

func (b *BadgerStore) GetAny(key string, value any) (bool, error) {
	if err := checkKeyAndValue(key, value); err != nil {
		return false, err
	}
	data, err := b.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, b.codec.Unmarshal(data, value)
}

func (b *BadgerStore) List(prefix string) ([]*KVPair, error) {
	if prefix == "" {
		return nil, fmt.Errorf("prefix is empty")
	}
	namespace := ""
	if b.prefix != "" {
		namespace = b.prefix + "/"
	}
	p := []byte(namespace + prefix)

	result := make([]*KVPair, 0)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result = append(result, &KVPair{
				Key:   strings.TrimPrefix(string(item.Key()), namespace),
				Value: v,
			})
		}
		return nil
	})
	return result, err
}

func (b *BadgerStore) Delete(key string) error {
	k, err := b.fullKey(key)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}
