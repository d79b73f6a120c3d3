package kvstore

import (
	"encoding/json"
	"errors"
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrKeyEmpty    = errors.New("key is empty")
)

type KVPair struct {
	Key   string
	Value []byte
}

// KVStore is a namespaced key-value store.
type KVStore interface {
	Get(k string) ([]byte, error)
	Set(k string, v []byte) error
	// SetAny stores v through the store codec.
	SetAny(k string, v any) error
	GetAny(k string, v any) (found bool, err error)

	// List returns pairs under prefix in key order, with keys relative to
	// the store namespace.
	List(prefix string) ([]*KVPair, error)
	Delete(k string) error
	Close() error
}

// Codec encodes/decodes Go values to/from slices of bytes.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSON is the default codec.
var JSON Codec = jsonCodec{}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func checkKeyAndValue(k string, v any) error {
	if k == "" {
		return ErrKeyEmpty
	}
	if v == nil {
		return errors.New("the passed value is nil, which is not allowed")
	}
	return nil
}
