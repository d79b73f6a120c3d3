package kvstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T, prefix string) *BadgerStore {
	t.Helper()
	s, err := NewBadgerStore("", prefix, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadgerStore_GetSetDelete(t *testing.T) {
	s := openMemory(t, "bridge")

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorIs(t, s.Set("", []byte("x")), ErrKeyEmpty)

	require.NoError(t, s.Set("a", []byte("1")))
	v, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, s.Delete("a"))
	_, err = s.Get("a")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestBadgerStore_AnyUsesCodec(t *testing.T) {
	s := openMemory(t, "")
	type record struct {
		Hash  string `json:"hash"`
		Block uint64 `json:"block"`
	}

	require.NoError(t, s.SetAny("r", record{Hash: "0x01", Block: 7}))

	var got record
	found, err := s.GetAny("r", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, record{Hash: "0x01", Block: 7}, got)

	found, err = s.GetAny("nope", &got)
	assert.NoError(t, err)
	assert.False(t, found)

	assert.Error(t, s.SetAny("r", nil))
}

func TestBadgerStore_ListStripsNamespace(t *testing.T) {
	s := openMemory(t, "bridge")
	require.NoError(t, s.Set("receipts/02", []byte("b")))
	require.NoError(t, s.Set("receipts/01", []byte("a")))
	require.NoError(t, s.Set("other/01", []byte("c")))

	pairs, err := s.List("receipts/")
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "receipts/01", pairs[0].Key)
	assert.Equal(t, []byte("b"), pairs[1].Value)

	_, err = s.List("")
	assert.Error(t, err)
}
