package abi

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Token is the canonical intermediate form of one ABI argument or return
// value. The variant set is closed: Uint, Address, Bytes, FixedBytes, Array,
// FixedArray and Bool.
type Token interface {
	Kind() string
	token()
}

type (
	Uint       struct{ Value uint256.Int }
	Address    [20]byte
	Bytes      []byte
	FixedBytes []byte
	Array      []Token
	FixedArray []Token
	Bool       bool
)

func (Uint) Kind() string       { return "uint" }
func (Address) Kind() string    { return "address" }
func (Bytes) Kind() string      { return "bytes" }
func (FixedBytes) Kind() string { return "fixed_bytes" }
func (Array) Kind() string      { return "array" }
func (FixedArray) Kind() string { return "fixed_array" }
func (Bool) Kind() string       { return "bool" }

func (Uint) token()       {}
func (Address) token()    {}
func (Bytes) token()      {}
func (FixedBytes) token() {}
func (Array) token()      {}
func (FixedArray) token() {}
func (Bool) token()       {}

// NewUint builds a Uint token from a uint64.
func NewUint(v uint64) Uint {
	var u Uint
	u.Value.SetUint64(v)
	return u
}

func (u Uint) String() string    { return u.Value.Dec() }
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// ParseAddress parses a 20-byte hex address with an optional 0x prefix.
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*len(a) {
		return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return a, nil
}

// AddressFromValue accepts the two host shapes used for addresses: a hex
// string or a 20-byte buffer.
func AddressFromValue(v any) (Address, error) {
	switch x := v.(type) {
	case string:
		return ParseAddress(x)
	case []byte:
		var a Address
		if len(x) != len(a) {
			return a, fmt.Errorf("%w: %d bytes", ErrInvalidAddress, len(x))
		}
		copy(a[:], x)
		return a, nil
	default:
		return Address{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidAddress, v)
	}
}
