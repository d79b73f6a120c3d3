package abi

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Host values handed to Encode take one of these shapes: string, bool,
// int64 (or int), []byte, or []any for ordered sequences.

// EncodeAll encodes a sequence of values positionally against types.
func EncodeAll(value any, types []string) ([]Token, error) {
	args, ok := value.([]any)
	if !ok {
		if value != nil {
			return nil, fmt.Errorf("%w: arguments must be a sequence, got %T", ErrTypeMismatch, value)
		}
		args = nil
	}
	if len(args) != len(types) {
		return nil, fmt.Errorf("%w: got %d, abi expects %d", ErrArityMismatch, len(args), len(types))
	}

	tokens := make([]Token, 0, len(args))
	for i, arg := range args {
		tok, err := Encode(arg, types[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, types[i], err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// Encode converts a host value into a token of the given ABI type.
func Encode(value any, typ string) (Token, error) {
	t, err := ParseType(typ)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTypeMismatch, err)
	}
	return encodeType(value, t)
}

func encodeType(value any, t Type) (Token, error) {
	if t.IsArray() {
		seq, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a sequence, got %T", ErrTypeMismatch, t, value)
		}
		if t.Base == TypeBytes && !t.IsFixedBytes() {
			return packUintChunks(seq)
		}
		return encodeArray(seq, t)
	}
	return encodeScalar(value, t)
}

// packUintChunks implements the packed-uint convention for bytes arrays: every
// element is read as a uint256 and written as a 32-byte big-endian chunk, and
// the chunks are concatenated into a single Bytes token. It lets callers build
// raw packed payloads out of scalar values. Decoding does not reverse it.
func packUintChunks(seq []any) (Token, error) {
	out := make([]byte, 0, 32*len(seq))
	for i, v := range seq {
		u, err := toUint256(v)
		if err != nil {
			return nil, fmt.Errorf("packed element %d: %w", i, err)
		}
		chunk := u.Bytes32()
		out = append(out, chunk[:]...)
	}
	return Bytes(out), nil
}

func encodeArray(seq []any, t Type) (Token, error) {
	elem := t.Elem()
	size := t.Outer()
	if size != Unbounded && len(seq) != size {
		return nil, fmt.Errorf("%w: %s expects %d elements, got %d", ErrArityMismatch, t, size, len(seq))
	}

	children := make([]Token, 0, len(seq))
	for i, v := range seq {
		tok, err := encodeType(v, elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		children = append(children, tok)
	}
	if size == Unbounded {
		return Array(children), nil
	}
	return FixedArray(children), nil
}

func encodeScalar(value any, t Type) (Token, error) {
	switch v := value.(type) {
	case string:
		return encodeString(v, t)
	case bool:
		if t.Base != TypeBool {
			return nil, fmt.Errorf("%w: bool given for %s", ErrTypeMismatch, t)
		}
		return Bool(v), nil
	case int:
		return encodeInt(int64(v), t)
	case int64:
		return encodeInt(v, t)
	case []byte:
		return encodeBuffer(v, t)
	default:
		return nil, fmt.Errorf("%w: %T into %s", ErrUnsupportedConversion, value, t)
	}
}

func encodeString(s string, t Type) (Token, error) {
	switch {
	case t.Base == TypeAddress:
		return ParseAddress(s)
	case t.Base == TypeUint256:
		u, err := parseUintString(s)
		if err != nil {
			return nil, err
		}
		return Uint{Value: *u}, nil
	default:
		return nil, fmt.Errorf("%w: string into %s", ErrUnsupportedConversion, t)
	}
}

func encodeInt(n int64, t Type) (Token, error) {
	if t.Base != TypeUint256 {
		return nil, fmt.Errorf("%w: integer given for %s", ErrTypeMismatch, t)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative integer %d into uint256", ErrUnsupportedConversion, n)
	}
	return NewUint(uint64(n)), nil
}

func encodeBuffer(b []byte, t Type) (Token, error) {
	switch {
	case t.Base == TypeUint256:
		u, err := uintFromBytes(b)
		if err != nil {
			return nil, err
		}
		return Uint{Value: *u}, nil
	case t.IsFixedBytes():
		if len(b) != t.Size {
			return nil, fmt.Errorf("%w: %d bytes given for %s", ErrTypeMismatch, len(b), t)
		}
		return FixedBytes(append([]byte(nil), b...)), nil
	case t.Base == TypeBytes:
		return Bytes(append([]byte(nil), b...)), nil
	case t.Base == TypeAddress:
		return AddressFromValue(b)
	default:
		return nil, fmt.Errorf("%w: bytes given for %s", ErrTypeMismatch, t)
	}
}

// toUint256 converts any scalar host value that can carry an unsigned
// 256-bit integer.
func toUint256(v any) (*uint256.Int, error) {
	switch x := v.(type) {
	case string:
		return parseUintString(x)
	case int:
		return toUint256(int64(x))
	case int64:
		if x < 0 {
			return nil, fmt.Errorf("%w: negative integer %d", ErrUnsupportedConversion, x)
		}
		return uint256.NewInt(uint64(x)), nil
	case []byte:
		return uintFromBytes(x)
	default:
		return nil, fmt.Errorf("%w: %T into uint256", ErrUnsupportedConversion, v)
	}
}

// parseUintString reads a hex integer. The 0x prefix is optional, so "1000"
// is 0x1000.
func parseUintString(s string) (*uint256.Int, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if digits == "" {
		return nil, fmt.Errorf("%w: empty hex integer", ErrUnsupportedConversion)
	}
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	raw, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a hex integer", ErrUnsupportedConversion, s)
	}
	return uintFromBytes(raw)
}

func uintFromBytes(b []byte) (*uint256.Int, error) {
	trimmed := b
	for len(trimmed) > 0 && trimmed[0] == 0 {
		trimmed = trimmed[1:]
	}
	if len(trimmed) > 32 {
		return nil, fmt.Errorf("%w: %d bytes overflow uint256", ErrUnsupportedConversion, len(b))
	}
	return new(uint256.Int).SetBytes(trimmed), nil
}

// UintFromBuffer reads a canonical big-endian buffer (at most 32 significant
// bytes) as a uint256.
func UintFromBuffer(b []byte) (*uint256.Int, error) {
	return uintFromBytes(b)
}
