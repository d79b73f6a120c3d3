package abi

import "fmt"

// Decode converts tokens into host values. Uints become 32-byte big-endian
// buffers, addresses 20-byte buffers, byte tokens copies of their payload and
// both array kinds a []any of decoded children.
func Decode(tokens []Token) ([]any, error) {
	out := make([]any, 0, len(tokens))
	for _, tok := range tokens {
		v, err := decodeToken(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeToken(tok Token) (any, error) {
	switch t := tok.(type) {
	case Uint:
		b := t.Value.Bytes32()
		return b[:], nil
	case Address:
		return append([]byte(nil), t[:]...), nil
	case Bytes:
		return append([]byte{}, t...), nil
	case FixedBytes:
		return append([]byte{}, t...), nil
	case Array:
		return Decode(t)
	case FixedArray:
		return Decode(t)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedToken, kindOf(tok))
	}
}

func kindOf(tok Token) string {
	if tok == nil {
		return "nil"
	}
	return tok.Kind()
}
