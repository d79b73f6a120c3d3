package abi

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	TypeAddress = "address"
	TypeUint256 = "uint256"
	TypeBytes   = "bytes"
	TypeBool    = "bool"
)

// Unbounded marks a `[]` dimension in Type.Dims.
const Unbounded = -1

// Type is a parsed ABI type string. Dims are ordered innermost first, so
// "uint256[2][]" is an unbounded array of uint256[2].
type Type struct {
	Base string
	// Size is N for fixed-size byte types (bytesN), zero otherwise.
	Size int
	Dims []int
}

// ParseType parses and validates an ABI type string.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	idx := strings.IndexByte(s, '[')
	base := s
	if idx >= 0 {
		base = s[:idx]
	}

	t := Type{Base: base}
	switch {
	case base == TypeAddress, base == TypeUint256, base == TypeBytes, base == TypeBool:
	case strings.HasPrefix(base, TypeBytes):
		n, err := strconv.Atoi(base[len(TypeBytes):])
		if err != nil || n < 1 || n > 32 {
			return Type{}, fmt.Errorf("%w: %q", ErrUnknownType, s)
		}
		t.Size = n
	default:
		return Type{}, fmt.Errorf("%w: %q", ErrUnknownType, s)
	}

	rest := ""
	if idx >= 0 {
		rest = s[idx:]
	}
	for len(rest) > 0 {
		if rest[0] != '[' {
			return Type{}, fmt.Errorf("%w: %q", ErrUnknownType, s)
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return Type{}, fmt.Errorf("%w: unterminated dimension in %q", ErrUnknownType, s)
		}
		inner := rest[1:end]
		if inner == "" {
			t.Dims = append(t.Dims, Unbounded)
		} else {
			n, err := strconv.Atoi(inner)
			if err != nil || n < 0 {
				return Type{}, fmt.Errorf("%w: bad dimension %q in %q", ErrUnknownType, inner, s)
			}
			t.Dims = append(t.Dims, n)
		}
		rest = rest[end+1:]
	}
	return t, nil
}

// IsArray reports whether the type carries at least one array suffix.
func (t Type) IsArray() bool { return len(t.Dims) > 0 }

// Outer returns the outermost dimension. Only valid when IsArray.
func (t Type) Outer() int { return t.Dims[len(t.Dims)-1] }

// Elem strips the outermost array suffix.
func (t Type) Elem() Type {
	if !t.IsArray() {
		return t
	}
	dims := make([]int, len(t.Dims)-1)
	copy(dims, t.Dims)
	return Type{Base: t.Base, Size: t.Size, Dims: dims}
}

// IsFixedBytes reports whether the scalar base is bytesN.
func (t Type) IsFixedBytes() bool { return t.Size > 0 }

// IsDynamic follows the ABI rule: bytes, unbounded arrays, and fixed arrays of
// dynamic elements are encoded through an offset.
func (t Type) IsDynamic() bool {
	if t.IsArray() {
		if t.Outer() == Unbounded {
			return true
		}
		return t.Elem().IsDynamic()
	}
	return t.Base == TypeBytes
}

func (t Type) String() string {
	var sb strings.Builder
	sb.WriteString(t.Base)
	for _, d := range t.Dims {
		if d == Unbounded {
			sb.WriteString("[]")
		} else {
			sb.WriteString("[" + strconv.Itoa(d) + "]")
		}
	}
	return sb.String()
}

// ParseTypes parses a list of type strings in order.
func ParseTypes(ss []string) ([]Type, error) {
	out := make([]Type, len(ss))
	for i, s := range ss {
		t, err := ParseType(s)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}
