package abi

import (
	"fmt"
	"math/big"
	"reflect"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EncodeCall prefixes the packed arguments with a 4-byte method selector.
func EncodeCall(selector [4]byte, types []Type, tokens []Token) ([]byte, error) {
	packed, err := Pack(types, tokens)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(selector)+len(packed))
	out = append(out, selector[:]...)
	return append(out, packed...), nil
}

// Pack produces the head/tail ABI encoding of tokens against their declared
// types.
func Pack(types []Type, tokens []Token) ([]byte, error) {
	if len(types) != len(tokens) {
		return nil, fmt.Errorf("%w: %d tokens for %d types", ErrArityMismatch, len(tokens), len(types))
	}

	args := make(gethabi.Arguments, len(tokens))
	values := make([]any, len(tokens))
	for i, tok := range tokens {
		typ, err := newArgType(wireType(types[i], tok))
		if err != nil {
			return nil, err
		}
		v, err := toGo(tok, typ)
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, typ, err)
		}
		args[i] = gethabi.Argument{Type: typ}
		values[i] = v.Interface()
	}

	packed, err := args.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return packed, nil
}

// wireType is the type a token is written as. A bytes array argument encoded
// with the packed-uint convention travels as plain bytes.
func wireType(declared Type, tok Token) Type {
	if _, ok := tok.(Bytes); ok && declared.IsArray() && declared.Base == TypeBytes && !declared.IsFixedBytes() {
		return Type{Base: TypeBytes}
	}
	return declared
}

func newArgType(t Type) (gethabi.Type, error) {
	typ, err := gethabi.NewType(t.String(), "", nil)
	if err != nil {
		return gethabi.Type{}, fmt.Errorf("%w: %q: %w", ErrUnknownType, t, err)
	}
	return typ, nil
}

func toGo(tok Token, typ gethabi.Type) (reflect.Value, error) {
	mismatch := func() (reflect.Value, error) {
		return reflect.Value{}, fmt.Errorf("%w: %s token for %s", ErrTypeMismatch, kindOf(tok), typ)
	}

	switch typ.T {
	case gethabi.UintTy:
		u, ok := tok.(Uint)
		if !ok {
			return mismatch()
		}
		return reflect.ValueOf(u.Value.ToBig()), nil
	case gethabi.AddressTy:
		a, ok := tok.(Address)
		if !ok {
			return mismatch()
		}
		return reflect.ValueOf(common.Address(a)), nil
	case gethabi.BoolTy:
		b, ok := tok.(Bool)
		if !ok {
			return mismatch()
		}
		return reflect.ValueOf(bool(b)), nil
	case gethabi.BytesTy:
		b, ok := tok.(Bytes)
		if !ok {
			return mismatch()
		}
		return reflect.ValueOf([]byte(b)), nil
	case gethabi.FixedBytesTy:
		b, ok := tok.(FixedBytes)
		if !ok || len(b) != typ.Size {
			return mismatch()
		}
		v := reflect.New(typ.GetType()).Elem()
		reflect.Copy(v, reflect.ValueOf([]byte(b)))
		return v, nil
	case gethabi.SliceTy:
		children, ok := tok.(Array)
		if !ok {
			return mismatch()
		}
		v := reflect.MakeSlice(typ.GetType(), len(children), len(children))
		return v, fillElems(v, children, *typ.Elem)
	case gethabi.ArrayTy:
		children, ok := tok.(FixedArray)
		if !ok || len(children) != typ.Size {
			return mismatch()
		}
		v := reflect.New(typ.GetType()).Elem()
		return v, fillElems(v, children, *typ.Elem)
	}
	return reflect.Value{}, fmt.Errorf("%w: %s", ErrUnsupportedToken, typ)
}

func fillElems(dst reflect.Value, children []Token, elem gethabi.Type) error {
	for i, c := range children {
		v, err := toGo(c, elem)
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		dst.Index(i).Set(v)
	}
	return nil
}

// Unpack parses ABI-encoded return data into tokens using the declared
// output types.
func Unpack(types []Type, data []byte) ([]Token, error) {
	if len(types) == 0 {
		return []Token{}, nil
	}

	args := make(gethabi.Arguments, len(types))
	for i, t := range types {
		typ, err := newArgType(t)
		if err != nil {
			return nil, err
		}
		args[i] = gethabi.Argument{Type: typ}
	}

	values, err := args.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	out := make([]Token, len(values))
	for i, v := range values {
		tok, err := fromGo(reflect.ValueOf(v), args[i].Type)
		if err != nil {
			return nil, err
		}
		out[i] = tok
	}
	return out, nil
}

func fromGo(v reflect.Value, typ gethabi.Type) (Token, error) {
	switch typ.T {
	case gethabi.UintTy:
		n, ok := v.Interface().(*big.Int)
		if !ok {
			break
		}
		u, overflow := uint256.FromBig(n)
		if overflow {
			return nil, fmt.Errorf("%w: %s overflows uint256", ErrInvalidData, n)
		}
		return Uint{Value: *u}, nil
	case gethabi.AddressTy:
		a, ok := v.Interface().(common.Address)
		if !ok {
			break
		}
		return Address(a), nil
	case gethabi.BoolTy:
		return Bool(v.Bool()), nil
	case gethabi.BytesTy:
		return Bytes(append([]byte{}, v.Bytes()...)), nil
	case gethabi.FixedBytesTy:
		out := make(FixedBytes, v.Len())
		for i := range out {
			out[i] = byte(v.Index(i).Uint())
		}
		return out, nil
	case gethabi.SliceTy, gethabi.ArrayTy:
		children := make([]Token, v.Len())
		for i := range children {
			c, err := fromGo(v.Index(i), *typ.Elem)
			if err != nil {
				return nil, err
			}
			children[i] = c
		}
		if typ.T == gethabi.SliceTy {
			return Array(children), nil
		}
		return FixedArray(children), nil
	}
	return nil, fmt.Errorf("%w: cannot read %s from %s", ErrInvalidData, typ, v.Type())
}
