package abi

import "errors"

var (
	ErrMalformedAbi          = errors.New("malformed abi: array of entries expected")
	ErrMethodNotFound        = errors.New("method not found in contract")
	ErrEventNotFound         = errors.New("event not found in contract")
	ErrUnknownType           = errors.New("unrecognized abi type")
	ErrArityMismatch         = errors.New("invalid number of inputs")
	ErrTypeMismatch          = errors.New("value does not match the expected abi type")
	ErrUnsupportedConversion = errors.New("unsupported value conversion")
	ErrUnsupportedToken      = errors.New("unsupported token")
	ErrInvalidAddress        = errors.New("invalid address")
	ErrInvalidData           = errors.New("invalid abi data")
)
