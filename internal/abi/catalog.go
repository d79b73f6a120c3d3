package abi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Param is one declared input or output of an interface entry.
type Param struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed,omitempty"`
}

// Entry is one element of a contract interface document.
type Entry struct {
	Type            string  `json:"type"`
	Name            string  `json:"name"`
	Inputs          []Param `json:"inputs"`
	Outputs         []Param `json:"outputs"`
	StateMutability string  `json:"stateMutability,omitempty"`
	Anonymous       bool    `json:"anonymous,omitempty"`
}

// Interface is a parsed contract interface document. Lookups are by name and
// take the first matching entry in declaration order.
type Interface struct {
	Entries []Entry
}

// ParseInterface parses a JSON interface document. The top level must be an
// array of entries.
func ParseInterface(doc []byte) (*Interface, error) {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrMalformedAbi
	}
	var entries []Entry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAbi, err)
	}
	// Types are validated per method on use.
	return &Interface{Entries: entries}, nil
}

func (i *Interface) lookup(name string) (*Entry, bool) {
	for idx := range i.Entries {
		if i.Entries[idx].Name == name {
			return &i.Entries[idx], true
		}
	}
	return nil, false
}

// HasEntries reports whether the document declares anything at all.
func (i *Interface) HasEntries() bool { return i != nil && len(i.Entries) > 0 }

// ParameterTypes returns the declared input types of method in order.
func (i *Interface) ParameterTypes(method string) ([]string, error) {
	e, ok := i.lookup(method)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, method)
	}
	return paramTypes(e.Inputs), nil
}

// OutputTypes returns the declared output types of method in order.
func (i *Interface) OutputTypes(method string) ([]Type, error) {
	e, ok := i.lookup(method)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, method)
	}
	types, err := ParseTypes(paramTypes(e.Outputs))
	if err != nil {
		return nil, fmt.Errorf("%w: outputs of %s: %w", ErrMalformedAbi, method, err)
	}
	return types, nil
}

// MethodSignature returns the canonical "name(type1,type2)" string of a method.
func (i *Interface) MethodSignature(method string) (string, error) {
	e, ok := i.lookup(method)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMethodNotFound, method)
	}
	return signature(e), nil
}

// Selector returns the 4-byte function selector of method.
func (i *Interface) Selector(method string) ([4]byte, error) {
	sig, err := i.MethodSignature(method)
	if err != nil {
		return [4]byte{}, err
	}
	return SelectorOf(sig), nil
}

// EventSignature returns the canonical "name(type1,type2)" string of an event.
func (i *Interface) EventSignature(event string) (string, error) {
	e, ok := i.lookup(event)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrEventNotFound, event)
	}
	return signature(e), nil
}

// EventTopic returns the topic-0 hash of an event.
func (i *Interface) EventTopic(event string) ([32]byte, error) {
	sig, err := i.EventSignature(event)
	if err != nil {
		return [32]byte{}, err
	}
	return HashEvent(sig), nil
}

func paramTypes(ps []Param) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Type
	}
	return out
}

func signature(e *Entry) string {
	return e.Name + "(" + strings.Join(paramTypes(e.Inputs), ",") + ")"
}
