package contract

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/fystack/contract-bridge/internal/abi"
	"github.com/fystack/contract-bridge/internal/node"
	"github.com/fystack/contract-bridge/pkg/common/logger"
)

var (
	ErrInvalidAbi         = errors.New("invalid contract abi")
	ErrInvalidAddress     = abi.ErrInvalidAddress
	ErrConnectionNotReady = errors.New("connection not ready")
	ErrConnectionGone     = errors.New("connection no longer held")
)

// Contract is an immutable binding of an interface to an address on one
// connection. Rebinding builds a new Contract; existing values never change.
type Contract struct {
	address abi.Address
	iface   *abi.Interface
	conn    weak.Pointer[node.Conn]
}

// New binds abiJSON at address on conn.
func New(conn *node.Conn, address string, abiJSON []byte) (*Contract, error) {
	addr, err := abi.ParseAddress(address)
	if err != nil {
		return nil, err
	}
	iface, err := abi.ParseInterface(abiJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAbi, err)
	}
	if !iface.HasEntries() {
		return nil, fmt.Errorf("%w: document declares no entries", ErrInvalidAbi)
	}
	if conn == nil || conn.State() != node.Ready {
		return nil, ErrConnectionNotReady
	}
	return &Contract{address: addr, iface: iface, conn: weak.Make(conn)}, nil
}

func (c *Contract) Address() abi.Address      { return c.address }
func (c *Contract) Interface() *abi.Interface { return c.iface }

// Conn resolves the owning connection. It fails once every holder has let
// the connection go.
func (c *Contract) Conn() (*node.Conn, error) {
	conn := c.conn.Value()
	if conn == nil {
		return nil, ErrConnectionGone
	}
	return conn, nil
}

// Binder is the single construction site of a named contract instance. Any
// number of readers may call Current concurrently with Bind.
type Binder struct {
	conn    *node.Conn
	abiJSON []byte

	mu      sync.Mutex
	current atomic.Pointer[Contract]
}

func NewBinder(conn *node.Conn, abiJSON []byte) *Binder {
	return &Binder{conn: conn, abiJSON: abiJSON}
}

// Bind returns the current contract when it is already bound to address and
// otherwise builds and publishes a new one. A failed build clears the slot so
// no caller keeps using a stale binding.
func (b *Binder) Bind(address string) (*Contract, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	addr, err := abi.ParseAddress(address)
	if err != nil {
		b.current.Store(nil)
		return nil, err
	}
	if cur := b.current.Load(); cur != nil && cur.address == addr {
		return cur, nil
	}

	c, err := New(b.conn, address, b.abiJSON)
	if err != nil {
		b.current.Store(nil)
		return nil, err
	}
	b.current.Store(c)
	logger.Debug("Contract bound", "address", addr.Checksum(), "url", b.conn.URL())
	return c, nil
}

// Current returns the last successful binding, or nil.
func (b *Binder) Current() *Contract {
	return b.current.Load()
}

// Conn is the connection the binder builds contracts on.
func (b *Binder) Conn() *node.Conn { return b.conn }
