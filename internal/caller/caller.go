package caller

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fystack/contract-bridge/internal/abi"
	"github.com/fystack/contract-bridge/internal/contract"
	"github.com/fystack/contract-bridge/internal/node"
	"github.com/fystack/contract-bridge/internal/rpc/evm"
	"github.com/fystack/contract-bridge/pkg/common/config"
	"github.com/fystack/contract-bridge/pkg/common/logger"
)

// ReceiptSink records confirmed receipts. Failures are logged and never fail
// the write.
type ReceiptSink interface {
	SaveReceipt(ctx context.Context, r *Receipt) error
}

// Caller runs contract calls on a connection's scheduler.
type Caller struct {
	timeout       time.Duration
	confirmations uint64
	pollInterval  time.Duration
	eventPoll     time.Duration
	sink          ReceiptSink
}

type Option func(*Caller)

// WithTimeout bounds reads, batch reads, gas estimates and node queries.
func WithTimeout(d time.Duration) Option {
	return func(c *Caller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithConfirmations sets the confirmation depth used when a write does not
// name one.
func WithConfirmations(n uint64) Option {
	return func(c *Caller) { c.confirmations = n }
}

// WithPollInterval sets how often a write polls for its receipt.
func WithPollInterval(d time.Duration) Option {
	return func(c *Caller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithEventPollInterval bounds one wait on an event subscription.
func WithEventPollInterval(d time.Duration) Option {
	return func(c *Caller) {
		if d > 0 {
			c.eventPoll = d
		}
	}
}

func WithReceiptSink(s ReceiptSink) Option {
	return func(c *Caller) { c.sink = s }
}

func New(opts ...Option) *Caller {
	c := &Caller{
		timeout:       config.DefaultTimeout,
		confirmations: config.DefaultConfirmations,
		pollInterval:  config.DefaultPollInterval,
		eventPoll:     time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Caller) Timeout() time.Duration { return c.timeout }

// timed runs fn on conn under the caller timeout and classifies the error.
func (c *Caller) timed(ctx context.Context, conn *node.Conn, op string, fn node.Job) error {
	return classify(c.run(ctx, conn, op, fn))
}

// run is timed without classification.
func (c *Caller) run(ctx context.Context, conn *node.Conn, op string, fn node.Job) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := conn.Do(ctx, fn)
	logger.Debug("Node call finished", "op", op, "url", conn.URL(), "elapsed", time.Since(start), "err", err)
	return err
}

func prepare(ct *contract.Contract, method string, args any, opts CallOptions) (evm.CallMsg, error) {
	iface := ct.Interface()
	names, err := iface.ParameterTypes(method)
	if err != nil {
		return evm.CallMsg{}, err
	}
	types, err := abi.ParseTypes(names)
	if err != nil {
		return evm.CallMsg{}, fmt.Errorf("%w: inputs of %s: %w", abi.ErrMalformedAbi, method, err)
	}
	tokens, err := abi.EncodeAll(args, names)
	if err != nil {
		return evm.CallMsg{}, err
	}
	selector, err := iface.Selector(method)
	if err != nil {
		return evm.CallMsg{}, err
	}
	data, err := abi.EncodeCall(selector, types, tokens)
	if err != nil {
		return evm.CallMsg{}, err
	}

	to := common.Address(ct.Address())
	msg := evm.CallMsg{To: &to, Data: data}
	opts.apply(&msg)
	return msg, nil
}

func withFrom(msg *evm.CallMsg, from string) error {
	if from == "" {
		return nil
	}
	a, err := abi.ParseAddress(from)
	if err != nil {
		return err
	}
	addr := common.Address(a)
	msg.From = &addr
	return nil
}
