package caller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fystack/contract-bridge/internal/contract"
	"github.com/fystack/contract-bridge/internal/rpc"
	"github.com/fystack/contract-bridge/internal/rpc/evm"
)

// EventWaiter waits for logs of one event emitted by one contract. The
// subscription is opened on the first Wait and reused afterwards. Close may
// be called while a Wait is pending and releases it.
type EventWaiter struct {
	caller   *Caller
	contract *contract.Contract
	topic    common.Hash

	waitMu sync.Mutex

	// mu guards sub and closed.
	mu     sync.Mutex
	sub    *rpc.Subscription
	closed bool
}

var errWaiterClosed = errors.New("event waiter closed")

// NewEventWaiter resolves event in the contract interface.
func (c *Caller) NewEventWaiter(ct *contract.Contract, event string) (*EventWaiter, error) {
	topic, err := ct.Interface().EventTopic(event)
	if err != nil {
		return nil, err
	}
	return c.NewTopicWaiter(ct, topic), nil
}

// NewTopicWaiter waits for logs whose first topic is topic.
func (c *Caller) NewTopicWaiter(ct *contract.Contract, topic [32]byte) *EventWaiter {
	return &EventWaiter{caller: c, contract: ct, topic: topic}
}

func (w *EventWaiter) Topic() [32]byte { return w.topic }

func (w *EventWaiter) subscribe(ctx context.Context) (*rpc.Subscription, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, errWaiterClosed
	}
	if w.sub != nil {
		return w.sub, nil
	}
	conn, err := w.contract.Conn()
	if err != nil {
		return nil, err
	}
	if !conn.Streaming() {
		return nil, rpc.ErrUnsupportedTransport
	}

	filter := evm.LogFilter{
		Address: []common.Address{common.Address(w.contract.Address())},
		Topics:  [][]common.Hash{{w.topic}},
	}
	var sub *rpc.Subscription
	err = w.caller.timed(ctx, conn, "subscribe-logs", func(ctx context.Context, client *evm.Client) error {
		var err error
		sub, err = client.SubscribeLogs(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	w.sub = sub
	return sub, nil
}

// Wait blocks until a matching log arrives. It returns (nil, nil) once ctx
// is cancelled or the waiter is closed.
func (w *EventWaiter) Wait(ctx context.Context) (*EventLog, error) {
	w.waitMu.Lock()
	defer w.waitMu.Unlock()

	sub, err := w.subscribe(ctx)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, errWaiterClosed) {
			return nil, nil
		}
		return nil, err
	}

	for ctx.Err() == nil {
		pollCtx, cancel := context.WithTimeout(ctx, w.caller.eventPoll)
		raw, err := sub.Next(pollCtx)
		cancel()
		switch {
		case err == nil:
			var l evm.Log
			if err := json.Unmarshal(raw, &l); err != nil {
				return nil, fmt.Errorf("%w: decode log: %w", ErrRPCFailure, err)
			}
			return newEventLog(&l), nil
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			continue
		default:
			if w.drop(sub) {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: %w", ErrRPCFailure, err)
		}
	}
	return nil, nil
}

// drop forgets a failed subscription so the next Wait opens a new one. It
// reports whether the waiter was closed.
func (w *EventWaiter) drop(sub *rpc.Subscription) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub == sub {
		w.sub = nil
	}
	return w.closed
}

// Close cancels the subscription on the node. Later calls to Wait return
// (nil, nil).
func (w *EventWaiter) Close(ctx context.Context) error {
	w.mu.Lock()
	sub := w.sub
	w.sub = nil
	w.closed = true
	w.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Unsubscribe(ctx)
}
