package caller

import (
	"context"
	"errors"
	"fmt"

	"github.com/fystack/contract-bridge/internal/abi"
	"github.com/fystack/contract-bridge/internal/contract"
	"github.com/fystack/contract-bridge/internal/rpc"
	"github.com/fystack/contract-bridge/internal/rpc/evm"
)

type ReadRequest struct {
	Method string
	// Args is a sequence ([]any) matching the method's parameters.
	Args any
	// From is an optional caller address.
	From string
	// Block pins the call to a block number; nil reads latest.
	Block   *uint64
	Options CallOptions
}

// BatchRequest calls Method once per element of ArgSets.
type BatchRequest struct {
	Method  string
	ArgSets any
	From    string
	Block   *uint64
	Options CallOptions
}

// Read performs a constant call and returns the decoded outputs.
func (c *Caller) Read(ctx context.Context, ct *contract.Contract, req ReadRequest) ([]any, error) {
	conn, err := ct.Conn()
	if err != nil {
		return nil, err
	}
	msg, err := prepare(ct, req.Method, req.Args, req.Options)
	if err != nil {
		return nil, err
	}
	if err := withFrom(&msg, req.From); err != nil {
		return nil, err
	}
	outputs, err := ct.Interface().OutputTypes(req.Method)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = c.timed(ctx, conn, "read", func(ctx context.Context, client *evm.Client) error {
		var err error
		raw, err = client.Call(ctx, msg, evm.BlockTag(req.Block))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Method, err)
	}
	return decodeOutputs(outputs, raw)
}

func decodeOutputs(outputs []abi.Type, raw []byte) ([]any, error) {
	tokens, err := abi.Unpack(outputs, raw)
	if err != nil {
		return nil, err
	}
	return abi.Decode(tokens)
}

// ReadBatch submits one eth_call per argument set as a single JSON-RPC batch.
// Results are resolved in input order. The first failing element stops
// resolution: the decoded prefix is returned together with a *BatchError.
func (c *Caller) ReadBatch(ctx context.Context, ct *contract.Contract, req BatchRequest) ([][]any, error) {
	conn, err := ct.Conn()
	if err != nil {
		return nil, err
	}
	sets, ok := req.ArgSets.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: argument sets must be a sequence, got %T", abi.ErrTypeMismatch, req.ArgSets)
	}
	outputs, err := ct.Interface().OutputTypes(req.Method)
	if err != nil {
		return nil, err
	}

	msgs := make([]evm.CallMsg, len(sets))
	for i, args := range sets {
		msg, err := prepare(ct, req.Method, args, req.Options)
		if err != nil {
			return nil, fmt.Errorf("argument set %d: %w", i, err)
		}
		if err := withFrom(&msg, req.From); err != nil {
			return nil, err
		}
		msgs[i] = msg
	}
	if len(msgs) == 0 {
		return [][]any{}, nil
	}

	var responses []*rpc.RPCResponse
	err = c.run(ctx, conn, "read-batch", func(ctx context.Context, client *evm.Client) error {
		block := evm.BlockTag(req.Block)
		requests := make([]*rpc.RPCRequest, len(msgs))
		for i, msg := range msgs {
			requests[i] = client.CallRequest(msg, block)
		}
		var err error
		responses, err = client.DoBatch(ctx, requests)
		return err
	})
	if err != nil {
		return nil, submissionError(err)
	}

	results := make([][]any, 0, len(responses))
	for i, resp := range responses {
		raw, err := evm.DecodeCallResult(resp)
		if err != nil {
			return results, &BatchError{Index: i, Err: fmt.Errorf("%w: %w", ErrRPCFailure, err)}
		}
		values, err := decodeOutputs(outputs, raw)
		if err != nil {
			return results, &BatchError{Index: i, Err: err}
		}
		results = append(results, values)
	}
	return results, nil
}

// submissionError keeps ErrTimedOut as the only sentinel next to
// ErrBatchSubmissionFailed, so a failed submission never reads as a per
// element ErrRPCFailure.
func submissionError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w: %w", ErrBatchSubmissionFailed, ErrTimedOut, err)
	}
	return fmt.Errorf("%w: %w", ErrBatchSubmissionFailed, err)
}
