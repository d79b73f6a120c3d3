package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fystack/contract-bridge/internal/caller"
	"github.com/fystack/contract-bridge/pkg/common/logger"
	"github.com/fystack/contract-bridge/pkg/events"
	"github.com/fystack/contract-bridge/pkg/infra"
)

type ReadCmd struct {
	ContractFlags
	TxOptions
	Method string  `arg:"" help:"Method name."`
	Args   string  `arg:"" optional:"" help:"JSON array of arguments."`
	From   string  `help:"Caller address." name:"from"`
	Block  *uint64 `help:"Block number; latest when omitted." name:"block"`
}

func (c *ReadCmd) Run(g *Globals, ctx context.Context) error {
	return withContract(ctx, g, c.ContractFlags, func(a *app, ct contractRef) error {
		args, err := parseArgs(c.Args)
		if err != nil {
			return err
		}
		opts, err := c.CallOptions()
		if err != nil {
			return err
		}
		out, err := a.caller.Read(ctx, ct, caller.ReadRequest{
			Method: c.Method, Args: args, From: c.From, Block: c.Block, Options: opts,
		})
		if err != nil {
			return err
		}
		return printJSON(a.out, out)
	})
}

type ReadBatchCmd struct {
	ContractFlags
	TxOptions
	Method  string  `arg:"" help:"Method name."`
	ArgSets string  `arg:"" help:"JSON array of argument arrays."`
	From    string  `help:"Caller address." name:"from"`
	Block   *uint64 `help:"Block number; latest when omitted." name:"block"`
}

func (c *ReadBatchCmd) Run(g *Globals, ctx context.Context) error {
	return withContract(ctx, g, c.ContractFlags, func(a *app, ct contractRef) error {
		sets, err := parseArgs(c.ArgSets)
		if err != nil {
			return err
		}
		opts, err := c.CallOptions()
		if err != nil {
			return err
		}
		out, err := a.caller.ReadBatch(ctx, ct, caller.BatchRequest{
			Method: c.Method, ArgSets: sets, From: c.From, Block: c.Block, Options: opts,
		})
		var batchErr *caller.BatchError
		if errors.As(err, &batchErr) {
			logger.Error("Batch stopped", "index", batchErr.Index, "err", batchErr.Err)
			if perr := printJSON(a.out, toAnySlice(out)); perr != nil {
				return perr
			}
			return err
		}
		if err != nil {
			return err
		}
		return printJSON(a.out, toAnySlice(out))
	})
}

func toAnySlice(rows [][]any) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

type WriteCmd struct {
	ContractFlags
	TxOptions
	Method        string  `arg:"" help:"Method name."`
	Args          string  `arg:"" optional:"" help:"JSON array of arguments."`
	KeyEnv        string  `help:"Environment variable holding a hex private key." name:"key-env" xor:"auth"`
	Account       string  `help:"Node-managed account to send from." name:"account" xor:"auth"`
	Confirmations *uint64 `help:"Confirmations to wait for; config default when omitted." name:"confirmations"`
}

func (c *WriteCmd) auth() (caller.Auth, error) {
	switch {
	case c.Account != "":
		return caller.ExternalAccount(c.Account), nil
	case c.KeyEnv != "":
		raw := strings.TrimSpace(os.Getenv(c.KeyEnv))
		if raw == "" {
			return nil, fmt.Errorf("%s is empty", c.KeyEnv)
		}
		if !strings.HasPrefix(raw, "0x") {
			raw = "0x" + raw
		}
		key, err := hexutil.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.KeyEnv, err)
		}
		return caller.SigningKey(key), nil
	}
	return nil, errors.New("use --key-env or --account")
}

func (c *WriteCmd) Run(g *Globals, ctx context.Context) error {
	return withContract(ctx, g, c.ContractFlags, func(a *app, ct contractRef) error {
		args, err := parseArgs(c.Args)
		if err != nil {
			return err
		}
		opts, err := c.CallOptions()
		if err != nil {
			return err
		}
		auth, err := c.auth()
		if err != nil {
			return err
		}
		receipt, err := a.caller.Write(ctx, ct, caller.WriteRequest{
			Method: c.Method, Args: args, Auth: auth, Confirmations: c.Confirmations, Options: opts,
		})
		if err != nil {
			return err
		}
		return printJSON(a.out, receipt.Table())
	})
}

type EstimateGasCmd struct {
	ContractFlags
	TxOptions
	Method string `arg:"" help:"Method name."`
	Args   string `arg:"" optional:"" help:"JSON array of arguments."`
	From   string `help:"Caller address." name:"from" required:""`
}

func (c *EstimateGasCmd) Run(g *Globals, ctx context.Context) error {
	return withContract(ctx, g, c.ContractFlags, func(a *app, ct contractRef) error {
		args, err := parseArgs(c.Args)
		if err != nil {
			return err
		}
		opts, err := c.CallOptions()
		if err != nil {
			return err
		}
		gas, err := a.caller.EstimateGas(ctx, ct, caller.EstimateRequest{
			Method: c.Method, Args: args, From: c.From, Options: opts,
		})
		if err != nil {
			return err
		}
		return printJSON(a.out, map[string]string{"gas": gas.Dec()})
	})
}

type WatchCmd struct {
	ContractFlags
	Event string `arg:"" help:"Event name."`
	Count int    `help:"Stop after this many logs; 0 waits until interrupted." default:"0" name:"count"`
	NATS  bool   `help:"Relay logs to NATS using the config nats block." name:"nats"`
}

func (c *WatchCmd) Run(g *Globals, ctx context.Context) error {
	return withContract(ctx, g, c.ContractFlags, func(a *app, ct contractRef) error {
		waiter, err := a.caller.NewEventWaiter(ct, c.Event)
		if err != nil {
			return err
		}
		defer waiter.Close(context.Background())

		var emitter events.Emitter
		if c.NATS {
			nc, err := infra.GetNATSConnection(a.cfg.NATS, a.cfg.Environment)
			if err != nil {
				return fmt.Errorf("connect nats: %w", err)
			}
			prefix := a.cfg.NATS.SubjectPrefix
			if prefix == "" {
				prefix = "contract-bridge.events"
			}
			emitter = events.NewEmitter(infra.NewNATSPublisher(nc), prefix)
			defer emitter.Close()
		}

		name := c.Contract
		if name == "" {
			name = ct.Address().String()
		}
		logger.Info("Watching for events", "contract", name, "event", c.Event)

		for seen := 0; c.Count == 0 || seen < c.Count; seen++ {
			log, err := waiter.Wait(ctx)
			if err != nil {
				if emitter != nil {
					_ = emitter.EmitError(name, err)
				}
				return err
			}
			if log == nil {
				logger.Info("Watch cancelled")
				return nil
			}
			if err := printJSON(a.out, events.NewLogPayload(c.Event, log)); err != nil {
				return err
			}
			if emitter != nil {
				if err := emitter.EmitLog(name, c.Event, log); err != nil {
					logger.Warn("Relay to NATS failed", "err", err)
				}
			}
		}
		return nil
	})
}
