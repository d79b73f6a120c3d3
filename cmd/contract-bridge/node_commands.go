package main

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fystack/contract-bridge/internal/contract"
	"github.com/fystack/contract-bridge/internal/node"
)

type contractRef = *contract.Contract

// withContract binds the selected contract for the duration of fn.
func withContract(ctx context.Context, g *Globals, f ContractFlags, fn func(*app, contractRef) error) error {
	a, err := setup(g)
	if err != nil {
		return err
	}
	defer a.Close()

	ct, release, err := a.bind(ctx, g, f)
	if err != nil {
		return err
	}
	defer release()
	return fn(a, ct)
}

// withNode connects to the selected node for the duration of fn.
func withNode(ctx context.Context, g *Globals, fn func(*app, *node.Conn) error) error {
	a, err := setup(g)
	if err != nil {
		return err
	}
	defer a.Close()

	conn, release, err := a.connect(ctx, g, "")
	if err != nil {
		return err
	}
	defer release()
	return fn(a, conn)
}

type BlockCmd struct {
	Number *uint64 `arg:"" optional:"" help:"Block number; latest when omitted."`
	Full   bool    `help:"Include full transaction objects." name:"full"`
}

func (c *BlockCmd) Run(g *Globals, ctx context.Context) error {
	return withNode(ctx, g, func(a *app, conn *node.Conn) error {
		block, err := a.caller.Block(ctx, conn, c.Number, c.Full)
		if err != nil {
			return err
		}
		return printJSON(a.out, block)
	})
}

type TxCmd struct {
	Hash string `arg:"" help:"Transaction hash."`
}

func (c *TxCmd) Run(g *Globals, ctx context.Context) error {
	hash, err := hexutil.Decode(c.Hash)
	if err != nil {
		return err
	}
	return withNode(ctx, g, func(a *app, conn *node.Conn) error {
		tx, err := a.caller.Transaction(ctx, conn, hash)
		if err != nil {
			return err
		}
		return printJSON(a.out, tx)
	})
}

type GasPriceCmd struct{}

func (c *GasPriceCmd) Run(g *Globals, ctx context.Context) error {
	return withNode(ctx, g, func(a *app, conn *node.Conn) error {
		price, err := a.caller.GasPrice(ctx, conn)
		if err != nil {
			return err
		}
		return printJSON(a.out, weiAmounts(price.ToBig()))
	})
}

type CurrentBlockCmd struct{}

func (c *CurrentBlockCmd) Run(g *Globals, ctx context.Context) error {
	return withNode(ctx, g, func(a *app, conn *node.Conn) error {
		n, err := a.caller.CurrentBlock(ctx, conn)
		if err != nil {
			return err
		}
		return printJSON(a.out, map[string]uint64{"block": n})
	})
}

type StorageCmd struct {
	Address string  `arg:"" help:"Account address."`
	Slot    string  `arg:"" help:"Slot as 0x-prefixed hex."`
	Block   *uint64 `help:"Block number; latest when omitted." name:"block"`
}

func (c *StorageCmd) Run(g *Globals, ctx context.Context) error {
	slot, err := parseUint(c.Slot)
	if err != nil {
		return err
	}
	word := slot.Bytes32()
	return withNode(ctx, g, func(a *app, conn *node.Conn) error {
		value, err := a.caller.Storage(ctx, conn, c.Address, word[:], c.Block)
		if err != nil {
			return err
		}
		return printJSON(a.out, map[string]any{"value": value})
	})
}

type SendRawCmd struct {
	Raw string `arg:"" help:"Signed transaction as 0x-prefixed hex."`
}

func (c *SendRawCmd) Run(g *Globals, ctx context.Context) error {
	raw, err := hexutil.Decode(c.Raw)
	if err != nil {
		return err
	}
	return withNode(ctx, g, func(a *app, conn *node.Conn) error {
		hash, err := a.caller.SendRaw(ctx, conn, raw)
		if err != nil {
			return err
		}
		return printJSON(a.out, map[string]any{"hash": hash})
	})
}

type ReceiptsCmd struct {
	Hash  string `help:"Show one receipt by transaction hash." name:"hash"`
	Limit int    `help:"Number of receipts to list, newest first." default:"20" name:"limit"`
}

func (c *ReceiptsCmd) Run(g *Globals, ctx context.Context) error {
	a, err := setup(g)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.receipts == nil {
		return errors.New("receipt store is not configured (store.badger.directory)")
	}

	if c.Hash != "" {
		rec, err := a.receipts.Get(c.Hash)
		if err != nil {
			return err
		}
		return printJSON(a.out, rec)
	}
	recs, err := a.receipts.Latest(c.Limit)
	if err != nil {
		return err
	}
	return printJSON(a.out, recs)
}
