package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

// --- CLI definitions --- //

type Globals struct {
	Config   string `help:"Path to config file." default:"configs/config.yaml" name:"config"`
	LogLevel string `help:"Log level." default:"info" enum:"debug,info,warn,error" name:"log-level"`
	Node     string `help:"Node name from the config." name:"node"`
	URL      string `help:"Node URL; overrides --node and works without a config file." name:"url"`
}

// ContractFlags select the bound contract: a configured name, or an
// address together with an ABI file.
type ContractFlags struct {
	Contract string `help:"Contract name from the config." short:"c" name:"contract"`
	Address  string `help:"Contract address, used with --abi." name:"address"`
	Abi      string `help:"Path to the contract ABI JSON, used with --address." name:"abi"`
}

type CLI struct {
	Globals

	Read         ReadCmd         `cmd:"" help:"Call a constant method."`
	ReadBatch    ReadBatchCmd    `cmd:"" name:"read-batch" help:"Call a constant method once per argument set in one batch."`
	Write        WriteCmd        `cmd:"" help:"Send a transaction and wait for confirmations."`
	EstimateGas  EstimateGasCmd  `cmd:"" name:"estimate-gas" help:"Estimate gas for a method call."`
	Watch        WatchCmd        `cmd:"" help:"Wait for contract events, optionally relaying them to NATS."`
	Block        BlockCmd        `cmd:"" help:"Show a block."`
	Tx           TxCmd           `cmd:"" help:"Show a transaction."`
	GasPrice     GasPriceCmd     `cmd:"" name:"gas-price" help:"Show the node gas price."`
	CurrentBlock CurrentBlockCmd `cmd:"" name:"current-block" help:"Show the current block number."`
	Storage      StorageCmd      `cmd:"" help:"Read a raw storage slot."`
	SendRaw      SendRawCmd      `cmd:"" name:"send-raw" help:"Submit a signed raw transaction."`
	Receipts     ReceiptsCmd     `cmd:"" help:"List receipts recorded by previous writes."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("contract-bridge"),
		kong.Description("Call EVM smart contracts from the command line."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	err := kctx.Run(&cli.Globals)
	kctx.FatalIfErrorf(err)
}
