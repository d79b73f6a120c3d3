package caller

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/fystack/contract-bridge/internal/abi"
	"github.com/fystack/contract-bridge/internal/contract"
	"github.com/fystack/contract-bridge/internal/node"
	"github.com/fystack/contract-bridge/internal/rpc/evm"
	"github.com/fystack/contract-bridge/pkg/common/logger"
)

// Auth selects how a write is authorized: SigningKey or ExternalAccount.
type Auth interface {
	auth()
}

// SigningKey is a raw secp256k1 private key. Write zeroes the buffer once
// the transaction is signed.
type SigningKey []byte

// ExternalAccount is the address of an account the node signs for.
type ExternalAccount string

func (SigningKey) auth()      {}
func (ExternalAccount) auth() {}

type WriteRequest struct {
	Method string
	Args   any
	Auth   Auth
	// Confirmations overrides the caller default when set.
	Confirmations *uint64
	Options       CallOptions
}

type EstimateRequest struct {
	Method  string
	Args    any
	From    string
	Options CallOptions
}

// Write sends a state-changing call and blocks until it has the requested
// confirmations. It carries no timeout of its own; ctx bounds it.
func (c *Caller) Write(ctx context.Context, ct *contract.Contract, req WriteRequest) (*Receipt, error) {
	conn, err := ct.Conn()
	if err != nil {
		return nil, err
	}
	msg, err := prepare(ct, req.Method, req.Args, req.Options)
	if err != nil {
		if key, ok := req.Auth.(SigningKey); ok {
			scrub(key)
		}
		return nil, err
	}

	var hash common.Hash
	switch auth := req.Auth.(type) {
	case SigningKey:
		hash, err = c.sendSigned(ctx, conn, msg, auth, req.Options)
	case ExternalAccount:
		if err = withFrom(&msg, string(auth)); err != nil {
			return nil, err
		}
		err = conn.Do(ctx, func(ctx context.Context, client *evm.Client) error {
			var err error
			hash, err = client.SendTransaction(ctx, msg)
			return err
		})
		err = classify(err)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedAuth, req.Auth)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Method, err)
	}
	logger.Info("Transaction submitted", "method", req.Method, "hash", hash.Hex())

	confirmations := c.confirmations
	if req.Confirmations != nil {
		confirmations = *req.Confirmations
	}
	receipt, err := c.awaitReceipt(ctx, conn, hash, confirmations)
	if err != nil {
		return nil, err
	}
	if c.sink != nil {
		if err := c.sink.SaveReceipt(ctx, receipt); err != nil {
			logger.Warn("Failed to record receipt", "hash", hash.Hex(), "err", err)
		}
	}
	return receipt, nil
}

// sendSigned fills the missing transaction fields from the node, signs
// locally and submits the raw transaction.
func (c *Caller) sendSigned(ctx context.Context, conn *node.Conn, msg evm.CallMsg, key SigningKey, opts CallOptions) (common.Hash, error) {
	if err := opts.fitsTransaction(); err != nil {
		scrub(key)
		return common.Hash{}, err
	}
	priv, err := crypto.ToECDSA(key)
	scrub(key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid signing key: %w", err)
	}
	defer func() {
		words := priv.D.Bits()
		for i := range words {
			words[i] = 0
		}
	}()

	from := crypto.PubkeyToAddress(priv.PublicKey)
	msg.From = &from

	var hash common.Hash
	err = conn.Do(ctx, func(ctx context.Context, client *evm.Client) error {
		var (
			nonce uint64
			err   error
		)
		if opts.Nonce != nil {
			nonce = opts.Nonce.Uint64()
		} else if nonce, err = client.PendingNonceAt(ctx, from); err != nil {
			return err
		}

		gasPrice := bigOf(opts.GasPrice)
		if gasPrice == nil {
			if gasPrice, err = client.GasPrice(ctx); err != nil {
				return err
			}
		}

		var gas uint64
		if opts.Gas != nil {
			gas = opts.Gas.Uint64()
		} else {
			estimate, err := client.EstimateGas(ctx, msg)
			if err != nil {
				return err
			}
			gas = estimate.Uint64()
		}

		chainID, err := client.ChainID(ctx)
		if err != nil {
			return err
		}

		value := bigOf(opts.Value)
		if value == nil {
			value = new(big.Int)
		}
		tx := types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       msg.To,
			Value:    value,
			Data:     msg.Data,
		})
		signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), priv)
		if err != nil {
			return fmt.Errorf("sign transaction: %w", err)
		}
		raw, err := signed.MarshalBinary()
		if err != nil {
			return err
		}
		hash, err = client.SendRawTransaction(ctx, raw)
		return err
	})
	return hash, classify(err)
}

func bigOf(u *uint256.Int) *big.Int {
	if u == nil {
		return nil
	}
	return u.ToBig()
}

func scrub(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// fitsTransaction rejects nonce and gas overrides a transaction field cannot
// hold.
func (o CallOptions) fitsTransaction() error {
	for _, f := range []struct {
		name string
		v    *uint256.Int
	}{{OptNonce, o.Nonce}, {OptGas, o.Gas}} {
		if f.v != nil && !f.v.IsUint64() {
			return fmt.Errorf("%w: %s %s exceeds 64 bits", abi.ErrUnsupportedConversion, f.name, f.v.Dec())
		}
	}
	return nil
}

// awaitReceipt polls until the transaction is mined and the head has moved
// confirmations blocks past it. Each poll is its own scheduler job.
func (c *Caller) awaitReceipt(ctx context.Context, conn *node.Conn, hash common.Hash, confirmations uint64) (*Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var (
			receipt *evm.TxnReceipt
			head    uint64
		)
		err := conn.Do(ctx, func(ctx context.Context, client *evm.Client) error {
			var err error
			if receipt, err = client.TransactionReceipt(ctx, hash); err != nil || receipt == nil || !receipt.Mined() {
				return err
			}
			head, err = client.BlockNumber(ctx)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("await receipt %s: %w", hash.Hex(), classify(err))
		}
		if receipt != nil && receipt.Mined() && head >= uint64(*receipt.BlockNumber)+confirmations {
			logger.Info("Transaction confirmed", "hash", hash.Hex(), "block", uint64(*receipt.BlockNumber), "confirmations", confirmations)
			return newReceipt(receipt), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// EstimateGas asks the node how much gas the call would use.
func (c *Caller) EstimateGas(ctx context.Context, ct *contract.Contract, req EstimateRequest) (*uint256.Int, error) {
	if req.From == "" {
		return nil, ErrMissingFrom
	}
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

	var gas *big.Int
	err = c.timed(ctx, conn, "estimate-gas", func(ctx context.Context, client *evm.Client) error {
		var err error
		gas, err = client.EstimateGas(ctx, msg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Method, err)
	}
	out, overflow := uint256.FromBig(gas)
	if overflow {
		return nil, fmt.Errorf("%w: gas estimate exceeds 256 bits", abi.ErrUnsupportedConversion)
	}
	return out, nil
}
