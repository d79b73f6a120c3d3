package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/fystack/contract-bridge/internal/caller"
	"github.com/fystack/contract-bridge/internal/contract"
	"github.com/fystack/contract-bridge/internal/node"
	"github.com/fystack/contract-bridge/internal/rpc"
	"github.com/fystack/contract-bridge/pkg/common/config"
	"github.com/fystack/contract-bridge/pkg/common/logger"
	"github.com/fystack/contract-bridge/pkg/kvstore"
	"github.com/fystack/contract-bridge/pkg/ratelimiter"
	"github.com/fystack/contract-bridge/pkg/retry"
	"github.com/fystack/contract-bridge/pkg/store/receiptstore"
)

// stdout receives command output.
var stdout io.Writer = os.Stdout

type app struct {
	cfg      *config.Config
	caller   *caller.Caller
	registry *node.Registry
	receipts receiptstore.Store
	out      io.Writer

	// nodes maps a dialed URL to its settings.
	nodes map[string]config.Node
}

func setup(g *Globals) (*app, error) {
	level, err := logger.ParseLevel(g.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.Init(&logger.Options{Level: level, TimeFormat: time.RFC3339})

	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, out: stdout, nodes: map[string]config.Node{}}
	a.registry = node.NewRegistryWithDialer(a.dial)

	opts := []caller.Option{
		caller.WithTimeout(cfg.Defaults.Timeout),
		caller.WithConfirmations(cfg.Defaults.ConfirmationCount()),
		caller.WithPollInterval(cfg.Defaults.PollInterval),
	}
	if dir := cfg.Store.Badger.Directory; dir != "" {
		kv, err := kvstore.NewBadgerStore(dir, cfg.Store.Badger.Prefix, kvstore.JSON)
		if err != nil {
			return nil, err
		}
		a.receipts = receiptstore.New(kv)
		opts = append(opts, caller.WithReceiptSink(a.receipts))
	}
	a.caller = caller.New(opts...)
	return a, nil
}

// loadConfig reads the config file. With --url a missing file is fine and
// the base defaults apply.
func loadConfig(g *Globals) (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err == nil {
		return cfg, nil
	}
	if g.URL != "" && errors.Is(err, fs.ErrNotExist) {
		return &config.Config{Environment: config.DevEnv, Defaults: config.BaseDefaults()}, nil
	}
	return nil, fmt.Errorf("load config %s: %w", g.Config, err)
}

func (a *app) Close() {
	if a.receipts != nil {
		if err := a.receipts.Close(); err != nil {
			logger.Warn("Close receipt store failed", "err", err)
		}
	}
}

func (a *app) dial(ctx context.Context, url string) (*node.Conn, error) {
	n := a.nodes[url]
	return node.Dial(ctx, url, node.Options{
		Transport: n.Type,
		Auth:      rpc.NodeToAuthConfig(n),
		Timeout:   n.Timeout,
		Limiter:   ratelimiter.Shared(url, n.Throttle.RPS, n.Throttle.Burst),
	})
}

// resolveNode picks --url, then --node, then the contract's node, then the
// only configured node.
func (a *app) resolveNode(g *Globals, contractNode string) (string, config.Node, error) {
	if g.URL != "" {
		return g.URL, config.Node{
			URL:      g.URL,
			Timeout:  a.cfg.Defaults.Timeout,
			Throttle: a.cfg.Defaults.Throttle,
		}, nil
	}

	name := g.Node
	if name == "" {
		name = contractNode
	}
	if name == "" && len(a.cfg.Nodes) == 1 {
		for only := range a.cfg.Nodes {
			name = only
		}
	}
	if name == "" {
		return "", config.Node{}, errors.New("no node selected: use --node or --url")
	}
	n, err := a.cfg.Node(name)
	return name, n, err
}

// connect acquires the shared connection, retrying the dial with backoff.
func (a *app) connect(ctx context.Context, g *Globals, contractNode string) (*node.Conn, func(), error) {
	name, n, err := a.resolveNode(g, contractNode)
	if err != nil {
		return nil, nil, err
	}
	a.nodes[n.URL] = n

	var (
		conn    *node.Conn
		release func()
	)
	err = retry.Exponential(ctx, func() error {
		var err error
		conn, release, err = a.registry.Acquire(ctx, name, n.URL)
		return err
	}, retry.ExponentialConfig{
		InitialInterval: retry.DefaultInterval,
		MaxAttempts:     retry.DefaultMaxAttempts,
		OnRetry: func(err error, next time.Duration) {
			logger.Warn("Connect failed, retrying", "node", name, "err", err, "next", next)
		},
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Connected", "node", name, "transport", conn.Kind())
	return conn, release, nil
}

func (a *app) bind(ctx context.Context, g *Globals, f ContractFlags) (*contract.Contract, func(), error) {
	address, abiPath, nodeName := f.Address, f.Abi, ""
	if f.Contract != "" {
		c, err := a.cfg.Contract(f.Contract)
		if err != nil {
			return nil, nil, err
		}
		address, abiPath, nodeName = c.Address, c.AbiPath, c.Node
		if f.Address != "" {
			address = f.Address
		}
	}
	if address == "" || abiPath == "" {
		return nil, nil, errors.New("use --contract, or --address together with --abi")
	}

	doc, err := os.ReadFile(abiPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read abi: %w", err)
	}
	conn, release, err := a.connect(ctx, g, nodeName)
	if err != nil {
		return nil, nil, err
	}
	ct, err := contract.NewBinder(conn, doc).Bind(address)
	if err != nil {
		release()
		return nil, nil, err
	}
	return ct, release, nil
}
