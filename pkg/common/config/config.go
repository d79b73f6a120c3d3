package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/imdario/mergo"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultConfirmations = uint64(12)
	DefaultPollInterval  = time.Second
	DefaultRPS           = 10
	DefaultBurst         = 20

	// TimeoutEnv carries the per-call timeout in whole seconds.
	TimeoutEnv = "WEB3_TIMEOUT"
)

var validate = validator.New()

type Env string

const (
	DevEnv  Env = "dev"
	ProdEnv Env = "prod"
	StgEnv  Env = "stag"
)

type Config struct {
	Environment Env                 `yaml:"env"       validate:"required,oneof=dev prod stag"`
	Defaults    Defaults            `yaml:"defaults"`
	Nodes       map[string]Node     `yaml:"nodes"     validate:"required,min=1,dive"`
	Contracts   map[string]Contract `yaml:"contracts" validate:"dive"`
	Store       StoreConfig         `yaml:"store"`
	NATS        NATSConfig          `yaml:"nats"`
}

type Defaults struct {
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// Confirmations is a pointer so an explicit 0 survives defaulting.
	Confirmations *uint64  `yaml:"confirmations"`
	Throttle      Throttle `yaml:"throttle"`
}

type Throttle struct {
	RPS   int `yaml:"rps"   validate:"min=0"`
	Burst int `yaml:"burst" validate:"min=0"`
}

type Contract struct {
	Node    string `yaml:"node"     validate:"required"`
	Address string `yaml:"address"  validate:"required"`
	AbiPath string `yaml:"abi_path" validate:"required"`
}

type StoreConfig struct {
	Badger BadgerConfig `yaml:"badger"`
}

type BadgerConfig struct {
	Directory string `yaml:"directory"`
	Prefix    string `yaml:"prefix"`
}

type NATSConfig struct {
	URL           string  `yaml:"url"            validate:"omitempty,url"`
	SubjectPrefix string  `yaml:"subject_prefix"`
	Username      string  `yaml:"username"`
	Password      string  `yaml:"password"`
	TLS           TLSFile `yaml:"tls"`
}

// TLSFile points at PEM files used outside dev.
type TLSFile struct {
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
	CACert     string `yaml:"ca_cert"`
}

// ConfirmationCount returns the configured confirmation depth.
func (d Defaults) ConfirmationCount() uint64 {
	if d.Confirmations == nil {
		return DefaultConfirmations
	}
	return *d.Confirmations
}

// TimeoutFromEnv reads TimeoutEnv, falling back to DefaultTimeout when it is
// unset or not a positive integer.
func TimeoutFromEnv() time.Duration {
	raw := os.Getenv(TimeoutEnv)
	if raw == "" {
		return DefaultTimeout
	}
	secs, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || secs == 0 {
		return DefaultTimeout
	}
	return time.Duration(secs) * time.Second
}

// BaseDefaults is what a config file without a defaults block resolves to.
func BaseDefaults() Defaults {
	confirmations := DefaultConfirmations
	return Defaults{
		Timeout:       TimeoutFromEnv(),
		PollInterval:  DefaultPollInterval,
		Confirmations: &confirmations,
		Throttle:      Throttle{RPS: DefaultRPS, Burst: DefaultBurst},
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes, defaults, finalizes and validates a YAML document.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := mergo.Merge(&cfg.Defaults, BaseDefaults()); err != nil {
		return nil, err
	}

	for name, node := range cfg.Nodes {
		if err := mergo.Merge(&node, Node{Timeout: cfg.Defaults.Timeout, Throttle: cfg.Defaults.Throttle}); err != nil {
			return nil, err
		}
		if err := node.finalize(name); err != nil {
			return nil, err
		}
		cfg.Nodes[name] = node
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("struct validation failed: %w", err)
	}

	for name, c := range cfg.Contracts {
		if _, ok := cfg.Nodes[c.Node]; !ok {
			return nil, fmt.Errorf("contract %s: unknown node %q", name, c.Node)
		}
	}
	return &cfg, nil
}

func (c *Config) Node(name string) (Node, error) {
	if n, ok := c.Nodes[name]; ok {
		return n, nil
	}
	return Node{}, fmt.Errorf("node %s not found", name)
}

func (c *Config) Contract(name string) (Contract, error) {
	if ct, ok := c.Contracts[name]; ok {
		return ct, nil
	}
	return Contract{}, fmt.Errorf("contract %s not found", name)
}
