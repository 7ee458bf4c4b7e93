// Package config loads the coordinator configuration from a YAML file,
// environment variables, or both. Environment variables override file
// values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/spf13/viper"
)

// Defaults for Polygon Amoy.
const (
	DefaultChainID      = 80002
	DefaultExplorerBase = "https://amoy.polygonscan.com"
	DefaultWindowSize   = 20
	DefaultTickInterval = 30 * time.Second
)

// ChainConfig is the RPC and network section.
type ChainConfig struct {
	Endpoints    []string      `mapstructure:"endpoints" yaml:"endpoints"`         // Candidate RPC URLs in preference order
	ChainID      uint64        `mapstructure:"chain_id" yaml:"chain_id"`           // Expected EVM chain id
	Explorer     string        `mapstructure:"explorer" yaml:"explorer"`           // Block explorer base URL
	MinHealthy   int           `mapstructure:"min_healthy" yaml:"min_healthy"`     // Startup probe target; 0 uses the default
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"` // Endpoint probe budget; 0 uses the default
	CallTimeout  time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`   // Per-RPC budget; 0 uses the default
}

// ContractConfig is the staking contract section.
type ContractConfig struct {
	Address string `mapstructure:"address" yaml:"address"` // Deployed staking contract address
}

// GovernanceConfig tunes the governance components.
type GovernanceConfig struct {
	AdminAllowList []string      `mapstructure:"admin_allow_list" yaml:"admin_allow_list"` // Addresses trusted as admins without an on-chain check
	WindowSize     uint64        `mapstructure:"window_size" yaml:"window_size"`           // How many recent actions to project
	TickInterval   time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`       // Reconciliation period
}

// WalletConfig is the signing section.
//
// WARNING: This data type contains sensitive fields and should not be logged
// or set in file configuration.
type WalletConfig struct {
	PrivateKey string `mapstructure:"private_key" yaml:"private_key"` // Secret: hex private key for the CLI wallet session
}

// Config wraps the entire coordinator configuration.
type Config struct {
	Chain      ChainConfig      `mapstructure:"chain" yaml:"chain"`
	Contract   ContractConfig   `mapstructure:"contract" yaml:"contract"`
	Governance GovernanceConfig `mapstructure:"governance" yaml:"governance"`
	Wallet     WalletConfig     `mapstructure:"wallet" yaml:"wallet"`
}

// Validate checks the parts every deployment must set.
func (c *Config) Validate() error {
	if len(c.Chain.Endpoints) == 0 {
		return errors.New("config: at least one RPC endpoint is required")
	}
	if c.Contract.Address == "" {
		return errors.New("config: contract address is required")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Chain.ChainID == 0 {
		c.Chain.ChainID = DefaultChainID
	}
	if c.Chain.Explorer == "" {
		c.Chain.Explorer = DefaultExplorerBase
	}
	if c.Governance.WindowSize == 0 {
		c.Governance.WindowSize = DefaultWindowSize
	}
	if c.Governance.TickInterval == 0 {
		c.Governance.TickInterval = DefaultTickInterval
	}
}

// Load loads the config from the file path, falling back to env vars if the
// file does not exist. If the file exists, any env vars that are set override
// the values loaded from the file.
func Load(filePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filePath)

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadEnv loads the config from the environment variables alone.
func LoadEnv() (*Config, error) {
	v := viper.New()

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

// envBindings maps config keys to the environment variables that can provide
// their values. List-valued keys take comma-separated values.
var envBindings = map[string][]string{
	"chain.endpoints":             {"LPGOV_CHAIN_ENDPOINTS"},
	"chain.chain_id":              {"LPGOV_CHAIN_ID"},
	"chain.explorer":              {"LPGOV_CHAIN_EXPLORER"},
	"chain.min_healthy":           {"LPGOV_CHAIN_MIN_HEALTHY"},
	"chain.probe_timeout":         {"LPGOV_CHAIN_PROBE_TIMEOUT"},
	"chain.call_timeout":          {"LPGOV_CHAIN_CALL_TIMEOUT"},
	"contract.address":            {"LPGOV_CONTRACT_ADDRESS"},
	"governance.admin_allow_list": {"LPGOV_ADMIN_ALLOW_LIST"},
	"governance.window_size":      {"LPGOV_WINDOW_SIZE"},
	"governance.tick_interval":    {"LPGOV_TICK_INTERVAL"},
	"wallet.private_key":          {"LPGOV_WALLET_PRIVATE_KEY"},
}

// bindEnvs binds the environment variable mappings to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		inputs := slices.Insert(envs, 0, key)

		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}
