// Package config loads node configuration from a YAML file with
// environment-variable overrides, adapted from the teacher's flag/env
// handling (cli.go) and enriched with github.com/spf13/viper the way
// certenIO-certen-validator's pkg/config layer loads its own service
// config (env-first, defaulted, then validated).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/sole-chain/sole-poa/internal/poa"
)

// ValidatorEntry is the on-disk shape of a single validator set member.
type ValidatorEntry struct {
	Address   string `mapstructure:"address"`
	PublicKey string `mapstructure:"public_key"`
}

// Config is the full node configuration: consensus parameters, storage
// location, and the listener addresses for the API/P2P layers.
type Config struct {
	DataDir string `mapstructure:"data_dir"`

	Validators      []ValidatorEntry `mapstructure:"validators"`
	BlockPeriod     int64            `mapstructure:"block_period_seconds"`
	GenerationLimit int              `mapstructure:"generation_limit"`
	SigningLimit    int              `mapstructure:"signing_limit"`
	Threshold       int              `mapstructure:"threshold"`
	MinTxs          int              `mapstructure:"min_txs"`

	APIListenAddr string `mapstructure:"api_listen_addr"`
	P2PListenPort int    `mapstructure:"p2p_listen_port"`
	BootstrapPeers []string `mapstructure:"bootstrap_peers"`

	LogLevel string `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("block_period_seconds", 15)
	v.SetDefault("generation_limit", 1)
	v.SetDefault("signing_limit", 1)
	v.SetDefault("threshold", 1)
	v.SetDefault("min_txs", 0)
	v.SetDefault("api_listen_addr", "0.0.0.0:8080")
	v.SetDefault("p2p_listen_port", 4001)
	v.SetDefault("log_level", "info")
}

// Load reads configPath (if non-empty) plus a SOLE_-prefixed
// environment overlay, the way the teacher's CLI layered flags over
// defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("sole")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// BuildPoA turns the loaded validator entries into a poa.PoA record,
// decoding each hex-encoded public key via poa.DecodeValidatorHex.
func (c *Config) BuildPoA() (poa.PoA, error) {
	validators := make([]poa.Validator, 0, len(c.Validators))
	for _, entry := range c.Validators {
		pub, err := poa.DecodeValidatorHex(entry.PublicKey)
		if err != nil {
			return poa.PoA{}, fmt.Errorf("config: validator %s: %w", entry.Address, err)
		}
		validators = append(validators, poa.Validator{Address: entry.Address, PublicKey: pub})
	}
	return poa.New(validators, c.BlockPeriod, c.GenerationLimit, c.SigningLimit, c.Threshold, c.MinTxs)
}
