// Package config reads nodelistctl configuration from a file, environment
// and command line overrides.
package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/arcana-network/nodelistctl/rpc/actor"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to all configuration environment variables, e.g.
// NODELIST_OWNER_KEY.
const EnvPrefix = "NODELIST"

// Configuration keys.
const (
	KeyRPCEndpoint     = "rpc_endpoint"
	KeyContractAddress = "contract_address"
	KeyOwnerKey        = "owner_key"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
)

// Defaults.
const (
	DefaultRPCEndpoint     = "https://arbitrum-sepolia.blockpi.network/v1/rpc/public"
	DefaultContractAddress = "0x7c20cB99e1F2CD1ECd1B425A51ff66D0f01E0Eda"
	DefaultLogLevel        = "warn"
	DefaultLogFormat       = "console"
)

// Config is the validated nodelistctl configuration.
type Config struct {
	RPCEndpoint string
	Contract    common.Address
	// Nil if not configured.
	OwnerKey *ecdsa.PrivateKey

	LogLevel  string
	LogFormat string
}

// New returns viper instance with defaults and environment bindings set.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyRPCEndpoint, DefaultRPCEndpoint)
	v.SetDefault(KeyContractAddress, DefaultContractAddress)
	v.SetDefault(KeyOwnerKey, "")
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Read loads optional configuration file into v and builds Config. Empty path
// means no file.
func Read(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)

		err := v.ReadInConfig()
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return Parse(v)
}

// Parse builds Config from already loaded v.
func Parse(v *viper.Viper) (*Config, error) {
	var cfg = &Config{
		RPCEndpoint: strings.TrimSpace(v.GetString(KeyRPCEndpoint)),
		LogLevel:    v.GetString(KeyLogLevel),
		LogFormat:   v.GetString(KeyLogFormat),
	}

	if cfg.RPCEndpoint == "" {
		return nil, errors.New("empty RPC endpoint")
	}

	contract := v.GetString(KeyContractAddress)
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("invalid contract address '%s'", contract)
	}
	cfg.Contract = common.HexToAddress(contract)

	if ownerKey := v.GetString(KeyOwnerKey); ownerKey != "" {
		key, err := actor.KeyFromHex(ownerKey)
		if err != nil {
			return nil, fmt.Errorf("owner key: %w", err)
		}
		cfg.OwnerKey = key
	}

	return cfg, nil
}
