package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arcana-network/nodelistctl/internal/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestDefaults(t *testing.T) {
	cfg, err := config.Read(config.New(), "")
	require.NoError(t, err)
	require.Equal(t, config.DefaultRPCEndpoint, cfg.RPCEndpoint)
	require.Equal(t, common.HexToAddress(config.DefaultContractAddress), cfg.Contract)
	require.Nil(t, cfg.OwnerKey)
	require.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	require.Equal(t, config.DefaultLogFormat, cfg.LogFormat)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("NODELIST_RPC_ENDPOINT", "http://localhost:8545")
	t.Setenv("NODELIST_CONTRACT_ADDRESS", "0x00000000000000000000000000000000000000f1")
	t.Setenv("NODELIST_OWNER_KEY", "0x"+testKey)
	t.Setenv("NODELIST_LOG_LEVEL", "debug")

	cfg, err := config.Read(config.New(), "")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8545", cfg.RPCEndpoint)
	require.Equal(t, common.HexToAddress("0xf1"), cfg.Contract)
	require.Equal(t, "debug", cfg.LogLevel)
	require.NotNil(t, cfg.OwnerKey)
	require.Equal(t, testKey, common.Bytes2Hex(crypto.FromECDSA(cfg.OwnerKey)))
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
rpc_endpoint: http://localhost:8545
owner_key: `+testKey+`
log:
  format: json
`), 0o600))

	v := config.New()
	// command line overrides everything
	v.Set(config.KeyContractAddress, "0x00000000000000000000000000000000000000f2")

	cfg, err := config.Read(v, path)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8545", cfg.RPCEndpoint)
	require.Equal(t, common.HexToAddress("0xf2"), cfg.Contract)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	require.NotNil(t, cfg.OwnerKey)

	_, err = config.Read(config.New(), filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

func TestInvalid(t *testing.T) {
	for key, val := range map[string]string{
		config.KeyRPCEndpoint:     " ",
		config.KeyContractAddress: "0x123",
		config.KeyOwnerKey:        "not a key",
	} {
		v := config.New()
		v.Set(key, val)

		_, err := config.Parse(v)
		require.Error(t, err, key)
	}
}
