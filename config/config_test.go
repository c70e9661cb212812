package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/storage/dbconfig"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/gas"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/payroll-ledger/payroll"
	"github.com/stretchr/testify/require"
)

var (
	owner  = util.Uint160{1}
	oracle = util.Uint160{2}
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf(`
logger:
  level: debug
storage:
  Type: boltdb
  BoltDBOptions:
    FilePath: /var/lib/payroll/ledger.bolt
payroll:
  owner: %s
  oracle: %s
  token_limit: 5
  pay_period: 720h
  cooldown: separate
api:
  address: 127.0.0.1:9000
  rate_limit: 1.5
  rate_burst: 3
rail:
  type: nep17
  endpoint: http://localhost:30333
  native_asset: %s
  wallet:
    path: /etc/payroll/wallet.json
`, address.Uint160ToString(owner), address.Uint160ToString(oracle), gas.Hash.StringLE()))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.Logger.Level)
	require.Equal(t, dbconfig.BoltDB, cfg.Storage.Type)
	require.Equal(t, "/var/lib/payroll/ledger.bolt", cfg.Storage.BoltDBOptions.FilePath)
	require.Equal(t, 720*time.Hour, cfg.Payroll.PayPeriod)
	require.Equal(t, "127.0.0.1:9000", cfg.API.Address)
	require.Equal(t, 1.5, cfg.API.RateLimit)
	require.Equal(t, 3, cfg.API.RateBurst)
	require.Equal(t, 10*time.Second, cfg.API.ShutdownTimeout, "defaults are kept")
	require.Equal(t, RailNEP17, cfg.Rail.Type)

	prm, err := cfg.Payroll.Prm()
	require.NoError(t, err)
	require.Equal(t, payroll.Prm{Owner: owner, Oracle: oracle, TokenLimit: 5}, prm)

	opts, err := cfg.Payroll.Options()
	require.NoError(t, err)
	require.Len(t, opts, 2)

	native, err := cfg.Rail.NativeAssetHash()
	require.NoError(t, err)
	require.Equal(t, gas.Hash, native)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf("payroll:\n  owner: %s\n", address.Uint160ToString(owner)))

	t.Setenv(EnvOracle, address.Uint160ToString(oracle))
	t.Setenv(EnvPayPeriod, "1h")
	t.Setenv(EnvStorageType, dbconfig.LevelDB)
	t.Setenv(EnvStoragePath, "/tmp/payroll")
	t.Setenv(EnvAPIRateLimit, "20")
	t.Setenv(EnvWalletPassword, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, address.Uint160ToString(oracle), cfg.Payroll.Oracle)
	require.Equal(t, time.Hour, cfg.Payroll.PayPeriod)
	require.Equal(t, dbconfig.LevelDB, cfg.Storage.Type)
	require.Equal(t, "/tmp/payroll", cfg.Storage.LevelDBOptions.DataDirectoryPath)
	require.EqualValues(t, 20, cfg.API.RateLimit)
	require.Equal(t, RailMemory, cfg.Rail.Type)

	t.Run("malformed", func(t *testing.T) {
		t.Setenv(EnvPayPeriod, "month")
		_, err := Load(path)
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.Payroll.Owner = address.Uint160ToString(owner)
		return cfg
	}
	require.NoError(t, valid().Validate())

	for name, corrupt := range map[string]func(*Config){
		"missing owner":        func(c *Config) { c.Payroll.Owner = "" },
		"invalid owner":        func(c *Config) { c.Payroll.Owner = "NotAnAddress" },
		"invalid oracle":       func(c *Config) { c.Payroll.Oracle = "x" },
		"unknown cooldown":     func(c *Config) { c.Payroll.Cooldown = "weekly" },
		"zero pay period":      func(c *Config) { c.Payroll.PayPeriod = 0 },
		"unknown storage":      func(c *Config) { c.Storage.Type = "postgres" },
		"unknown log level":    func(c *Config) { c.Logger.Level = "verbose" },
		"zero rate limit":      func(c *Config) { c.API.RateLimit = 0 },
		"unknown rail":         func(c *Config) { c.Rail.Type = "swift" },
		"nep17 without RPC":    func(c *Config) { c.Rail.Type = RailNEP17; c.Rail.Wallet.Path = "w.json" },
		"nep17 without wallet": func(c *Config) { c.Rail.Type = RailNEP17; c.Rail.Endpoint = "http://localhost" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			corrupt(&cfg)
			require.Error(t, cfg.Validate())
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
		require.Error(t, err)
	})
}
