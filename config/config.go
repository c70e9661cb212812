// Package config loads configuration of the payroll daemon.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/storage/dbconfig"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/payroll-ledger/payroll"
	"github.com/nspcc-dev/payroll-ledger/payroll/payrollconst"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Rail types.
const (
	RailMemory = "memory"
	RailNEP17  = "nep17"
)

// Config is the daemon configuration.
type Config struct {
	Logger  Logger                   `yaml:"logger"`
	Storage dbconfig.DBConfiguration `yaml:"storage"`
	Payroll Payroll                  `yaml:"payroll"`
	API     API                      `yaml:"api"`
	Rail    Rail                     `yaml:"rail"`
}

type Logger struct {
	Level string `yaml:"level"`
}

// Payroll configures the ledger. Owner, oracle and token limit are applied
// only when the ledger storage is empty.
type Payroll struct {
	Owner      string        `yaml:"owner"`
	Oracle     string        `yaml:"oracle"`
	TokenLimit uint64        `yaml:"token_limit"`
	PayPeriod  time.Duration `yaml:"pay_period"`
	Cooldown   string        `yaml:"cooldown"`
}

type API struct {
	Address         string        `yaml:"address"`
	RateLimit       float64       `yaml:"rate_limit"`
	RateBurst       int           `yaml:"rate_burst"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Rail configures the payment rail. Endpoint, wallet and native asset are
// used by the nep17 rail only.
type Rail struct {
	Type        string        `yaml:"type"`
	Endpoint    string        `yaml:"endpoint"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	NativeAsset string        `yaml:"native_asset"`
	Wallet      Wallet        `yaml:"wallet"`
}

type Wallet struct {
	Path     string `yaml:"path"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
}

// Default returns configuration used for the missing values.
func Default() Config {
	return Config{
		Logger:  Logger{Level: "info"},
		Storage: dbconfig.DBConfiguration{Type: dbconfig.InMemoryDB},
		Payroll: Payroll{
			TokenLimit: payrollconst.DefaultTokenLimit,
			PayPeriod:  payrollconst.PayPeriod,
			Cooldown:   payroll.SharedCooldown.String(),
		},
		API: API{
			Address:         ":8080",
			RateLimit:       5,
			RateBurst:       10,
			ShutdownTimeout: 10 * time.Second,
		},
		Rail: Rail{
			Type:        RailMemory,
			DialTimeout: 5 * time.Second,
		},
	}
}

// Load reads configuration from the YAML file, if the path is not empty, and
// applies PAYROLL_* environment overrides on top of it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate checks configuration consistency.
func (c Config) Validate() error {
	if _, err := c.Logger.ZapLevel(); err != nil {
		return err
	}

	switch c.Storage.Type {
	case dbconfig.InMemoryDB, dbconfig.BoltDB, dbconfig.LevelDB:
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}

	if _, err := c.Payroll.Prm(); err != nil {
		return err
	}
	if _, err := payroll.ParseCooldownPolicy(c.Payroll.Cooldown); err != nil {
		return err
	}
	if c.Payroll.PayPeriod <= 0 {
		return errors.New("pay period must be positive")
	}

	if c.API.RateLimit <= 0 || c.API.RateBurst <= 0 {
		return errors.New("API rate limit and burst must be positive")
	}

	switch c.Rail.Type {
	case RailMemory:
	case RailNEP17:
		switch {
		case c.Rail.Endpoint == "":
			return errors.New("missing RPC endpoint of nep17 rail")
		case c.Rail.Wallet.Path == "":
			return errors.New("missing wallet of nep17 rail")
		}
		if c.Rail.Wallet.Address != "" {
			if _, err := address.StringToUint160(c.Rail.Wallet.Address); err != nil {
				return fmt.Errorf("invalid wallet address: %w", err)
			}
		}
		if _, err := c.Rail.NativeAssetHash(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported rail type %q", c.Rail.Type)
	}

	return nil
}

// ZapLevel returns parsed logging level.
func (l Logger) ZapLevel() (zap.AtomicLevel, error) {
	lvl, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return lvl, fmt.Errorf("invalid logger level: %w", err)
	}
	return lvl, nil
}

// Prm returns initial ledger parameters.
func (p Payroll) Prm() (payroll.Prm, error) {
	var (
		prm payroll.Prm
		err error
	)

	if p.Owner == "" {
		return prm, errors.New("missing ledger owner")
	}
	prm.Owner, err = address.StringToUint160(p.Owner)
	if err != nil {
		return prm, fmt.Errorf("invalid owner address: %w", err)
	}

	if p.Oracle != "" {
		prm.Oracle, err = address.StringToUint160(p.Oracle)
		if err != nil {
			return prm, fmt.Errorf("invalid oracle address: %w", err)
		}
	}

	prm.TokenLimit = p.TokenLimit

	return prm, nil
}

// Options returns ledger options set by the configuration.
func (p Payroll) Options() ([]payroll.Option, error) {
	policy, err := payroll.ParseCooldownPolicy(p.Cooldown)
	if err != nil {
		return nil, err
	}

	return []payroll.Option{
		payroll.WithCooldownPolicy(policy),
		payroll.WithPayPeriod(p.PayPeriod),
	}, nil
}

// NativeAssetHash returns configured native asset contract, zero if it is not
// set.
func (r Rail) NativeAssetHash() (util.Uint160, error) {
	if r.NativeAsset == "" {
		return util.Uint160{}, nil
	}

	h, err := util.Uint160DecodeStringLE(r.NativeAsset)
	if err != nil {
		return h, fmt.Errorf("invalid native asset %q: %w", r.NativeAsset, err)
	}
	return h, nil
}
