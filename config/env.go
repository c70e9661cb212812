package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables overriding configuration values.
const (
	EnvLogLevel       = "PAYROLL_LOG_LEVEL"
	EnvStorageType    = "PAYROLL_STORAGE_TYPE"
	EnvStoragePath    = "PAYROLL_STORAGE_PATH"
	EnvOwner          = "PAYROLL_OWNER"
	EnvOracle         = "PAYROLL_ORACLE"
	EnvPayPeriod      = "PAYROLL_PAY_PERIOD"
	EnvCooldown       = "PAYROLL_COOLDOWN"
	EnvAPIAddress     = "PAYROLL_API_ADDRESS"
	EnvAPIRateLimit   = "PAYROLL_API_RATE_LIMIT"
	EnvRailType       = "PAYROLL_RAIL_TYPE"
	EnvRailEndpoint   = "PAYROLL_RAIL_ENDPOINT"
	EnvWalletPath     = "PAYROLL_WALLET_PATH"
	EnvWalletPassword = "PAYROLL_WALLET_PASSWORD"
)

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func overrideString(dst *string, key string) {
	if v := envString(key); v != "" {
		*dst = v
	}
}

func applyEnvOverrides(cfg *Config) error {
	overrideString(&cfg.Logger.Level, EnvLogLevel)
	overrideString(&cfg.Storage.Type, EnvStorageType)
	if p := envString(EnvStoragePath); p != "" {
		cfg.Storage.BoltDBOptions.FilePath = p
		cfg.Storage.LevelDBOptions.DataDirectoryPath = p
	}

	overrideString(&cfg.Payroll.Owner, EnvOwner)
	overrideString(&cfg.Payroll.Oracle, EnvOracle)
	overrideString(&cfg.Payroll.Cooldown, EnvCooldown)
	if raw := envString(EnvPayPeriod); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPayPeriod, err)
		}
		cfg.Payroll.PayPeriod = d
	}

	overrideString(&cfg.API.Address, EnvAPIAddress)
	if raw := envString(EnvAPIRateLimit); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvAPIRateLimit, err)
		}
		cfg.API.RateLimit = v
	}

	overrideString(&cfg.Rail.Type, EnvRailType)
	overrideString(&cfg.Rail.Endpoint, EnvRailEndpoint)
	overrideString(&cfg.Rail.Wallet.Path, EnvWalletPath)
	// password may legitimately be empty
	if v, ok := os.LookupEnv(EnvWalletPassword); ok {
		cfg.Rail.Wallet.Password = v
	}

	return nil
}
