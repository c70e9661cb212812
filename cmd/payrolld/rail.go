package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/payroll-ledger/config"
	"github.com/nspcc-dev/payroll-ledger/rail"
	"github.com/nspcc-dev/payroll-ledger/rail/nep17"
	"go.uber.org/zap"
)

// newRail returns the configured payment rail and the function releasing its
// resources.
func newRail(ctx context.Context, cfg config.Rail, logger *zap.Logger) (rail.Rail, func(), error) {
	if cfg.Type != config.RailNEP17 {
		logger.Warn("in-memory payment rail is used, transfers are not persisted")
		return rail.NewMemory(), func() {}, nil
	}

	acc, err := treasuryAccount(cfg.Wallet)
	if err != nil {
		return nil, nil, err
	}

	c, err := rpcclient.New(ctx, cfg.Endpoint, rpcclient.Options{
		DialTimeout:    cfg.DialTimeout,
		RequestTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("RPC client dial: %w", err)
	}

	err = c.Init()
	if err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("init RPC client: %w", err)
	}

	native, err := cfg.NativeAssetHash()
	if err != nil {
		c.Close()
		return nil, nil, err
	}

	r, err := nep17.New(nep17.Prm{
		Blockchain:  c,
		Account:     acc,
		NativeAsset: native,
		Logger:      logger,
	})
	if err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("init NEP-17 rail: %w", err)
	}

	logger.Info("NEP-17 payment rail is ready",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("treasury", address.Uint160ToString(r.Treasury())))

	return r, c.Close, nil
}

// treasuryAccount opens the wallet and decrypts the configured account, the
// first one if no address is set.
func treasuryAccount(cfg config.Wallet) (*wallet.Account, error) {
	w, err := wallet.NewWalletFromFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open wallet: %w", err)
	}

	var acc *wallet.Account

	if cfg.Address != "" {
		h, err := address.StringToUint160(cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid treasury address: %w", err)
		}
		acc = w.GetAccount(h)
		if acc == nil {
			return nil, fmt.Errorf("account %s not found in the wallet", cfg.Address)
		}
	} else {
		if len(w.Accounts) == 0 {
			return nil, errors.New("wallet has no accounts")
		}
		acc = w.Accounts[0]
	}

	err = acc.Decrypt(cfg.Password, w.Scrypt)
	if err != nil {
		return nil, fmt.Errorf("decrypt treasury account: %w", err)
	}

	return acc, nil
}
