/*
Package nep17 implements the payment rail holding the treasury on a Neo
network account. Tokens are NEP-17 contracts, the native currency is GAS
unless configured otherwise.

Every batch of transfers is sent as a single transaction asserting the result
of each NEP-17 transfer call, so the batch either succeeds completely or
faults without any effect.

Amounts are converted at the rail boundary: native currency amounts are
18-decimal fixed point numbers and are truncated to the precision of the
native asset, token amounts are whole units.
*/
package nep17

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/gas"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/nep17"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/payroll-ledger/payroll/payrollconst"
	"github.com/nspcc-dev/payroll-ledger/rail"
	"go.uber.org/zap"
)

// Prm groups parameters of the rail.
type Prm struct {
	// Blockchain to send transactions to. Required.
	Blockchain actor.RPCActor

	// Treasury account, must be decrypted. Required.
	Account *wallet.Account

	// Contract of the native currency, GAS by default.
	NativeAsset util.Uint160

	Logger *zap.Logger
}

// Rail is a rail.Rail sending NEP-17 transfers from the treasury account.
type Rail struct {
	log    *zap.Logger
	act    *actor.Actor
	native util.Uint160

	mtx      sync.Mutex
	decimals map[util.Uint160]int
}

// New creates Rail signing transactions with the treasury account.
func New(prm Prm) (*Rail, error) {
	switch {
	case prm.Blockchain == nil:
		return nil, errors.New("missing blockchain")
	case prm.Account == nil:
		return nil, errors.New("missing treasury account")
	}

	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}
	if prm.NativeAsset.Equals(util.Uint160{}) {
		prm.NativeAsset = gas.Hash
	}

	act, err := actor.NewSimple(prm.Blockchain, prm.Account)
	if err != nil {
		return nil, fmt.Errorf("init transaction actor: %w", err)
	}

	return &Rail{
		log:      prm.Logger,
		act:      act,
		native:   prm.NativeAsset,
		decimals: make(map[util.Uint160]int),
	}, nil
}

// Treasury returns script hash of the treasury account.
func (r *Rail) Treasury() util.Uint160 {
	return r.act.Sender()
}

// Send implements rail.Rail.
func (r *Rail) Send(ctx context.Context, transfers []rail.Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	script, calls, err := r.script(transfers)
	if err != nil {
		return fmt.Errorf("%w: %w", rail.ErrTransferFailed, err)
	}
	if calls == 0 {
		return nil
	}

	txHash, vub, err := r.act.SendRun(script)
	res, err := r.act.Wait(txHash, vub, err)
	if err != nil {
		return fmt.Errorf("%w: send transaction: %w", rail.ErrTransferFailed, err)
	}
	if res.VMState != vmstate.Halt {
		return fmt.Errorf("%w: transaction %s faulted: %s",
			rail.ErrTransferFailed, txHash.StringLE(), res.FaultException)
	}

	r.log.Info("transfers sent",
		zap.Stringer("tx", txHash),
		zap.Int("transfers", calls))

	return nil
}

// script builds the invocation asserting every transfer. It returns the
// number of transfer calls, zero amounts below the asset precision are
// skipped.
func (r *Rail) script(transfers []rail.Transfer) ([]byte, int, error) {
	b := smartcontract.NewBuilder()
	from := r.act.Sender()
	calls := 0

	for i := range transfers {
		contract, amount, err := r.toChain(transfers[i])
		if err != nil {
			return nil, 0, fmt.Errorf("transfer #%d: %w", i, err)
		}
		if amount.Sign() == 0 {
			r.log.Debug("transfer is below asset precision, skipping",
				zap.Int("index", i), zap.Stringer("asset", contract))
			continue
		}

		r.log.Debug("transfer",
			zap.Int("index", i),
			zap.Stringer("asset", contract),
			zap.Stringer("amount", amount),
			zap.String("kind", transfers[i].Kind()))

		b.InvokeWithAssert(contract, "transfer", from, transfers[i].To, amount, transfers[i].Details)
		calls++
	}

	if calls == 0 {
		return nil, 0, nil
	}

	script, err := b.Script()
	if err != nil {
		return nil, 0, fmt.Errorf("build script: %w", err)
	}
	return script, calls, nil
}

// Sweepable implements rail.Sweeper. Transaction fees are paid in GAS from the
// treasury, so when the native asset is GAS, the fees of the whole batch are
// kept on the account.
func (r *Rail) Sweepable(ctx context.Context, sweep rail.Transfer, batch []rail.Transfer) (*big.Int, error) {
	if !sweep.IsNative() || !r.native.Equals(gas.Hash) {
		return r.BalanceOf(ctx, sweep.Asset)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dec, err := r.assetDecimals(gas.Hash)
	if err != nil {
		return nil, err
	}

	bal, err := nep17.NewReader(r.act, gas.Hash).BalanceOf(r.act.Sender())
	if err != nil {
		return nil, fmt.Errorf("balance of GAS: %w", err)
	}
	if bal.Sign() == 0 {
		return bal, nil
	}

	// fees can only decrease with the swept amount
	sweep.Amount = scale(bal, dec, payrollconst.NativeDecimals)
	script, calls, err := r.script(append(append([]rail.Transfer(nil), batch...), sweep))
	if err != nil {
		return nil, err
	}
	if calls == 0 {
		return new(big.Int), nil
	}

	tx, err := r.act.MakeUnsignedRun(script, nil)
	if err != nil {
		return nil, fmt.Errorf("estimate sweep fees: %w", err)
	}

	rest := bal.Sub(bal, big.NewInt(tx.SystemFee+tx.NetworkFee))
	if rest.Sign() < 0 {
		rest.SetInt64(0)
	}

	r.log.Debug("sweepable GAS estimated",
		zap.Int64("system fee", tx.SystemFee),
		zap.Int64("network fee", tx.NetworkFee),
		zap.Stringer("rest", rest))

	return scale(rest, dec, payrollconst.NativeDecimals), nil
}

// BalanceOf implements rail.Rail.
func (r *Rail) BalanceOf(ctx context.Context, asset util.Uint160) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contract := asset
	if asset.Equals(rail.Native) {
		contract = r.native
	}

	dec, err := r.assetDecimals(contract)
	if err != nil {
		return nil, err
	}

	bal, err := nep17.NewReader(r.act, contract).BalanceOf(r.act.Sender())
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", contract.StringLE(), err)
	}

	if asset.Equals(rail.Native) {
		return scale(bal, dec, payrollconst.NativeDecimals), nil
	}
	return scale(bal, dec, 0), nil
}

// toChain returns NEP-17 contract and amount in its base units.
func (r *Rail) toChain(t rail.Transfer) (util.Uint160, *big.Int, error) {
	if t.Amount == nil || t.Amount.Sign() < 0 {
		return util.Uint160{}, nil, errors.New("invalid amount")
	}

	if t.IsNative() {
		dec, err := r.assetDecimals(r.native)
		if err != nil {
			return util.Uint160{}, nil, err
		}
		return r.native, scale(t.Amount, payrollconst.NativeDecimals, dec), nil
	}

	dec, err := r.assetDecimals(t.Asset)
	if err != nil {
		return util.Uint160{}, nil, err
	}
	return t.Asset, scale(t.Amount, 0, dec), nil
}

func (r *Rail) assetDecimals(contract util.Uint160) (int, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if dec, ok := r.decimals[contract]; ok {
		return dec, nil
	}

	dec, err := nep17.NewReader(r.act, contract).Decimals()
	if err != nil {
		return 0, fmt.Errorf("decimals of %s: %w", contract.StringLE(), err)
	}
	if dec < 0 {
		return 0, fmt.Errorf("invalid decimals of %s: %d", contract.StringLE(), dec)
	}

	r.decimals[contract] = dec
	return dec, nil
}

// scale converts fixed point amount with from decimals into the one with to
// decimals, truncating the precision if needed.
func scale(amount *big.Int, from, to int) *big.Int {
	res := new(big.Int).Set(amount)
	switch {
	case from < to:
		res.Mul(res, pow10(to-from))
	case from > to:
		res.Quo(res, pow10(from-to))
	}
	return res
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
