package rail

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Memory is a Rail keeping the treasury and recipient balances in memory.
// It is safe for concurrent use.
type Memory struct {
	mu sync.Mutex

	treasury map[util.Uint160]*big.Int
	accounts map[util.Uint160]map[util.Uint160]*big.Int

	// returns false to make the transfer fail
	hook func(Transfer) bool
	// native currency charged for every sent batch
	fee *big.Int
}

// NewMemory returns an empty Memory rail.
func NewMemory() *Memory {
	return &Memory{
		treasury: make(map[util.Uint160]*big.Int),
		accounts: make(map[util.Uint160]map[util.Uint160]*big.Int),
	}
}

// SetTransferHook sets a function called for every transfer of a batch before
// the batch is applied. If it returns false, the batch fails with
// ErrTransferFailed.
func (m *Memory) SetTransferHook(f func(Transfer) bool) {
	m.mu.Lock()
	m.hook = f
	m.mu.Unlock()
}

// SetFee sets the amount of native currency taken from the treasury for
// every sent batch.
func (m *Memory) SetFee(fee *big.Int) {
	m.mu.Lock()
	m.fee = new(big.Int).Set(fee)
	m.mu.Unlock()
}

// Deposit adds the amount of the asset to the treasury.
func (m *Memory) Deposit(asset util.Uint160, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.treasury[asset] = new(big.Int).Add(balance(m.treasury, asset), amount)
}

// BalanceOf implements Rail.
func (m *Memory) BalanceOf(ctx context.Context, asset util.Uint160) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return new(big.Int).Set(balance(m.treasury, asset)), nil
}

// AccountBalance returns the amount of the asset received by the account.
func (m *Memory) AccountBalance(account, asset util.Uint160) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return new(big.Int).Set(balance(m.accounts[account], asset))
}

// Send implements Rail.
func (m *Memory) Send(ctx context.Context, transfers []Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	need := make(map[util.Uint160]*big.Int)
	for i := range transfers {
		t := transfers[i]
		if t.Amount == nil || t.Amount.Sign() < 0 {
			return fmt.Errorf("%w: invalid amount in transfer #%d", ErrTransferFailed, i)
		}
		if m.hook != nil && !m.hook(t) {
			return fmt.Errorf("%w: transfer #%d of %s rejected", ErrTransferFailed, i, t.Asset.StringLE())
		}
		need[t.Asset] = new(big.Int).Add(balance(need, t.Asset), t.Amount)
	}
	if m.fee != nil && len(transfers) > 0 {
		need[Native] = new(big.Int).Add(balance(need, Native), m.fee)
	}

	for asset, amount := range need {
		if balance(m.treasury, asset).Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s has %s, need %s", ErrInsufficientFunds,
				asset.StringLE(), balance(m.treasury, asset), amount)
		}
	}

	if m.fee != nil && len(transfers) > 0 {
		m.treasury[Native] = new(big.Int).Sub(balance(m.treasury, Native), m.fee)
	}

	for i := range transfers {
		t := transfers[i]
		m.treasury[t.Asset] = new(big.Int).Sub(balance(m.treasury, t.Asset), t.Amount)

		acc, ok := m.accounts[t.To]
		if !ok {
			acc = make(map[util.Uint160]*big.Int)
			m.accounts[t.To] = acc
		}
		acc[t.Asset] = new(big.Int).Add(balance(acc, t.Asset), t.Amount)
	}

	return nil
}

// Sweepable implements Sweeper.
func (m *Memory) Sweepable(ctx context.Context, sweep Transfer, batch []Transfer) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	res := new(big.Int).Set(balance(m.treasury, sweep.Asset))
	for i := range batch {
		if batch[i].Asset == sweep.Asset && batch[i].Amount != nil {
			res.Sub(res, batch[i].Amount)
		}
	}
	if sweep.IsNative() && m.fee != nil {
		res.Sub(res, m.fee)
	}
	if res.Sign() < 0 {
		res.SetInt64(0)
	}
	return res, nil
}

func balance(m map[util.Uint160]*big.Int, asset util.Uint160) *big.Int {
	if v, ok := m[asset]; ok {
		return v
	}
	return new(big.Int)
}
