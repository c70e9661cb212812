package payroll

import (
	"context"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/payroll-ledger/payroll/payrollconst"
	"github.com/nspcc-dev/payroll-ledger/rail"
)

// TotalBalanceInUSDCents returns treasury value in USD cents as a fixed point
// number with the returned number of decimal places. Treasury balances are
// requested from the rail on every call.
func (l *Ledger) TotalBalanceInUSDCents(ctx context.Context) (*big.Int, int, error) {
	var total *big.Int

	err := l.view(func(s *state) (err error) {
		total, err = l.treasuryValue(ctx, s)
		return
	})
	if err != nil {
		return nil, 0, err
	}

	return total, payrollconst.NativeDecimals, nil
}

func (l *Ledger) treasuryValue(ctx context.Context, s *state) (*big.Int, error) {
	nativeRate, err := s.uint64(nativeRateKey)
	if err != nil {
		return nil, err
	}

	nativeBalance, err := l.rail.BalanceOf(ctx, rail.Native)
	if err != nil {
		return nil, fmt.Errorf("native balance: %w", err)
	}

	total := new(big.Int).Mul(nativeBalance, new(big.Int).SetUint64(nativeRate))

	tokens, err := s.tokens()
	if err != nil {
		return nil, err
	}

	mul := decimalsMultiplier()
	for _, t := range tokens {
		held, err := l.rail.BalanceOf(ctx, t.Address)
		if err != nil {
			return nil, fmt.Errorf("balance of token %s: %w", t.Address.StringLE(), err)
		}
		if held.Sign() == 0 {
			continue
		}

		v := new(big.Int).Mul(held, new(big.Int).SetUint64(t.USDRateCents))
		total.Add(total, v.Mul(v, mul))
	}

	return total, nil
}

// PayrollBurnrate returns monthly USD cents spent on salaries.
func (l *Ledger) PayrollBurnrate() (uint64, error) {
	sum, err := l.SalariesSummationUSDCents()
	if err != nil {
		return 0, err
	}
	return sum / payrollconst.MonthsPerYear, nil
}

// PayrollRunway returns the number of days the treasury can pay salaries at
// the current burn rate. It requires at least one active employee.
func (l *Ledger) PayrollRunway(ctx context.Context) (*big.Int, error) {
	var res *big.Int

	err := l.view(func(s *state) error {
		count, err := s.uint64(employeeCountKey)
		if err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: no active employees", ErrNotFound)
		}

		sum, err := s.uint64(salariesKey)
		if err != nil {
			return err
		}
		daily := sum / payrollconst.MonthsPerYear / payrollconst.DaysPerMonth
		if daily == 0 {
			return fmt.Errorf("%w: zero burn rate", ErrInvalidArgument)
		}

		total, err := l.treasuryValue(ctx, s)
		if err != nil {
			return err
		}

		res = total.Quo(total, new(big.Int).SetUint64(daily))
		res.Quo(res, decimalsMultiplier())
		return nil
	})

	return res, err
}
