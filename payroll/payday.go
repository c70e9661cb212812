package payroll

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/payroll-ledger/common"
	"github.com/nspcc-dev/payroll-ledger/payroll/payrollconst"
	"github.com/nspcc-dev/payroll-ledger/rail"
	"go.uber.org/zap"
)

var paydayIDPrefix = []byte("payday")

// Payslip describes a single salary payment.
type Payslip struct {
	// Base58-encoded payment identifier, also attached to the transfers.
	ID string

	EmployeeID uint64
	Account    util.Uint160

	// Monthly pay in USD cents.
	USDCents uint64

	// Transfers made to pay the salary. Token transfers go first, native one
	// is the last, if any.
	Transfers []rail.Transfer

	At time.Time
}

// Payday pays monthly salary to the caller. Monthly pay is split between
// tokens according to the employee allocation, everything not covered by
// token transfers is paid in native currency at the current rate. It can be
// invoked only by an active employee once per pay period.
//
// Yearly salary is not always divisible by 12, the remainder is accrued and
// paid as soon as it reaches a whole cent, so that 12 paydays pay exactly the
// yearly salary.
func (l *Ledger) Payday(ctx context.Context, caller util.Uint160) (Payslip, error) {
	var slip Payslip

	err := l.update(ctx, "payday", func(s *state) ([]Event, error) {
		e, err := s.callerEmployee(caller)
		if err != nil {
			return nil, err
		}
		if err := s.checkNotPaused(); err != nil {
			return nil, err
		}

		now := l.now()
		if !l.canClaimPayday(e, now) {
			return nil, fmt.Errorf("%w: next payday is after %s",
				ErrCooldown, l.nextPayday(e).Format(time.RFC3339))
		}

		var pay uint64
		pay, e.AccruedTwelfths = monthlyPay(e.YearlyUSDCents, e.AccruedTwelfths)

		id := common.InvokeID([][]byte{common.Uint64Key(e.ID), common.Uint64Key(uint64(now.UnixNano()))}, paydayIDPrefix)
		details := common.PaydayTransferDetails(id.BytesBE())

		transfers, err := splitPay(s, e, pay, details)
		if err != nil {
			return nil, err
		}

		e.LastPayout = now
		if err := s.putEmployee(e); err != nil {
			return nil, err
		}

		s.queue(transfers...)

		slip = Payslip{
			ID:         base58.Encode(id.BytesBE()),
			EmployeeID: e.ID,
			Account:    e.Account,
			USDCents:   pay,
			Transfers:  transfers,
			At:         now,
		}

		return []Event{{
			Name:       EventPayday,
			EmployeeID: e.ID,
			Account:    e.Account,
			Value:      pay,
			Payslip:    &slip,
		}}, nil
	})
	if err != nil {
		if slip.ID != "" {
			l.log.Warn("salary payment failed",
				zap.Uint64("employee", slip.EmployeeID),
				zap.String("payslip", slip.ID),
				zap.Error(err))
		}
		return Payslip{}, err
	}

	l.log.Info("salary paid",
		zap.Uint64("employee", slip.EmployeeID),
		zap.String("payslip", slip.ID),
		zap.Uint64("usd cents", slip.USDCents),
		zap.Int("transfers", len(slip.Transfers)))

	return slip, nil
}

// monthlyPay returns the pay for the month and the twelfths of a cent carried
// to the next one. It equals (yearly+accrued)/12 and (yearly+accrued)%12
// without overflowing for any yearly salary.
func monthlyPay(yearly, accrued uint64) (uint64, uint64) {
	carry := yearly%payrollconst.MonthsPerYear + accrued
	return yearly/payrollconst.MonthsPerYear + carry/payrollconst.MonthsPerYear,
		carry % payrollconst.MonthsPerYear
}

// splitPay converts the monthly pay in USD cents into transfers. Token legs
// pay whole token units; everything they don't cover, including legs of
// tokens not accepted anymore, is paid in native currency.
func splitPay(s *state, e Employee, pay uint64, details []byte) ([]rail.Transfer, error) {
	var (
		bigPay    = new(big.Int).SetUint64(pay)
		allocated = new(big.Int)
		rest      = new(big.Int)
		res       []rail.Transfer
	)

	for i, addr := range e.TokenAllocated {
		share := new(big.Int).Mul(bigPay, big.NewInt(int64(e.TokenAllocation[i])))
		share.Quo(share, big.NewInt(payrollconst.MaxPercentage))
		allocated.Add(allocated, share)

		t, ok, err := s.token(addr)
		if err != nil {
			return nil, err
		}
		if !ok || t.USDRateCents == 0 {
			rest.Add(rest, share)
			continue
		}

		rate := new(big.Int).SetUint64(t.USDRateCents)
		units, uncovered := new(big.Int).QuoRem(share, rate, new(big.Int))
		rest.Add(rest, uncovered)

		if units.Sign() > 0 {
			res = append(res, rail.Transfer{
				Asset:   addr,
				To:      e.Account,
				Amount:  units,
				Details: details,
			})
		}
	}

	rest.Add(rest, new(big.Int).Sub(bigPay, allocated))
	if rest.Sign() == 0 {
		return res, nil
	}

	nativeRate, err := s.uint64(nativeRateKey)
	if err != nil {
		return nil, err
	}
	if nativeRate == 0 {
		return nil, fmt.Errorf("%w: native exchange rate is not set", ErrInvalidArgument)
	}

	amount := new(big.Int).Mul(rest, decimalsMultiplier())
	amount.Quo(amount, new(big.Int).SetUint64(nativeRate))

	if amount.Sign() > 0 {
		res = append(res, rail.Transfer{
			Asset:   rail.Native,
			To:      e.Account,
			Amount:  amount,
			Details: details,
		})
	}

	return res, nil
}

// decimalsMultiplier returns 10^payrollconst.NativeDecimals.
func decimalsMultiplier() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(payrollconst.NativeDecimals), nil)
}
