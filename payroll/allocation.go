package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/payroll-ledger/payroll/payrollconst"
)

// DetermineAllocation sets the split of the caller's monthly pay: percentages[i]
// of it is paid in tokens[i], the rest is paid in native currency. Previous
// allocation is fully replaced. It can be invoked only by an active employee
// once per pay period, see CooldownPolicy.
func (l *Ledger) DetermineAllocation(ctx context.Context, caller util.Uint160, tokens []util.Uint160, percentages []uint32) error {
	return l.update(ctx, "determineAllocation", func(s *state) ([]Event, error) {
		e, err := s.callerEmployee(caller)
		if err != nil {
			return nil, err
		}
		if err := s.checkNotPaused(); err != nil {
			return nil, err
		}

		now := l.now()
		if !l.canAllocate(e, now) {
			return nil, fmt.Errorf("%w: allocation can be changed after %s",
				ErrCooldown, l.nextAllocation(e).Format(time.RFC3339))
		}

		if len(tokens) != len(percentages) {
			return nil, fmt.Errorf("%w: %d tokens with %d percentages",
				ErrInvalidArgument, len(tokens), len(percentages))
		}

		limit, err := s.tokenLimit()
		if err != nil {
			return nil, err
		}
		if uint64(len(tokens)) > limit {
			return nil, fmt.Errorf("%w: %d tokens, limit is %d", ErrLimitExceeded, len(tokens), limit)
		}
		if err := s.checkTokens(tokens); err != nil {
			return nil, err
		}

		e.TokenAllocated = append([]util.Uint160(nil), tokens...)
		e.TokenAllocation = append([]uint32(nil), percentages...)
		sum := e.AllocatedPercentage()
		if sum > payrollconst.MaxPercentage {
			return nil, fmt.Errorf("%w: allocation sum %d exceeds %d",
				ErrInvalidArgument, sum, payrollconst.MaxPercentage)
		}
		e.LastAllocation = now

		if err := s.putEmployee(e); err != nil {
			return nil, err
		}

		return []Event{{Name: EventAllocationChanged, EmployeeID: e.ID, Account: e.Account, Value: sum}}, nil
	})
}

// nextPayday returns the end of the payday cooldown. Under SharedCooldown
// allocation changes restart it too.
func (l *Ledger) nextPayday(e Employee) time.Time {
	anchor := e.LastPayout
	if l.policy == SharedCooldown && e.LastAllocation.After(anchor) {
		anchor = e.LastAllocation
	}
	return anchor.Add(l.period)
}

func (l *Ledger) nextAllocation(e Employee) time.Time {
	if l.policy == SharedCooldown {
		return l.nextPayday(e)
	}
	if e.LastAllocation.IsZero() {
		return time.Time{}
	}
	return e.LastAllocation.Add(l.period)
}

func (l *Ledger) canClaimPayday(e Employee, now time.Time) bool {
	return now.After(l.nextPayday(e))
}

func (l *Ledger) canAllocate(e Employee, now time.Time) bool {
	next := l.nextAllocation(e)
	return next.IsZero() || now.After(next)
}
