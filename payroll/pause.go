package payroll

import (
	"context"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/payroll-ledger/common"
	"github.com/nspcc-dev/payroll-ledger/rail"
)

// Pause stops all mutating methods except Unpause, EscapeHatch and
// TransferOwnership. It can be invoked only by the owner.
func (l *Ledger) Pause(ctx context.Context, caller util.Uint160) error {
	return l.update(ctx, "pause", func(s *state) ([]Event, error) {
		if err := s.checkOwner(caller); err != nil {
			return nil, err
		}
		if err := s.checkNotPaused(); err != nil {
			return nil, err
		}

		s.setPaused(true)

		return []Event{{Name: EventPaused, Account: caller}}, nil
	})
}

// Unpause resumes the paused ledger. It can be invoked only by the owner.
func (l *Ledger) Unpause(ctx context.Context, caller util.Uint160) error {
	return l.update(ctx, "unpause", func(s *state) ([]Event, error) {
		if err := s.checkOwner(caller); err != nil {
			return nil, err
		}

		p, err := s.paused()
		if err != nil {
			return nil, err
		}
		if !p {
			return nil, fmt.Errorf("%w: ledger is not paused", ErrInvalidArgument)
		}

		s.setPaused(false)

		return []Event{{Name: EventUnpaused, Account: caller}}, nil
	})
}

// Paused checks whether the ledger is paused.
func (l *Ledger) Paused() (bool, error) {
	var res bool
	err := l.view(func(s *state) (err error) {
		res, err = s.paused()
		return
	})
	return res, err
}

// EscapeHatch pauses the ledger and transfers the whole treasury, native
// currency and all accepted tokens, to the owner. It can be invoked only by
// the owner, paused ledger included.
func (l *Ledger) EscapeHatch(ctx context.Context, caller util.Uint160) ([]rail.Transfer, error) {
	var transfers []rail.Transfer

	err := l.update(ctx, "escapeHatch", func(s *state) ([]Event, error) {
		if err := s.checkOwner(caller); err != nil {
			return nil, err
		}

		wasPaused, err := s.paused()
		if err != nil {
			return nil, err
		}
		s.setPaused(true)

		details := common.EscapeHatchTransferDetails(caller.BytesBE())

		tokens, err := s.tokens()
		if err != nil {
			return nil, err
		}
		for _, t := range tokens {
			held, err := l.rail.BalanceOf(ctx, t.Address)
			if err != nil {
				return nil, fmt.Errorf("balance of token %s: %w", t.Address.StringLE(), err)
			}
			if held.Sign() > 0 {
				transfers = append(transfers, rail.Transfer{Asset: t.Address, To: caller, Amount: held, Details: details})
			}
		}

		sweep := rail.Transfer{Asset: rail.Native, To: caller, Details: details}
		sweep.Amount, err = l.sweepable(ctx, sweep, transfers)
		if err != nil {
			return nil, fmt.Errorf("native balance: %w", err)
		}
		if sweep.Amount.Sign() > 0 {
			transfers = append([]rail.Transfer{sweep}, transfers...)
		}

		s.queue(transfers...)

		var events []Event
		if !wasPaused {
			events = append(events, Event{Name: EventPaused, Account: caller})
		}
		return append(events, Event{Name: EventEscapeHatch, Account: caller, Value: uint64(len(transfers))}), nil
	})
	if err != nil {
		return nil, err
	}

	return transfers, nil
}

// sweepable returns the amount of the sweep asset that can be sent along with
// the batch.
func (l *Ledger) sweepable(ctx context.Context, sweep rail.Transfer, batch []rail.Transfer) (*big.Int, error) {
	if sw, ok := l.rail.(rail.Sweeper); ok {
		return sw.Sweepable(ctx, sweep, batch)
	}
	return l.rail.BalanceOf(ctx, sweep.Asset)
}
