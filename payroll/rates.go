package payroll

import (
	"context"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/util"
)

// SetOracle replaces the identity trusted to update exchange rates. It can be
// invoked only by the owner.
func (l *Ledger) SetOracle(ctx context.Context, caller, oracle util.Uint160) error {
	return l.update(ctx, "setOracle", func(s *state) ([]Event, error) {
		if err := s.checkOwner(caller); err != nil {
			return nil, err
		}
		if err := s.checkNotPaused(); err != nil {
			return nil, err
		}

		s.putHash(oracleKey, oracle)

		return []Event{{Name: EventOracleChanged, Account: oracle}}, nil
	})
}

// Oracle returns the identity trusted to update exchange rates.
func (l *Ledger) Oracle() (util.Uint160, error) {
	var res util.Uint160
	err := l.view(func(s *state) (err error) {
		res, err = s.oracle()
		return
	})
	return res, err
}

// SetExchangeRate sets USD cents price of one unit of the accepted token. It
// can be invoked only by the oracle.
func (l *Ledger) SetExchangeRate(ctx context.Context, caller, token util.Uint160, cents uint64) error {
	return l.update(ctx, "setExchangeRate", func(s *state) ([]Event, error) {
		if err := s.checkOracle(caller); err != nil {
			return nil, err
		}
		if err := s.checkNotPaused(); err != nil {
			return nil, err
		}

		slot, ok, err := s.tokenSlot(token)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: token %s is not accepted", ErrNotFound, token.StringLE())
		}

		t, err := s.tokenAt(slot)
		if err != nil {
			return nil, err
		}
		t.USDRateCents = cents

		if err := s.putTokenAt(slot, t); err != nil {
			return nil, err
		}

		return []Event{{Name: EventExchangeRateChanged, Account: token, Value: cents}}, nil
	})
}

// SetNativeExchangeRate sets USD cents price of one whole unit of the native
// currency. It can be invoked only by the oracle.
func (l *Ledger) SetNativeExchangeRate(ctx context.Context, caller util.Uint160, cents uint64) error {
	return l.update(ctx, "setNativeExchangeRate", func(s *state) ([]Event, error) {
		if err := s.checkOracle(caller); err != nil {
			return nil, err
		}
		if err := s.checkNotPaused(); err != nil {
			return nil, err
		}

		s.putUint64(nativeRateKey, cents)

		return []Event{{Name: EventExchangeRateChanged, Value: cents}}, nil
	})
}

// NativeExchangeRate returns USD cents price of one whole unit of the native
// currency.
func (l *Ledger) NativeExchangeRate() (uint64, error) {
	var res uint64
	err := l.view(func(s *state) (err error) {
		res, err = s.uint64(nativeRateKey)
		return
	})
	return res, err
}

// TokenRate returns USD cents price of one unit of the accepted token.
func (l *Ledger) TokenRate(token util.Uint160) (uint64, error) {
	t, err := l.Token(token)
	return t.USDRateCents, err
}
